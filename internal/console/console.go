// Package console serializes the shell's user-facing output. The control loop
// and the signal handler both print through one Console so their lines never
// interleave.
package console

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

type Console struct {
	mu     sync.Mutex
	out    io.Writer
	prompt string
}

// Options configures a Console.
type Options struct {
	Prompt string
	// Color styles the prompt. It only takes effect when out is a terminal.
	Color bool
}

func New(out io.Writer, opts Options) *Console {
	if out == nil {
		out = os.Stdout
	}
	return &Console{out: out, prompt: renderPrompt(out, opts)}
}

// Println writes one line.
func (c *Console) Println(line string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = io.WriteString(c.out, line+"\n")
}

func (c *Console) Printf(format string, args ...any) {
	c.Println(fmt.Sprintf(format, args...))
}

// Prompt writes the prompt without a trailing newline.
func (c *Console) Prompt() {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = io.WriteString(c.out, c.prompt)
}

// Redraw starts a fresh line and writes the prompt again.
func (c *Console) Redraw() {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = io.WriteString(c.out, "\n"+c.prompt)
}

// IsTerminal reports whether w is a terminal.
func IsTerminal(w any) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func renderPrompt(out io.Writer, opts Options) string {
	if !opts.Color || !IsTerminal(out) || opts.Prompt == "" {
		return opts.Prompt
	}
	style := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	return style.Render(opts.Prompt)
}
