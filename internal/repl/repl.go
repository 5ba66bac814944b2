// Package repl is the shell's read loop: prompt, read a line, parse it and
// hand it to the dispatcher.
package repl

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"

	"tsh/internal/console"
	"tsh/internal/logging"
	"tsh/internal/parser"
)

// Dispatcher runs one parsed command.
type Dispatcher interface {
	Dispatch(ctx context.Context, cmd parser.Command) error
}

type REPL struct {
	in         *bufio.Reader
	out        *console.Console
	disp       Dispatcher
	log        *slog.Logger
	emitPrompt bool
}

func New(in io.Reader, out *console.Console, disp Dispatcher, log *slog.Logger, emitPrompt bool) *REPL {
	return &REPL{
		in:         bufio.NewReader(in),
		out:        out,
		disp:       disp,
		log:        logging.Component(log, "repl"),
		emitPrompt: emitPrompt,
	}
}

// Run reads and evaluates lines until end of input or until ctx is done.
// End of input is a normal return.
func (r *REPL) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		if r.emitPrompt {
			r.out.Prompt()
		}

		line, err := r.in.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		eof := err != nil

		if strings.TrimSpace(line) != "" {
			r.eval(ctx, line)
		}
		if eof {
			if r.emitPrompt {
				r.out.Println("")
			}
			return nil
		}
	}
}

func (r *REPL) eval(ctx context.Context, line string) {
	cmd, err := parser.Parse(line)
	if err != nil {
		r.out.Printf("%s: %v", cmd.Line, err)
		return
	}
	if err := r.disp.Dispatch(ctx, cmd); err != nil {
		r.log.Debug("command failed", "line", cmd.Line, "err", err)
	}
}
