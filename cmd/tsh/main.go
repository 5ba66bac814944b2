//go:build unix

// tsh is a tiny shell with job control.
//
// Usage:
//
//	tsh [-h] [-v] [-p] [-config path] [-log-level level]
//
// Commands ending in & run in the background. Builtins: quit, jobs,
// bg <pid|%jid>, fg <pid|%jid>.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/oklog/run"
	"golang.org/x/sys/unix"

	"tsh/internal/builtins"
	"tsh/internal/config"
	"tsh/internal/console"
	"tsh/internal/executor"
	"tsh/internal/jobs"
	"tsh/internal/logging"
	"tsh/internal/repl"
	"tsh/internal/signals"
)

func main() {
	os.Exit(runShell(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

type options struct {
	verbose    bool
	noPrompt   bool
	configPath string
	logLevel   string
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var opts options
	fs := flag.NewFlagSet("tsh", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.BoolVar(&opts.verbose, "v", false, "Print additional diagnostic information")
	fs.BoolVar(&opts.noPrompt, "p", false, "Do not emit a command prompt")
	fs.StringVar(&opts.configPath, "config", "", "Path to configuration file (.yaml or .toml)")
	fs.StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: tsh [-hvp] [-config path] [-log-level level]\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if opts.logLevel != "" && !logging.ValidLevel(opts.logLevel) {
		return opts, fmt.Errorf("invalid log level %q (must be debug, info, warn, or error)", opts.logLevel)
	}
	return opts, nil
}

// resolveConfig loads the file settings and applies flags on top.
func resolveConfig(opts options) (config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return cfg, err
	}
	if opts.noPrompt {
		cfg.EmitPrompt = false
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}
	if opts.verbose {
		cfg.LogLevel = "debug"
	}
	return cfg, nil
}

func runShell(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintf(stderr, "tsh: %v\n", err)
		return 2
	}

	cfg, err := resolveConfig(opts)
	if err != nil {
		fmt.Fprintf(stderr, "tsh: %v\n", err)
		return 2
	}

	log := logging.New(stderr, logging.ParseLevel(cfg.LogLevel))
	if cfg.Path != "" {
		log.Debug("loaded config", "path", cfg.Path)
	}

	// Ctrl-\ must not be another way out of the shell.
	signal.Ignore(unix.SIGQUIT)

	out := console.New(stdout, console.Options{Prompt: cfg.Prompt, Color: cfg.Color})
	table := jobs.NewTable(cfg.MaxJobs)
	mask := &signals.Mask{}
	var handlerOpts []signals.Option
	if cfg.EmitPrompt {
		handlerOpts = append(handlerOpts, signals.WithIdleInterrupt(out.Redraw))
	}
	handler := signals.New(table, out, mask, log, handlerOpts...)

	stdinFile, _ := stdin.(*os.File)
	stdoutFile, _ := stdout.(*os.File)
	stderrFile, _ := stderr.(*os.File)
	launcher := executor.New(table, mask, out, log, executor.Options{
		PollInterval: cfg.PollInterval,
		Stdin:        stdinFile,
		Stdout:       stdoutFile,
		Stderr:       stderrFile,
	})
	dispatcher := builtins.New(table, launcher, out, log, builtins.WithPollInterval(cfg.PollInterval))
	loop := repl.New(stdin, out, dispatcher, log, cfg.EmitPrompt)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var g run.Group
	{
		g.Add(func() error {
			return handler.Run(ctx)
		}, func(error) {
			cancel()
		})
	}
	{
		g.Add(func() error {
			return loop.Run(ctx)
		}, func(error) {
			cancel()
			// Unblock a read in progress.
			if c, ok := stdin.(io.Closer); ok {
				_ = c.Close()
			}
		})
	}

	if err := g.Run(); err != nil {
		log.Error("shell stopped", "err", err)
	}
	return 0
}
