//go:build unix

// Package builtins routes parsed commands: the shell's own commands run
// here, everything else is handed to a Launcher.
package builtins

import (
	"context"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"tsh/internal/console"
	"tsh/internal/jobs"
	"tsh/internal/logging"
	"tsh/internal/parser"
)

// Launcher starts external commands as jobs.
type Launcher interface {
	Launch(ctx context.Context, argv []string, cmdline string, background bool) error
}

// Dispatcher runs builtins and forwards every other command to a Launcher.
type Dispatcher struct {
	table    *jobs.Table
	launcher Launcher
	out      *console.Console
	log      *slog.Logger
	poll     time.Duration
	kill     func(pid int, sig unix.Signal) error
	exit     func(code int)
}

// Option customizes a Dispatcher.
type Option func(*Dispatcher)

// WithPollInterval sets the foreground wait poll bound.
func WithPollInterval(d time.Duration) Option {
	return func(disp *Dispatcher) { disp.poll = d }
}

// WithKill replaces the signal sender used to continue jobs.
func WithKill(fn func(pid int, sig unix.Signal) error) Option {
	return func(disp *Dispatcher) { disp.kill = fn }
}

// WithExit replaces os.Exit for the quit builtin.
func WithExit(fn func(code int)) Option {
	return func(disp *Dispatcher) { disp.exit = fn }
}

func New(table *jobs.Table, launcher Launcher, out *console.Console, log *slog.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		table:    table,
		launcher: launcher,
		out:      out,
		log:      logging.Component(log, "builtins"),
		poll:     jobs.DefaultPollInterval,
		kill:     unix.Kill,
		exit:     os.Exit,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch runs cmd. User-facing errors have already been printed when it
// returns; the returned error is for diagnostics only.
func (d *Dispatcher) Dispatch(ctx context.Context, cmd parser.Command) error {
	if cmd.Empty() {
		return nil
	}
	if handled, err := d.Handle(ctx, cmd.Argv); handled {
		return err
	}
	d.log.Debug("launching", "name", cmd.Name(), "background", cmd.Background)
	return d.launcher.Launch(ctx, cmd.Argv, cmd.Line, cmd.Background)
}

// Handle runs argv if it names a builtin and reports whether it did.
func (d *Dispatcher) Handle(ctx context.Context, argv []string) (bool, error) {
	if len(argv) == 0 {
		return true, nil
	}

	switch argv[0] {
	case "quit":
		d.exit(0)
		return true, nil
	case "jobs":
		d.jobs()
		return true, nil
	case "fg", "bg":
		return true, d.bgfg(ctx, argv)
	default:
		return false, nil
	}
}

func (d *Dispatcher) jobs() {
	for _, job := range d.table.List() {
		d.out.Println(job.Listing())
	}
}
