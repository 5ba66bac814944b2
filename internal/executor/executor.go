//go:build unix

// Package executor launches external commands as jobs.
package executor

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"golang.org/x/sys/unix"

	"tsh/internal/console"
	"tsh/internal/jobs"
	"tsh/internal/logging"
	"tsh/internal/signals"
)

var (
	// ErrFork means the child process could not be created.
	ErrFork = errors.New("fork failed")
	// ErrCommandNotFound means the child could not exec the program.
	ErrCommandNotFound = errors.New("command not found")
)

// Options configures a Launcher. Nil streams default to the shell's own.
type Options struct {
	PollInterval time.Duration
	Stdin        *os.File
	Stdout       *os.File
	Stderr       *os.File
}

// Launcher starts external commands in their own process group and
// registers them in the job table.
type Launcher struct {
	table *jobs.Table
	mask  *signals.Mask
	out   *console.Console
	log   *slog.Logger
	opts  Options
}

func New(table *jobs.Table, mask *signals.Mask, out *console.Console, log *slog.Logger, opts Options) *Launcher {
	if opts.Stdin == nil {
		opts.Stdin = os.Stdin
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	return &Launcher{
		table: table,
		mask:  mask,
		out:   out,
		log:   logging.Component(log, "executor"),
		opts:  opts,
	}
}

// Launch runs argv as a new job. A foreground job blocks until it is no
// longer in the foreground; a background job is announced and left running.
func (l *Launcher) Launch(ctx context.Context, argv []string, cmdline string, background bool) error {
	if len(argv) == 0 {
		return nil
	}

	// The reaper stays out until the job is in the table, so it cannot
	// collect a child the table has never seen.
	release := l.mask.Block()
	defer release()

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Env = os.Environ()
	setProcessGroup(cmd)
	cmd.Stdout = l.opts.Stdout
	cmd.Stderr = l.opts.Stderr

	if background {
		// Background jobs should not read from the terminal
		devNull, err := os.Open(os.DevNull)
		if err != nil {
			l.out.Printf("fork: %v", err)
			return fmt.Errorf("%w: %v", ErrFork, err)
		}
		defer devNull.Close()
		cmd.Stdin = devNull
	} else {
		cmd.Stdin = l.opts.Stdin
	}

	if err := cmd.Start(); err != nil {
		if isExecFailure(err) {
			l.out.Printf("%s : Command not found.", argv[0])
			return fmt.Errorf("%s: %w", argv[0], ErrCommandNotFound)
		}
		l.out.Printf("fork: %v", err)
		return fmt.Errorf("%w: %v", ErrFork, err)
	}

	pid := cmd.Process.Pid
	// The signal handler reaps the child with wait(2); the handle is not needed.
	_ = cmd.Process.Release()

	state := jobs.Foreground
	if background {
		state = jobs.Background
	}
	job, err := l.table.Insert(pid, state, cmdline)
	if err != nil {
		if errors.Is(err, jobs.ErrTableFull) {
			l.out.Println("Tried to create too many jobs")
		} else {
			l.out.Printf("%s: %v", argv[0], err)
		}
		// Nothing tracks the child, so it must not keep running.
		if kerr := killProcessGroup(pid, unix.SIGKILL); kerr != nil {
			l.log.Warn("killing untracked child", "pid", pid, "err", kerr)
		}
		return fmt.Errorf("register pid %d: %w", pid, err)
	}
	release()

	l.log.Debug("job started", "jid", job.JID, "pid", pid, "state", state, "argv", argv)

	if background {
		l.out.Println(job.Announcement())
		return nil
	}
	return l.table.WaitForeground(ctx, pid, l.opts.PollInterval)
}

// isExecFailure reports whether a start error came from locating or
// executing the program rather than from creating the process.
func isExecFailure(err error) bool {
	var execErr *exec.Error
	if errors.As(err, &execErr) {
		return true
	}
	return errors.Is(err, fs.ErrNotExist) ||
		errors.Is(err, fs.ErrPermission) ||
		errors.Is(err, unix.ENOEXEC) ||
		errors.Is(err, unix.ENOTDIR) ||
		errors.Is(err, unix.EISDIR)
}
