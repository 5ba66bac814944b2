//go:build unix

package builtins

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"

	"tsh/internal/jobs"
)

var (
	ErrMissingArgument   = errors.New("missing job argument")
	ErrMalformedArgument = errors.New("malformed job argument")
	ErrNoSuchProcess     = errors.New("no such process")
	ErrNoSuchJob         = errors.New("no such job")
)

// ArgumentError is a bg/fg argument problem. Its message is what the user sees.
type ArgumentError struct {
	Msg string
	Err error
}

func (e *ArgumentError) Error() string { return e.Msg }

func (e *ArgumentError) Unwrap() error { return e.Err }

// Resolve finds the job named by argv[1], a pid or a %jid.
func (d *Dispatcher) Resolve(argv []string) (jobs.Job, error) {
	if len(argv) < 2 {
		return jobs.Job{}, &ArgumentError{
			Msg: fmt.Sprintf("%s command requires PID or %%jobid argument", argv[0]),
			Err: ErrMissingArgument,
		}
	}

	arg := argv[1]
	switch {
	case isDigits(arg):
		pid, err := strconv.Atoi(arg)
		if err == nil {
			if job, ok := d.table.FindByPID(pid); ok {
				return job, nil
			}
			arg = strconv.Itoa(pid)
		}
		return jobs.Job{}, &ArgumentError{
			Msg: fmt.Sprintf("(%s): No such process", arg),
			Err: ErrNoSuchProcess,
		}
	case strings.HasPrefix(arg, "%") && isDigits(arg[1:]):
		if jid, err := strconv.Atoi(arg[1:]); err == nil {
			if job, ok := d.table.FindByJID(jid); ok {
				return job, nil
			}
		}
		return jobs.Job{}, &ArgumentError{
			Msg: fmt.Sprintf("%s: No such job", arg),
			Err: ErrNoSuchJob,
		}
	default:
		return jobs.Job{}, &ArgumentError{
			Msg: fmt.Sprintf("%s: argument must be a PID or %%jobid", argv[0]),
			Err: ErrMalformedArgument,
		}
	}
}

// bgfg moves a job between stopped, background and foreground.
func (d *Dispatcher) bgfg(ctx context.Context, argv []string) error {
	job, err := d.Resolve(argv)
	if err != nil {
		d.out.Println(err.Error())
		return err
	}

	fg := argv[0] == "fg"
	switch {
	case job.State == jobs.Stopped && fg:
		if _, err := d.table.SetState(job.PID, jobs.Foreground); err != nil {
			return d.transitionFailed(job, err)
		}
		d.resume(job.PID)
		return d.table.WaitForeground(ctx, job.PID, d.poll)

	case job.State == jobs.Stopped:
		updated, err := d.table.SetState(job.PID, jobs.Background)
		if err != nil {
			return d.transitionFailed(job, err)
		}
		d.out.Println(updated.Announcement())
		d.resume(job.PID)
		return nil

	case job.State == jobs.Background && fg:
		if _, err := d.table.SetState(job.PID, jobs.Foreground); err != nil {
			return d.transitionFailed(job, err)
		}
		return d.table.WaitForeground(ctx, job.PID, d.poll)
	}

	d.log.Debug("no transition", "cmd", argv[0], "jid", job.JID, "state", job.State)
	return nil
}

// resume continues every process in the job's group.
func (d *Dispatcher) resume(pid int) {
	if err := d.kill(-pid, unix.SIGCONT); err != nil {
		d.log.Warn("continuing job", "pgid", pid, "err", err)
	}
}

// transitionFailed handles a job that changed under us, usually because the
// signal handler reaped it between lookup and update.
func (d *Dispatcher) transitionFailed(job jobs.Job, err error) error {
	if errors.Is(err, jobs.ErrNoSuchJob) {
		d.out.Printf("(%d): No such process", job.PID)
	} else {
		d.out.Printf("[%d] (%d): %v", job.JID, job.PID, err)
	}
	return err
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
