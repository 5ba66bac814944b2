//go:build unix

// Package signals reacts to the asynchronous notifications that drive job
// state: children changing state, and keyboard interrupt/suspend aimed at the
// foreground job.
package signals

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"

	"golang.org/x/sys/unix"

	"tsh/internal/console"
	"tsh/internal/jobs"
	"tsh/internal/logging"
)

// WaitFunc collects one child status without blocking. It returns a pid of 0
// when no child has a status ready.
type WaitFunc func(status *unix.WaitStatus) (int, error)

// KillFunc sends sig to pid; a negative pid targets a process group.
type KillFunc func(pid int, sig unix.Signal) error

func wait4(status *unix.WaitStatus) (int, error) {
	return unix.Wait4(-1, status, unix.WNOHANG|unix.WUNTRACED, nil)
}

// Handler is the shell's signal handler set. It is the only place jobs
// leave the table.
type Handler struct {
	table *jobs.Table
	out   *console.Console
	mask  *Mask
	log   *slog.Logger
	wait  WaitFunc
	kill  KillFunc
	idle  func()
}

// Option customizes a Handler.
type Option func(*Handler)

// WithWait replaces the status collector.
func WithWait(fn WaitFunc) Option {
	return func(h *Handler) { h.wait = fn }
}

// WithKill replaces the signal sender.
func WithKill(fn KillFunc) Option {
	return func(h *Handler) { h.kill = fn }
}

// WithIdleInterrupt sets fn to run when SIGINT arrives and no job is in the
// foreground.
func WithIdleInterrupt(fn func()) Option {
	return func(h *Handler) { h.idle = fn }
}

func New(table *jobs.Table, out *console.Console, mask *Mask, log *slog.Logger, opts ...Option) *Handler {
	h := &Handler{
		table: table,
		out:   out,
		mask:  mask,
		log:   logging.Component(log, "signals"),
		wait:  wait4,
		kill:  unix.Kill,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run subscribes to SIGCHLD, SIGINT and SIGTSTP and handles them until ctx
// is done. It is meant to be started once, next to the read loop.
func (h *Handler) Run(ctx context.Context) error {
	sigCh := make(chan os.Signal, 16)
	signal.Notify(sigCh, unix.SIGCHLD, unix.SIGINT, unix.SIGTSTP)
	defer signal.Stop(sigCh)

	// Children may have changed state before we subscribed.
	h.Reap()

	for {
		select {
		case <-ctx.Done():
			return nil
		case sig := <-sigCh:
			h.Handle(sig)
		}
	}
}

// Handle dispatches one delivered signal.
func (h *Handler) Handle(sig os.Signal) {
	switch sig {
	case unix.SIGCHLD:
		h.Reap()
	case unix.SIGINT:
		h.Interrupt()
	case unix.SIGTSTP:
		h.Suspend()
	default:
		h.log.Debug("ignoring signal", "signal", sig)
	}
}

// Reap drains every child whose status is ready without blocking.
func (h *Handler) Reap() {
	release := h.mask.Block()
	defer release()

	for {
		var status unix.WaitStatus
		pid, err := h.wait(&status)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			if !errors.Is(err, unix.ECHILD) {
				h.log.Warn("wait failed", "err", err)
			}
			return
		}
		if pid <= 0 {
			return
		}
		h.record(pid, status)
	}
}

func (h *Handler) record(pid int, status unix.WaitStatus) {
	job, tracked := h.table.FindByPID(pid)
	if !tracked {
		h.log.Debug("reaped untracked child", "pid", pid)
		return
	}

	switch {
	case status.Exited():
		h.table.Remove(pid)
		h.log.Debug("job exited", "jid", job.JID, "pid", pid, "code", status.ExitStatus())
	case status.Signaled():
		h.out.Printf("Job [%d] (%d) terminated by signal %d", job.JID, pid, int(status.Signal()))
		h.table.Remove(pid)
	case status.Stopped():
		// Print before the state change wakes the foreground waiter.
		h.out.Printf("Job [%d] (%d) stopped by signal %d", job.JID, pid, int(status.StopSignal()))
		if _, err := h.table.SetState(pid, jobs.Stopped); err != nil {
			h.log.Warn("marking job stopped", "pid", pid, "err", err)
		}
	}
}

// Interrupt forwards SIGINT to the foreground job's process group.
func (h *Handler) Interrupt() {
	if !h.forward(unix.SIGINT) && h.idle != nil {
		h.idle()
	}
}

// Suspend forwards SIGTSTP to the foreground job's process group.
func (h *Handler) Suspend() {
	h.forward(unix.SIGTSTP)
}

// forward reports whether there was a foreground group to signal.
func (h *Handler) forward(sig unix.Signal) bool {
	pid, ok := h.table.ForegroundPID()
	if !ok || pid <= 0 || pid == unix.Getpgrp() {
		return false
	}
	if err := h.kill(-pid, sig); err != nil {
		h.log.Warn("forwarding signal", "signal", sig, "pgid", pid, "err", err)
		return true
	}
	h.log.Debug("forwarded signal", "signal", sig, "pgid", pid)
	return true
}
