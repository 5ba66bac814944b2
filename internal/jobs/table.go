package jobs

import (
	"errors"
	"fmt"
	"sync"
)

// DefaultMaxJobs is the table capacity when none is configured.
const DefaultMaxJobs = 16

var (
	ErrTableFull      = errors.New("job table full")
	ErrDuplicatePID   = errors.New("pid already tracked")
	ErrNoSuchJob      = errors.New("no such job")
	ErrForegroundBusy = errors.New("another job is in the foreground")
	ErrInvalidState   = errors.New("invalid job state")
)

// Table is the registry of active jobs. It is shared between the control
// loop and the signal handler; every method is safe for concurrent use.
type Table struct {
	mu      sync.RWMutex
	jobs    []Job // ascending JID
	max     int
	nextJID int
	changed chan struct{}
}

// NewTable returns an empty table holding at most maxJobs jobs.
func NewTable(maxJobs int) *Table {
	if maxJobs <= 0 {
		maxJobs = DefaultMaxJobs
	}
	return &Table{
		jobs:    make([]Job, 0, maxJobs),
		max:     maxJobs,
		nextJID: 1,
		changed: make(chan struct{}),
	}
}

// Insert registers a new job and assigns it the next JID.
func (t *Table) Insert(pid int, state State, cmdline string) (Job, error) {
	if pid < 1 {
		return Job{}, fmt.Errorf("invalid pid %d", pid)
	}
	if !state.valid() {
		return Job{}, fmt.Errorf("insert %d: %w", pid, ErrInvalidState)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.jobs) >= t.max {
		return Job{}, ErrTableFull
	}
	if t.indexOf(pid) >= 0 {
		return Job{}, fmt.Errorf("pid %d: %w", pid, ErrDuplicatePID)
	}
	if state == Foreground && t.foregroundIndex() >= 0 {
		return Job{}, ErrForegroundBusy
	}

	job := Job{PID: pid, JID: t.nextJID, State: state, CommandLine: cmdline}
	t.nextJID++
	t.jobs = append(t.jobs, job)
	t.notify()
	return job, nil
}

// Add is Insert reporting only success.
func (t *Table) Add(pid int, state State, cmdline string) bool {
	_, err := t.Insert(pid, state, cmdline)
	return err == nil
}

// Remove deletes the job with the given pid.
func (t *Table) Remove(pid int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	i := t.indexOf(pid)
	if i < 0 {
		return false
	}
	t.jobs = append(t.jobs[:i], t.jobs[i+1:]...)
	t.notify()
	return true
}

// SetState moves the job with the given pid to state.
func (t *Table) SetState(pid int, state State) (Job, error) {
	if !state.valid() {
		return Job{}, fmt.Errorf("set state %d: %w", pid, ErrInvalidState)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	i := t.indexOf(pid)
	if i < 0 {
		return Job{}, fmt.Errorf("pid %d: %w", pid, ErrNoSuchJob)
	}
	if state == Foreground {
		if fg := t.foregroundIndex(); fg >= 0 && fg != i {
			return Job{}, ErrForegroundBusy
		}
	}
	if t.jobs[i].State != state {
		t.jobs[i].State = state
		t.notify()
	}
	return t.jobs[i], nil
}

func (t *Table) FindByPID(pid int) (Job, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if i := t.indexOf(pid); i >= 0 {
		return t.jobs[i], true
	}
	return Job{}, false
}

func (t *Table) FindByJID(jid int) (Job, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for _, j := range t.jobs {
		if j.JID == jid {
			return j, true
		}
	}
	return Job{}, false
}

// ForegroundPID returns the pid of the foreground job, if there is one.
func (t *Table) ForegroundPID() (int, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if i := t.foregroundIndex(); i >= 0 {
		return t.jobs[i].PID, true
	}
	return 0, false
}

// List returns a copy of the active jobs in ascending JID order.
func (t *Table) List() []Job {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Job, len(t.jobs))
	copy(out, t.jobs)
	return out
}

func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.jobs)
}

func (t *Table) Cap() int {
	return t.max
}

// Changed returns a channel that is closed on the next mutation of the table.
func (t *Table) Changed() <-chan struct{} {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.changed
}

// notify wakes everyone waiting on Changed. Callers hold t.mu.
func (t *Table) notify() {
	close(t.changed)
	t.changed = make(chan struct{})
}

func (t *Table) indexOf(pid int) int {
	for i, j := range t.jobs {
		if j.PID == pid {
			return i
		}
	}
	return -1
}

func (t *Table) foregroundIndex() int {
	for i, j := range t.jobs {
		if j.State == Foreground {
			return i
		}
	}
	return -1
}
