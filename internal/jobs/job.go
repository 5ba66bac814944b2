package jobs

import "fmt"

// State is the run state of a job.
type State uint8

const (
	Undefined State = iota
	Foreground
	Background
	Stopped
)

// String returns the word shown by the jobs builtin.
func (s State) String() string {
	switch s {
	case Foreground:
		return "Foreground"
	case Background:
		return "Running"
	case Stopped:
		return "Stopped"
	default:
		return "Undefined"
	}
}

func (s State) valid() bool {
	return s == Foreground || s == Background || s == Stopped
}

// Job is one tracked child process group. The process group id is PID.
type Job struct {
	PID         int
	JID         int
	State       State
	CommandLine string
}

// Announcement is the line printed when a job starts or resumes in the background.
func (j Job) Announcement() string {
	return fmt.Sprintf("[%d] (%d) %s", j.JID, j.PID, j.CommandLine)
}

// Listing is the line printed for the job by the jobs builtin.
func (j Job) Listing() string {
	return fmt.Sprintf("[%d] (%d) %s %s", j.JID, j.PID, j.State, j.CommandLine)
}
