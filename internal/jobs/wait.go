package jobs

import (
	"context"
	"time"
)

// DefaultPollInterval bounds how long WaitForeground sleeps between checks
// when no table change wakes it first.
const DefaultPollInterval = 100 * time.Millisecond

// WaitForeground blocks until pid is no longer the foreground job, either
// because the signal handler removed it or because it left the foreground
// (stopped, for instance). The table change broadcast wakes it promptly; the
// poll interval is an upper bound on how long a missed wakeup can delay it.
func (t *Table) WaitForeground(ctx context.Context, pid int, poll time.Duration) error {
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		// Subscribe before checking so a change between the check and the
		// select is not lost.
		changed := t.Changed()
		if fg, ok := t.ForegroundPID(); !ok || fg != pid {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-changed:
		case <-ticker.C:
		}
	}
}
