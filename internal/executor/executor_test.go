//go:build unix

package executor

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tsh/internal/console"
	"tsh/internal/jobs"
	"tsh/internal/logging"
	"tsh/internal/signals"
)

// syncBuffer lets the test read output the signal handler writes concurrently.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type harness struct {
	table    *jobs.Table
	handler  *signals.Handler
	launcher *Launcher
	out      *syncBuffer
}

// newHarness wires a launcher to a running signal handler. The tests in this
// file reap real children with wait(-1), so none of them run in parallel.
func newHarness(t *testing.T, maxJobs int) *harness {
	t.Helper()

	devNull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	require.NoError(t, err)
	t.Cleanup(func() { devNull.Close() })

	out := &syncBuffer{}
	con := console.New(out, console.Options{})
	table := jobs.NewTable(maxJobs)
	mask := &signals.Mask{}
	handler := signals.New(table, con, mask, logging.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = handler.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		for _, j := range table.List() {
			_ = killProcessGroup(j.PID, 9)
		}
		cancel()
		<-done
	})

	return &harness{
		table:   table,
		handler: handler,
		launcher: New(table, mask, con, logging.Discard(), Options{
			PollInterval: 20 * time.Millisecond,
			Stdin:        devNull,
			Stdout:       devNull,
			Stderr:       devNull,
		}),
		out: out,
	}
}

func TestLaunch_Background_AnnouncesAndReturns(t *testing.T) {
	h := newHarness(t, jobs.DefaultMaxJobs)

	err := h.launcher.Launch(context.Background(), []string{"sleep", "1"}, "sleep 1 &", true)
	require.NoError(t, err)

	list := h.table.List()
	require.Len(t, list, 1)
	assert.Equal(t, jobs.Background, list[0].State)
	assert.Equal(t, 1, list[0].JID)
	assert.Equal(t, fmt.Sprintf("[1] (%d) sleep 1 &\n", list[0].PID), h.out.String())

	require.Eventually(t, func() bool { return h.table.Len() == 0 }, 5*time.Second, 10*time.Millisecond)
	// Normal exit is silent.
	assert.Equal(t, fmt.Sprintf("[1] (%d) sleep 1 &\n", list[0].PID), h.out.String())
}

func TestLaunch_Foreground_BlocksUntilExit(t *testing.T) {
	h := newHarness(t, jobs.DefaultMaxJobs)

	start := time.Now()
	err := h.launcher.Launch(context.Background(), []string{"sleep", "0.2"}, "sleep 0.2", false)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, time.Since(start), 200*time.Millisecond)
	assert.Equal(t, 0, h.table.Len())
	assert.Empty(t, h.out.String())
}

func TestLaunch_Foreground_InterruptTerminatesJob(t *testing.T) {
	h := newHarness(t, jobs.DefaultMaxJobs)

	errCh := make(chan error, 1)
	go func() {
		errCh <- h.launcher.Launch(context.Background(), []string{"sleep", "100"}, "sleep 100", false)
	}()

	var pid int
	require.Eventually(t, func() bool {
		var ok bool
		pid, ok = h.table.ForegroundPID()
		return ok
	}, 5*time.Second, 10*time.Millisecond)

	h.handler.Interrupt()

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("foreground wait did not return after interrupt")
	}
	assert.Equal(t, fmt.Sprintf("Job [1] (%d) terminated by signal 2\n", pid), h.out.String())
	assert.Equal(t, 0, h.table.Len())
}

func TestLaunch_Foreground_SuspendReturnsControl(t *testing.T) {
	h := newHarness(t, jobs.DefaultMaxJobs)

	errCh := make(chan error, 1)
	go func() {
		errCh <- h.launcher.Launch(context.Background(), []string{"sleep", "100"}, "sleep 100", false)
	}()

	var pid int
	require.Eventually(t, func() bool {
		var ok bool
		pid, ok = h.table.ForegroundPID()
		return ok
	}, 5*time.Second, 10*time.Millisecond)

	h.handler.Suspend()

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("foreground wait did not return after suspend")
	}
	j, ok := h.table.FindByPID(pid)
	require.True(t, ok)
	assert.Equal(t, jobs.Stopped, j.State)
	assert.Contains(t, h.out.String(), fmt.Sprintf("Job [1] (%d) stopped by signal", pid))
}

func TestLaunch_CommandNotFound(t *testing.T) {
	h := newHarness(t, jobs.DefaultMaxJobs)

	for _, name := range []string{"/nonexistent/tsh-test-prog", "tsh-no-such-command-xyz"} {
		err := h.launcher.Launch(context.Background(), []string{name, "arg"}, name+" arg", false)
		assert.ErrorIs(t, err, ErrCommandNotFound)
	}

	assert.Equal(t,
		"/nonexistent/tsh-test-prog : Command not found.\ntsh-no-such-command-xyz : Command not found.\n",
		h.out.String())
	assert.Equal(t, 0, h.table.Len())
}

func TestLaunch_TableFull_KillsChild(t *testing.T) {
	h := newHarness(t, 1)
	require.NoError(t, h.launcher.Launch(context.Background(), []string{"sleep", "100"}, "sleep 100 &", true))

	err := h.launcher.Launch(context.Background(), []string{"sleep", "100"}, "sleep 100 &", true)
	assert.ErrorIs(t, err, jobs.ErrTableFull)
	assert.Equal(t, 1, h.table.Len())

	lines := strings.Split(strings.TrimSpace(h.out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "Tried to create too many jobs", lines[1])
}

func TestLaunch_EmptyArgv(t *testing.T) {
	h := newHarness(t, jobs.DefaultMaxJobs)

	assert.NoError(t, h.launcher.Launch(context.Background(), nil, "", false))
	assert.Empty(t, h.out.String())
}

func TestIsExecFailure(t *testing.T) {
	t.Parallel()

	assert.True(t, isExecFailure(os.ErrNotExist))
	assert.True(t, isExecFailure(os.ErrPermission))
	assert.False(t, isExecFailure(fmt.Errorf("resource temporarily unavailable")))
}
