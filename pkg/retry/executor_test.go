package retry

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/smbkit/pkg/errors"
	"github.com/marmos91/smbkit/pkg/ntstatus"
)

// fakeClock advances only when the executor sleeps.
type fakeClock struct {
	mu     sync.Mutex
	t      time.Time
	delays []time.Duration
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
	c.delays = append(c.delays, d)
	return nil
}

func newTestExecutor(p Policy, m *Metrics) (*Executor, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	e := New(p, m)
	e.now = clock.now
	e.sleep = clock.sleep
	return e, clock
}

// script returns fn failing with statuses in order, then succeeding.
func script(statuses ...ntstatus.Status) (func(context.Context) error, *int) {
	calls := 0
	return func(context.Context) error {
		calls++
		if calls <= len(statuses) {
			return statuses[calls-1].Err()
		}
		return nil
	}, &calls
}

func TestPolicyDefaults(t *testing.T) {
	p := New(Policy{}, nil).Policy()
	assert.Equal(t, DefaultTimeout, p.Timeout)
	assert.Equal(t, DefaultInitialDelay, p.InitialDelay)
	assert.Equal(t, DefaultMaxDelay, p.MaxDelay)
	assert.Zero(t, p.MaxAttempts)

	p = New(Policy{InitialDelay: time.Second, MaxDelay: time.Millisecond, MaxAttempts: -1}, nil).Policy()
	assert.Equal(t, time.Second, p.MaxDelay)
	assert.Zero(t, p.MaxAttempts)
}

func TestDoSucceedsFirstTime(t *testing.T) {
	e, clock := newTestExecutor(Policy{}, nil)
	fn, calls := script()

	require.NoError(t, e.Do(context.Background(), "create", `\\srv\share\a`, fn))
	assert.Equal(t, 1, *calls)
	assert.Empty(t, clock.delays)
}

func TestDoRetriesPending(t *testing.T) {
	e, clock := newTestExecutor(Policy{}, nil)
	fn, calls := script(ntstatus.StatusPending, ntstatus.StatusPending)

	require.NoError(t, e.Do(context.Background(), "create", `\\srv\share\a`, fn))
	assert.Equal(t, 3, *calls)
	assert.Equal(t, []time.Duration{5 * time.Millisecond, 10 * time.Millisecond}, clock.delays)
}

func TestDoTimesOutOnPersistentPending(t *testing.T) {
	e, clock := newTestExecutor(Policy{Timeout: time.Second}, nil)
	start := clock.now()
	calls := 0

	err := e.Do(context.Background(), "read", `\\srv\share\a`, func(context.Context) error {
		calls++
		return ntstatus.StatusPending.Err()
	})

	require.Error(t, err)
	assert.True(t, errors.IsTimeout(err))
	assert.True(t, errors.IsBusyError(err))
	assert.LessOrEqual(t, clock.now().Sub(start), time.Second)
	assert.Equal(t, 9, calls)
	for _, d := range clock.delays {
		assert.LessOrEqual(t, d, DefaultMaxDelay)
	}

	var e2 *errors.Error
	require.ErrorAs(t, err, &e2)
	assert.Equal(t, "read", e2.Op)
	assert.Equal(t, `\\srv\share\a`, e2.Path)
	assert.Equal(t, ntstatus.StatusPending, e2.Status)
}

func TestDoReturnsNonPendingImmediately(t *testing.T) {
	tests := []struct {
		name   string
		status ntstatus.Status
		is     func(error) bool
	}{
		{"not found", ntstatus.StatusObjectNameNotFound, errors.IsNotFoundError},
		{"denied", ntstatus.StatusAccessDenied, errors.IsAccessDeniedError},
		{"sharing violation", ntstatus.StatusSharingViolation, errors.IsBusyError},
		{"disk full", ntstatus.StatusDiskFull, errors.IsResourceExhaustedError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, clock := newTestExecutor(Policy{}, nil)
			fn, calls := script(tt.status, tt.status)

			err := e.Do(context.Background(), "open", `\\srv\share\x`, fn)
			require.Error(t, err)
			assert.True(t, tt.is(err), "unexpected error %v", err)
			assert.False(t, errors.IsTimeout(err))
			assert.Equal(t, 1, *calls)
			assert.Empty(t, clock.delays)

			st, ok := errors.StatusOf(err)
			require.True(t, ok)
			assert.Equal(t, tt.status, st)
			assert.Contains(t, err.Error(), `open \\srv\share\x`)
		})
	}
}

func TestDoWrapsTransportFailure(t *testing.T) {
	e, _ := newTestExecutor(Policy{}, nil)
	cause := stderrors.New("connection reset")

	err := e.Do(context.Background(), "write", "p", func(context.Context) error { return cause })
	assert.Equal(t, errors.ErrUnknown, errors.CodeOf(err))
	assert.ErrorIs(t, err, cause)
}

func TestDoMaxAttempts(t *testing.T) {
	e, _ := newTestExecutor(Policy{MaxAttempts: 3}, nil)
	calls := 0

	err := e.Do(context.Background(), "create", "p", func(context.Context) error {
		calls++
		return ntstatus.StatusPending.Err()
	})
	assert.True(t, errors.IsTimeout(err))
	assert.Equal(t, 3, calls)
}

func TestDoCancelled(t *testing.T) {
	e, _ := newTestExecutor(Policy{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	err := e.Do(ctx, "create", "p", func(context.Context) error {
		called = true
		return nil
	})
	assert.True(t, errors.IsCancelledError(err))
	assert.False(t, called)

	ctx, cancel = context.WithCancel(context.Background())
	err = e.Do(ctx, "create", "p", func(context.Context) error {
		cancel()
		return ntstatus.StatusPending.Err()
	})
	assert.True(t, errors.IsCancelledError(err))
}

func TestDoPassesDeadline(t *testing.T) {
	e := New(Policy{Timeout: time.Minute}, nil)

	err := e.Do(context.Background(), "stat", "p", func(ctx context.Context) error {
		deadline, ok := ctx.Deadline()
		require.True(t, ok)
		assert.WithinDuration(t, time.Now().Add(time.Minute), deadline, 5*time.Second)
		return nil
	})
	require.NoError(t, err)
}

func TestDoDeadlineCutsBlockedCall(t *testing.T) {
	e := New(Policy{Timeout: 20 * time.Millisecond}, nil)

	err := e.Do(context.Background(), "read", "p", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	assert.True(t, errors.IsTimeout(err), "unexpected error %v", err)
}

func TestRun(t *testing.T) {
	e, _ := newTestExecutor(Policy{}, nil)
	calls := 0

	n, err := Run(context.Background(), e, "read", "p", func(context.Context) (int, error) {
		calls++
		if calls == 1 {
			return -1, ntstatus.StatusPending.Err()
		}
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, n)

	n, err = Run(context.Background(), e, "read", "p", func(context.Context) (int, error) {
		return 7, ntstatus.StatusEndOfFile.Err()
	})
	require.Error(t, err)
	assert.Zero(t, n)
}

func TestWithTimeout(t *testing.T) {
	e := New(Policy{Timeout: time.Minute, MaxAttempts: 4}, nil)
	short := e.WithTimeout(time.Second)

	assert.Equal(t, time.Second, short.Policy().Timeout)
	assert.Equal(t, 4, short.Policy().MaxAttempts)
	assert.Equal(t, time.Minute, e.Policy().Timeout)
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	e, _ := newTestExecutor(Policy{Timeout: 100 * time.Millisecond}, m)

	fn, _ := script(ntstatus.StatusPending)
	require.NoError(t, e.Do(context.Background(), "create", "p", fn))
	_ = e.Do(context.Background(), "create", "p", func(context.Context) error {
		return ntstatus.StatusPending.Err()
	})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.OperationsTotal.WithLabelValues("create", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OperationsTotal.WithLabelValues("create", "Busy")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TimeoutsTotal.WithLabelValues("create")))
	assert.GreaterOrEqual(t, testutil.ToFloat64(m.PendingRetriesTotal.WithLabelValues("create")), 2.0)

	// Registering twice reuses the existing collectors.
	again := NewMetrics(reg)
	assert.Same(t, m.OperationsTotal, again.OperationsTotal)
}

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.recordRetry("x")
		m.recordDone("x", "ok", 0, false)
	})
}
