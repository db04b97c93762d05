// Package retry runs SMB round trips under a wall-clock deadline.
//
// A server may answer STATUS_PENDING while it is still servicing a request.
// The Executor calls the operation again, with exponential backoff, until
// it returns any other status or the deadline passes. Deadline expiry is a
// hard failure: a Busy error carrying STATUS_PENDING. Every other failure is
// translated into the error taxonomy and returned at once.
package retry

import (
	"context"
	stderrors "errors"
	"time"

	"go.opentelemetry.io/otel/codes"

	"github.com/marmos91/smbkit/internal/logger"
	"github.com/marmos91/smbkit/internal/telemetry"
	"github.com/marmos91/smbkit/pkg/errors"
	"github.com/marmos91/smbkit/pkg/ntstatus"
)

// Defaults applied to zero Policy fields.
const (
	DefaultTimeout      = 45 * time.Second
	DefaultInitialDelay = 5 * time.Millisecond
	DefaultMaxDelay     = 250 * time.Millisecond
)

// Policy bounds the pending poll loop.
type Policy struct {
	// Timeout is the wall-clock budget measured from the first call.
	Timeout time.Duration `mapstructure:"timeout" validate:"gte=0" yaml:"timeout"`

	// InitialDelay is the first backoff delay. It doubles after every
	// pending answer up to MaxDelay.
	InitialDelay time.Duration `mapstructure:"initial_delay" validate:"gte=0" yaml:"initial_delay"`
	MaxDelay     time.Duration `mapstructure:"max_delay" validate:"gte=0" yaml:"max_delay"`

	// MaxAttempts additionally caps the number of calls. Zero means the
	// deadline is the only bound.
	MaxAttempts int `mapstructure:"max_attempts" validate:"gte=0" yaml:"max_attempts"`
}

func (p Policy) withDefaults() Policy {
	if p.Timeout <= 0 {
		p.Timeout = DefaultTimeout
	}
	if p.InitialDelay <= 0 {
		p.InitialDelay = DefaultInitialDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = DefaultMaxDelay
	}
	if p.MaxDelay < p.InitialDelay {
		p.MaxDelay = p.InitialDelay
	}
	if p.MaxAttempts < 0 {
		p.MaxAttempts = 0
	}
	return p
}

// Executor runs operations under a Policy. It is safe for concurrent use.
type Executor struct {
	policy  Policy
	metrics *Metrics

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New returns an Executor. metrics may be nil.
func New(policy Policy, metrics *Metrics) *Executor {
	return &Executor{
		policy:  policy.withDefaults(),
		metrics: metrics,
		now:     time.Now,
		sleep:   sleepContext,
	}
}

// Policy returns the effective policy.
func (e *Executor) Policy() Policy {
	return e.policy
}

// WithTimeout returns a copy of e with a different deadline budget.
func (e *Executor) WithTimeout(d time.Duration) *Executor {
	c := *e
	c.policy.Timeout = d
	c.policy = c.policy.withDefaults()
	return &c
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Do calls fn until it returns something other than STATUS_PENDING or the
// deadline passes. op and path label the error, the span and the metrics.
//
// The context handed to fn expires at the deadline, so a blocked transport
// call cannot outlive the budget. Cancelling ctx yields a Cancelled error.
func (e *Executor) Do(ctx context.Context, op, path string, fn func(ctx context.Context) error) error {
	ctx, span := telemetry.StartOperationSpan(ctx, op, path)
	defer span.End()

	start := e.now()
	deadline := start.Add(e.policy.Timeout)
	delay := e.policy.InitialDelay
	attempts := 0

	finish := func(err error, timedOut bool) error {
		elapsed := e.now().Sub(start)
		result := "ok"
		if err != nil {
			result = errors.CodeOf(err).String()
			telemetry.RecordError(ctx, err)
		} else {
			span.SetStatus(codes.Ok, "")
		}
		if st, ok := errors.StatusOf(err); ok {
			span.SetAttributes(telemetry.Status(st.String()))
		}
		span.SetAttributes(telemetry.Attempts(attempts))
		e.metrics.recordDone(op, result, elapsed.Seconds(), timedOut)
		return err
	}

	for {
		if err := ctx.Err(); err != nil {
			return finish(errors.NewCancelledError(op, path, err), false)
		}

		remaining := deadline.Sub(e.now())
		if remaining <= 0 {
			return finish(e.timeout(ctx, op, path, start, attempts), true)
		}

		attempts++
		callCtx, cancel := context.WithTimeout(ctx, remaining)
		err := fn(callCtx)
		callErr := callCtx.Err()
		cancel()

		if err == nil {
			return finish(nil, false)
		}
		if ctx.Err() != nil {
			return finish(errors.NewCancelledError(op, path, err), false)
		}
		st, ok := ntstatus.FromError(err)
		if ok && !ntstatus.IsPending(st) {
			return finish(errors.Wrap(op, path, err), false)
		}
		// The call was cut off by the deadline rather than answered.
		if stderrors.Is(callErr, context.DeadlineExceeded) {
			return finish(e.timeout(ctx, op, path, start, attempts), true)
		}
		if !ok {
			return finish(errors.Wrap(op, path, err), false)
		}

		if e.policy.MaxAttempts > 0 && attempts >= e.policy.MaxAttempts {
			return finish(e.timeout(ctx, op, path, start, attempts), true)
		}
		remaining = deadline.Sub(e.now())
		if remaining <= 0 {
			return finish(e.timeout(ctx, op, path, start, attempts), true)
		}

		wait := min(delay, remaining)
		logger.DebugCtx(ctx, "operation pending, retrying",
			logger.Operation(op), logger.Path(path), logger.Attempt(attempts), logger.Delay(wait))
		e.metrics.recordRetry(op)

		if err := e.sleep(ctx, wait); err != nil {
			return finish(errors.NewCancelledError(op, path, err), false)
		}
		delay = min(delay*2, e.policy.MaxDelay)
	}
}

func (e *Executor) timeout(ctx context.Context, op, path string, start time.Time, attempts int) error {
	elapsed := e.now().Sub(start)
	logger.WarnCtx(ctx, "operation still pending at deadline",
		logger.Operation(op), logger.Path(path), logger.Attempt(attempts), logger.Elapsed(elapsed))
	return errors.NewTimeoutError(op, path, elapsed, attempts)
}

// Run is Do for operations that produce a value. The value of a failed
// attempt is discarded.
func Run[T any](ctx context.Context, e *Executor, op, path string, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := e.Do(ctx, op, path, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}
