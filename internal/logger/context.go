package logger

import (
	"context"
	"time"
)

type contextKey struct{}

// LogContext carries the fields every log line of one client operation
// should repeat.
type LogContext struct {
	TraceID   string
	SpanID    string
	Operation string
	Host      string
	Share     string
	Scope     string
	StartTime time.Time
}

// WithContext returns ctx carrying lc.
func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, contextKey{}, lc)
}

// FromContext returns the LogContext of ctx, or nil.
func FromContext(ctx context.Context) *LogContext {
	if ctx == nil {
		return nil
	}
	lc, _ := ctx.Value(contextKey{}).(*LogContext)
	return lc
}

// NewLogContext starts a LogContext for op now.
func NewLogContext(op string) *LogContext {
	return &LogContext{Operation: op, StartTime: time.Now()}
}

// Clone returns a copy of lc. A nil receiver yields an empty context.
func (lc *LogContext) Clone() *LogContext {
	if lc == nil {
		return &LogContext{}
	}
	c := *lc
	return &c
}

// WithTarget returns a copy with host and share set.
func (lc *LogContext) WithTarget(host, share string) *LogContext {
	c := lc.Clone()
	c.Host, c.Share = host, share
	return c
}

// WithScope returns a copy with the session scope set.
func (lc *LogContext) WithScope(scope string) *LogContext {
	c := lc.Clone()
	c.Scope = scope
	return c
}

// WithTrace returns a copy with trace ids set.
func (lc *LogContext) WithTrace(traceID, spanID string) *LogContext {
	c := lc.Clone()
	c.TraceID, c.SpanID = traceID, spanID
	return c
}

// DurationMs returns the milliseconds since StartTime.
func (lc *LogContext) DurationMs() float64 {
	if lc == nil || lc.StartTime.IsZero() {
		return 0
	}
	return Since(lc.StartTime)
}
