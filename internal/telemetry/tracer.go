package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys for SMB client spans.
const (
	AttrHost      = "smb.host"
	AttrPort      = "smb.port"
	AttrShare     = "smb.share"
	AttrPath      = "smb.path"
	AttrOperation = "smb.operation"
	AttrStatus    = "smb.status"
	AttrAttempts  = "smb.attempts"
	AttrTransport = "smb.transport"
	AttrUsername  = "user.name"
	AttrDomain    = "user.domain"
	AttrOffset    = "io.offset"
	AttrCount     = "io.count"
)

// Span names.
const (
	SpanSessionEstablish = "smb.session.establish"
	SpanSessionTeardown  = "smb.session.teardown"
	SpanStreamRead       = "smb.stream.read"
	SpanStreamWrite      = "smb.stream.write"
)

// OperationSpanName is the span name used for one retried operation.
func OperationSpanName(op string) string {
	return "smb." + op
}

func Host(host string) attribute.KeyValue      { return attribute.String(AttrHost, host) }
func Port(port int) attribute.KeyValue         { return attribute.Int(AttrPort, port) }
func Share(share string) attribute.KeyValue    { return attribute.String(AttrShare, share) }
func Path(path string) attribute.KeyValue      { return attribute.String(AttrPath, path) }
func Operation(op string) attribute.KeyValue   { return attribute.String(AttrOperation, op) }
func Status(status string) attribute.KeyValue  { return attribute.String(AttrStatus, status) }
func Attempts(n int) attribute.KeyValue        { return attribute.Int(AttrAttempts, n) }
func Transport(kind string) attribute.KeyValue { return attribute.String(AttrTransport, kind) }
func Username(user string) attribute.KeyValue  { return attribute.String(AttrUsername, user) }
func Domain(domain string) attribute.KeyValue  { return attribute.String(AttrDomain, domain) }
func Offset(off int64) attribute.KeyValue      { return attribute.Int64(AttrOffset, off) }
func Count(n int) attribute.KeyValue           { return attribute.Int(AttrCount, n) }

// StartOperationSpan starts the client span for a retried operation on path.
func StartOperationSpan(ctx context.Context, op, path string) (context.Context, trace.Span) {
	return StartSpan(ctx, OperationSpanName(op),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(Operation(op), Path(path)),
	)
}

// StartSessionSpan starts the span covering connect, login and teardown steps.
func StartSessionSpan(ctx context.Context, name, host string, port int, domain, user string) (context.Context, trace.Span) {
	return StartSpan(ctx, name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(Host(host), Port(port), Domain(domain), Username(user)),
	)
}
