package logger

import (
	"fmt"
	"log/slog"
	"time"
)

// Field keys. Use these for every structured attribute so lines from
// different packages can be queried together.
const (
	KeyTraceID = "trace_id"
	KeySpanID  = "span_id"

	KeyOperation = "operation"
	KeyHost      = "host"
	KeyAddress   = "address"
	KeyPort      = "port"
	KeyTransport = "transport"
	KeyShare     = "share"
	KeyPath      = "path"
	KeyScope     = "scope"

	KeyDomain    = "domain"
	KeyUsername  = "username"
	KeyPrincipal = "principal"

	KeyStatus   = "status"
	KeyKind     = "kind"
	KeyCode     = "code"
	KeyError    = "error"
	KeyAttempt  = "attempt"
	KeyDelay    = "delay"
	KeyElapsed  = "elapsed"
	KeyDuration = "duration_ms"

	KeyOffset       = "offset"
	KeyCount        = "count"
	KeySize         = "size"
	KeyBytesRead    = "bytes_read"
	KeyBytesWritten = "bytes_written"
	KeyChunkSize    = "chunk_size"

	KeyRefCount = "refcount"
	KeyReason   = "reason"
	KeyEntries  = "entries"
)

func Operation(op string) slog.Attr   { return slog.String(KeyOperation, op) }
func Host(host string) slog.Attr      { return slog.String(KeyHost, host) }
func Address(addr string) slog.Attr   { return slog.String(KeyAddress, addr) }
func Port(port int) slog.Attr         { return slog.Int(KeyPort, port) }
func Transport(kind string) slog.Attr { return slog.String(KeyTransport, kind) }
func Share(share string) slog.Attr    { return slog.String(KeyShare, share) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func Scope(id string) slog.Attr       { return slog.String(KeyScope, id) }

// Principal logs the DOMAIN\user a session authenticates as. Passwords are
// never logged.
func Principal(p string) slog.Attr { return slog.String(KeyPrincipal, p) }

func Domain(d string) slog.Attr   { return slog.String(KeyDomain, d) }
func Username(u string) slog.Attr { return slog.String(KeyUsername, u) }

// Status logs an NT_STATUS by name.
func Status(s fmt.Stringer) slog.Attr { return slog.String(KeyStatus, s.String()) }

func Kind(k fmt.Stringer) slog.Attr     { return slog.String(KeyKind, k.String()) }
func Code(c fmt.Stringer) slog.Attr     { return slog.String(KeyCode, c.String()) }
func Attempt(n int) slog.Attr           { return slog.Int(KeyAttempt, n) }
func Delay(d time.Duration) slog.Attr   { return slog.Duration(KeyDelay, d) }
func Elapsed(d time.Duration) slog.Attr { return slog.Duration(KeyElapsed, d) }
func DurationMs(ms float64) slog.Attr   { return slog.Float64(KeyDuration, ms) }

// Err logs err under the error key. A nil error yields an empty attr the
// handlers drop.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

func Offset(off int64) slog.Attr   { return slog.Int64(KeyOffset, off) }
func Count(n int) slog.Attr        { return slog.Int(KeyCount, n) }
func Size(n int64) slog.Attr       { return slog.Int64(KeySize, n) }
func BytesRead(n int) slog.Attr    { return slog.Int(KeyBytesRead, n) }
func BytesWritten(n int) slog.Attr { return slog.Int(KeyBytesWritten, n) }
func ChunkSize(n int) slog.Attr    { return slog.Int(KeyChunkSize, n) }
func RefCount(n int) slog.Attr     { return slog.Int(KeyRefCount, n) }
func Reason(r string) slog.Attr    { return slog.String(KeyReason, r) }
func Entries(n int) slog.Attr      { return slog.Int(KeyEntries, n) }
