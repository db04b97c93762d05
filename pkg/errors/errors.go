// Package errors provides the error taxonomy surfaced to callers of the SMB
// client core. This is a leaf package: it depends only on ntstatus, so the
// path resolver, credential registry, session manager and retry executor can
// all construct errors without import cycles.
//
// Import graph: ntstatus <- errors <- smbpath, credential, session, retry <- smbfs
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/marmos91/smbkit/pkg/ntstatus"
)

// ErrorCode represents the type of error that occurred.
type ErrorCode int

const (
	// ErrInvalidCredential indicates a missing or incomplete credential, or
	// that no registered credential covers the target path.
	ErrInvalidCredential ErrorCode = iota + 1

	// ErrHostUnresolvable indicates the host name could not be resolved to a
	// network address. Distinct from ErrNotFound.
	ErrHostUnresolvable

	// ErrConnectFailed indicates the transport-level connection failed.
	ErrConnectFailed

	// ErrAuthenticationFailed indicates the server rejected the credential,
	// including expired, locked and restricted accounts.
	ErrAuthenticationFailed

	// ErrNotFound indicates the final path component does not exist.
	ErrNotFound

	// ErrPathNotFound indicates an intermediate directory or the share is missing.
	ErrPathNotFound

	// ErrAlreadyExists indicates the object already exists.
	ErrAlreadyExists

	// ErrAccessDenied indicates the caller lacks permission.
	ErrAccessDenied

	// ErrBusy indicates a sharing violation, a lock conflict, or that the
	// server kept answering STATUS_PENDING past the session timeout.
	ErrBusy

	// ErrResourceExhausted indicates the server ran out of handles, memory or disk.
	ErrResourceExhausted

	// ErrNotSupported indicates the server does not support the request.
	ErrNotSupported

	// ErrDataError indicates corrupt or malformed data.
	ErrDataError

	// ErrCancelled indicates the request was cancelled.
	ErrCancelled

	// ErrInvalidHandle indicates the file handle is invalid or already closed.
	ErrInvalidHandle

	// ErrPathInvalid indicates a malformed path.
	ErrPathInvalid

	// ErrUnknown indicates a status outside the known vocabulary.
	ErrUnknown
)

// String returns a human-readable name for the error code.
func (c ErrorCode) String() string {
	switch c {
	case ErrInvalidCredential:
		return "InvalidCredential"
	case ErrHostUnresolvable:
		return "HostUnresolvable"
	case ErrConnectFailed:
		return "ConnectFailed"
	case ErrAuthenticationFailed:
		return "AuthenticationFailed"
	case ErrNotFound:
		return "NotFound"
	case ErrPathNotFound:
		return "PathNotFound"
	case ErrAlreadyExists:
		return "AlreadyExists"
	case ErrAccessDenied:
		return "AccessDenied"
	case ErrBusy:
		return "Busy"
	case ErrResourceExhausted:
		return "ResourceExhausted"
	case ErrNotSupported:
		return "NotSupported"
	case ErrDataError:
		return "DataError"
	case ErrCancelled:
		return "Cancelled"
	case ErrInvalidHandle:
		return "InvalidHandle"
	case ErrPathInvalid:
		return "PathInvalid"
	case ErrUnknown:
		return "Unknown"
	default:
		return fmt.Sprintf("Unknown(%d)", c)
	}
}

// Error is the error type returned by every package of the client core.
// Status is the NT_STATUS the error was translated from, zero if none.
type Error struct {
	Code    ErrorCode
	Op      string
	Path    string
	Message string
	Status  ntstatus.Status
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	switch {
	case e.Op != "" && e.Path != "":
		fmt.Fprintf(&b, "%s %s: ", e.Op, e.Path)
	case e.Op != "":
		b.WriteString(e.Op + ": ")
	case e.Path != "":
		b.WriteString(e.Path + ": ")
	}
	b.WriteString(e.Code.String())
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Status != ntstatus.StatusSuccess {
		fmt.Fprintf(&b, " [%s]", e.Status)
	}
	if e.Err != nil {
		if _, ok := ntstatus.FromError(e.Err); !ok {
			b.WriteString(": ")
			b.WriteString(e.Err.Error())
		}
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error target with the same code, so callers can write
// errors.Is(err, &errors.Error{Code: errors.ErrNotFound}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// Kind returns the classification of the carried status.
func (e *Error) Kind() ntstatus.Kind {
	return ntstatus.Classify(e.Status)
}

// ============================================================================
// Factory Functions
// ============================================================================

// NewInvalidCredentialError creates an InvalidCredential error.
func NewInvalidCredentialError(path, message string) *Error {
	return &Error{
		Code:    ErrInvalidCredential,
		Message: message,
		Path:    path,
	}
}

// NewPathInvalidError creates a PathInvalid error for a malformed path.
func NewPathInvalidError(path, message string) *Error {
	return &Error{
		Code:    ErrPathInvalid,
		Message: message,
		Path:    path,
	}
}

// NewHostUnresolvableError creates a HostUnresolvable error.
func NewHostUnresolvableError(host string, cause error) *Error {
	return &Error{
		Code:    ErrHostUnresolvable,
		Op:      "resolve",
		Message: fmt.Sprintf("cannot resolve host %q", host),
		Err:     cause,
	}
}

// NewConnectFailedError creates a ConnectFailed error.
func NewConnectFailedError(address string, cause error) *Error {
	return &Error{
		Code:    ErrConnectFailed,
		Op:      "connect",
		Message: fmt.Sprintf("cannot connect to %s", address),
		Err:     cause,
	}
}

// NewAuthenticationFailedError creates an AuthenticationFailed error.
// status may be zero when the handshake failed without a server status.
func NewAuthenticationFailedError(address string, status ntstatus.Status, cause error) *Error {
	msg := fmt.Sprintf("login to %s rejected", address)
	switch ntstatus.Classify(status) {
	case ntstatus.KindAuthExpired:
		msg = fmt.Sprintf("login to %s rejected: account or password expired", address)
	case ntstatus.KindAccountLocked:
		msg = fmt.Sprintf("login to %s rejected: account locked out", address)
	}
	return &Error{
		Code:    ErrAuthenticationFailed,
		Op:      "login",
		Message: msg,
		Status:  status,
		Err:     cause,
	}
}

// NewTimeoutError creates the Busy error raised when an operation is still
// pending once the session timeout has elapsed.
func NewTimeoutError(op, path string, elapsed time.Duration, attempts int) *Error {
	return &Error{
		Code:    ErrBusy,
		Op:      op,
		Path:    path,
		Message: fmt.Sprintf("still pending after %s (%d attempts)", elapsed.Round(time.Millisecond), attempts),
		Status:  ntstatus.StatusPending,
	}
}

// NewCancelledError creates a Cancelled error.
func NewCancelledError(op, path string, cause error) *Error {
	return &Error{
		Code: ErrCancelled,
		Op:   op,
		Path: path,
		Err:  cause,
	}
}

// codeForKind maps a status classification to the error taxonomy.
func codeForKind(k ntstatus.Kind) ErrorCode {
	switch k {
	case ntstatus.KindNotFound:
		return ErrNotFound
	case ntstatus.KindPathNotFound:
		return ErrPathNotFound
	case ntstatus.KindAlreadyExists:
		return ErrAlreadyExists
	case ntstatus.KindAccessDenied:
		return ErrAccessDenied
	case ntstatus.KindInvalidHandle:
		return ErrInvalidHandle
	case ntstatus.KindPathInvalid:
		return ErrPathInvalid
	case ntstatus.KindBusy, ntstatus.KindPending:
		return ErrBusy
	case ntstatus.KindResourceExhausted:
		return ErrResourceExhausted
	case ntstatus.KindNotSupported:
		return ErrNotSupported
	case ntstatus.KindAuthExpired, ntstatus.KindAccountLocked:
		return ErrAuthenticationFailed
	case ntstatus.KindDataError:
		return ErrDataError
	case ntstatus.KindCancelled:
		return ErrCancelled
	default:
		return ErrUnknown
	}
}

// FromStatus translates a non-success status into an *Error wrapped with the
// operation and path. It returns nil for success statuses.
func FromStatus(op, path string, status ntstatus.Status, cause error) error {
	kind := ntstatus.Classify(status)
	if kind == ntstatus.KindNone {
		return nil
	}
	return &Error{
		Code:   codeForKind(kind),
		Op:     op,
		Path:   path,
		Status: status,
		Err:    cause,
	}
}

// Wrap translates an arbitrary error returned by a transport call. Errors
// that already belong to the taxonomy are returned unchanged, errors carrying
// an NT_STATUS are translated through FromStatus, and anything else becomes
// ErrUnknown with the cause attached.
func Wrap(op, path string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if stderrors.As(err, &e) {
		return err
	}
	if st, ok := ntstatus.FromError(err); ok {
		if translated := FromStatus(op, path, st, err); translated != nil {
			return translated
		}
	}
	return &Error{
		Code: ErrUnknown,
		Op:   op,
		Path: path,
		Err:  err,
	}
}

// ============================================================================
// Error Type Checking Helpers
// ============================================================================

// CodeOf returns the code of the *Error in err's chain, or zero if none.
func CodeOf(err error) ErrorCode {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code
	}
	return 0
}

// StatusOf returns the NT_STATUS recorded anywhere in err's chain.
func StatusOf(err error) (ntstatus.Status, bool) {
	var e *Error
	if stderrors.As(err, &e) && e.Status != ntstatus.StatusSuccess {
		return e.Status, true
	}
	return ntstatus.FromError(err)
}

func hasCode(err error, codes ...ErrorCode) bool {
	c := CodeOf(err)
	for _, code := range codes {
		if c == code {
			return true
		}
	}
	return false
}

// IsInvalidCredentialError returns true if the error is an InvalidCredential error.
func IsInvalidCredentialError(err error) bool {
	return hasCode(err, ErrInvalidCredential)
}

// IsHostUnresolvableError returns true if the host could not be resolved.
func IsHostUnresolvableError(err error) bool {
	return hasCode(err, ErrHostUnresolvable)
}

// IsConnectFailedError returns true if the transport connection failed.
func IsConnectFailedError(err error) bool {
	return hasCode(err, ErrConnectFailed)
}

// IsAuthenticationError returns true for InvalidCredential and
// AuthenticationFailed errors.
func IsAuthenticationError(err error) bool {
	return hasCode(err, ErrInvalidCredential, ErrAuthenticationFailed)
}

// IsNotFoundError returns true for both NotFound and PathNotFound errors.
func IsNotFoundError(err error) bool {
	return hasCode(err, ErrNotFound, ErrPathNotFound)
}

// IsAlreadyExistsError returns true if the error is an AlreadyExists error.
func IsAlreadyExistsError(err error) bool {
	return hasCode(err, ErrAlreadyExists)
}

// IsAccessDeniedError returns true if the error is an AccessDenied error.
func IsAccessDeniedError(err error) bool {
	return hasCode(err, ErrAccessDenied)
}

// IsBusyError returns true for lock conflicts and pending timeouts.
func IsBusyError(err error) bool {
	return hasCode(err, ErrBusy)
}

// IsTimeout returns true if the server was still reporting STATUS_PENDING
// when the session timeout expired.
func IsTimeout(err error) bool {
	var e *Error
	return stderrors.As(err, &e) && e.Code == ErrBusy && e.Status == ntstatus.StatusPending
}

// IsResourceExhaustedError returns true if the server ran out of resources.
func IsResourceExhaustedError(err error) bool {
	return hasCode(err, ErrResourceExhausted)
}

// IsNotSupportedError returns true if the error is a NotSupported error.
func IsNotSupportedError(err error) bool {
	return hasCode(err, ErrNotSupported)
}

// IsPathInvalidError returns true if the path was malformed or unusable.
func IsPathInvalidError(err error) bool {
	return hasCode(err, ErrPathInvalid)
}

// IsCancelledError returns true if the error is a Cancelled error.
func IsCancelledError(err error) bool {
	return hasCode(err, ErrCancelled)
}

// IsConfirmedAbsent returns true only when err carries a status that
// unambiguously means the object does not exist.
func IsConfirmedAbsent(err error) bool {
	st, ok := StatusOf(err)
	return ok && ntstatus.IsConfirmedAbsent(st)
}
