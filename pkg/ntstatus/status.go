// Package ntstatus defines the NT_STATUS vocabulary returned by SMB servers
// and classifies it into the small set of outcomes callers act on.
package ntstatus

import (
	"errors"
	"fmt"
)

// Status represents an NT_STATUS code returned in SMB2 responses.
//
// NT_STATUS codes are 32-bit values divided into:
//   - Severity (bits 30-31): 00=Success, 01=Informational, 10=Warning, 11=Error
//   - Customer (bit 29): 0=Microsoft-defined, 1=Customer-defined
//   - Facility (bits 16-28): Component that generated the status
//   - Code (bits 0-15): Status code within the facility
//
// [MS-ERREF] Section 2.3
type Status uint32

// Success and informational codes.
const (
	StatusSuccess         Status = 0x00000000
	StatusPending         Status = 0x00000103 // request accepted, still being serviced
	StatusMoreEntries     Status = 0x00000105
	StatusNotifyCleanup   Status = 0x0000010B
	StatusNotifyEnumDir   Status = 0x0000010C
	StatusObjectNameExist Status = 0x40000000
)

// Legacy SMB1 DOS-class encodings that some servers still surface.
const (
	StatusOS2InvalidAccess Status = 0x000C0001
	StatusSMBBadFID        Status = 0x00060001
	StatusOS2NoMoreSIDs    Status = 0x00710001
	StatusOS2InvalidLevel  Status = 0x007C0001
	StatusInvalidSMB       Status = 0x00010002
	StatusSMBBadTID        Status = 0x00050002
	StatusSMBBadCommand    Status = 0x00160002
	StatusSecIContinue     Status = 0x00090312
)

// Warning codes.
const (
	StatusBufferOverflow Status = 0x80000005
	StatusNoMoreFiles    Status = 0x80000006
	StatusSecEPkgMissing Status = 0x80090305
	StatusSecEBadToken   Status = 0x80090308
)

// Error codes.
const (
	StatusNotImplemented         Status = 0xC0000002
	StatusInvalidInfoClass       Status = 0xC0000003
	StatusInfoLengthMismatch     Status = 0xC0000004
	StatusInvalidHandle          Status = 0xC0000008
	StatusInvalidParameter       Status = 0xC000000D
	StatusNoSuchDevice           Status = 0xC000000E
	StatusNoSuchFile             Status = 0xC000000F
	StatusInvalidDeviceRequest   Status = 0xC0000010
	StatusEndOfFile              Status = 0xC0000011
	StatusMoreProcessingRequired Status = 0xC0000016
	StatusAccessDenied           Status = 0xC0000022
	StatusBufferTooSmall         Status = 0xC0000023
	StatusObjectNameInvalid      Status = 0xC0000033
	StatusObjectNameNotFound     Status = 0xC0000034
	StatusObjectNameCollision    Status = 0xC0000035
	StatusObjectPathInvalid      Status = 0xC0000039
	StatusObjectPathNotFound     Status = 0xC000003A
	StatusObjectPathSyntaxBad    Status = 0xC000003B
	StatusDataError              Status = 0xC000003E
	StatusSharingViolation       Status = 0xC0000043
	StatusFileLockConflict       Status = 0xC0000054
	StatusLockNotGranted         Status = 0xC0000055
	StatusDeletePending          Status = 0xC0000056
	StatusNoLogonServers         Status = 0xC000005E
	StatusPrivilegeNotHeld       Status = 0xC0000061
	StatusWrongPassword          Status = 0xC000006A
	StatusLogonFailure           Status = 0xC000006D
	StatusAccountRestriction     Status = 0xC000006E
	StatusInvalidLogonHours      Status = 0xC000006F
	StatusInvalidWorkstation     Status = 0xC0000070
	StatusPasswordExpired        Status = 0xC0000071
	StatusAccountDisabled        Status = 0xC0000072
	StatusRangeNotLocked         Status = 0xC000007E
	StatusDiskFull               Status = 0xC000007F
	StatusInsufficientResources  Status = 0xC000009A
	StatusMediaWriteProtected    Status = 0xC00000A2
	StatusIOTimeout              Status = 0xC00000B5
	StatusFileIsADirectory       Status = 0xC00000BA
	StatusNotSupported           Status = 0xC00000BB
	StatusNetworkNameDeleted     Status = 0xC00000C9
	StatusBadDeviceType          Status = 0xC00000CB
	StatusBadNetworkName         Status = 0xC00000CC
	StatusTooManySessions        Status = 0xC00000CE
	StatusRequestNotAccepted     Status = 0xC00000D0
	StatusInternalError          Status = 0xC00000E5
	StatusUnexpectedIOError      Status = 0xC00000E9
	StatusDirectoryNotEmpty      Status = 0xC0000101
	StatusNotADirectory          Status = 0xC0000103
	StatusTooManyOpenedFiles     Status = 0xC000011F
	StatusCancelled              Status = 0xC0000120
	StatusCannotDelete           Status = 0xC0000121
	StatusFileClosed             Status = 0xC0000128
	StatusLogonTypeNotGranted    Status = 0xC000015B
	StatusAccountExpired         Status = 0xC0000193
	StatusFSDriverRequired       Status = 0xC000019C
	StatusUserSessionDeleted     Status = 0xC0000203
	StatusInsuffServerResources  Status = 0xC0000205
	StatusPasswordMustChange     Status = 0xC0000224
	StatusNotFound               Status = 0xC0000225
	StatusAccountLockedOut       Status = 0xC0000234
	StatusPathNotCovered         Status = 0xC0000257
	StatusNotAReparsePoint       Status = 0xC0000275
	StatusNetworkSessionExpired  Status = 0xC000035C
)

var names = map[Status]string{
	StatusSuccess:                "STATUS_SUCCESS",
	StatusPending:                "STATUS_PENDING",
	StatusMoreEntries:            "STATUS_MORE_ENTRIES",
	StatusNotifyCleanup:          "STATUS_NOTIFY_CLEANUP",
	StatusNotifyEnumDir:          "STATUS_NOTIFY_ENUM_DIR",
	StatusObjectNameExist:        "STATUS_OBJECT_NAME_EXISTS",
	StatusOS2InvalidAccess:       "STATUS_OS2_INVALID_ACCESS",
	StatusSMBBadFID:              "STATUS_SMB_BAD_FID",
	StatusOS2NoMoreSIDs:          "STATUS_OS2_NO_MORE_SIDS",
	StatusOS2InvalidLevel:        "STATUS_OS2_INVALID_LEVEL",
	StatusInvalidSMB:             "STATUS_INVALID_SMB",
	StatusSMBBadTID:              "STATUS_SMB_BAD_TID",
	StatusSMBBadCommand:          "STATUS_SMB_BAD_COMMAND",
	StatusSecIContinue:           "SEC_I_CONTINUE_NEEDED",
	StatusBufferOverflow:         "STATUS_BUFFER_OVERFLOW",
	StatusNoMoreFiles:            "STATUS_NO_MORE_FILES",
	StatusSecEPkgMissing:         "SEC_E_SECPKG_NOT_FOUND",
	StatusSecEBadToken:           "SEC_E_INVALID_TOKEN",
	StatusNotImplemented:         "STATUS_NOT_IMPLEMENTED",
	StatusInvalidInfoClass:       "STATUS_INVALID_INFO_CLASS",
	StatusInfoLengthMismatch:     "STATUS_INFO_LENGTH_MISMATCH",
	StatusInvalidHandle:          "STATUS_INVALID_HANDLE",
	StatusInvalidParameter:       "STATUS_INVALID_PARAMETER",
	StatusNoSuchDevice:           "STATUS_NO_SUCH_DEVICE",
	StatusNoSuchFile:             "STATUS_NO_SUCH_FILE",
	StatusInvalidDeviceRequest:   "STATUS_INVALID_DEVICE_REQUEST",
	StatusEndOfFile:              "STATUS_END_OF_FILE",
	StatusMoreProcessingRequired: "STATUS_MORE_PROCESSING_REQUIRED",
	StatusAccessDenied:           "STATUS_ACCESS_DENIED",
	StatusBufferTooSmall:         "STATUS_BUFFER_TOO_SMALL",
	StatusObjectNameInvalid:      "STATUS_OBJECT_NAME_INVALID",
	StatusObjectNameNotFound:     "STATUS_OBJECT_NAME_NOT_FOUND",
	StatusObjectNameCollision:    "STATUS_OBJECT_NAME_COLLISION",
	StatusObjectPathInvalid:      "STATUS_OBJECT_PATH_INVALID",
	StatusObjectPathNotFound:     "STATUS_OBJECT_PATH_NOT_FOUND",
	StatusObjectPathSyntaxBad:    "STATUS_OBJECT_PATH_SYNTAX_BAD",
	StatusDataError:              "STATUS_DATA_ERROR",
	StatusSharingViolation:       "STATUS_SHARING_VIOLATION",
	StatusFileLockConflict:       "STATUS_FILE_LOCK_CONFLICT",
	StatusLockNotGranted:         "STATUS_LOCK_NOT_GRANTED",
	StatusDeletePending:          "STATUS_DELETE_PENDING",
	StatusNoLogonServers:         "STATUS_NO_LOGON_SERVERS",
	StatusPrivilegeNotHeld:       "STATUS_PRIVILEGE_NOT_HELD",
	StatusWrongPassword:          "STATUS_WRONG_PASSWORD",
	StatusLogonFailure:           "STATUS_LOGON_FAILURE",
	StatusAccountRestriction:     "STATUS_ACCOUNT_RESTRICTION",
	StatusInvalidLogonHours:      "STATUS_INVALID_LOGON_HOURS",
	StatusInvalidWorkstation:     "STATUS_INVALID_WORKSTATION",
	StatusPasswordExpired:        "STATUS_PASSWORD_EXPIRED",
	StatusAccountDisabled:        "STATUS_ACCOUNT_DISABLED",
	StatusRangeNotLocked:         "STATUS_RANGE_NOT_LOCKED",
	StatusDiskFull:               "STATUS_DISK_FULL",
	StatusInsufficientResources:  "STATUS_INSUFFICIENT_RESOURCES",
	StatusMediaWriteProtected:    "STATUS_MEDIA_WRITE_PROTECTED",
	StatusIOTimeout:              "STATUS_IO_TIMEOUT",
	StatusFileIsADirectory:       "STATUS_FILE_IS_A_DIRECTORY",
	StatusNotSupported:           "STATUS_NOT_SUPPORTED",
	StatusNetworkNameDeleted:     "STATUS_NETWORK_NAME_DELETED",
	StatusBadDeviceType:          "STATUS_BAD_DEVICE_TYPE",
	StatusBadNetworkName:         "STATUS_BAD_NETWORK_NAME",
	StatusTooManySessions:        "STATUS_TOO_MANY_SESSIONS",
	StatusRequestNotAccepted:     "STATUS_REQUEST_NOT_ACCEPTED",
	StatusInternalError:          "STATUS_INTERNAL_ERROR",
	StatusUnexpectedIOError:      "STATUS_UNEXPECTED_IO_ERROR",
	StatusDirectoryNotEmpty:      "STATUS_DIRECTORY_NOT_EMPTY",
	StatusNotADirectory:          "STATUS_NOT_A_DIRECTORY",
	StatusTooManyOpenedFiles:     "STATUS_TOO_MANY_OPENED_FILES",
	StatusCancelled:              "STATUS_CANCELLED",
	StatusCannotDelete:           "STATUS_CANNOT_DELETE",
	StatusFileClosed:             "STATUS_FILE_CLOSED",
	StatusLogonTypeNotGranted:    "STATUS_LOGON_TYPE_NOT_GRANTED",
	StatusAccountExpired:         "STATUS_ACCOUNT_EXPIRED",
	StatusFSDriverRequired:       "STATUS_FS_DRIVER_REQUIRED",
	StatusUserSessionDeleted:     "STATUS_USER_SESSION_DELETED",
	StatusInsuffServerResources:  "STATUS_INSUFF_SERVER_RESOURCES",
	StatusPasswordMustChange:     "STATUS_PASSWORD_MUST_CHANGE",
	StatusNotFound:               "STATUS_NOT_FOUND",
	StatusAccountLockedOut:       "STATUS_ACCOUNT_LOCKED_OUT",
	StatusPathNotCovered:         "STATUS_PATH_NOT_COVERED",
	StatusNotAReparsePoint:       "STATUS_NOT_A_REPARSE_POINT",
	StatusNetworkSessionExpired:  "STATUS_NETWORK_SESSION_EXPIRED",
}

// String returns the symbolic name of the status, or STATUS_0xXXXXXXXX for
// codes outside the known vocabulary.
func (s Status) String() string {
	if name, ok := names[s]; ok {
		return name
	}
	return fmt.Sprintf("STATUS_0x%08X", uint32(s))
}

// IsSuccess returns true if the status indicates success.
// Both success (00) and informational (01) severities count as success.
func (s Status) IsSuccess() bool {
	return (uint32(s) & 0x80000000) == 0
}

// IsError returns true if the status has error severity (11).
func (s Status) IsError() bool {
	return (uint32(s) & 0xC0000000) == 0xC0000000
}

// IsWarning returns true if the status has warning severity (10).
func (s Status) IsWarning() bool {
	return (uint32(s) & 0xC0000000) == 0x80000000
}

// Severity returns the severity level (0-3) of the status.
//   - 0: Success
//   - 1: Informational
//   - 2: Warning
//   - 3: Error
func (s Status) Severity() int {
	return int((uint32(s) >> 30) & 0x3)
}

// Err returns nil for STATUS_SUCCESS and an *Error carrying s otherwise.
// STATUS_PENDING is returned as an error so that retry loops can see it.
func (s Status) Err() error {
	if s == StatusSuccess {
		return nil
	}
	return &Error{Status: s}
}

// Error is the error value transports return when the server answered a
// request with a non-success status. Err is the transport-specific error the
// status was extracted from, if any.
type Error struct {
	Status Status
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Status, e.Err)
	}
	return e.Status.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Wrap returns an *Error associating status s with the underlying cause.
func Wrap(s Status, cause error) *Error {
	return &Error{Status: s, Err: cause}
}

// Carrier is implemented by errors that know the NT_STATUS they stand for.
type Carrier interface {
	NTStatus() Status
}

// NTStatus implements Carrier.
func (e *Error) NTStatus() Status {
	return e.Status
}

// FromError extracts the NT_STATUS carried by err, looking through wrapping.
// It reports false when no status is present.
func FromError(err error) (Status, bool) {
	if err == nil {
		return StatusSuccess, false
	}
	var carrier Carrier
	if errors.As(err, &carrier) {
		return carrier.NTStatus(), true
	}
	return StatusSuccess, false
}
