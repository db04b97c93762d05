package ntstatus

// Kind is the actionable outcome a status is classified into.
type Kind int

const (
	// KindNone is returned for statuses that do not indicate failure.
	KindNone Kind = iota
	KindNotFound
	// KindPathNotFound means an intermediate directory or the share itself is
	// missing, as opposed to the final path component.
	KindPathNotFound
	KindAlreadyExists
	KindAccessDenied
	KindInvalidHandle
	KindPathInvalid
	// KindBusy covers sharing violations and byte-range lock conflicts.
	KindBusy
	KindResourceExhausted
	KindNotSupported
	KindAuthExpired
	KindAccountLocked
	KindDataError
	KindCancelled
	// KindPending is transient and only meaningful inside a retry loop.
	KindPending
	KindUnknown
)

var kindNames = [...]string{
	KindNone:              "None",
	KindNotFound:          "NotFound",
	KindPathNotFound:      "PathNotFound",
	KindAlreadyExists:     "AlreadyExists",
	KindAccessDenied:      "AccessDenied",
	KindInvalidHandle:     "InvalidHandle",
	KindPathInvalid:       "PathInvalid",
	KindBusy:              "Busy",
	KindResourceExhausted: "ResourceExhausted",
	KindNotSupported:      "NotSupported",
	KindAuthExpired:       "AuthExpired",
	KindAccountLocked:     "AccountLocked",
	KindDataError:         "DataError",
	KindCancelled:         "Cancelled",
	KindPending:           "Pending",
	KindUnknown:           "Unknown",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "Unknown"
}

var kinds = map[Status]Kind{
	StatusPending: KindPending,

	StatusNotImplemented:       KindNotSupported,
	StatusInvalidDeviceRequest: KindNotSupported,
	StatusNotSupported:         KindNotSupported,
	StatusSMBBadCommand:        KindNotSupported,
	StatusInvalidInfoClass:     KindNotSupported,
	StatusOS2InvalidLevel:      KindNotSupported,
	StatusBadDeviceType:        KindNotSupported,
	StatusFSDriverRequired:     KindNotSupported,

	StatusNotFound:           KindNotFound,
	StatusNoSuchFile:         KindNotFound,
	StatusNoSuchDevice:       KindNotFound,
	StatusObjectNameNotFound: KindNotFound,
	StatusFileIsADirectory:   KindNotFound,

	StatusNotAReparsePoint:   KindPathNotFound,
	StatusNotADirectory:      KindPathNotFound,
	StatusPathNotCovered:     KindPathNotFound,
	StatusObjectPathInvalid:  KindPathNotFound,
	StatusObjectPathNotFound: KindPathNotFound,
	StatusBadNetworkName:     KindPathNotFound,

	StatusObjectPathSyntaxBad: KindPathInvalid,
	StatusObjectNameInvalid:   KindPathInvalid,
	StatusInvalidParameter:    KindPathInvalid,
	StatusInvalidSMB:          KindPathInvalid,
	StatusSMBBadTID:           KindPathInvalid,
	StatusNetworkNameDeleted:  KindPathInvalid,

	StatusAccessDenied:        KindAccessDenied,
	StatusDeletePending:       KindAccessDenied,
	StatusPrivilegeNotHeld:    KindAccessDenied,
	StatusLogonFailure:        KindAccessDenied,
	StatusWrongPassword:       KindAccessDenied,
	StatusCannotDelete:        KindAccessDenied,
	StatusOS2InvalidAccess:    KindAccessDenied,
	StatusInvalidWorkstation:  KindAccessDenied,
	StatusInvalidLogonHours:   KindAccessDenied,
	StatusAccountRestriction:  KindAccessDenied,
	StatusLogonTypeNotGranted: KindAccessDenied,
	StatusUserSessionDeleted:  KindAccessDenied,
	StatusNoLogonServers:      KindAccessDenied,
	StatusMediaWriteProtected: KindAccessDenied,
	StatusSecEBadToken:        KindAccessDenied,
	StatusSecEPkgMissing:      KindAccessDenied,

	StatusSMBBadFID:     KindInvalidHandle,
	StatusInvalidHandle: KindInvalidHandle,
	StatusFileClosed:    KindInvalidHandle,

	StatusInsuffServerResources: KindResourceExhausted,
	StatusTooManyOpenedFiles:    KindResourceExhausted,
	StatusInsufficientResources: KindResourceExhausted,
	StatusDiskFull:              KindResourceExhausted,
	StatusTooManySessions:       KindResourceExhausted,
	StatusOS2NoMoreSIDs:         KindResourceExhausted,
	StatusRequestNotAccepted:    KindResourceExhausted,

	StatusDataError:          KindDataError,
	StatusInfoLengthMismatch: KindDataError,
	StatusBufferTooSmall:     KindDataError,
	StatusBufferOverflow:     KindDataError,

	StatusSharingViolation: KindBusy,
	StatusFileLockConflict: KindBusy,
	StatusLockNotGranted:   KindBusy,
	StatusRangeNotLocked:   KindBusy,
	StatusIOTimeout:        KindBusy,

	StatusAccountDisabled:       KindAuthExpired,
	StatusAccountExpired:        KindAuthExpired,
	StatusPasswordExpired:       KindAuthExpired,
	StatusPasswordMustChange:    KindAuthExpired,
	StatusNetworkSessionExpired: KindAuthExpired,

	StatusAccountLockedOut: KindAccountLocked,

	StatusObjectNameCollision: KindAlreadyExists,
	StatusObjectNameExist:     KindAlreadyExists,

	StatusCancelled: KindCancelled,
}

// Classify maps a status onto its Kind. Success and informational statuses
// without an explicit mapping classify as KindNone; any other unmapped code
// classifies as KindUnknown.
func Classify(s Status) Kind {
	if k, ok := kinds[s]; ok {
		return k
	}
	if s.IsSuccess() {
		return KindNone
	}
	return KindUnknown
}

// IsConfirmedAbsent reports whether s unambiguously means the addressed
// object does not exist. Permission, connectivity and transient failures
// are never absent; exists-style checks must propagate them.
func IsConfirmedAbsent(s Status) bool {
	switch s {
	case StatusNotFound,
		StatusNoSuchFile,
		StatusNoSuchDevice,
		StatusObjectNameNotFound,
		StatusObjectNameInvalid,
		StatusNotAReparsePoint,
		StatusNotADirectory,
		StatusObjectPathInvalid,
		StatusObjectPathNotFound:
		return true
	default:
		return false
	}
}

// IsPending reports whether s is STATUS_PENDING.
func IsPending(s Status) bool {
	return s == StatusPending
}
