package ntstatus

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsConfirmedAbsent(t *testing.T) {
	absent := []Status{
		StatusNotFound,
		StatusNoSuchFile,
		StatusNoSuchDevice,
		StatusObjectNameNotFound,
		StatusObjectNameInvalid,
		StatusNotAReparsePoint,
		StatusNotADirectory,
		StatusObjectPathInvalid,
		StatusObjectPathNotFound,
	}
	for _, st := range absent {
		assert.True(t, IsConfirmedAbsent(st), st.String())
	}

	notAbsent := []Status{
		StatusSuccess,
		StatusPending,
		StatusAccessDenied,
		StatusLogonFailure,
		StatusSharingViolation,
		StatusIOTimeout,
		StatusBadNetworkName,
		StatusInsufficientResources,
		Status(0xC0DE0001),
	}
	for _, st := range notAbsent {
		assert.False(t, IsConfirmedAbsent(st), st.String())
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		status Status
		want   Kind
	}{
		{StatusSuccess, KindNone},
		{StatusNotifyCleanup, KindNone},
		{StatusPending, KindPending},
		{StatusNoSuchFile, KindNotFound},
		{StatusFileIsADirectory, KindNotFound},
		{StatusObjectPathNotFound, KindPathNotFound},
		{StatusBadNetworkName, KindPathNotFound},
		{StatusObjectPathSyntaxBad, KindPathInvalid},
		{StatusAccessDenied, KindAccessDenied},
		{StatusLogonFailure, KindAccessDenied},
		{StatusFileClosed, KindInvalidHandle},
		{StatusDiskFull, KindResourceExhausted},
		{StatusDataError, KindDataError},
		{StatusSharingViolation, KindBusy},
		{StatusLockNotGranted, KindBusy},
		{StatusAccountDisabled, KindAuthExpired},
		{StatusPasswordMustChange, KindAuthExpired},
		{StatusAccountLockedOut, KindAccountLocked},
		{StatusObjectNameCollision, KindAlreadyExists},
		{StatusObjectNameExist, KindAlreadyExists},
		{StatusNotSupported, KindNotSupported},
		{StatusCancelled, KindCancelled},
		{StatusInternalError, KindUnknown},
		{Status(0xC0DE0001), KindUnknown},
		{Status(0x8BAD0001), KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.status.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.status))
		})
	}
}

func TestEveryKnownStatusClassifies(t *testing.T) {
	for st := range names {
		k := Classify(st)
		assert.NotEmpty(t, k.String(), st.String())
		if st.IsError() {
			assert.NotEqual(t, KindNone, k, "error status %s must not classify as success", st)
		}
	}
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "AccessDenied", KindAccessDenied.String())
	assert.Equal(t, "Unknown", Kind(99).String())
}
