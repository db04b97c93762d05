package session

import "github.com/google/uuid"

// Scope identifies one pool of shared sessions. Sessions are reused only
// between callers presenting the same Scope, so a caller that wants reuse
// creates a Scope once and passes it along explicitly; nothing is keyed on
// the calling goroutine.
//
// The zero Scope, Unpooled, never shares: every acquire gets a new session.
type Scope uuid.UUID

// Unpooled is the scope of single-use sessions.
var Unpooled Scope

// NewScope returns a fresh pool scope.
func NewScope() Scope {
	return Scope(uuid.New())
}

// IsPooled reports whether s shares sessions.
func (s Scope) IsPooled() bool {
	return s != Unpooled
}

func (s Scope) String() string {
	if !s.IsPooled() {
		return "unpooled"
	}
	return uuid.UUID(s).String()
}
