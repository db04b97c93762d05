package session

import (
	"time"

	"github.com/marmos91/smbkit/pkg/transport"
)

const (
	// DefaultSessionTimeout bounds session establishment and the pending
	// poll of every operation run on the session.
	DefaultSessionTimeout = 45 * time.Second

	// DefaultMaxBufferSize caps a single read or write request.
	DefaultMaxBufferSize = 65536
)

// Options configure how a session is established.
type Options struct {
	// Kind selects direct TCP or NetBIOS framing.
	Kind transport.Kind

	// Port overrides the well-known port of Kind. A port in the path
	// takes precedence.
	Port int

	SessionTimeout time.Duration
	MaxBufferSize  int
}

// DefaultOptions returns direct TCP on 445 with the default limits.
func DefaultOptions() Options {
	return Options{
		Kind:           transport.KindDirect,
		SessionTimeout: DefaultSessionTimeout,
		MaxBufferSize:  DefaultMaxBufferSize,
	}
}

func (o Options) withDefaults() Options {
	if o.SessionTimeout <= 0 {
		o.SessionTimeout = DefaultSessionTimeout
	}
	if o.MaxBufferSize <= 0 {
		o.MaxBufferSize = DefaultMaxBufferSize
	}
	return o
}

// port returns the port to dial for a path that specified pathPort.
func (o Options) port(pathPort int) int {
	switch {
	case pathPort != 0:
		return pathPort
	case o.Port != 0:
		return o.Port
	default:
		return o.Kind.DefaultPort()
	}
}
