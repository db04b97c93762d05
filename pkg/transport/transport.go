// Package transport defines the contract between the SMB client core and
// the component that speaks the wire protocol. The core never touches
// framing, signing or the authentication handshake; it drives a Client
// through connect, login, tree connect and file operations and interprets
// the NT_STATUS values it gets back.
//
// Implementations report server statuses as *ntstatus.Error (or any error
// implementing ntstatus.Carrier). Any other error is treated as a transport
// failure.
package transport

import (
	"context"
	"fmt"
	"net/netip"
	"strings"
	"time"
)

// Kind selects how the TCP stream is framed before SMB2 negotiation.
type Kind int

const (
	// KindDirect is SMB over TCP on port 445.
	KindDirect Kind = iota
	// KindNetBIOS is SMB over NetBIOS session service on port 139.
	KindNetBIOS
)

// DefaultPort returns the well-known port for k.
func (k Kind) DefaultPort() int {
	if k == KindNetBIOS {
		return 139
	}
	return 445
}

func (k Kind) String() string {
	if k == KindNetBIOS {
		return "netbios"
	}
	return "direct"
}

// ParseKind parses "direct" or "netbios".
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "direct", "tcp":
		return KindDirect, nil
	case "netbios", "nbt":
		return KindNetBIOS, nil
	default:
		return KindDirect, fmt.Errorf("unknown transport kind %q", s)
	}
}

// Endpoint is a resolved server address.
type Endpoint struct {
	Addr     netip.Addr
	Port     int
	Kind     Kind
	Hostname string // original host name, used as the NTLM target and NetBIOS called name
}

// AddrPort returns the TCP address to dial.
func (e Endpoint) AddrPort() netip.AddrPort {
	port := e.Port
	if port == 0 {
		port = e.Kind.DefaultPort()
	}
	return netip.AddrPortFrom(e.Addr, uint16(port))
}

func (e Endpoint) String() string {
	return e.AddrPort().String()
}

// Client is one stateful connection to one server. A Client is not safe for
// concurrent use: the core serializes operations on it.
type Client interface {
	// Connect opens the transport connection.
	Connect(ctx context.Context, ep Endpoint) error
	// Login negotiates and authenticates a session on the open connection.
	Login(ctx context.Context, domain, username, password string) error
	// Ping checks that the session is still usable (SMB2 ECHO).
	Ping(ctx context.Context) error
	// TreeConnect binds the session to a share.
	TreeConnect(ctx context.Context, share string) (Tree, error)
	// Logoff ends the authenticated session.
	Logoff(ctx context.Context) error
	// Disconnect closes the underlying connection.
	Disconnect() error
	// MaxReadSize and MaxWriteSize are the negotiated per-request limits.
	MaxReadSize() int
	MaxWriteSize() int
}

// Factory creates unconnected clients. maxBufferSize caps the per-request
// read and write sizes the client will report.
type Factory interface {
	NewClient(maxBufferSize int) Client
}

// FactoryFunc adapts a function to Factory.
type FactoryFunc func(maxBufferSize int) Client

// NewClient implements Factory.
func (f FactoryFunc) NewClient(maxBufferSize int) Client {
	return f(maxBufferSize)
}

// Handle is an open file or directory on a tree. It is opaque to the core.
type Handle interface {
	Name() string
}

// Tree is a session bound to one share.
type Tree interface {
	Share() string
	// Create opens name. The returned handle may keep ctx for its whole
	// lifetime, as go-smb2 files do, and fail every later call once ctx is
	// done. Callers pass HandleContext of their call context.
	Create(ctx context.Context, name string, req CreateRequest) (Handle, error)
	Close(ctx context.Context, h Handle) error
	// Read returns at most count bytes at off. Reading at or past the end of
	// the file fails with STATUS_END_OF_FILE.
	Read(ctx context.Context, h Handle, off int64, count int) ([]byte, error)
	Write(ctx context.Context, h Handle, off int64, data []byte) (int, error)
	QueryInfo(ctx context.Context, h Handle) (FileInfo, error)
	// ReadDir lists the directory h refers to.
	ReadDir(ctx context.Context, h Handle) ([]FileInfo, error)
	// Remove deletes the file or empty directory at name.
	Remove(ctx context.Context, name string) error
	Disconnect(ctx context.Context) error
}

// FileInfo is the subset of FILE_ALL_INFORMATION the core exposes.
type FileInfo struct {
	Name         string
	Size         int64
	IsDir        bool
	Attributes   uint32
	CreationTime time.Time
	ModTime      time.Time
	AccessTime   time.Time
}

// HandleContext returns a context for Tree.Create that keeps the values of
// ctx but outlives its cancellation and deadline, so a handle opened during
// one bounded attempt stays usable after the attempt ends.
func HandleContext(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}
