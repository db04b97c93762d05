// Package memory provides an in-memory SMB server and the transport.Client
// that talks to it. It keeps a small file tree per share, authenticates
// against a user table, and lets tests script the NT_STATUS any operation
// returns, including STATUS_PENDING sequences and dead sessions.
package memory

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/marmos91/smbkit/pkg/ntstatus"
	"github.com/marmos91/smbkit/pkg/transport"
)

// Op names a client operation faults can be injected into.
type Op string

const (
	OpConnect        Op = "connect"
	OpLogin          Op = "login"
	OpPing           Op = "ping"
	OpTreeConnect    Op = "tree_connect"
	OpCreate         Op = "create"
	OpClose          Op = "close"
	OpRead           Op = "read"
	OpWrite          Op = "write"
	OpQueryInfo      Op = "query_info"
	OpReadDir        Op = "read_dir"
	OpRemove         Op = "remove"
	OpTreeDisconnect Op = "tree_disconnect"
	OpLogoff         Op = "logoff"
	OpDisconnect     Op = "disconnect"
)

// ErrConnectionReset is returned by operations on a killed session.
var ErrConnectionReset = errors.New("memory: connection reset by peer")

// Default negotiated request sizes.
const (
	DefaultMaxRead  = 1 << 20
	DefaultMaxWrite = 1 << 20
)

// Stats counts server-side events.
type Stats struct {
	Connects        int
	Logins          int
	Logoffs         int
	Disconnects     int
	TreeConnects    int
	TreeDisconnects int
	Creates         int
	OpenHandles     int
	Calls           map[Op]int
}

type node struct {
	data    []byte
	dir     bool
	created time.Time
	mod     time.Time
}

// Server is an in-memory SMB server. The zero value is not usable; call NewServer.
type Server struct {
	mu         sync.Mutex
	users      map[string]string
	shares     map[string]map[string]*node
	queued     map[Op][]error
	sticky     map[Op]error
	maxRead    int
	maxWrite   int
	generation int
	stats      Stats
}

// NewServer returns an empty server.
func NewServer() *Server {
	return &Server{
		users:    make(map[string]string),
		shares:   make(map[string]map[string]*node),
		queued:   make(map[Op][]error),
		sticky:   make(map[Op]error),
		maxRead:  DefaultMaxRead,
		maxWrite: DefaultMaxWrite,
		stats:    Stats{Calls: make(map[Op]int)},
	}
}

func principal(domain, username string) string {
	return strings.ToLower(domain + `\` + username)
}

// AddUser allows domain\username to log in with password.
func (s *Server) AddUser(domain, username, password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[principal(domain, username)] = password
}

// AddShare creates an empty share.
func (s *Server) AddShare(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.shares[name]; !ok {
		s.shares[name] = map[string]*node{"": {dir: true, created: time.Now(), mod: time.Now()}}
	}
}

// SetMaxSizes sets the negotiated max read and write sizes.
func (s *Server) SetMaxSizes(read, write int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.maxRead, s.maxWrite = read, write
}

// WriteFile stores data at rel on share, creating parent directories. An
// existing file is updated in place, as seen by its open handles.
func (s *Server) WriteFile(share, rel string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tree := s.shares[share]
	if tree == nil {
		return
	}
	s.mkdirAllLocked(tree, parentOf(rel))
	now := time.Now()
	if n, ok := tree[rel]; ok && !n.dir {
		// Open handles point at n and must see the new content.
		n.data = append([]byte(nil), data...)
		n.mod = now
		return
	}
	tree[rel] = &node{data: append([]byte(nil), data...), created: now, mod: now}
}

// Mkdir creates the directory rel on share and its parents.
func (s *Server) Mkdir(share, rel string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tree := s.shares[share]; tree != nil {
		s.mkdirAllLocked(tree, rel)
	}
}

func (s *Server) mkdirAllLocked(tree map[string]*node, rel string) {
	if rel == "" {
		return
	}
	s.mkdirAllLocked(tree, parentOf(rel))
	if _, ok := tree[rel]; !ok {
		now := time.Now()
		tree[rel] = &node{dir: true, created: now, mod: now}
	}
}

// ReadFile returns a copy of the file at rel on share.
func (s *Server) ReadFile(share, rel string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.shares[share][rel]
	if !ok || n.dir {
		return nil, false
	}
	return append([]byte(nil), n.data...), true
}

// FailNext makes the next len(errs) calls of op fail with errs, in order.
func (s *Server) FailNext(op Op, errs ...error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queued[op] = append(s.queued[op], errs...)
}

// FailNextStatus is FailNext with NT_STATUS values.
func (s *Server) FailNextStatus(op Op, statuses ...ntstatus.Status) {
	errs := make([]error, len(statuses))
	for i, st := range statuses {
		errs[i] = st.Err()
	}
	s.FailNext(op, errs...)
}

// FailAlways makes every call of op fail with err until ClearFaults.
func (s *Server) FailAlways(op Op, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sticky[op] = err
}

// ClearFaults removes all injected faults.
func (s *Server) ClearFaults() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queued = make(map[Op][]error)
	s.sticky = make(map[Op]error)
}

// KillSessions invalidates every session logged in so far, as if the server
// had restarted. Subsequent operations on them fail with ErrConnectionReset.
func (s *Server) KillSessions() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
}

// Stats returns a snapshot of the server counters.
func (s *Server) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.stats
	out.Calls = make(map[Op]int, len(s.stats.Calls))
	for k, v := range s.stats.Calls {
		out.Calls[k] = v
	}
	return out
}

// Factory returns a transport.Factory producing clients of s.
func (s *Server) Factory() transport.Factory {
	return transport.FactoryFunc(func(maxBufferSize int) transport.Client {
		return &Client{srv: s, maxBuffer: maxBufferSize}
	})
}

// fault records a call of op and returns the injected error, if any.
// Callers must hold s.mu.
func (s *Server) faultLocked(op Op) error {
	s.stats.Calls[op]++
	if q := s.queued[op]; len(q) > 0 {
		s.queued[op] = q[1:]
		return q[0]
	}
	return s.sticky[op]
}

func (s *Server) childrenLocked(tree map[string]*node, dir string) []transport.FileInfo {
	var out []transport.FileInfo
	for rel, n := range tree {
		if rel == "" || parentOf(rel) != dir {
			continue
		}
		out = append(out, infoOf(rel, n))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func parentOf(rel string) string {
	if i := strings.LastIndex(rel, `\`); i >= 0 {
		return rel[:i]
	}
	return ""
}

func baseOf(rel string) string {
	if i := strings.LastIndex(rel, `\`); i >= 0 {
		return rel[i+1:]
	}
	return rel
}

func infoOf(rel string, n *node) transport.FileInfo {
	fi := transport.FileInfo{
		Name:         baseOf(rel),
		Size:         int64(len(n.data)),
		IsDir:        n.dir,
		CreationTime: n.created,
		ModTime:      n.mod,
		AccessTime:   n.mod,
		Attributes:   0x80, // FILE_ATTRIBUTE_NORMAL
	}
	if n.dir {
		fi.Size = 0
		fi.Attributes = 0x10 // FILE_ATTRIBUTE_DIRECTORY
	}
	return fi
}
