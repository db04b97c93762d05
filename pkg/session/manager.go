// Package session establishes, pools and tears down SMB sessions.
//
// Shared sessions are refcounted and pooled per (Scope, address, port,
// transport, principal). The pool is a map of slots: the map mutex is held
// only to find or create a slot, and each slot has its own mutex covering
// lookup, the liveness echo, establishment and teardown for its key. Calls
// for different keys never wait on each other's network I/O, and two
// callers racing on one key end up sharing one session.
package session

import (
	"context"
	"net/netip"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/codes"

	"github.com/marmos91/smbkit/internal/logger"
	"github.com/marmos91/smbkit/internal/telemetry"
	"github.com/marmos91/smbkit/pkg/credential"
	"github.com/marmos91/smbkit/pkg/errors"
	"github.com/marmos91/smbkit/pkg/ntstatus"
	"github.com/marmos91/smbkit/pkg/smbpath"
	"github.com/marmos91/smbkit/pkg/transport"
)

type poolKey struct {
	scope     Scope
	addr      netip.AddrPort
	kind      transport.Kind
	principal string
}

type slot struct {
	mu      sync.Mutex
	session *Session

	// users counts holders and waiters. Guarded by Manager.mu.
	users int
}

// Stats is a snapshot of the pool.
type Stats struct {
	// Pooled is the number of shared sessions in the pool.
	Pooled int
	// Live is the number of connected sessions, shared and exclusive.
	Live int
}

// Manager owns the session pool. All methods are safe for concurrent use.
type Manager struct {
	factory  transport.Factory
	resolver *smbpath.Resolver
	metrics  *Metrics

	mu    sync.Mutex
	slots map[poolKey]*slot

	pooled atomic.Int64
	live   atomic.Int64
}

// NewManager returns a Manager creating clients with factory. A nil
// resolver uses the system resolver. metrics may be nil.
func NewManager(factory transport.Factory, resolver *smbpath.Resolver, metrics *Metrics) *Manager {
	if resolver == nil {
		resolver = smbpath.NewResolver(nil)
	}
	return &Manager{
		factory:  factory,
		resolver: resolver,
		metrics:  metrics,
		slots:    make(map[poolKey]*slot),
	}
}

// Stats returns pool counters.
func (m *Manager) Stats() Stats {
	return Stats{Pooled: int(m.pooled.Load()), Live: int(m.live.Load())}
}

// AcquireShared returns the pooled session for scope and the target of
// addr, authenticated as cred, establishing one if none is live. Each
// successful call must be paired with Release. With the Unpooled scope it
// behaves like AcquireExclusive.
func (m *Manager) AcquireShared(ctx context.Context, scope Scope, addr smbpath.Address, cred *credential.Credential, opts Options) (*Session, error) {
	if !scope.IsPooled() {
		return m.AcquireExclusive(ctx, addr, cred, opts)
	}
	opts = opts.withDefaults()
	if err := cred.Validate(); err != nil {
		return nil, err
	}
	ep, err := m.endpoint(ctx, addr, opts)
	if err != nil {
		return nil, err
	}

	key := poolKey{
		scope:     scope,
		addr:      ep.AddrPort(),
		kind:      ep.Kind,
		principal: strings.ToLower(cred.Principal()),
	}
	sl := m.enter(key)

	sl.mu.Lock()
	defer sl.mu.Unlock()

	if s := sl.session; s != nil {
		err := m.ping(ctx, s, opts)
		if err == nil {
			s.refs++
			m.metrics.recordReused()
			logger.DebugCtx(ctx, "session reused",
				logger.Address(ep.String()), logger.Scope(scope.String()), logger.RefCount(s.refs))
			return s, nil
		}
		logger.WarnCtx(ctx, "pooled session failed liveness check, replacing",
			logger.Address(ep.String()), logger.Scope(scope.String()), logger.Err(err))
		m.metrics.recordLivenessFailure()
		sl.session = nil
		m.pooled.Add(-1)
		m.teardownLocked(ctx, s, ReasonDead)
	}

	s, err := m.establish(ctx, ep, cred, opts)
	if err != nil {
		m.leave(key, sl)
		return nil, err
	}
	s.mgr, s.slot, s.key, s.scope, s.refs = m, sl, key, scope, 1
	sl.session = s
	m.pooled.Add(1)
	return s, nil
}

// AcquireExclusive establishes a new session that is never shared. Its
// refcount starts at 1 and the first Release tears it down.
func (m *Manager) AcquireExclusive(ctx context.Context, addr smbpath.Address, cred *credential.Credential, opts Options) (*Session, error) {
	opts = opts.withDefaults()
	if err := cred.Validate(); err != nil {
		return nil, err
	}
	ep, err := m.endpoint(ctx, addr, opts)
	if err != nil {
		return nil, err
	}
	s, err := m.establish(ctx, ep, cred, opts)
	if err != nil {
		return nil, err
	}
	s.mgr, s.slot, s.scope, s.refs = m, &slot{}, Unpooled, 1
	return s, nil
}

// Release drops one reference to s. The last reference logs off and
// disconnects, best-effort: teardown errors are logged, never returned.
// Releasing a nil session is a no-op.
func (m *Manager) Release(ctx context.Context, s *Session) {
	if s == nil {
		return
	}
	sl := s.slot
	sl.mu.Lock()
	if s.refs <= 0 {
		sl.mu.Unlock()
		logger.WarnCtx(ctx, "session released more times than acquired",
			logger.Address(s.endpoint.String()), logger.Scope(s.scope.String()))
		return
	}
	s.refs--
	if s.refs == 0 {
		if sl.session == s {
			sl.session = nil
			m.pooled.Add(-1)
		}
		m.teardownLocked(ctx, s, ReasonReleased)
	}
	sl.mu.Unlock()

	if s.scope.IsPooled() {
		m.leave(s.key, sl)
	}
}

// enter returns the slot for key, creating it, and counts the caller as a user.
// ping checks a pooled session within SessionTimeout so a half-open
// connection cannot hold the slot.
func (m *Manager) ping(ctx context.Context, s *Session, opts Options) error {
	timeout := opts.SessionTimeout
	if timeout <= 0 {
		timeout = DefaultSessionTimeout
	}
	pctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return s.client.Ping(pctx)
}

func (m *Manager) enter(key poolKey) *slot {
	m.mu.Lock()
	defer m.mu.Unlock()
	sl, ok := m.slots[key]
	if !ok {
		sl = &slot{}
		m.slots[key] = sl
	}
	sl.users++
	return sl
}

// leave uncounts a user and drops the slot once nobody holds or waits on it.
func (m *Manager) leave(key poolKey, sl *slot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sl.users--
	if sl.users <= 0 && m.slots[key] == sl {
		delete(m.slots, key)
	}
}

func (m *Manager) endpoint(ctx context.Context, addr smbpath.Address, opts Options) (transport.Endpoint, error) {
	ip, err := m.resolver.ResolveAddress(ctx, addr)
	if err != nil {
		return transport.Endpoint{}, err
	}
	return transport.Endpoint{
		Addr:     ip,
		Port:     opts.port(addr.Port),
		Kind:     opts.Kind,
		Hostname: addr.Host,
	}, nil
}

// establish connects and logs in. Failures are never retried.
func (m *Manager) establish(ctx context.Context, ep transport.Endpoint, cred *credential.Credential, opts Options) (*Session, error) {
	ctx, span := telemetry.StartSessionSpan(ctx, telemetry.SpanSessionEstablish,
		ep.Hostname, int(ep.AddrPort().Port()), cred.Domain, cred.Username)
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, opts.SessionTimeout)
	defer cancel()

	s, err := m.dial(ctx, ep, cred, opts)
	if err != nil {
		m.metrics.recordEstablishFailure(errors.CodeOf(err).String())
		telemetry.RecordError(ctx, err)
		logger.WarnCtx(ctx, "session establishment failed",
			logger.Address(ep.String()), logger.Principal(cred.Principal()), logger.Err(err))
		return nil, err
	}
	span.SetStatus(codes.Ok, "")

	m.live.Add(1)
	m.metrics.recordCreated()
	logger.DebugCtx(ctx, "session established",
		logger.Address(ep.String()), logger.Transport(ep.Kind.String()),
		logger.Principal(cred.Principal()), logger.ChunkSize(s.ChunkSize()))
	return s, nil
}

func (m *Manager) dial(ctx context.Context, ep transport.Endpoint, cred *credential.Credential, opts Options) (*Session, error) {
	client := m.factory.NewClient(opts.MaxBufferSize)
	if err := client.Connect(ctx, ep); err != nil {
		return nil, errors.NewConnectFailedError(ep.String(), err)
	}
	if err := client.Login(ctx, cred.Domain, cred.Username, cred.Password); err != nil {
		if derr := client.Disconnect(); derr != nil {
			logger.DebugCtx(ctx, "disconnect after failed login", logger.Err(derr))
		}
		return nil, loginError(ep, err)
	}
	return &Session{
		client:   client,
		endpoint: ep,
		cred:     *cred,
		opts:     opts,
		created:  time.Now(),
	}, nil
}

// loginError classifies a failed login. Logon-class statuses and failures
// without a status are authentication failures; any other status is
// translated like an operation failure.
func loginError(ep transport.Endpoint, err error) error {
	st, ok := ntstatus.FromError(err)
	if !ok {
		return errors.NewAuthenticationFailedError(ep.String(), 0, err)
	}
	switch ntstatus.Classify(st) {
	case ntstatus.KindAccessDenied, ntstatus.KindAuthExpired, ntstatus.KindAccountLocked:
		return errors.NewAuthenticationFailedError(ep.String(), st, err)
	default:
		return errors.FromStatus("login", ep.String(), st, err)
	}
}

// teardownLocked logs off and disconnects s once. The caller holds s.slot.mu.
func (m *Manager) teardownLocked(ctx context.Context, s *Session, reason string) {
	if s.closed {
		return
	}
	s.closed = true

	ctx, span := telemetry.StartSessionSpan(context.WithoutCancel(ctx), telemetry.SpanSessionTeardown,
		s.endpoint.Hostname, int(s.endpoint.AddrPort().Port()), s.cred.Domain, s.cred.Username)
	defer span.End()
	ctx, cancel := context.WithTimeout(ctx, s.opts.SessionTimeout)
	defer cancel()

	if reason != ReasonDead {
		if err := s.client.Logoff(ctx); err != nil {
			logger.DebugCtx(ctx, "logoff failed during teardown",
				logger.Address(s.endpoint.String()), logger.Err(err))
		}
	}
	if err := s.client.Disconnect(); err != nil {
		logger.DebugCtx(ctx, "disconnect failed during teardown",
			logger.Address(s.endpoint.String()), logger.Err(err))
	}

	m.live.Add(-1)
	m.metrics.recordDestroyed(reason, time.Since(s.created).Seconds())
	logger.DebugCtx(ctx, "session closed",
		logger.Address(s.endpoint.String()), logger.Reason(reason))
}
