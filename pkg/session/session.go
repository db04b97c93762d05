package session

import (
	"context"
	"time"

	"github.com/marmos91/smbkit/pkg/credential"
	"github.com/marmos91/smbkit/pkg/errors"
	"github.com/marmos91/smbkit/pkg/transport"
)

// Session is one authenticated transport client to one server address.
//
// A Session serves one in-flight operation at a time. Callers that need
// parallel requests to the same server acquire exclusive sessions.
type Session struct {
	mgr      *Manager
	slot     *slot
	key      poolKey
	scope    Scope
	client   transport.Client
	endpoint transport.Endpoint
	cred     credential.Credential
	opts     Options
	created  time.Time

	// Guarded by slot.mu.
	refs   int
	closed bool
}

// Client returns the underlying transport client.
func (s *Session) Client() transport.Client { return s.client }

// Endpoint returns the resolved address the session is connected to.
func (s *Session) Endpoint() transport.Endpoint { return s.endpoint }

// Credential returns a copy of the credential the session logged in with.
func (s *Session) Credential() credential.Credential { return s.cred }

// Options returns the options the session was established with.
func (s *Session) Options() Options { return s.opts }

// Scope returns the pool scope, Unpooled for exclusive sessions.
func (s *Session) Scope() Scope { return s.scope }

// Created returns when the session was established.
func (s *Session) Created() time.Time { return s.created }

// ChunkSize is the largest read or write a single request may carry: the
// smaller of the negotiated limits and the configured buffer size.
func (s *Session) ChunkSize() int {
	n := s.opts.MaxBufferSize
	if r := s.client.MaxReadSize(); r > 0 {
		n = min(n, r)
	}
	if w := s.client.MaxWriteSize(); w > 0 {
		n = min(n, w)
	}
	return n
}

// RefCount returns the number of holders.
func (s *Session) RefCount() int {
	s.slot.mu.Lock()
	defer s.slot.mu.Unlock()
	return s.refs
}

// TreeConnect binds the session to share. Failures are translated into the
// error taxonomy with the share as path.
func (s *Session) TreeConnect(ctx context.Context, share string) (transport.Tree, error) {
	tree, err := s.client.TreeConnect(ctx, share)
	if err != nil {
		return nil, errors.Wrap("tree_connect", share, err)
	}
	return tree, nil
}

// Release is shorthand for the owning manager's Release.
func (s *Session) Release(ctx context.Context) {
	s.mgr.Release(ctx, s)
}
