package credential

import (
	"sync"

	"github.com/marmos91/smbkit/pkg/smbpath"
)

// Registry stores credentials and resolves the best match for a path.
//
// All mutation and resolution happen under one mutex. Critical sections only
// scan the entry slice; no I/O is performed while the lock is held.
type Registry struct {
	mu      sync.Mutex
	entries []*Credential
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default returns the process-wide registry, creating it on first use.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// Add registers c. Adding the same credential twice is a no-op.
func (r *Registry) Add(c *Credential) {
	if c == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range r.entries {
		if e == c {
			return
		}
	}
	r.entries = append(r.entries, c)
}

// Remove deregisters c and reports whether it was present.
func (r *Registry) Remove(c *Credential) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, e := range r.entries {
		if e == c {
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			return true
		}
	}
	return false
}

// Resolve returns the credential covering path: an exact (host, share)
// match first, else a host-wide credential, else none. Callers must treat
// none as a hard failure rather than falling back to an ambient identity.
//
// When several host-wide credentials exist for the same host, the one
// registered first wins.
func (r *Registry) Resolve(path string) (*Credential, bool) {
	addr, err := smbpath.Parse(path)
	if err != nil {
		return nil, false
	}
	return r.ResolveAddress(addr)
}

// ResolveAddress is Resolve for an already parsed address.
func (r *Registry) ResolveAddress(addr smbpath.Address) (*Credential, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if addr.Share != "" {
		for _, e := range r.entries {
			if e.matches(addr.Host, addr.Share) {
				return e, true
			}
		}
	}
	for _, e := range r.entries {
		if e.matches(addr.Host, "") {
			return e, true
		}
	}
	return nil, false
}

// List returns a snapshot of the registered credentials. The returned
// values are copies; mutating them does not affect the registry.
func (r *Registry) List() []Credential {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Credential, len(r.entries))
	for i, e := range r.entries {
		out[i] = *e
	}
	return out
}

// Len returns the number of registered credentials.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
