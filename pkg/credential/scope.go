package credential

import "sync"

// Guard owns a scoped registration. The credential is resolvable until
// Release is called; callers should `defer guard.Release()` right after a
// successful Register.
type Guard struct {
	reg  *Registry
	cred *Credential
	once sync.Once
}

// Credential returns the guarded credential.
func (g *Guard) Credential() *Credential {
	return g.cred
}

// Release deregisters the credential. It is safe to call more than once.
func (g *Guard) Release() {
	if g == nil {
		return
	}
	g.once.Do(func() {
		g.reg.Remove(g.cred)
	})
}

// Register creates a credential for path and inserts it immediately. The
// registration lasts until the returned guard is released.
func (r *Registry) Register(domain, username, password, path string) (*Guard, error) {
	c, err := New(domain, username, password, path)
	if err != nil {
		return nil, err
	}
	r.Add(c)
	return &Guard{reg: r, cred: c}, nil
}

// RegisterPersistent creates a credential for path that stays registered
// for the lifetime of the registry unless removed explicitly.
func (r *Registry) RegisterPersistent(domain, username, password, path string) (*Credential, error) {
	c, err := New(domain, username, password, path)
	if err != nil {
		return nil, err
	}
	r.Add(c)
	return c, nil
}

// WithCredential registers a credential for the duration of fn. The
// credential is removed on every exit path, including panics.
func (r *Registry) WithCredential(domain, username, password, path string, fn func(*Credential) error) error {
	g, err := r.Register(domain, username, password, path)
	if err != nil {
		return err
	}
	defer g.Release()
	return fn(g.cred)
}

// Register is Registry.Register on the process-wide registry.
func Register(domain, username, password, path string) (*Guard, error) {
	return Default().Register(domain, username, password, path)
}

// RegisterPersistent is Registry.RegisterPersistent on the process-wide registry.
func RegisterPersistent(domain, username, password, path string) (*Credential, error) {
	return Default().RegisterPersistent(domain, username, password, path)
}

// WithCredential is Registry.WithCredential on the process-wide registry.
func WithCredential(domain, username, password, path string, fn func(*Credential) error) error {
	return Default().WithCredential(domain, username, password, path, fn)
}
