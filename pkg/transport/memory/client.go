package memory

import (
	"context"
	"errors"
	"time"

	"github.com/marmos91/smbkit/pkg/ntstatus"
	"github.com/marmos91/smbkit/pkg/transport"
)

var errNotConnected = errors.New("memory: not connected")

// Client is a transport.Client bound to a Server.
type Client struct {
	srv        *Server
	maxBuffer  int
	connected  bool
	loggedIn   bool
	generation int
	endpoint   transport.Endpoint
}

var _ transport.Client = (*Client)(nil)

// Endpoint returns the endpoint passed to Connect.
func (c *Client) Endpoint() transport.Endpoint {
	return c.endpoint
}

func (c *Client) Connect(ctx context.Context, ep transport.Endpoint) error {
	c.srv.mu.Lock()
	defer c.srv.mu.Unlock()
	if err := c.srv.faultLocked(OpConnect); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	c.srv.stats.Connects++
	c.connected = true
	c.endpoint = ep
	return nil
}

func (c *Client) Login(ctx context.Context, domain, username, password string) error {
	c.srv.mu.Lock()
	defer c.srv.mu.Unlock()
	if err := c.srv.faultLocked(OpLogin); err != nil {
		return err
	}
	if !c.connected {
		return errNotConnected
	}
	if pw, ok := c.srv.users[principal(domain, username)]; !ok || pw != password {
		return ntstatus.StatusLogonFailure.Err()
	}
	c.srv.stats.Logins++
	c.loggedIn = true
	c.generation = c.srv.generation
	return nil
}

// aliveLocked reports whether the session survived every KillSessions call.
func (c *Client) aliveLocked() error {
	if !c.connected || !c.loggedIn {
		return errNotConnected
	}
	if c.generation != c.srv.generation {
		return ErrConnectionReset
	}
	return nil
}

func (c *Client) Ping(ctx context.Context) error {
	c.srv.mu.Lock()
	defer c.srv.mu.Unlock()
	if err := c.srv.faultLocked(OpPing); err != nil {
		return err
	}
	return c.aliveLocked()
}

func (c *Client) TreeConnect(ctx context.Context, share string) (transport.Tree, error) {
	c.srv.mu.Lock()
	defer c.srv.mu.Unlock()
	if err := c.srv.faultLocked(OpTreeConnect); err != nil {
		return nil, err
	}
	if err := c.aliveLocked(); err != nil {
		return nil, err
	}
	if _, ok := c.srv.shares[share]; !ok {
		return nil, ntstatus.StatusBadNetworkName.Err()
	}
	c.srv.stats.TreeConnects++
	return &tree{client: c, share: share, open: make(map[*handle]struct{})}, nil
}

func (c *Client) Logoff(ctx context.Context) error {
	c.srv.mu.Lock()
	defer c.srv.mu.Unlock()
	if err := c.srv.faultLocked(OpLogoff); err != nil {
		return err
	}
	if !c.loggedIn {
		return errNotConnected
	}
	c.loggedIn = false
	c.srv.stats.Logoffs++
	return nil
}

func (c *Client) Disconnect() error {
	c.srv.mu.Lock()
	defer c.srv.mu.Unlock()
	if err := c.srv.faultLocked(OpDisconnect); err != nil {
		return err
	}
	if !c.connected {
		return errNotConnected
	}
	c.connected = false
	c.srv.stats.Disconnects++
	return nil
}

func (c *Client) MaxReadSize() int {
	c.srv.mu.Lock()
	defer c.srv.mu.Unlock()
	return c.srv.maxRead
}

func (c *Client) MaxWriteSize() int {
	c.srv.mu.Lock()
	defer c.srv.mu.Unlock()
	return c.srv.maxWrite
}

type handle struct {
	name string
	node *node
	// ctx is the Create context. Like a go-smb2 file, the handle is
	// unusable once it is done.
	ctx context.Context
}

func (h *handle) Name() string { return h.name }

type tree struct {
	client *Client
	share  string
	open   map[*handle]struct{}
}

func (t *tree) Share() string { return t.share }

// enterLocked runs the common prologue of every tree operation.
func (t *tree) enterLocked(op Op) error {
	if err := t.client.srv.faultLocked(op); err != nil {
		return err
	}
	return t.client.aliveLocked()
}

func (t *tree) nodes() map[string]*node {
	return t.client.srv.shares[t.share]
}

func (t *tree) lookupLocked(h transport.Handle) (*handle, error) {
	mh, ok := h.(*handle)
	if !ok {
		return nil, ntstatus.StatusInvalidHandle.Err()
	}
	if _, open := t.open[mh]; !open {
		return nil, ntstatus.StatusFileClosed.Err()
	}
	if err := mh.ctx.Err(); err != nil {
		return nil, err
	}
	return mh, nil
}

func (t *tree) Create(ctx context.Context, name string, req transport.CreateRequest) (transport.Handle, error) {
	srv := t.client.srv
	srv.mu.Lock()
	defer srv.mu.Unlock()
	if err := t.enterLocked(OpCreate); err != nil {
		return nil, err
	}

	nodes := t.nodes()
	n, exists := nodes[name]
	switch {
	case exists && req.Disposition == transport.FileCreate:
		return nil, ntstatus.StatusObjectNameCollision.Err()
	case exists && req.Directory && !n.dir:
		return nil, ntstatus.StatusNotADirectory.Err()
	case exists && req.Disposition.Truncates() && !n.dir:
		n.data = nil
		n.mod = time.Now()
	case !exists:
		parent, ok := nodes[parentOf(name)]
		if !ok || !parent.dir {
			return nil, ntstatus.StatusObjectPathNotFound.Err()
		}
		if !req.Disposition.Creates() {
			return nil, ntstatus.StatusObjectNameNotFound.Err()
		}
		now := time.Now()
		n = &node{dir: req.Directory, created: now, mod: now}
		nodes[name] = n
	}

	h := &handle{name: name, node: n, ctx: ctx}
	t.open[h] = struct{}{}
	srv.stats.Creates++
	srv.stats.OpenHandles++
	return h, nil
}

func (t *tree) Close(ctx context.Context, h transport.Handle) error {
	srv := t.client.srv
	srv.mu.Lock()
	defer srv.mu.Unlock()
	if err := srv.faultLocked(OpClose); err != nil {
		return err
	}
	mh, err := t.lookupLocked(h)
	if err != nil {
		return err
	}
	delete(t.open, mh)
	srv.stats.OpenHandles--
	return nil
}

func (t *tree) Read(ctx context.Context, h transport.Handle, off int64, count int) ([]byte, error) {
	srv := t.client.srv
	srv.mu.Lock()
	defer srv.mu.Unlock()
	if err := t.enterLocked(OpRead); err != nil {
		return nil, err
	}
	mh, err := t.lookupLocked(h)
	if err != nil {
		return nil, err
	}
	if mh.node.dir {
		return nil, ntstatus.StatusInvalidDeviceRequest.Err()
	}
	if count > srv.maxRead || count < 0 || off < 0 {
		return nil, ntstatus.StatusInvalidParameter.Err()
	}
	if off >= int64(len(mh.node.data)) {
		return nil, ntstatus.StatusEndOfFile.Err()
	}
	end := min(off+int64(count), int64(len(mh.node.data)))
	return append([]byte(nil), mh.node.data[off:end]...), nil
}

func (t *tree) Write(ctx context.Context, h transport.Handle, off int64, data []byte) (int, error) {
	srv := t.client.srv
	srv.mu.Lock()
	defer srv.mu.Unlock()
	if err := t.enterLocked(OpWrite); err != nil {
		return 0, err
	}
	mh, err := t.lookupLocked(h)
	if err != nil {
		return 0, err
	}
	if mh.node.dir {
		return 0, ntstatus.StatusInvalidDeviceRequest.Err()
	}
	if len(data) > srv.maxWrite || off < 0 {
		return 0, ntstatus.StatusInvalidParameter.Err()
	}
	end := off + int64(len(data))
	if end > int64(len(mh.node.data)) {
		grown := make([]byte, end)
		copy(grown, mh.node.data)
		mh.node.data = grown
	}
	copy(mh.node.data[off:], data)
	mh.node.mod = time.Now()
	return len(data), nil
}

func (t *tree) QueryInfo(ctx context.Context, h transport.Handle) (transport.FileInfo, error) {
	srv := t.client.srv
	srv.mu.Lock()
	defer srv.mu.Unlock()
	if err := t.enterLocked(OpQueryInfo); err != nil {
		return transport.FileInfo{}, err
	}
	mh, err := t.lookupLocked(h)
	if err != nil {
		return transport.FileInfo{}, err
	}
	fi := infoOf(mh.name, mh.node)
	if mh.name == "" {
		fi.Name = t.share
	}
	return fi, nil
}

func (t *tree) ReadDir(ctx context.Context, h transport.Handle) ([]transport.FileInfo, error) {
	srv := t.client.srv
	srv.mu.Lock()
	defer srv.mu.Unlock()
	if err := t.enterLocked(OpReadDir); err != nil {
		return nil, err
	}
	mh, err := t.lookupLocked(h)
	if err != nil {
		return nil, err
	}
	if !mh.node.dir {
		return nil, ntstatus.StatusNotADirectory.Err()
	}
	return srv.childrenLocked(t.nodes(), mh.name), nil
}

func (t *tree) Remove(ctx context.Context, name string) error {
	srv := t.client.srv
	srv.mu.Lock()
	defer srv.mu.Unlock()
	if err := t.enterLocked(OpRemove); err != nil {
		return err
	}
	nodes := t.nodes()
	n, ok := nodes[name]
	if !ok {
		if _, parent := nodes[parentOf(name)]; !parent {
			return ntstatus.StatusObjectPathNotFound.Err()
		}
		return ntstatus.StatusObjectNameNotFound.Err()
	}
	if name == "" {
		return ntstatus.StatusAccessDenied.Err()
	}
	if n.dir && len(srv.childrenLocked(nodes, name)) > 0 {
		return ntstatus.StatusDirectoryNotEmpty.Err()
	}
	delete(nodes, name)
	return nil
}

func (t *tree) Disconnect(ctx context.Context) error {
	srv := t.client.srv
	srv.mu.Lock()
	defer srv.mu.Unlock()
	if err := srv.faultLocked(OpTreeDisconnect); err != nil {
		return err
	}
	srv.stats.TreeDisconnects++
	return nil
}
