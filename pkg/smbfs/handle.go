package smbfs

import (
	"context"

	"github.com/marmos91/smbkit/internal/logger"
	"github.com/marmos91/smbkit/pkg/session"
	"github.com/marmos91/smbkit/pkg/smbpath"
	"github.com/marmos91/smbkit/pkg/transport"
)

// Handle is an open remote object together with the tree and the pooled
// session it was opened on. Close releases all three.
type Handle struct {
	fs     *FileSystem
	addr   smbpath.Address
	path   string
	sess   *session.Session
	tree   transport.Tree
	handle transport.Handle
	closed bool
}

// Path returns the path the handle was opened with.
func (h *Handle) Path() string { return h.path }

// Address returns the parsed path.
func (h *Handle) Address() smbpath.Address { return h.addr }

// Session returns the session the handle was opened on.
func (h *Handle) Session() *session.Session { return h.sess }

// Tree returns the tree connection.
func (h *Handle) Tree() transport.Tree { return h.tree }

// Raw returns the transport handle.
func (h *Handle) Raw() transport.Handle { return h.handle }

// Info queries the object's attributes.
func (h *Handle) Info(ctx context.Context) (transport.FileInfo, error) {
	var info transport.FileInfo
	err := h.fs.exec.Do(ctx, "query_info", h.path, func(ctx context.Context) error {
		var err error
		info, err = h.tree.QueryInfo(ctx, h.handle)
		return err
	})
	return info, err
}

// ReadDir lists the directory the handle refers to.
func (h *Handle) ReadDir(ctx context.Context) ([]transport.FileInfo, error) {
	var entries []transport.FileInfo
	err := h.fs.exec.Do(ctx, "read_dir", h.path, func(ctx context.Context) error {
		var err error
		entries, err = h.tree.ReadDir(ctx, h.handle)
		return err
	})
	return entries, err
}

// Close closes the handle, disconnects the tree and releases the session.
// Failures are logged and never returned: the handle is being discarded
// regardless. Close is idempotent.
func (h *Handle) Close(ctx context.Context) {
	if h == nil || h.closed {
		return
	}
	h.closed = true
	ctx = context.WithoutCancel(ctx)

	if err := h.tree.Close(ctx, h.handle); err != nil {
		logger.DebugCtx(ctx, "close handle failed", logger.Path(h.path), logger.Err(err))
	}
	if err := h.tree.Disconnect(ctx); err != nil {
		logger.DebugCtx(ctx, "tree disconnect failed", logger.Path(h.path), logger.Err(err))
	}
	h.fs.sessions.Release(ctx, h.sess)
}

// OpenHandle opens path with req on a pooled session of scope. The caller
// must Close the handle; WithHandle does so automatically.
func (f *FileSystem) OpenHandle(ctx context.Context, scope session.Scope, path string, req transport.CreateRequest) (*Handle, error) {
	addr, err := f.ResolvePath(path)
	if err != nil {
		return nil, err
	}
	return f.openHandle(ctx, scope, addr, path, req)
}

func (f *FileSystem) openHandle(ctx context.Context, scope session.Scope, addr smbpath.Address, path string, req transport.CreateRequest) (*Handle, error) {
	sess, err := f.AcquireSession(ctx, scope, addr)
	if err != nil {
		return nil, err
	}

	tree, err := sess.TreeConnect(ctx, addr.Share)
	if err != nil {
		f.sessions.Release(ctx, sess)
		return nil, err
	}

	var handle transport.Handle
	err = f.exec.Do(ctx, "create", path, func(ctx context.Context) error {
		var err error
		handle, err = tree.Create(transport.HandleContext(ctx), addr.Relative, req)
		return err
	})
	if err != nil {
		if derr := tree.Disconnect(context.WithoutCancel(ctx)); derr != nil {
			logger.DebugCtx(ctx, "tree disconnect failed", logger.Path(path), logger.Err(derr))
		}
		f.sessions.Release(ctx, sess)
		return nil, err
	}

	return &Handle{
		fs:     f,
		addr:   addr,
		path:   path,
		sess:   sess,
		tree:   tree,
		handle: handle,
	}, nil
}

// WithHandle opens path, calls fn with the handle and closes it on every
// exit path, panics included. fn's error is returned.
func (f *FileSystem) WithHandle(ctx context.Context, scope session.Scope, path string, req transport.CreateRequest, fn func(ctx context.Context, h *Handle) error) error {
	h, err := f.OpenHandle(ctx, scope, path, req)
	if err != nil {
		return err
	}
	defer h.Close(ctx)
	return fn(ctx, h)
}

// withTree runs fn on a tree connection of a pooled session for addr, for
// operations that need no handle.
func (f *FileSystem) withTree(ctx context.Context, scope session.Scope, addr smbpath.Address, fn func(tree transport.Tree) error) error {
	sess, err := f.AcquireSession(ctx, scope, addr)
	if err != nil {
		return err
	}
	defer f.sessions.Release(ctx, sess)

	tree, err := sess.TreeConnect(ctx, addr.Share)
	if err != nil {
		return err
	}
	defer func() {
		if err := tree.Disconnect(context.WithoutCancel(ctx)); err != nil {
			logger.DebugCtx(ctx, "tree disconnect failed", logger.Share(addr.Share), logger.Err(err))
		}
	}()
	return fn(tree)
}
