package smbfs

import (
	"context"

	"github.com/marmos91/smbkit/internal/logger"
	"github.com/marmos91/smbkit/pkg/errors"
	"github.com/marmos91/smbkit/pkg/ntstatus"
	"github.com/marmos91/smbkit/pkg/session"
	"github.com/marmos91/smbkit/pkg/transport"
)

// Exists reports whether path names an existing file or directory. Only a
// confirmed-absent status yields false; access, connectivity and credential
// failures are returned as errors. A share root always exists.
func (f *FileSystem) Exists(ctx context.Context, scope session.Scope, path string) (bool, error) {
	addr, err := f.ResolvePath(path)
	if err != nil {
		return false, err
	}
	if addr.IsShareRoot() {
		return true, nil
	}
	ctx = withLogContext(ctx, "exists", addr, scope)

	h, err := f.openHandle(ctx, scope, addr, path, transport.OpenAttributes())
	if err != nil {
		if f.IsConfirmedAbsent(err) {
			logger.DebugCtx(ctx, "path does not exist", logger.Path(path), logger.Err(err))
			return false, nil
		}
		return false, err
	}
	h.Close(ctx)
	return true, nil
}

// Stat returns the attributes of path.
func (f *FileSystem) Stat(ctx context.Context, scope session.Scope, path string) (transport.FileInfo, error) {
	addr, err := f.ResolvePath(path)
	if err != nil {
		return transport.FileInfo{}, err
	}
	ctx = withLogContext(ctx, "stat", addr, scope)

	h, err := f.openHandle(ctx, scope, addr, path, transport.OpenAttributes())
	if err != nil {
		return transport.FileInfo{}, err
	}
	defer h.Close(ctx)
	return h.Info(ctx)
}

// ReadDir lists the directory at path.
func (f *FileSystem) ReadDir(ctx context.Context, scope session.Scope, path string) ([]transport.FileInfo, error) {
	addr, err := f.ResolvePath(path)
	if err != nil {
		return nil, err
	}
	ctx = withLogContext(ctx, "read_dir", addr, scope)

	req := transport.OpenRead()
	req.Directory = true
	h, err := f.openHandle(ctx, scope, addr, path, req)
	if err != nil {
		return nil, err
	}
	defer h.Close(ctx)

	entries, err := h.ReadDir(ctx)
	if err != nil {
		return nil, err
	}
	logger.DebugCtx(ctx, "directory listed", logger.Path(path), logger.Entries(len(entries)))
	return entries, nil
}

// Mkdir creates the directory at path. Its parent must exist.
func (f *FileSystem) Mkdir(ctx context.Context, scope session.Scope, path string) error {
	addr, err := f.ResolvePath(path)
	if err != nil {
		return err
	}
	if addr.IsShareRoot() {
		return errors.FromStatus("mkdir", path, ntstatus.StatusObjectNameCollision, nil)
	}
	ctx = withLogContext(ctx, "mkdir", addr, scope)

	req := transport.CreateRequest{
		Access:      transport.AccessRead,
		Disposition: transport.FileCreate,
		Directory:   true,
	}
	h, err := f.openHandle(ctx, scope, addr, path, req)
	if err != nil {
		return err
	}
	h.Close(ctx)
	return nil
}

// Remove deletes the file or empty directory at path.
func (f *FileSystem) Remove(ctx context.Context, scope session.Scope, path string) error {
	addr, err := f.ResolvePath(path)
	if err != nil {
		return err
	}
	if addr.IsShareRoot() {
		return errors.NewPathInvalidError(path, "cannot remove a share root")
	}
	ctx = withLogContext(ctx, "remove", addr, scope)

	return f.withTree(ctx, scope, addr, func(tree transport.Tree) error {
		return f.exec.Do(ctx, "remove", path, func(ctx context.Context) error {
			return tree.Remove(ctx, addr.Relative)
		})
	})
}
