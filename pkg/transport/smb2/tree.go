package smb2

import (
	"context"
	"errors"
	"io"
	"os"

	gosmb2 "github.com/cloudsoda/go-smb2"

	"github.com/marmos91/smbkit/pkg/ntstatus"
	"github.com/marmos91/smbkit/pkg/transport"
)

// File attribute bits reported in FileInfo.Attributes.
const (
	attrDirectory = 0x10
	attrNormal    = 0x80
)

type handle struct {
	name string
	file *gosmb2.File
}

func (h *handle) Name() string { return h.name }

type tree struct {
	share string
	fs    *gosmb2.Share
}

var _ transport.Tree = (*tree)(nil)

func (t *tree) Share() string { return t.share }

func (t *tree) with(ctx context.Context) *gosmb2.Share {
	return t.fs.WithContext(ctx)
}

func asHandle(h transport.Handle) (*handle, error) {
	sh, ok := h.(*handle)
	if !ok || sh.file == nil {
		return nil, ntstatus.StatusInvalidHandle.Err()
	}
	return sh, nil
}

// openFlags maps an SMB2 create disposition to the os flags go-smb2
// translates back into a disposition.
func openFlags(req transport.CreateRequest) int {
	var flag int
	switch {
	case req.Access&transport.AccessReadWrite == transport.AccessReadWrite:
		flag = os.O_RDWR
	case req.Access&transport.AccessWrite != 0:
		flag = os.O_WRONLY
	default:
		flag = os.O_RDONLY
	}
	switch req.Disposition {
	case transport.FileCreate:
		flag |= os.O_CREATE | os.O_EXCL
	case transport.FileOpenIf:
		flag |= os.O_CREATE
	case transport.FileOverwrite:
		flag |= os.O_TRUNC
	case transport.FileOverwriteIf, transport.FileSupersede:
		flag |= os.O_CREATE | os.O_TRUNC
	}
	return flag
}

func (t *tree) Create(ctx context.Context, name string, req transport.CreateRequest) (transport.Handle, error) {
	fs := t.with(ctx)
	if req.Directory && req.Disposition.Creates() {
		err := fs.Mkdir(name, 0o755)
		if err != nil && !(req.Disposition != transport.FileCreate && errors.Is(err, os.ErrExist)) {
			return nil, translateError(err)
		}
		req.Disposition = transport.FileOpen
	}
	// The file keeps the share's context for every later request.
	f, err := t.with(transport.HandleContext(ctx)).OpenFile(name, openFlags(req), 0o666)
	if err != nil {
		return nil, translateError(err)
	}
	if req.Directory {
		fi, err := f.Stat()
		if err == nil && !fi.IsDir() {
			_ = f.Close()
			return nil, ntstatus.StatusNotADirectory.Err()
		}
	}
	return &handle{name: name, file: f}, nil
}

func (t *tree) Close(ctx context.Context, h transport.Handle) error {
	sh, err := asHandle(h)
	if err != nil {
		return err
	}
	err = sh.file.Close()
	sh.file = nil
	return translateError(err)
}

func (t *tree) Read(ctx context.Context, h transport.Handle, off int64, count int) ([]byte, error) {
	sh, err := asHandle(h)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, count)
	n, err := sh.file.ReadAt(buf, off)
	if n > 0 && (err == nil || errors.Is(err, io.EOF)) {
		return buf[:n], nil
	}
	if err == nil {
		return nil, ntstatus.StatusEndOfFile.Err()
	}
	return nil, translateError(err)
}

func (t *tree) Write(ctx context.Context, h transport.Handle, off int64, data []byte) (int, error) {
	sh, err := asHandle(h)
	if err != nil {
		return 0, err
	}
	n, err := sh.file.WriteAt(data, off)
	return n, translateError(err)
}

func (t *tree) QueryInfo(ctx context.Context, h transport.Handle) (transport.FileInfo, error) {
	sh, err := asHandle(h)
	if err != nil {
		return transport.FileInfo{}, err
	}
	fi, err := sh.file.Stat()
	if err != nil {
		return transport.FileInfo{}, translateError(err)
	}
	return fileInfo(fi), nil
}

func (t *tree) ReadDir(ctx context.Context, h transport.Handle) ([]transport.FileInfo, error) {
	sh, err := asHandle(h)
	if err != nil {
		return nil, err
	}
	entries, err := sh.file.Readdir(-1)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, translateError(err)
	}
	out := make([]transport.FileInfo, 0, len(entries))
	for _, fi := range entries {
		out = append(out, fileInfo(fi))
	}
	return out, nil
}

func (t *tree) Remove(ctx context.Context, name string) error {
	return translateError(t.with(ctx).Remove(name))
}

func (t *tree) Disconnect(ctx context.Context) error {
	return translateError(t.with(ctx).Umount())
}

// fileInfo converts the os.FileInfo go-smb2 returns. The full timestamp and
// attribute set is only available on the concrete *FileStat.
func fileInfo(fi os.FileInfo) transport.FileInfo {
	out := transport.FileInfo{
		Name:       fi.Name(),
		Size:       fi.Size(),
		IsDir:      fi.IsDir(),
		ModTime:    fi.ModTime(),
		AccessTime: fi.ModTime(),
		Attributes: attrNormal,
	}
	if fi.IsDir() {
		out.Attributes = attrDirectory
		out.Size = 0
	}
	if st, ok := fi.(*gosmb2.FileStat); ok {
		out.Attributes = st.FileAttributes
		out.CreationTime = st.CreationTime
		out.AccessTime = st.LastAccessTime
	}
	return out
}
