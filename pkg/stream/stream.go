// Package stream implements a seekable byte stream over an open remote file.
//
// A Stream owns the session, the tree connection and the file handle it
// was opened on. Reads and writes go through the retry executor in chunks
// no larger than the session's ChunkSize, and Close releases the handle,
// the tree and the session in that order whatever happened before.
package stream

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"io/fs"
	"sync"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/marmos91/smbkit/internal/logger"
	"github.com/marmos91/smbkit/internal/telemetry"
	"github.com/marmos91/smbkit/pkg/bufpool"
	"github.com/marmos91/smbkit/pkg/errors"
	"github.com/marmos91/smbkit/pkg/ntstatus"
	"github.com/marmos91/smbkit/pkg/retry"
	"github.com/marmos91/smbkit/pkg/session"
	"github.com/marmos91/smbkit/pkg/transport"
)

// ErrNegativePosition is returned by Seek when the result would be before
// the start of the file.
var ErrNegativePosition = stderrors.New("stream: negative position")

var (
	_ io.ReadWriteSeeker = (*Stream)(nil)
	_ io.Closer          = (*Stream)(nil)
	_ io.WriterTo        = (*Stream)(nil)
	_ io.ReaderFrom      = (*Stream)(nil)
)

// file is the state shared by a Stream and its WithContext copies.
type file struct {
	mu sync.Mutex

	sess   *session.Session
	tree   transport.Tree
	handle transport.Handle
	exec   *retry.Executor
	path   string
	chunk  int

	pos    int64
	length int64
	closed bool
}

// Stream is a remote file opened for reading and writing. Operations hold
// the stream's lock, so concurrent calls are serialized.
type Stream struct {
	ctx context.Context
	f   *file
}

// Open tree-connects sess to share, opens name with req and returns a Stream
// owning sess. path labels errors and spans. On failure everything acquired,
// sess included, is released before returning.
//
// ctx bounds the open only. The stream keeps its values but not its
// cancellation; use WithContext to bound later calls.
func Open(ctx context.Context, sess *session.Session, exec *retry.Executor, share, name, path string, req transport.CreateRequest) (*Stream, error) {
	tree, err := sess.TreeConnect(ctx, share)
	if err != nil {
		sess.Release(ctx)
		return nil, err
	}

	handle, err := retry.Run(ctx, exec, "create", path, func(ctx context.Context) (transport.Handle, error) {
		return tree.Create(transport.HandleContext(ctx), name, req)
	})
	if err != nil {
		disconnect(ctx, tree, path)
		sess.Release(ctx)
		return nil, err
	}

	info, err := retry.Run(ctx, exec, "query_info", path, func(ctx context.Context) (transport.FileInfo, error) {
		return tree.QueryInfo(ctx, handle)
	})
	if err != nil {
		closeHandle(ctx, tree, handle, path)
		disconnect(ctx, tree, path)
		sess.Release(ctx)
		return nil, err
	}
	if info.IsDir {
		closeHandle(ctx, tree, handle, path)
		disconnect(ctx, tree, path)
		sess.Release(ctx)
		return nil, errors.FromStatus("open", path, ntstatus.StatusFileIsADirectory, nil)
	}

	return New(context.WithoutCancel(ctx), sess, tree, handle, exec, path, info.Size), nil
}

// New wraps an open handle. The Stream takes ownership of sess, tree and
// handle; length is the file size at open time.
func New(ctx context.Context, sess *session.Session, tree transport.Tree, handle transport.Handle, exec *retry.Executor, path string, length int64) *Stream {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Stream{
		ctx: ctx,
		f: &file{
			sess:   sess,
			tree:   tree,
			handle: handle,
			exec:   exec,
			path:   path,
			chunk:  sess.ChunkSize(),
			length: length,
		},
	}
}

// WithContext returns a view of s whose operations use ctx. The view shares
// position, length and ownership with s: closing either closes both.
func (s *Stream) WithContext(ctx context.Context) *Stream {
	if ctx == nil {
		panic("nil context")
	}
	return &Stream{ctx: ctx, f: s.f}
}

// Path returns the path the stream was opened with.
func (s *Stream) Path() string { return s.f.path }

// ChunkSize returns the largest single read or write the stream issues.
func (s *Stream) ChunkSize() int { return s.f.chunk }

// Length returns the size known to the stream: the size at open time
// extended by writes past the end and refreshed by Stat and Seek from the end.
func (s *Stream) Length() int64 {
	s.f.mu.Lock()
	defer s.f.mu.Unlock()
	return s.f.length
}

func (f *file) checkOpen(op string) error {
	if f.closed {
		return &fs.PathError{Op: op, Path: f.path, Err: fs.ErrClosed}
	}
	return nil
}

// Read reads up to min(len(p), ChunkSize) bytes at the current position.
// At end of file it returns 0, io.EOF.
func (s *Stream) Read(p []byte) (int, error) {
	f := s.f
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkOpen("read"); err != nil {
		return 0, err
	}
	return f.readLocked(s.ctx, p)
}

func (f *file) readLocked(ctx context.Context, p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	count := min(len(p), f.chunk)
	off := f.pos

	data, err := retry.Run(ctx, f.exec, "read", f.path, func(ctx context.Context) ([]byte, error) {
		return f.tree.Read(ctx, f.handle, off, count)
	})
	if err != nil {
		if st, ok := errors.StatusOf(err); ok && st == ntstatus.StatusEndOfFile {
			return 0, io.EOF
		}
		return 0, err
	}
	if len(data) == 0 {
		return 0, io.EOF
	}

	n := copy(p, data)
	f.pos += int64(n)
	return n, nil
}

// Write writes all of p at the current position in ChunkSize pieces and
// advances the position by the bytes the server acknowledged.
func (s *Stream) Write(p []byte) (int, error) {
	f := s.f
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkOpen("write"); err != nil {
		return 0, err
	}
	return f.writeLocked(s.ctx, p)
}

func (f *file) writeLocked(ctx context.Context, p []byte) (int, error) {
	written := 0
	for written < len(p) {
		chunk := p[written:min(len(p), written+f.chunk)]
		off := f.pos

		n, err := retry.Run(ctx, f.exec, "write", f.path, func(ctx context.Context) (int, error) {
			return f.tree.Write(ctx, f.handle, off, chunk)
		})
		if err != nil {
			return written, err
		}
		if n <= 0 {
			return written, io.ErrShortWrite
		}

		written += n
		f.pos += int64(n)
		f.length = max(f.length, f.pos)
	}
	return written, nil
}

// Seek sets the position for the next Read or Write. io.SeekEnd queries the
// remote size first.
func (s *Stream) Seek(offset int64, whence int) (int64, error) {
	f := s.f
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkOpen("seek"); err != nil {
		return 0, err
	}

	var base int64
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		base = f.pos
	case io.SeekEnd:
		info, err := f.statLocked(s.ctx)
		if err != nil {
			return 0, err
		}
		base = info.Size
	default:
		return 0, fmt.Errorf("stream: invalid whence %d", whence)
	}

	pos := base + offset
	if pos < 0 {
		return 0, ErrNegativePosition
	}
	f.pos = pos
	return pos, nil
}

// Stat queries the remote file and refreshes Length.
func (s *Stream) Stat() (transport.FileInfo, error) {
	f := s.f
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkOpen("stat"); err != nil {
		return transport.FileInfo{}, err
	}
	return f.statLocked(s.ctx)
}

func (f *file) statLocked(ctx context.Context) (transport.FileInfo, error) {
	info, err := retry.Run(ctx, f.exec, "query_info", f.path, func(ctx context.Context) (transport.FileInfo, error) {
		return f.tree.QueryInfo(ctx, f.handle)
	})
	if err != nil {
		return transport.FileInfo{}, err
	}
	f.length = info.Size
	return info, nil
}

// WriteTo copies from the current position to end of file into w, reading
// ChunkSize bytes at a time.
func (s *Stream) WriteTo(w io.Writer) (int64, error) {
	f := s.f
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkOpen("read"); err != nil {
		return 0, err
	}

	ctx, span := f.startCopySpan(s.ctx, telemetry.SpanStreamRead)
	defer span.End()

	buf := bufpool.Get(f.chunk)
	defer bufpool.Put(buf)
	var total int64
	for {
		n, err := f.readLocked(ctx, buf)
		if n > 0 {
			m, werr := w.Write(buf[:n])
			total += int64(m)
			if werr != nil {
				return total, f.endCopySpan(ctx, span, total, werr)
			}
			if m < n {
				return total, f.endCopySpan(ctx, span, total, io.ErrShortWrite)
			}
		}
		if err == io.EOF {
			return total, f.endCopySpan(ctx, span, total, nil)
		}
		if err != nil {
			return total, f.endCopySpan(ctx, span, total, err)
		}
	}
}

// ReadFrom copies r to the stream at the current position until r is
// exhausted, writing ChunkSize bytes at a time.
func (s *Stream) ReadFrom(r io.Reader) (int64, error) {
	f := s.f
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkOpen("write"); err != nil {
		return 0, err
	}

	ctx, span := f.startCopySpan(s.ctx, telemetry.SpanStreamWrite)
	defer span.End()

	buf := bufpool.Get(f.chunk)
	defer bufpool.Put(buf)
	var total int64
	for {
		n, rerr := r.Read(buf)
		if n > 0 {
			m, err := f.writeLocked(ctx, buf[:n])
			total += int64(m)
			if err != nil {
				return total, f.endCopySpan(ctx, span, total, err)
			}
		}
		if rerr == io.EOF {
			return total, f.endCopySpan(ctx, span, total, nil)
		}
		if rerr != nil {
			return total, f.endCopySpan(ctx, span, total, rerr)
		}
	}
}

func (f *file) startCopySpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return telemetry.StartSpan(ctx, name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(telemetry.Path(f.path), telemetry.Offset(f.pos), telemetry.Count(f.chunk)),
	)
}

func (f *file) endCopySpan(ctx context.Context, span trace.Span, total int64, err error) error {
	span.SetAttributes(telemetry.Offset(f.pos))
	if err != nil {
		telemetry.RecordError(ctx, err)
		return err
	}
	span.SetStatus(codes.Ok, "")
	logger.DebugCtx(ctx, "stream copy complete", logger.Path(f.path), logger.Size(total))
	return nil
}

// Close closes the handle, disconnects the tree and releases the session.
// Every step runs even if an earlier one fails; only the handle close error
// is returned. Closing an already closed stream returns nil.
func (s *Stream) Close() error {
	f := s.f
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true

	ctx := context.WithoutCancel(s.ctx)
	err := f.tree.Close(ctx, f.handle)
	if err != nil {
		logger.DebugCtx(ctx, "close handle failed", logger.Path(f.path), logger.Err(err))
		err = errors.Wrap("close", f.path, err)
	}
	disconnect(ctx, f.tree, f.path)
	f.sess.Release(ctx)
	return err
}

func closeHandle(ctx context.Context, tree transport.Tree, h transport.Handle, path string) {
	if err := tree.Close(context.WithoutCancel(ctx), h); err != nil {
		logger.DebugCtx(ctx, "close handle failed", logger.Path(path), logger.Err(err))
	}
}

func disconnect(ctx context.Context, tree transport.Tree, path string) {
	if err := tree.Disconnect(context.WithoutCancel(ctx)); err != nil {
		logger.DebugCtx(ctx, "tree disconnect failed", logger.Path(path), logger.Share(tree.Share()), logger.Err(err))
	}
}
