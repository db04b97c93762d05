package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/smbkit/pkg/ntstatus"
	"github.com/marmos91/smbkit/pkg/transport"
)

func newLoggedIn(t *testing.T, srv *Server) transport.Client {
	t.Helper()
	c := srv.Factory().NewClient(65536)
	require.NoError(t, c.Connect(context.Background(), transport.Endpoint{}))
	require.NoError(t, c.Login(context.Background(), "CORP", "alice", "secret"))
	return c
}

func requireStatus(t *testing.T, want ntstatus.Status, err error) {
	t.Helper()
	got, ok := ntstatus.FromError(err)
	require.True(t, ok, "expected %s, got %v", want, err)
	assert.Equal(t, want, got)
}

func TestLogin(t *testing.T) {
	srv := NewServer()
	srv.AddUser("CORP", "alice", "secret")

	c := srv.Factory().NewClient(0)
	require.NoError(t, c.Connect(context.Background(), transport.Endpoint{}))
	requireStatus(t, ntstatus.StatusLogonFailure, c.Login(context.Background(), "CORP", "alice", "wrong"))
	require.NoError(t, c.Login(context.Background(), "corp", "ALICE", "secret"))
	assert.NoError(t, c.Ping(context.Background()))

	srv.KillSessions()
	assert.ErrorIs(t, c.Ping(context.Background()), ErrConnectionReset)
}

func TestFileLifecycle(t *testing.T) {
	srv := NewServer()
	srv.AddUser("CORP", "alice", "secret")
	srv.AddShare("docs")
	ctx := context.Background()

	c := newLoggedIn(t, srv)
	_, err := c.TreeConnect(ctx, "nope")
	requireStatus(t, ntstatus.StatusBadNetworkName, err)

	tr, err := c.TreeConnect(ctx, "docs")
	require.NoError(t, err)

	_, err = tr.Create(ctx, `missing\a.txt`, transport.CreateTruncate())
	requireStatus(t, ntstatus.StatusObjectPathNotFound, err)

	_, err = tr.Create(ctx, "a.txt", transport.OpenRead())
	requireStatus(t, ntstatus.StatusObjectNameNotFound, err)

	h, err := tr.Create(ctx, "a.txt", transport.CreateTruncate())
	require.NoError(t, err)
	n, err := tr.Write(ctx, h, 0, []byte("hello world"))
	require.NoError(t, err)
	assert.Equal(t, 11, n)

	data, err := tr.Read(ctx, h, 6, 100)
	require.NoError(t, err)
	assert.Equal(t, "world", string(data))

	_, err = tr.Read(ctx, h, 11, 10)
	requireStatus(t, ntstatus.StatusEndOfFile, err)

	info, err := tr.QueryInfo(ctx, h)
	require.NoError(t, err)
	assert.Equal(t, int64(11), info.Size)
	assert.Equal(t, "a.txt", info.Name)

	require.NoError(t, tr.Close(ctx, h))
	requireStatus(t, ntstatus.StatusFileClosed, tr.Close(ctx, h))
	assert.Equal(t, 0, srv.Stats().OpenHandles)

	_, err = tr.Create(ctx, "a.txt", transport.CreateRequest{Access: transport.AccessWrite, Disposition: transport.FileCreate})
	requireStatus(t, ntstatus.StatusObjectNameCollision, err)

	got, ok := srv.ReadFile("docs", "a.txt")
	require.True(t, ok)
	assert.Equal(t, "hello world", string(got))
}

func TestReadDirAndRemove(t *testing.T) {
	srv := NewServer()
	srv.AddUser("CORP", "alice", "secret")
	srv.AddShare("docs")
	srv.WriteFile("docs", `dir\b.txt`, []byte("b"))
	srv.WriteFile("docs", `dir\a.txt`, []byte("a"))
	ctx := context.Background()

	tr, err := newLoggedIn(t, srv).TreeConnect(ctx, "docs")
	require.NoError(t, err)

	h, err := tr.Create(ctx, "dir", transport.OpenRead())
	require.NoError(t, err)
	entries, err := tr.ReadDir(ctx, h)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "a.txt", entries[0].Name)
	assert.Equal(t, "b.txt", entries[1].Name)
	require.NoError(t, tr.Close(ctx, h))

	requireStatus(t, ntstatus.StatusDirectoryNotEmpty, tr.Remove(ctx, "dir"))
	require.NoError(t, tr.Remove(ctx, `dir\a.txt`))
	require.NoError(t, tr.Remove(ctx, `dir\b.txt`))
	require.NoError(t, tr.Remove(ctx, "dir"))
	requireStatus(t, ntstatus.StatusObjectNameNotFound, tr.Remove(ctx, "dir"))
}

func TestFaultInjection(t *testing.T) {
	srv := NewServer()
	srv.AddUser("CORP", "alice", "secret")
	srv.AddShare("docs")
	srv.WriteFile("docs", "f", []byte("x"))
	ctx := context.Background()

	tr, err := newLoggedIn(t, srv).TreeConnect(ctx, "docs")
	require.NoError(t, err)

	srv.FailNextStatus(OpCreate, ntstatus.StatusPending, ntstatus.StatusPending)
	_, err = tr.Create(ctx, "f", transport.OpenRead())
	requireStatus(t, ntstatus.StatusPending, err)
	_, err = tr.Create(ctx, "f", transport.OpenRead())
	requireStatus(t, ntstatus.StatusPending, err)
	h, err := tr.Create(ctx, "f", transport.OpenRead())
	require.NoError(t, err)

	srv.FailAlways(OpRead, ntstatus.StatusSharingViolation.Err())
	_, err = tr.Read(ctx, h, 0, 1)
	requireStatus(t, ntstatus.StatusSharingViolation, err)
	srv.ClearFaults()
	_, err = tr.Read(ctx, h, 0, 1)
	require.NoError(t, err)

	assert.Equal(t, 3, srv.Stats().Calls[OpCreate])
}

func TestOversizedRequestsRejected(t *testing.T) {
	srv := NewServer()
	srv.AddUser("CORP", "alice", "secret")
	srv.AddShare("docs")
	srv.SetMaxSizes(4, 4)
	ctx := context.Background()

	tr, err := newLoggedIn(t, srv).TreeConnect(ctx, "docs")
	require.NoError(t, err)
	h, err := tr.Create(ctx, "f", transport.CreateTruncate())
	require.NoError(t, err)

	_, err = tr.Write(ctx, h, 0, []byte("12345"))
	requireStatus(t, ntstatus.StatusInvalidParameter, err)
	_, err = tr.Read(ctx, h, 0, 5)
	requireStatus(t, ntstatus.StatusInvalidParameter, err)
}

func TestHandleBoundToCreateContext(t *testing.T) {
	srv := NewServer()
	srv.AddUser("CORP", "alice", "secret")
	srv.AddShare("docs")
	srv.WriteFile("docs", "a.txt", []byte("hello"))

	tr, err := newLoggedIn(t, srv).TreeConnect(context.Background(), "docs")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	bound, err := tr.Create(ctx, "a.txt", transport.OpenRead())
	require.NoError(t, err)
	detached, err := tr.Create(transport.HandleContext(ctx), "a.txt", transport.OpenRead())
	require.NoError(t, err)
	cancel()

	_, err = tr.Read(context.Background(), bound, 0, 5)
	assert.ErrorIs(t, err, context.Canceled)
	_, err = tr.QueryInfo(context.Background(), bound)
	assert.ErrorIs(t, err, context.Canceled)

	data, err := tr.Read(context.Background(), detached, 0, 5)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
	require.NoError(t, tr.Close(context.Background(), detached))
}

func TestWriteFileUpdatesOpenHandles(t *testing.T) {
	srv := NewServer()
	srv.AddUser("CORP", "alice", "secret")
	srv.AddShare("docs")
	srv.WriteFile("docs", "a.txt", []byte("abc"))
	ctx := context.Background()

	tr, err := newLoggedIn(t, srv).TreeConnect(ctx, "docs")
	require.NoError(t, err)
	h, err := tr.Create(ctx, "a.txt", transport.OpenRead())
	require.NoError(t, err)

	srv.WriteFile("docs", "a.txt", []byte("abcdef"))
	info, err := tr.QueryInfo(ctx, h)
	require.NoError(t, err)
	assert.Equal(t, int64(6), info.Size)

	data, err := tr.Read(ctx, h, 3, 10)
	require.NoError(t, err)
	assert.Equal(t, "def", string(data))
}
