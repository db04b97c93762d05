package credential

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	smberrors "github.com/marmos91/smbkit/pkg/errors"
)

func TestNewSplitsDomain(t *testing.T) {
	tests := []struct {
		name       string
		domain     string
		username   string
		wantDomain string
		wantUser   string
	}{
		{"EmptyDomain", "", `CORP\alice`, "CORP", "alice"},
		{"RedundantPrefix", "CORP", `CORP\alice`, "CORP", "alice"},
		{"RedundantPrefixCaseInsensitive", "corp", `CORP\alice`, "corp", "alice"},
		{"ConflictingPrefixKept", "OTHER", `CORP\alice`, "OTHER", `CORP\alice`},
		{"PlainUser", "CORP", "alice", "CORP", "alice"},
		{"NoDomainAtAll", "", "alice", "", "alice"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(tt.domain, tt.username, "x", `\\srv\share`)
			require.NoError(t, err)
			assert.Equal(t, tt.wantDomain, c.Domain)
			assert.Equal(t, tt.wantUser, c.Username)
		})
	}
}

func TestNewParsesScope(t *testing.T) {
	c, err := New("CORP", "alice", "x", "smb://SRV/Share/sub")
	require.NoError(t, err)
	assert.Equal(t, "srv", c.Host)
	assert.Equal(t, "Share", c.Share)
	assert.False(t, c.IsHostWide())

	c, err = New("CORP", "alice", "x", `\\srv`)
	require.NoError(t, err)
	assert.True(t, c.IsHostWide())

	_, err = New("CORP", "alice", "x", "/not/a/share")
	require.Error(t, err)
	assert.True(t, smberrors.IsInvalidCredentialError(err))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		domain   string
		username string
		password string
		missing  string
	}{
		{"Complete", "CORP", "alice", "x", ""},
		{"NoDomain", "", "alice", "x", "domain"},
		{"NoUser", "CORP", "", "x", "username"},
		{"NoPassword", "CORP", "alice", "", "password"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(tt.domain, tt.username, tt.password, `\\srv\share`)
			require.NoError(t, err)

			err = c.Validate()
			if tt.missing == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, smberrors.IsInvalidCredentialError(err))
			assert.Contains(t, err.Error(), tt.missing)
		})
	}

	var nilCred *Credential
	assert.True(t, smberrors.IsInvalidCredentialError(nilCred.Validate()))
}

func TestPasswordNeverPrinted(t *testing.T) {
	c, err := New("CORP", "alice", "hunter2", `\\srv\share`)
	require.NoError(t, err)

	assert.NotContains(t, c.String(), "hunter2")
	assert.NotContains(t, fmt.Sprint(c), "hunter2")

	var buf bytes.Buffer
	slog.New(slog.NewTextHandler(&buf, nil)).Info("using", "credential", c)
	assert.NotContains(t, buf.String(), "hunter2")
	assert.Contains(t, buf.String(), "alice")
}

func TestResolvePrecedence(t *testing.T) {
	reg := NewRegistry()
	hostWide, err := reg.RegisterPersistent("CORP", "wildcard", "x", `\\hostA`)
	require.NoError(t, err)
	shareX, err := reg.RegisterPersistent("CORP", "sharex", "x", `\\hostA\shareX`)
	require.NoError(t, err)

	got, ok := reg.Resolve(`\\hostA\shareX\dir\file.txt`)
	require.True(t, ok)
	assert.Same(t, shareX, got)

	got, ok = reg.Resolve("smb://HOSTA/shareY/file.txt")
	require.True(t, ok)
	assert.Same(t, hostWide, got)

	_, ok = reg.Resolve(`\\hostB\shareX`)
	assert.False(t, ok)

	_, ok = reg.Resolve("garbage")
	assert.False(t, ok)
}

func TestResolveShareIsCaseSensitive(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.RegisterPersistent("CORP", "alice", "x", `\\srv\Data`)
	require.NoError(t, err)

	_, ok := reg.Resolve(`\\SRV\Data\a`)
	assert.True(t, ok)
	_, ok = reg.Resolve(`\\srv\data\a`)
	assert.False(t, ok)
}

func TestResolveFirstHostWideWins(t *testing.T) {
	reg := NewRegistry()
	first, err := reg.RegisterPersistent("CORP", "first", "x", `\\srv`)
	require.NoError(t, err)
	_, err = reg.RegisterPersistent("CORP", "second", "x", `\\srv`)
	require.NoError(t, err)

	got, ok := reg.Resolve(`\\srv\any`)
	require.True(t, ok)
	assert.Same(t, first, got)
}

func TestRegisterScenario(t *testing.T) {
	reg := NewRegistry()
	g, err := reg.Register("CORP", `CORP\alice`, "x", `\\srv\share`)
	require.NoError(t, err)
	defer g.Release()

	assert.Equal(t, "CORP", g.Credential().Domain)
	assert.Equal(t, "alice", g.Credential().Username)

	got, ok := reg.Resolve(`\\srv\share\file`)
	require.True(t, ok)
	assert.Same(t, g.Credential(), got)
}

func TestGuardRelease(t *testing.T) {
	reg := NewRegistry()
	g, err := reg.Register("CORP", "alice", "x", `\\srv\share`)
	require.NoError(t, err)
	require.Equal(t, 1, reg.Len())

	g.Release()
	g.Release()
	assert.Equal(t, 0, reg.Len())

	_, ok := reg.Resolve(`\\srv\share`)
	assert.False(t, ok)

	var nilGuard *Guard
	assert.NotPanics(t, nilGuard.Release)
}

func TestWithCredential(t *testing.T) {
	reg := NewRegistry()

	t.Run("ReleasedAfterSuccess", func(t *testing.T) {
		err := reg.WithCredential("CORP", "alice", "x", `\\srv\share`, func(c *Credential) error {
			_, ok := reg.Resolve(`\\srv\share\a`)
			assert.True(t, ok)
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 0, reg.Len())
	})

	t.Run("ReleasedAfterError", func(t *testing.T) {
		boom := errors.New("boom")
		err := reg.WithCredential("CORP", "alice", "x", `\\srv\share`, func(c *Credential) error {
			return boom
		})
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 0, reg.Len())
	})

	t.Run("ReleasedAfterPanic", func(t *testing.T) {
		assert.Panics(t, func() {
			_ = reg.WithCredential("CORP", "alice", "x", `\\srv\share`, func(c *Credential) error {
				panic("boom")
			})
		})
		assert.Equal(t, 0, reg.Len())
	})

	t.Run("InvalidPath", func(t *testing.T) {
		called := false
		err := reg.WithCredential("CORP", "alice", "x", "nope", func(c *Credential) error {
			called = true
			return nil
		})
		assert.Error(t, err)
		assert.False(t, called)
	})
}

func TestListIsSnapshot(t *testing.T) {
	reg := NewRegistry()
	c, err := reg.RegisterPersistent("CORP", "alice", "x", `\\srv\share`)
	require.NoError(t, err)

	list := reg.List()
	require.Len(t, list, 1)
	list[0].Username = "mallory"
	assert.Equal(t, "alice", c.Username)

	reg.Remove(c)
	assert.Len(t, list, 1)
	assert.Empty(t, reg.List())
}

func TestAddIsIdempotent(t *testing.T) {
	reg := NewRegistry()
	c, err := New("CORP", "alice", "x", `\\srv\share`)
	require.NoError(t, err)

	reg.Add(c)
	reg.Add(c)
	reg.Add(nil)
	assert.Equal(t, 1, reg.Len())
	assert.True(t, reg.Remove(c))
	assert.False(t, reg.Remove(c))
}

func TestConcurrentRegistry(t *testing.T) {
	reg := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			path := fmt.Sprintf(`\\srv\share%d`, i%4)
			for j := 0; j < 100; j++ {
				g, err := reg.Register("CORP", "alice", "x", path)
				if !assert.NoError(t, err) {
					return
				}
				reg.Resolve(path)
				_ = reg.List()
				g.Release()
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 0, reg.Len())
}

func TestDefaultRegistry(t *testing.T) {
	g, err := Register("CORP", "alice", "x", `\\default-test\share`)
	require.NoError(t, err)
	defer g.Release()

	_, ok := Default().Resolve(`\\default-test\share`)
	assert.True(t, ok)
	assert.Same(t, Default(), Default())
}
