package smbpath

import (
	"context"
	"errors"
	"net/netip"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	smberrors "github.com/marmos91/smbkit/pkg/errors"
)

func TestResolveLiteralBypassesLookup(t *testing.T) {
	var calls atomic.Int32
	r := NewResolverFunc(func(ctx context.Context, network, host string) ([]netip.Addr, error) {
		calls.Add(1)
		return nil, errors.New("unexpected lookup")
	})

	for _, host := range []string{"10.1.2.3", "::1", "[fe80::1]"} {
		addr, err := r.Resolve(context.Background(), host)
		require.NoError(t, err, host)
		assert.True(t, addr.IsValid())
	}
	assert.Equal(t, int32(0), calls.Load())
}

func TestResolvePrefersIPv4(t *testing.T) {
	r := NewResolverFunc(func(ctx context.Context, network, host string) ([]netip.Addr, error) {
		assert.Equal(t, "fileserver", host)
		return []netip.Addr{
			netip.MustParseAddr("2001:db8::10"),
			netip.MustParseAddr("192.0.2.10"),
		}, nil
	})

	addr, err := r.Resolve(context.Background(), "FileServer")
	require.NoError(t, err)
	assert.Equal(t, netip.MustParseAddr("192.0.2.10"), addr)
}

func TestResolveIPv6Only(t *testing.T) {
	r := NewResolverFunc(func(ctx context.Context, network, host string) ([]netip.Addr, error) {
		return []netip.Addr{netip.MustParseAddr("2001:db8::10")}, nil
	})

	addr, err := r.Resolve(context.Background(), "v6host")
	require.NoError(t, err)
	assert.Equal(t, netip.MustParseAddr("2001:db8::10"), addr)
}

func TestResolveFailureIsHostUnresolvable(t *testing.T) {
	r := NewResolverFunc(func(ctx context.Context, network, host string) ([]netip.Addr, error) {
		return nil, errors.New("no such host")
	})

	_, err := r.Resolve(context.Background(), "nowhere")
	require.Error(t, err)
	assert.True(t, smberrors.IsHostUnresolvableError(err))
	assert.False(t, smberrors.IsNotFoundError(err))

	empty := NewResolverFunc(func(ctx context.Context, network, host string) ([]netip.Addr, error) {
		return nil, nil
	})
	_, err = empty.Resolve(context.Background(), "blank")
	assert.True(t, smberrors.IsHostUnresolvableError(err))
}

func TestResolveCollapsesConcurrentLookups(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	r := NewResolverFunc(func(ctx context.Context, network, host string) ([]netip.Addr, error) {
		calls.Add(1)
		<-release
		return []netip.Addr{netip.MustParseAddr("192.0.2.1")}, nil
	})

	const callers = 8
	var wg sync.WaitGroup
	wg.Add(callers)
	for i := 0; i < callers; i++ {
		go func() {
			defer wg.Done()
			addr, err := r.Resolve(context.Background(), "srv")
			assert.NoError(t, err)
			assert.Equal(t, netip.MustParseAddr("192.0.2.1"), addr)
		}()
	}

	// Give the goroutines time to join the in-flight lookup.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Less(t, calls.Load(), int32(callers))
}
