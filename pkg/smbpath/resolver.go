package smbpath

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"strings"

	"golang.org/x/sync/singleflight"

	smberrors "github.com/marmos91/smbkit/pkg/errors"
)

var errNoAddresses = errors.New("no addresses returned")

// LookupFunc resolves a host name to its addresses. It has the signature of
// (*net.Resolver).LookupNetIP.
type LookupFunc func(ctx context.Context, network, host string) ([]netip.Addr, error)

// Resolver turns share hosts into network addresses. Literal IPv4 and IPv6
// addresses bypass name resolution. Concurrent lookups of the same name are
// collapsed into a single query.
type Resolver struct {
	lookup LookupFunc
	group  singleflight.Group
}

// NewResolver returns a Resolver backed by r, or by net.DefaultResolver when r is nil.
func NewResolver(r *net.Resolver) *Resolver {
	if r == nil {
		r = net.DefaultResolver
	}
	return &Resolver{lookup: r.LookupNetIP}
}

// NewResolverFunc returns a Resolver that uses lookup for symbolic names.
func NewResolverFunc(lookup LookupFunc) *Resolver {
	return &Resolver{lookup: lookup}
}

// Resolve returns the address host should be dialed at. IPv4 results are
// preferred over IPv6. Failures are reported as HostUnresolvable.
func (r *Resolver) Resolve(ctx context.Context, host string) (netip.Addr, error) {
	literal := strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")
	if addr, err := netip.ParseAddr(literal); err == nil {
		return addr.Unmap(), nil
	}
	if host == "" {
		return netip.Addr{}, smberrors.NewHostUnresolvableError(host, errNoAddresses)
	}

	key := strings.ToLower(host)
	v, err, _ := r.group.Do(key, func() (any, error) {
		addrs, err := r.lookup(ctx, "ip", key)
		if err != nil {
			return netip.Addr{}, err
		}
		return pickAddress(addrs)
	})
	if err != nil {
		return netip.Addr{}, smberrors.NewHostUnresolvableError(host, err)
	}
	return v.(netip.Addr), nil
}

// ResolveAddress resolves the host of addr.
func (r *Resolver) ResolveAddress(ctx context.Context, addr Address) (netip.Addr, error) {
	return r.Resolve(ctx, addr.Host)
}

func pickAddress(addrs []netip.Addr) (netip.Addr, error) {
	if len(addrs) == 0 {
		return netip.Addr{}, errNoAddresses
	}
	for _, a := range addrs {
		if a.Unmap().Is4() {
			return a.Unmap(), nil
		}
	}
	return addrs[0], nil
}
