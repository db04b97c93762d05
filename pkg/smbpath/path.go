// Package smbpath parses and rebuilds the two surface syntaxes that address
// a location on an SMB share:
//
//	\\host\share\dir\file.txt          (UNC)
//	smb://host[:port]/share/dir/file.txt (URI)
//
// Both normalize to the same Address. The relative part is kept in the UNC
// convention (backslash separated, no leading or trailing separator) so that
// it can be handed to the transport unchanged. Hosts compare
// case-insensitively; share and relative segments are case-sensitive.
package smbpath

import (
	"net"
	"net/url"
	"strconv"
	"strings"

	smberrors "github.com/marmos91/smbkit/pkg/errors"
)

// Scheme is the URI scheme recognized for the hierarchical syntax.
const Scheme = "smb"

const (
	uncPrefix = `\\`
	uriPrefix = Scheme + "://"
	separator = `\`
)

// Syntax identifies which surface syntax a path was written in.
type Syntax int

const (
	SyntaxUNC Syntax = iota
	SyntaxURI
)

func (s Syntax) String() string {
	if s == SyntaxURI {
		return "uri"
	}
	return "unc"
}

// Address is a parsed share location.
//
// Host is lower-cased and IPv6 literals are stored without brackets. Port is
// only expressible in the URI syntax; zero means the transport default. Share
// is empty for host-level addresses such as \\host. Relative uses backslash
// separators and is empty at the share root.
type Address struct {
	Host     string
	Port     int
	Share    string
	Relative string
	Syntax   Syntax
}

// IsUNC reports whether path starts with the UNC prefix.
func IsUNC(path string) bool {
	return strings.HasPrefix(path, uncPrefix)
}

// IsURI reports whether path starts with smb:// (scheme case-insensitive).
func IsURI(path string) bool {
	return len(path) >= len(uriPrefix) && strings.EqualFold(path[:len(uriPrefix)], uriPrefix)
}

// IsShareAddress reports whether path is recognized as either syntax and
// names at least a host.
func IsShareAddress(path string) bool {
	_, err := Parse(path)
	return err == nil
}

// Parse splits path into an Address. The share may be empty when path only
// names a host. Trailing separators, repeated separators and "." segments
// are ignored; ".." removes the previous segment but may not climb above
// the share.
func Parse(path string) (Address, error) {
	switch {
	case IsUNC(path):
		return parseUNC(path)
	case IsURI(path):
		return parseURI(path)
	default:
		return Address{}, smberrors.NewPathInvalidError(path, "not a UNC or smb:// path")
	}
}

// ParseShare is Parse for paths that must name a share.
func ParseShare(path string) (Address, error) {
	addr, err := Parse(path)
	if err != nil {
		return Address{}, err
	}
	if addr.Share == "" {
		return Address{}, smberrors.NewPathInvalidError(path, "missing share name")
	}
	return addr, nil
}

func parseUNC(path string) (Address, error) {
	segs := splitSegments(path[len(uncPrefix):])
	if len(segs) == 0 {
		return Address{}, smberrors.NewPathInvalidError(path, "missing host")
	}
	addr := Address{Host: strings.ToLower(segs[0]), Syntax: SyntaxUNC}
	return addr.withSegments(path, segs[1:])
}

func parseURI(path string) (Address, error) {
	authority, tail, _ := strings.Cut(path[len(uriPrefix):], "/")
	if at := strings.LastIndexByte(authority, '@'); at >= 0 {
		authority = authority[at+1:]
	}
	host, port, err := splitAuthority(authority)
	if err != nil || host == "" {
		return Address{}, smberrors.NewPathInvalidError(path, "missing or malformed host")
	}

	segs := splitSegments(tail)
	for i, s := range segs {
		if dec, err := url.PathUnescape(s); err == nil && !strings.ContainsAny(dec, `\/`) {
			segs[i] = dec
		}
	}

	addr := Address{Host: strings.ToLower(host), Port: port, Syntax: SyntaxURI}
	return addr.withSegments(path, segs)
}

func splitAuthority(authority string) (string, int, error) {
	if authority == "" {
		return "", 0, nil
	}
	if strings.HasPrefix(authority, "[") && strings.HasSuffix(authority, "]") {
		return authority[1 : len(authority)-1], 0, nil
	}
	if !strings.Contains(authority, ":") {
		return authority, 0, nil
	}
	host, portStr, err := net.SplitHostPort(authority)
	if err != nil {
		return "", 0, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		return "", 0, strconv.ErrRange
	}
	return host, port, nil
}

// Both separators are accepted in either syntax.
func isSeparator(r rune) bool {
	return r == '\\' || r == '/'
}

func splitSegments(s string) []string {
	return strings.FieldsFunc(s, isSeparator)
}

// withSegments assigns share and relative from segs, resolving dot segments.
func (a Address) withSegments(orig string, segs []string) (Address, error) {
	if len(segs) == 0 {
		return a, nil
	}
	if segs[0] == "." || segs[0] == ".." {
		return Address{}, smberrors.NewPathInvalidError(orig, "invalid share name")
	}
	a.Share = segs[0]

	rel := make([]string, 0, len(segs)-1)
	for _, s := range segs[1:] {
		switch s {
		case ".":
		case "..":
			if len(rel) == 0 {
				return Address{}, smberrors.NewPathInvalidError(orig, "path escapes the share root")
			}
			rel = rel[:len(rel)-1]
		default:
			rel = append(rel, s)
		}
	}
	a.Relative = strings.Join(rel, separator)
	return a, nil
}

// Segments returns the relative path split into its components.
func (a Address) Segments() []string {
	if a.Relative == "" {
		return nil
	}
	return strings.Split(a.Relative, separator)
}

// IsShareRoot reports whether a names a share with no relative path.
func (a Address) IsShareRoot() bool {
	return a.Share != "" && a.Relative == ""
}

// ShareRoot returns a with the relative path removed.
func (a Address) ShareRoot() Address {
	a.Relative = ""
	return a
}

// WithRelative returns a copy of a pointing at rel below the same share.
// rel may use either separator.
func (a Address) WithRelative(rel string) Address {
	a.Relative = strings.Join(splitSegments(rel), separator)
	return a
}

// Parent returns the containing directory. The parent of a share root is
// the share root itself.
func (a Address) Parent() Address {
	if i := strings.LastIndex(a.Relative, separator); i >= 0 {
		a.Relative = a.Relative[:i]
	} else {
		a.Relative = ""
	}
	return a
}

// Name returns the last relative segment, the share name at the share root,
// or the host for host-level addresses.
func (a Address) Name() string {
	switch {
	case a.Relative != "":
		if i := strings.LastIndex(a.Relative, separator); i >= 0 {
			return a.Relative[i+1:]
		}
		return a.Relative
	case a.Share != "":
		return a.Share
	default:
		return a.Host
	}
}

// Join appends elems below a. Each element may itself contain separators.
func (a Address) Join(elems ...string) (Address, error) {
	var segs []string
	if a.Share != "" {
		segs = append(segs, a.Share)
		segs = append(segs, a.Segments()...)
	}
	for _, e := range elems {
		segs = append(segs, splitSegments(e)...)
	}
	base := Address{Host: a.Host, Port: a.Port, Syntax: a.Syntax}
	return base.withSegments(a.String(), segs)
}

// Equal compares two addresses ignoring the surface syntax.
func (a Address) Equal(b Address) bool {
	return strings.EqualFold(a.Host, b.Host) &&
		a.Port == b.Port &&
		a.Share == b.Share &&
		a.Relative == b.Relative
}

// HostPort returns the host with brackets added for IPv6 literals.
func (a Address) HostPort() string {
	if a.Port != 0 {
		return net.JoinHostPort(a.Host, strconv.Itoa(a.Port))
	}
	if strings.Contains(a.Host, ":") {
		return "[" + a.Host + "]"
	}
	return a.Host
}

// String rebuilds the canonical path in the syntax a was parsed from.
func (a Address) String() string {
	var b strings.Builder
	if a.Syntax == SyntaxURI {
		b.WriteString(uriPrefix)
		b.WriteString(a.HostPort())
		if a.Share != "" {
			b.WriteByte('/')
			b.WriteString(url.PathEscape(a.Share))
		}
		for _, s := range a.Segments() {
			b.WriteByte('/')
			b.WriteString(url.PathEscape(s))
		}
		return b.String()
	}

	b.WriteString(uncPrefix)
	b.WriteString(a.Host)
	if a.Share != "" {
		b.WriteString(separator)
		b.WriteString(a.Share)
	}
	if a.Relative != "" {
		b.WriteString(separator)
		b.WriteString(a.Relative)
	}
	return b.String()
}

// ============================================================================
// String-level helpers
// ============================================================================

// Parent returns the parent of path in the same syntax.
func Parent(path string) (string, error) {
	addr, err := ParseShare(path)
	if err != nil {
		return "", err
	}
	return addr.Parent().String(), nil
}

// LastSegment returns the final component of path.
func LastSegment(path string) (string, error) {
	addr, err := Parse(path)
	if err != nil {
		return "", err
	}
	return addr.Name(), nil
}

// ShareRoot returns the \\host\share or smb://host/share prefix of path.
func ShareRoot(path string) (string, error) {
	addr, err := ParseShare(path)
	if err != nil {
		return "", err
	}
	return addr.ShareRoot().String(), nil
}

// BuildShareRoot builds a share root for host and share in the syntax of ref.
// Paths that are not URIs produce UNC.
func BuildShareRoot(ref, host, share string) string {
	syntax := SyntaxUNC
	if IsURI(ref) {
		syntax = SyntaxURI
	}
	return Address{Host: strings.ToLower(host), Share: share, Syntax: syntax}.String()
}

// Join appends elems to path, keeping the syntax of path.
func Join(path string, elems ...string) (string, error) {
	addr, err := ParseShare(path)
	if err != nil {
		return "", err
	}
	joined, err := addr.Join(elems...)
	if err != nil {
		return "", err
	}
	return joined.String(), nil
}

// Equal reports whether two paths, in either syntax, name the same location.
func Equal(a, b string) bool {
	pa, err := Parse(a)
	if err != nil {
		return false
	}
	pb, err := Parse(b)
	if err != nil {
		return false
	}
	return pa.Equal(pb)
}
