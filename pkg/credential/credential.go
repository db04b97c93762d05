// Package credential holds the per-target SMB credentials used to
// authenticate sessions.
//
// A Credential is scoped by the path it was registered for: a share path
// (\\host\share) covers that share only, a host path (\\host) covers every
// share on the host that has no share-specific credential.
package credential

import (
	"log/slog"
	"strings"

	smberrors "github.com/marmos91/smbkit/pkg/errors"
	"github.com/marmos91/smbkit/pkg/smbpath"
)

// Credential is a domain, user name and password bound to a path scope.
// Path is the scope as given at registration; Host and Share are parsed
// from it. Identity is by registration, not by value: two registrations with
// equal fields are distinct entries in a Registry.
type Credential struct {
	Domain   string
	Username string
	Password string
	Path     string
	Host     string
	Share    string
}

// New builds a Credential scoped to path. When domain is empty and username
// has the DOMAIN\user form, the domain is split off. When domain is set and
// username repeats it as a prefix, the prefix is dropped.
func New(domain, username, password, path string) (*Credential, error) {
	addr, err := smbpath.Parse(path)
	if err != nil {
		return nil, smberrors.NewInvalidCredentialError(path, "credential path is not a share address")
	}

	domain, username = splitDomain(domain, username)
	return &Credential{
		Domain:   domain,
		Username: username,
		Password: password,
		Path:     path,
		Host:     addr.Host,
		Share:    addr.Share,
	}, nil
}

func splitDomain(domain, username string) (string, string) {
	prefix, user, ok := strings.Cut(username, `\`)
	if !ok {
		return domain, username
	}
	if domain == "" {
		return prefix, user
	}
	if strings.EqualFold(domain, prefix) {
		return domain, user
	}
	return domain, username
}

// Validate reports InvalidCredential when any of domain, user name or
// password is empty. Sessions are never established with an invalid credential.
func (c *Credential) Validate() error {
	if c == nil {
		return smberrors.NewInvalidCredentialError("", "no credential")
	}
	var missing []string
	if c.Domain == "" {
		missing = append(missing, "domain")
	}
	if c.Username == "" {
		missing = append(missing, "username")
	}
	if c.Password == "" {
		missing = append(missing, "password")
	}
	if len(missing) > 0 {
		return smberrors.NewInvalidCredentialError(c.Path, "missing "+strings.Join(missing, ", "))
	}
	return nil
}

// Principal returns DOMAIN\user.
func (c *Credential) Principal() string {
	if c.Domain == "" {
		return c.Username
	}
	return c.Domain + `\` + c.Username
}

// IsHostWide reports whether the credential applies to every share on its host.
func (c *Credential) IsHostWide() bool {
	return c.Share == ""
}

// matches reports whether c covers host and share exactly.
func (c *Credential) matches(host, share string) bool {
	return strings.EqualFold(c.Host, host) && c.Share == share
}

// String never includes the password.
func (c *Credential) String() string {
	return c.Principal() + "@" + c.Path
}

// LogValue implements slog.LogValuer so credentials can be logged safely.
func (c *Credential) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("domain", c.Domain),
		slog.String("username", c.Username),
		slog.String("path", c.Path),
	)
}
