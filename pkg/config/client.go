package config

import (
	"fmt"

	"github.com/marmos91/smbkit/internal/logger"
	"github.com/marmos91/smbkit/internal/telemetry"
	"github.com/marmos91/smbkit/pkg/credential"
	"github.com/marmos91/smbkit/pkg/retry"
	"github.com/marmos91/smbkit/pkg/session"
	"github.com/marmos91/smbkit/pkg/smbfs"
	"github.com/marmos91/smbkit/pkg/transport"
)

// SessionOptions converts the client section to session.Options.
func (c ClientConfig) SessionOptions() (session.Options, error) {
	kind, err := transport.ParseKind(c.Transport)
	if err != nil {
		return session.Options{}, err
	}
	return session.Options{
		Kind:           kind,
		Port:           c.Port,
		SessionTimeout: c.SessionTimeout,
		MaxBufferSize:  c.MaxBufferSize.Int(),
	}, nil
}

// RetryPolicy returns the retry section, following SessionTimeout when no
// timeout of its own is set.
func (c ClientConfig) RetryPolicy() retry.Policy {
	p := c.Retry
	if p.Timeout == 0 {
		p.Timeout = c.SessionTimeout
	}
	return p
}

// LoggerConfig converts the logging section to logger.Config.
func (c LoggingConfig) LoggerConfig() logger.Config {
	return logger.Config{
		Level:  c.Level,
		Format: c.Format,
		Output: c.Output,
	}
}

// TracingConfig converts the telemetry section to telemetry.Config.
func (c TelemetryConfig) TracingConfig(version string) telemetry.Config {
	tc := telemetry.DefaultConfig()
	tc.Enabled = c.Enabled
	tc.Endpoint = c.Endpoint
	tc.Insecure = c.Insecure
	tc.SampleRate = c.SampleRate
	tc.Version = version
	return tc
}

// RegisterCredentials registers every configured credential persistently
// in reg, in file order. Nothing is registered when any entry fails.
func (cfg *Config) RegisterCredentials(reg *credential.Registry) ([]*credential.Credential, error) {
	type pending struct {
		c        CredentialConfig
		password string
	}
	resolved := make([]pending, 0, len(cfg.Credentials))
	for i, c := range cfg.Credentials {
		pw, err := c.password()
		if err != nil {
			return nil, fmt.Errorf("credentials[%d] (%s): %w", i, c.Path, err)
		}
		resolved = append(resolved, pending{c: c, password: pw})
	}

	creds := make([]*credential.Credential, 0, len(resolved))
	for i, p := range resolved {
		cred, err := reg.RegisterPersistent(p.c.Domain, p.c.Username, p.password, p.c.Path)
		if err != nil {
			for _, added := range creds {
				reg.Remove(added)
			}
			return nil, fmt.Errorf("credentials[%d] (%s): %w", i, p.c.Path, err)
		}
		creds = append(creds, cred)
	}

	logger.Debug("credentials registered", logger.Count(len(creds)))
	return creds, nil
}

// FileSystemOptions registers the configured credentials in reg and returns
// the smbfs options for the client section.
func (cfg *Config) FileSystemOptions(reg *credential.Registry) ([]smbfs.Option, error) {
	opts, err := cfg.Client.SessionOptions()
	if err != nil {
		return nil, err
	}
	if _, err := cfg.RegisterCredentials(reg); err != nil {
		return nil, err
	}
	return []smbfs.Option{
		smbfs.WithRegistry(reg),
		smbfs.WithSessionOptions(opts),
		smbfs.WithRetryPolicy(cfg.Client.RetryPolicy()),
	}, nil
}
