package config

import (
	"strings"

	"github.com/marmos91/smbkit/internal/bytesize"
	"github.com/marmos91/smbkit/pkg/retry"
	"github.com/marmos91/smbkit/pkg/session"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// Zero values (0, "", false, nil) are replaced with defaults; explicit
// values are preserved.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyMetricsDefaults(&cfg.Metrics)
	applyClientDefaults(&cfg.Client)
	applyCredentialDefaults(cfg.Credentials)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stderr"
	}
}

// applyTelemetryDefaults sets OpenTelemetry defaults.
func applyTelemetryDefaults(cfg *TelemetryConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1.0
	}
}

// applyMetricsDefaults sets metrics defaults.
func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Enabled && cfg.Port == 0 {
		cfg.Port = 9090
	}
}

// applyClientDefaults sets session and retry defaults.
func applyClientDefaults(cfg *ClientConfig) {
	if cfg.Transport == "" {
		cfg.Transport = "direct"
	}
	cfg.Transport = strings.ToLower(cfg.Transport)

	if cfg.SessionTimeout == 0 {
		cfg.SessionTimeout = session.DefaultSessionTimeout
	}
	if cfg.MaxBufferSize == 0 {
		cfg.MaxBufferSize = bytesize.ByteSize(session.DefaultMaxBufferSize)
	}

	// The pending poll shares the session budget unless set explicitly.
	if cfg.Retry.Timeout == 0 {
		cfg.Retry.Timeout = cfg.SessionTimeout
	}
	if cfg.Retry.InitialDelay == 0 {
		cfg.Retry.InitialDelay = retry.DefaultInitialDelay
	}
	if cfg.Retry.MaxDelay == 0 {
		cfg.Retry.MaxDelay = retry.DefaultMaxDelay
	}
}

// applyCredentialDefaults trims whitespace around credential paths.
func applyCredentialDefaults(creds []CredentialConfig) {
	for i := range creds {
		creds[i].Path = strings.TrimSpace(creds[i].Path)
	}
}

// GetDefaultConfig returns a Config struct with all default values applied.
func GetDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
