package config

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/smbkit/internal/bytesize"
	"github.com/marmos91/smbkit/pkg/credential"
	"github.com/marmos91/smbkit/pkg/session"
	"github.com/marmos91/smbkit/pkg/smbfs"
	"github.com/marmos91/smbkit/pkg/transport"
	"github.com/marmos91/smbkit/pkg/transport/memory"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
logging:
  level: debug
client:
  transport: netbios
  session_timeout: 10s
  max_buffer_size: 1MiB
  retry:
    max_delay: 100ms
credentials:
  - path: '\\fileserver\docs'
    domain: CORP
    username: alice
    password: secret
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "DEBUG", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, "netbios", cfg.Client.Transport)
	assert.Equal(t, 10*time.Second, cfg.Client.SessionTimeout)
	assert.Equal(t, bytesize.MiB, cfg.Client.MaxBufferSize)
	assert.Equal(t, 100*time.Millisecond, cfg.Client.Retry.MaxDelay)
	assert.Equal(t, 5*time.Millisecond, cfg.Client.Retry.InitialDelay)
	assert.Equal(t, 10*time.Second, cfg.Client.Retry.Timeout, "retry timeout follows the session timeout")

	require.Len(t, cfg.Credentials, 1)
	assert.Equal(t, `\\fileserver\docs`, cfg.Credentials[0].Path)
	assert.Equal(t, "alice", cfg.Credentials[0].Username)
}

func TestLoadNoConfigFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, GetDefaultConfig(), cfg)
}

func TestLoadInvalidYAML(t *testing.T) {
	path := writeConfig(t, "config.yaml", "logging:\n  level: INFO\n  broken [[[\n")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadTOML(t *testing.T) {
	path := writeConfig(t, "config.toml", `
[logging]
level = "WARN"
format = "json"

[client]
session_timeout = "3s"
max_buffer_size = 4096
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "WARN", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, 3*time.Second, cfg.Client.SessionTimeout)
	assert.Equal(t, bytesize.ByteSize(4096), cfg.Client.MaxBufferSize)
}

func TestLoadEnvironmentOverride(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
client:
  session_timeout: 10s
`)
	t.Setenv("SMBKIT_CLIENT_SESSION_TIMEOUT", "2s")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, cfg.Client.SessionTimeout)
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
client:
  transport: carrier-pigeon
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
}

func TestMustLoadMissingExplicitFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nope.yaml")
	_, err := MustLoad(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "smbkit config init")
}

func TestValidate(t *testing.T) {
	cred := func(mut func(*CredentialConfig)) func(*Config) {
		return func(c *Config) {
			cc := CredentialConfig{Path: `\\fs\docs`, Domain: "CORP", Username: "alice", Password: "secret"}
			mut(&cc)
			c.Credentials = []CredentialConfig{cc}
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"log level", func(c *Config) { c.Logging.Level = "LOUD" }, "oneof"},
		{"log format", func(c *Config) { c.Logging.Format = "xml" }, "oneof"},
		{"transport", func(c *Config) { c.Client.Transport = "quic" }, "oneof"},
		{"client port", func(c *Config) { c.Client.Port = 70000 }, "max"},
		{"metrics port", func(c *Config) { c.Metrics.Port = -1 }, "min"},
		{"sample rate", func(c *Config) { c.Telemetry.SampleRate = 2 }, "lte"},
		{"session timeout", func(c *Config) { c.Client.SessionTimeout = 0 }, "required"},
		{"buffer size", func(c *Config) { c.Client.MaxBufferSize = 0 }, "required"},
		{"max attempts", func(c *Config) { c.Client.Retry.MaxAttempts = -1 }, "gte"},
		{"delays inverted", func(c *Config) {
			c.Client.Retry.InitialDelay = time.Second
			c.Client.Retry.MaxDelay = time.Millisecond
		}, "shorter than initial_delay"},
		{"valid credential", cred(func(*CredentialConfig) {}), ""},
		{"password from env", cred(func(c *CredentialConfig) {
			c.Password = ""
			c.PasswordEnv = "DOCS_PW"
		}), ""},
		{"domain in username", cred(func(c *CredentialConfig) {
			c.Domain = ""
			c.Username = `CORP\alice`
		}), ""},
		{"host-wide credential", cred(func(c *CredentialConfig) { c.Path = `\\fs` }), ""},
		{"no username", cred(func(c *CredentialConfig) { c.Username = "" }), "required"},
		{"no password", cred(func(c *CredentialConfig) { c.Password = "" }), "required_without"},
		{"no domain", cred(func(c *CredentialConfig) { c.Domain = "" }), "domain is required"},
		{"bad path", cred(func(c *CredentialConfig) { c.Path = "fs/docs" }), "credentials[0]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := GetDefaultConfig()
			tt.mutate(cfg)
			err := Validate(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDefaults(t *testing.T) {
	cfg := GetDefaultConfig()
	assert.Equal(t, "INFO", cfg.Logging.Level)
	assert.Equal(t, "stderr", cfg.Logging.Output)
	assert.Equal(t, "localhost:4317", cfg.Telemetry.Endpoint)
	assert.Equal(t, 1.0, cfg.Telemetry.SampleRate)
	assert.Equal(t, "direct", cfg.Client.Transport)
	assert.Equal(t, session.DefaultSessionTimeout, cfg.Client.SessionTimeout)
	assert.Equal(t, bytesize.ByteSize(session.DefaultMaxBufferSize), cfg.Client.MaxBufferSize)
	assert.Equal(t, session.DefaultSessionTimeout, cfg.Client.Retry.Timeout)
	assert.Zero(t, cfg.Metrics.Port, "port is only defaulted when metrics are enabled")

	cfg = &Config{Metrics: MetricsConfig{Enabled: true}}
	ApplyDefaults(cfg)
	assert.Equal(t, 9090, cfg.Metrics.Port)
}

func TestSaveConfigRoundTrip(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Client.MaxBufferSize = 128 * bytesize.KiB
	cfg.Client.Retry.MaxAttempts = 7
	cfg.Credentials = []CredentialConfig{{Path: `\\fs\docs`, Domain: "CORP", Username: "alice", PasswordEnv: "DOCS_PW"}}

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, SaveConfig(cfg, path))

	if runtime.GOOS != "windows" {
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
	}

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "max_buffer_size: 128KiB")

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Client, loaded.Client)
	assert.Equal(t, cfg.Credentials, loaded.Credentials)
}

func TestInitConfig(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	path, err := InitConfig(false)
	require.NoError(t, err)
	assert.Equal(t, GetDefaultConfigPath(), path)
	assert.True(t, DefaultConfigExists())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	for _, section := range []string{"# smbkit configuration file", "logging:", "telemetry:", "metrics:", "client:"} {
		assert.Contains(t, string(raw), section)
	}

	_, err = InitConfig(false)
	assert.ErrorContains(t, err, "already exists")
	_, err = InitConfig(true)
	assert.NoError(t, err)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, GetDefaultConfig().Client, cfg.Client)
}

func TestJSONSchema(t *testing.T) {
	data, err := JSONSchema()
	require.NoError(t, err)

	var schema map[string]any
	require.NoError(t, json.Unmarshal(data, &schema))
	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	for _, key := range []string{"logging", "telemetry", "metrics", "client", "credentials"} {
		assert.Contains(t, props, key)
	}
	assert.True(t, strings.Contains(string(data), "session_timeout"))
	assert.True(t, strings.Contains(string(data), "password_env"))
}

func TestSessionOptions(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Client.Transport = "netbios"
	cfg.Client.Port = 1139
	cfg.Client.MaxBufferSize = 8 * bytesize.KiB

	opts, err := cfg.Client.SessionOptions()
	require.NoError(t, err)
	assert.Equal(t, transport.KindNetBIOS, opts.Kind)
	assert.Equal(t, 1139, opts.Port)
	assert.Equal(t, 8192, opts.MaxBufferSize)

	cfg.Client.Transport = "bogus"
	_, err = cfg.Client.SessionOptions()
	assert.Error(t, err)
}

func TestRetryPolicyFollowsSessionTimeout(t *testing.T) {
	c := ClientConfig{SessionTimeout: 3 * time.Second}
	assert.Equal(t, 3*time.Second, c.RetryPolicy().Timeout)

	c.Retry.Timeout = time.Second
	assert.Equal(t, time.Second, c.RetryPolicy().Timeout)
}

func TestTracingConfig(t *testing.T) {
	tc := TelemetryConfig{Enabled: true, Endpoint: "otel:4317", SampleRate: 0.5}.TracingConfig("1.2.3")
	assert.True(t, tc.Enabled)
	assert.Equal(t, "otel:4317", tc.Endpoint)
	assert.Equal(t, 0.5, tc.SampleRate)
	assert.Equal(t, "1.2.3", tc.Version)
}

func TestRegisterCredentials(t *testing.T) {
	t.Setenv("SMBKIT_TEST_DOCS_PW", "from-env")

	cfg := GetDefaultConfig()
	cfg.Credentials = []CredentialConfig{
		{Path: `\\fs\docs`, Domain: "CORP", Username: "alice", PasswordEnv: "SMBKIT_TEST_DOCS_PW"},
		{Path: `\\fs`, Username: `CORP\bob`, Password: "hunter2"},
	}

	reg := credential.NewRegistry()
	creds, err := cfg.RegisterCredentials(reg)
	require.NoError(t, err)
	require.Len(t, creds, 2)
	assert.Equal(t, 2, reg.Len())

	c, ok := reg.Resolve(`\\fs\docs\a.txt`)
	require.True(t, ok)
	assert.Equal(t, "from-env", c.Password)

	c, ok = reg.Resolve(`\\fs\other`)
	require.True(t, ok)
	assert.Equal(t, `CORP\bob`, c.Principal())
}

func TestRegisterCredentialsAllOrNothing(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Credentials = []CredentialConfig{
		{Path: `\\fs\docs`, Domain: "CORP", Username: "alice", Password: "secret"},
		{Path: `\\fs\other`, Domain: "CORP", Username: "bob", PasswordEnv: "SMBKIT_TEST_UNSET_PW"},
	}

	reg := credential.NewRegistry()
	_, err := cfg.RegisterCredentials(reg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SMBKIT_TEST_UNSET_PW")
	assert.Zero(t, reg.Len())
}

func TestFileSystemOptions(t *testing.T) {
	srv := memory.NewServer()
	srv.AddUser("CORP", "alice", "secret")
	srv.AddShare("docs")
	srv.WriteFile("docs", "a.txt", []byte("hello"))

	cfg := GetDefaultConfig()
	cfg.Client.SessionTimeout = 2 * time.Second
	cfg.Client.Retry.Timeout = 0
	cfg.Credentials = []CredentialConfig{
		{Path: `\\10.0.0.1\docs`, Domain: "CORP", Username: "alice", Password: "secret"},
	}

	reg := credential.NewRegistry()
	opts, err := cfg.FileSystemOptions(reg)
	require.NoError(t, err)

	fs := smbfs.New(srv.Factory(), opts...)
	assert.Same(t, reg, fs.Registry())

	ok, err := fs.Exists(context.Background(), session.NewScope(), `\\10.0.0.1\docs\a.txt`)
	require.NoError(t, err)
	assert.True(t, ok)
}
