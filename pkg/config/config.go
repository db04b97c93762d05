package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/marmos91/smbkit/internal/bytesize"
	"github.com/marmos91/smbkit/pkg/retry"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config is the smbkit configuration file.
//
// Values are layered, later sources winning: built-in defaults, the YAML
// or TOML file, SMBKIT_* environment variables and finally CLI flags.
type Config struct {
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`
	Metrics   MetricsConfig   `mapstructure:"metrics" yaml:"metrics"`

	// Client controls how sessions are established and how pending
	// operations are retried
	Client ClientConfig `mapstructure:"client" yaml:"client"`

	// Credentials are registered persistently at startup
	Credentials []CredentialConfig `mapstructure:"credentials" validate:"dive" yaml:"credentials,omitempty"`
}

// LoggingConfig selects the log level, encoding and destination.
type LoggingConfig struct {
	// Level is DEBUG, INFO, WARN or ERROR. Any case is accepted and
	// stored uppercase.
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format is "text" or "json".
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output is stdout, stderr or a file path.
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// TelemetryConfig enables OTLP span export. Sessions and every retried
// remote operation produce spans.
type TelemetryConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the collector's gRPC address. Default: localhost:4317
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// Insecure disables TLS towards the collector.
	Insecure bool `mapstructure:"insecure" yaml:"insecure"`

	// SampleRate is the fraction of traces kept, from 0 to 1.
	SampleRate float64 `mapstructure:"sample_rate" validate:"omitempty,gte=0,lte=1" yaml:"sample_rate"`
}

// MetricsConfig exposes session and retry metrics over HTTP while a
// command runs.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Port serves /metrics on all interfaces. Default: 9090
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`
}

// ClientConfig controls session establishment and I/O limits.
type ClientConfig struct {
	// Transport selects the framing: "direct" (TCP 445) or "netbios" (TCP 139)
	// Default: direct
	Transport string `mapstructure:"transport" validate:"required,oneof=direct netbios" yaml:"transport"`

	// Port overrides the well-known port of Transport. A port given in
	// the path takes precedence.
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port,omitempty"`

	// SessionTimeout bounds session establishment and the pending poll
	// of every operation. Default: 45s
	SessionTimeout time.Duration `mapstructure:"session_timeout" validate:"required,gt=0" yaml:"session_timeout"`

	// MaxBufferSize caps a single read or write request
	// Supports human-readable formats: "64KiB", "1MiB"
	// Default: 64KiB
	MaxBufferSize bytesize.ByteSize `mapstructure:"max_buffer_size" validate:"required" yaml:"max_buffer_size"`

	// Retry controls the pending poll loop. A zero timeout follows
	// SessionTimeout.
	Retry retry.Policy `mapstructure:"retry" yaml:"retry"`
}

// CredentialConfig is a credential registered at startup.
type CredentialConfig struct {
	// Path is the share (\\host\share) or host (\\host) the credential
	// covers.
	Path string `mapstructure:"path" validate:"required" yaml:"path"`

	Domain   string `mapstructure:"domain" yaml:"domain,omitempty"`
	Username string `mapstructure:"username" validate:"required" yaml:"username"`

	// Password is stored in plain text; prefer PasswordEnv.
	Password string `mapstructure:"password" validate:"required_without=PasswordEnv" yaml:"password,omitempty"`

	// PasswordEnv names an environment variable holding the password.
	PasswordEnv string `mapstructure:"password_env" validate:"required_without=Password" yaml:"password_env,omitempty"`
}

// Load reads the configuration at configPath, or at the default location
// when configPath is empty, applies SMBKIT_* overrides and defaults and
// validates the result. Without a file the defaults are returned.
func Load(configPath string) (*Config, error) {
	v := newViper(configPath)

	found, err := readIn(v)
	if err != nil {
		return nil, err
	}
	if !found {
		return GetDefaultConfig(), nil
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg, viper.DecodeHook(decodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to decode config %s: %w", v.ConfigFileUsed(), err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", v.ConfigFileUsed(), err)
	}
	return cfg, nil
}

// MustLoad is Load, except that an explicitly named file must exist.
func MustLoad(configPath string) (*Config, error) {
	if configPath != "" {
		if _, err := os.Stat(configPath); errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("no configuration file at %s\n\n"+
				"Create one with:\n"+
				"  smbkit config init --config %s",
				configPath, configPath)
		}
	}
	return Load(configPath)
}

// SaveConfig writes cfg to path as YAML.
func SaveConfig(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return SaveRaw(path, data)
}

// SaveRaw writes data to path, creating parent directories. The file is
// written 0600 since it may hold credential passwords.
func SaveRaw(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}

func newViper(configPath string) *viper.Viper {
	v := viper.New()
	// client.session_timeout is overridden by SMBKIT_CLIENT_SESSION_TIMEOUT.
	v.SetEnvPrefix("SMBKIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		return v
	}
	v.AddConfigPath(GetConfigDir())
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	return v
}

// readIn reports whether a configuration file was found and read.
func readIn(v *viper.Viper) (bool, error) {
	err := v.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	switch {
	case err == nil:
		return true, nil
	case errors.As(err, &notFound), errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("failed to read config: %w", err)
	}
}

func decodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		numericOrTextHook(bytesize.ParseByteSize),
		numericOrTextHook(time.ParseDuration),
	)
}

// numericOrTextHook decodes into T from text through parse, or from a
// number taken as the raw value (bytes, nanoseconds). YAML numbers may
// arrive as float64.
func numericOrTextHook[T ~int64 | ~uint64](parse func(string) (T, error)) mapstructure.DecodeHookFuncType {
	target := reflect.TypeOf(T(0))
	return func(_ reflect.Type, to reflect.Type, data any) (any, error) {
		if to != target {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return parse(v)
		case int:
			return T(v), nil
		case int64:
			return T(v), nil
		case uint64:
			return T(v), nil
		case float64:
			return T(v), nil
		default:
			return data, nil
		}
	}
}

// GetConfigDir returns $XDG_CONFIG_HOME/smbkit or its platform
// equivalent, falling back to the working directory.
func GetConfigDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "."
	}
	return filepath.Join(dir, "smbkit")
}

// GetDefaultConfigPath returns the file Load reads when no path is given.
func GetDefaultConfigPath() string {
	return filepath.Join(GetConfigDir(), "config.yaml")
}

// DefaultConfigExists reports whether GetDefaultConfigPath exists.
func DefaultConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}
