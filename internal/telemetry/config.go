package telemetry

// ServiceName is the service.name of every exported span.
const ServiceName = "smbkit"

const defaultEndpoint = "localhost:4317"

// Config controls span export to an OTLP gRPC collector. The zero value
// disables tracing.
type Config struct {
	Enabled bool

	// Endpoint is the collector's host:port. Empty means localhost:4317.
	Endpoint string

	// Insecure dials the collector without TLS.
	Insecure bool

	// SampleRate is the fraction of root traces kept. Values outside 0..1
	// are clamped.
	SampleRate float64

	// Version is reported as service.version. Empty means "dev".
	Version string
}

// DefaultConfig returns tracing disabled, pointed at a local plaintext
// collector that keeps every trace once enabled.
func DefaultConfig() Config {
	return Config{Endpoint: defaultEndpoint, Insecure: true, SampleRate: 1}
}

// normalized fills the empty fields and clamps SampleRate.
func (c Config) normalized() Config {
	if c.Endpoint == "" {
		c.Endpoint = defaultEndpoint
	}
	if c.Version == "" {
		c.Version = "dev"
	}
	c.SampleRate = min(max(c.SampleRate, 0), 1)
	return c
}
