package config

import (
	"fmt"
	"time"
)

// ObservabilityConfig configures Prometheus metrics for dispatched actions
// and the OpenTelemetry tracer provider; nothing in this module starts spans.
type ObservabilityConfig struct {
	Tracing TracingConfig `yaml:"tracing,omitempty"`
	Metrics MetricsConfig `yaml:"metrics,omitempty"`
}

// TracingConfig configures OpenTelemetry tracing.
type TracingConfig struct {
	Enabled bool `yaml:"enabled,omitempty"`
	// Exporter is "otlp" or "stdout".
	Exporter string `yaml:"exporter,omitempty"`
	// Endpoint is the OTLP collector address, e.g. "localhost:4317".
	Endpoint       string        `yaml:"endpoint,omitempty"`
	SamplingRate   float64       `yaml:"sampling_rate,omitempty"`
	ServiceName    string        `yaml:"service_name,omitempty"`
	ServiceVersion string        `yaml:"service_version,omitempty"`
	Insecure       bool          `yaml:"insecure,omitempty"`
	Timeout        time.Duration `yaml:"timeout,omitempty"`
}

// MetricsConfig configures the Prometheus metrics endpoint.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled,omitempty"`
	// Listen is the address the /metrics HTTP server binds to.
	Listen    string `yaml:"listen,omitempty"`
	Namespace string `yaml:"namespace,omitempty"`
}

// SetDefaults fills observability defaults; tracing/metrics stay disabled
// unless explicitly turned on, matching the rest of the runtime's
// opt-in-to-overhead stance.
func (c *ObservabilityConfig) SetDefaults() {
	if c.Tracing.Exporter == "" {
		c.Tracing.Exporter = "otlp"
	}
	if c.Tracing.Endpoint == "" {
		c.Tracing.Endpoint = "localhost:4317"
	}
	if c.Tracing.SamplingRate == 0 {
		c.Tracing.SamplingRate = 1.0
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = "quoracle"
	}
	if c.Tracing.Timeout == 0 {
		c.Tracing.Timeout = 10 * time.Second
	}
	if c.Metrics.Listen == "" {
		c.Metrics.Listen = ":9090"
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = "quoracle"
	}
}

// Validate checks observability-specific invariants.
func (c *ObservabilityConfig) Validate() error {
	if c.Tracing.Enabled {
		switch c.Tracing.Exporter {
		case "otlp", "stdout":
		default:
			return fmt.Errorf("tracing.exporter %q is not one of otlp/stdout", c.Tracing.Exporter)
		}
		if c.Tracing.SamplingRate < 0 || c.Tracing.SamplingRate > 1 {
			return fmt.Errorf("tracing.sampling_rate must be between 0 and 1")
		}
	}
	return nil
}
