package config

import (
	"fmt"

	"github.com/dispatchd/dispatchd/internal/otel"
	v "github.com/spf13/viper"
)

type OpenTelemetryTypeConfig struct {
	Exporter string `yaml:"exporter" env:"OTEL_EXPORTER"`
	Protocol string `yaml:"protocol" env:"OTEL_PROTOCOL"`
	Endpoint string `yaml:"endpoint"`
}

type OpenTelemetryConfig struct {
	ServiceName string                   `yaml:"service_name" env:"OTEL_SERVICE_NAME"`
	Traces      *OpenTelemetryTypeConfig `yaml:"traces"`
	Metrics     *OpenTelemetryTypeConfig `yaml:"metrics"`
	Logs        *OpenTelemetryTypeConfig `yaml:"logs"`
}

func getProtocol(viper *v.Viper, telemetryType string) string {
	// Check type-specific protocol first
	protocol := viper.GetString(fmt.Sprintf("OTEL_EXPORTER_OTLP_%s_PROTOCOL", telemetryType))
	if protocol == "" {
		// Fall back to generic protocol
		protocol = viper.GetString("OTEL_EXPORTER_OTLP_PROTOCOL")
	}
	if protocol == "" {
		// Default to gRPC if not specified
		protocol = "grpc"
	}
	return protocol
}

// resolveDefaults fills in the per-signal blocks once telemetry is enabled.
// OTEL_SERVICE_NAME alone is enough to turn it on; a nil receiver stays nil
// unless that key is set.
func (c *OpenTelemetryConfig) resolveDefaults(viper *v.Viper) *OpenTelemetryConfig {
	if c == nil {
		serviceName := viper.GetString("OTEL_SERVICE_NAME")
		if serviceName == "" {
			return nil
		}
		c = &OpenTelemetryConfig{ServiceName: serviceName}
	}
	if c.ServiceName == "" {
		c.ServiceName = viper.GetString("OTEL_SERVICE_NAME")
	}
	if c.ServiceName == "" {
		return c
	}

	if c.Traces == nil {
		c.Traces = &OpenTelemetryTypeConfig{}
	}
	if c.Metrics == nil {
		c.Metrics = &OpenTelemetryTypeConfig{}
	}
	if c.Logs == nil {
		c.Logs = &OpenTelemetryTypeConfig{}
	}
	if c.Traces.Protocol == "" {
		c.Traces.Protocol = getProtocol(viper, "TRACES")
	}
	if c.Metrics.Protocol == "" {
		c.Metrics.Protocol = getProtocol(viper, "METRICS")
	}
	if c.Logs.Protocol == "" {
		c.Logs.Protocol = getProtocol(viper, "LOGS")
	}
	return c
}

func toTelemetryType(c *OpenTelemetryTypeConfig) *otel.TelemetryTypeConfig {
	if c == nil {
		return nil
	}
	return &otel.TelemetryTypeConfig{
		Exporter: c.Exporter,
		Protocol: c.Protocol,
		Endpoint: c.Endpoint,
	}
}

func (c *OpenTelemetryConfig) ToOTELConfig() *otel.Config {
	if c == nil || c.ServiceName == "" {
		return nil
	}

	return &otel.Config{
		ServiceName: c.ServiceName,
		Traces:      toTelemetryType(c.Traces),
		Metrics:     toTelemetryType(c.Metrics),
		Logs:        toTelemetryType(c.Logs),
	}
}
