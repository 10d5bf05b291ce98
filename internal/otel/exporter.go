package otel

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
)

func newTraceProvider(ctx context.Context, c *Config, res *resource.Resource) (*trace.TracerProvider, error) {
	tc := c.Traces
	if tc == nil || tc.Exporter == ExporterNone {
		return nil, nil
	}

	var err error
	var traceExporter trace.SpanExporter
	switch {
	case tc.Exporter == ExporterStdout:
		traceExporter, err = stdouttrace.New()
	case tc.Protocol == ProtocolGRPC:
		opts := []otlptracegrpc.Option{
			otlptracegrpc.WithInsecure(), // TODO: support TLS
		}
		if tc.Endpoint != "" {
			opts = append(opts, otlptracegrpc.WithEndpoint(tc.Endpoint))
		}
		traceExporter, err = otlptracegrpc.New(ctx, opts...)
	default:
		opts := []otlptracehttp.Option{
			otlptracehttp.WithInsecure(), // TODO: support TLS
		}
		if tc.Endpoint != "" {
			opts = append(opts, otlptracehttp.WithEndpointURL(ensureHTTPEndpoint("traces", tc.Endpoint)))
		}
		traceExporter, err = otlptracehttp.New(ctx, opts...)
	}
	if err != nil {
		return nil, err
	}

	return trace.NewTracerProvider(
		trace.WithResource(res),
		trace.WithBatcher(traceExporter),
	), nil
}

func newMeterProvider(ctx context.Context, c *Config, res *resource.Resource) (*metric.MeterProvider, error) {
	mc := c.Metrics
	if mc == nil || mc.Exporter == ExporterNone {
		return nil, nil
	}

	var err error
	var metricExporter metric.Exporter
	switch {
	case mc.Exporter == ExporterStdout:
		metricExporter, err = stdoutmetric.New()
	case mc.Protocol == ProtocolGRPC:
		opts := []otlpmetricgrpc.Option{
			otlpmetricgrpc.WithInsecure(), // TODO: support TLS
		}
		if mc.Endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(mc.Endpoint))
		}
		metricExporter, err = otlpmetricgrpc.New(ctx, opts...)
	default:
		opts := []otlpmetrichttp.Option{
			otlpmetrichttp.WithInsecure(), // TODO: support TLS
		}
		if mc.Endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpointURL(ensureHTTPEndpoint("metrics", mc.Endpoint)))
		}
		metricExporter, err = otlpmetrichttp.New(ctx, opts...)
	}
	if err != nil {
		return nil, err
	}

	return metric.NewMeterProvider(
		metric.WithResource(res),
		metric.WithReader(metric.NewPeriodicReader(metricExporter)),
	), nil
}

func newLoggerProvider(ctx context.Context, c *Config, res *resource.Resource) (*log.LoggerProvider, error) {
	lc := c.Logs
	if lc == nil || lc.Exporter == ExporterNone {
		return nil, nil
	}

	var err error
	var logExporter log.Exporter
	switch {
	case lc.Exporter == ExporterStdout:
		logExporter, err = stdoutlog.New()
	case lc.Protocol == ProtocolGRPC:
		opts := []otlploggrpc.Option{
			otlploggrpc.WithInsecure(), // TODO: support TLS
		}
		if lc.Endpoint != "" {
			opts = append(opts, otlploggrpc.WithEndpoint(lc.Endpoint))
		}
		logExporter, err = otlploggrpc.New(ctx, opts...)
	default:
		opts := []otlploghttp.Option{
			otlploghttp.WithInsecure(), // TODO: support TLS
		}
		if lc.Endpoint != "" {
			opts = append(opts, otlploghttp.WithEndpointURL(ensureHTTPEndpoint("logs", lc.Endpoint)))
		}
		logExporter, err = otlploghttp.New(ctx, opts...)
	}
	if err != nil {
		return nil, err
	}

	return log.NewLoggerProvider(
		log.WithResource(res),
		log.WithProcessor(log.NewBatchProcessor(logExporter)),
	), nil
}

func ensureHTTPEndpoint(exporterType string, endpoint string) string {
	fullEndpoint := endpoint
	if !strings.HasPrefix(endpoint, "http") {
		fullEndpoint = "http://" + endpoint
	}
	if !strings.HasSuffix(fullEndpoint, "/v1/"+exporterType) {
		fullEndpoint = fullEndpoint + "/v1/" + exporterType
	}
	return fullEndpoint
}
