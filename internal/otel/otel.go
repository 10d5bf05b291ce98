package otel

import (
	"context"
	"errors"

	otelglobal "go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const (
	ProtocolGRPC = "grpc"
	ProtocolHTTP = "http"

	ExporterOTLP   = "otlp"
	ExporterStdout = "stdout"
	ExporterNone   = "none"
)

type TelemetryTypeConfig struct {
	Exporter string
	Protocol string
	// Endpoint overrides the OTEL_EXPORTER_OTLP_* environment variables
	// the exporters read on their own. Leave empty to defer to them.
	Endpoint string
}

type Config struct {
	ServiceName string
	Traces      *TelemetryTypeConfig
	Metrics     *TelemetryTypeConfig
	Logs        *TelemetryTypeConfig
}

// SetupOTelSDK bootstraps the pipeline for every signal enabled in cfg
// and registers the global providers. The returned shutdown flushes and
// stops them; callers must invoke it before exit so nothing leaks.
func SetupOTelSDK(ctx context.Context, cfg *Config) (func(context.Context) error, error) {
	var shutdownFuncs []func(context.Context) error

	shutdown := func(ctx context.Context) error {
		var err error
		for _, fn := range shutdownFuncs {
			err = errors.Join(err, fn(ctx))
		}
		shutdownFuncs = nil
		return err
	}

	handleErr := func(inErr error) error {
		return errors.Join(inErr, shutdown(ctx))
	}

	res, err := resource.Merge(resource.Default(),
		resource.NewWithAttributes(semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
		))
	if err != nil {
		return nil, err
	}

	otelglobal.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	tracerProvider, err := newTraceProvider(ctx, cfg, res)
	if err != nil {
		return nil, handleErr(err)
	}
	if tracerProvider != nil {
		shutdownFuncs = append(shutdownFuncs, tracerProvider.Shutdown)
		otelglobal.SetTracerProvider(tracerProvider)
	}

	meterProvider, err := newMeterProvider(ctx, cfg, res)
	if err != nil {
		return nil, handleErr(err)
	}
	if meterProvider != nil {
		shutdownFuncs = append(shutdownFuncs, meterProvider.Shutdown)
		otelglobal.SetMeterProvider(meterProvider)
	}

	loggerProvider, err := newLoggerProvider(ctx, cfg, res)
	if err != nil {
		return nil, handleErr(err)
	}
	if loggerProvider != nil {
		shutdownFuncs = append(shutdownFuncs, loggerProvider.Shutdown)
		global.SetLoggerProvider(loggerProvider)
	}

	return shutdown, nil
}
