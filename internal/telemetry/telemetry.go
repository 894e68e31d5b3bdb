// Package telemetry wires the OpenTelemetry tracer and meter providers.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"gitlab.com/yelinaung/fx-calc/internal/logger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Exporter names accepted by Setup.
const (
	ExporterNone     = "none"
	ExporterStdout   = "stdout"
	ExporterOTLPHTTP = "otlp-http"
	ExporterOTLPGRPC = "otlp-grpc"
)

// Config selects the exporter. OTLP endpoints come from the standard
// OTEL_EXPORTER_OTLP_* variables.
type Config struct {
	Exporter    string
	ServiceName string
	// Writer receives stdout exporter output. Defaults to os.Stdout.
	Writer io.Writer
}

// ShutdownFunc flushes and stops the providers.
type ShutdownFunc func(context.Context) error

// Setup installs global tracer and meter providers. With ExporterNone (or
// an empty name) only the propagator is installed and the global no-op
// providers stay in place.
func Setup(ctx context.Context, cfg Config) (ShutdownFunc, error) {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	if cfg.Exporter == "" || cfg.Exporter == ExporterNone {
		return func(context.Context) error { return nil }, nil
	}

	if cfg.ServiceName == "" {
		cfg.ServiceName = "fx-calc"
	}
	if cfg.Writer == nil {
		cfg.Writer = os.Stdout
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		attribute.String("service.name", cfg.ServiceName),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to build telemetry resource: %w", err)
	}

	spanExporter, metricExporter, err := newExporters(ctx, cfg)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(spanExporter),
		sdktrace.WithResource(res),
	)
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter)),
		sdkmetric.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)

	logger.Log.Info().
		Str("exporter", cfg.Exporter).
		Str("service", cfg.ServiceName).
		Msg("Telemetry initialized")

	return func(ctx context.Context) error {
		return errors.Join(tp.Shutdown(ctx), mp.Shutdown(ctx))
	}, nil
}

func newExporters(ctx context.Context, cfg Config) (sdktrace.SpanExporter, sdkmetric.Exporter, error) {
	var (
		spans   sdktrace.SpanExporter
		metrics sdkmetric.Exporter
		err     error
	)

	switch cfg.Exporter {
	case ExporterStdout:
		if spans, err = stdouttrace.New(stdouttrace.WithWriter(cfg.Writer)); err != nil {
			return nil, nil, fmt.Errorf("failed to create stdout trace exporter: %w", err)
		}
		if metrics, err = stdoutmetric.New(stdoutmetric.WithWriter(cfg.Writer)); err != nil {
			return nil, nil, fmt.Errorf("failed to create stdout metric exporter: %w", err)
		}
	case ExporterOTLPHTTP:
		if spans, err = otlptracehttp.New(ctx); err != nil {
			return nil, nil, fmt.Errorf("failed to create OTLP/HTTP trace exporter: %w", err)
		}
		if metrics, err = otlpmetrichttp.New(ctx); err != nil {
			return nil, nil, fmt.Errorf("failed to create OTLP/HTTP metric exporter: %w", err)
		}
	case ExporterOTLPGRPC:
		if spans, err = otlptracegrpc.New(ctx); err != nil {
			return nil, nil, fmt.Errorf("failed to create OTLP/gRPC trace exporter: %w", err)
		}
		if metrics, err = otlpmetricgrpc.New(ctx); err != nil {
			return nil, nil, fmt.Errorf("failed to create OTLP/gRPC metric exporter: %w", err)
		}
	default:
		return nil, nil, fmt.Errorf("unknown telemetry exporter %q", cfg.Exporter)
	}

	return spans, metrics, nil
}
