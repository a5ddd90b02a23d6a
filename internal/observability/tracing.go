// Package observability wires OpenTelemetry trace export into Genkit.
//
// Genkit instruments every flow, model call and embedder call with spans on
// its own TracerProvider. This package attaches an OTLP/HTTP exporter to that
// provider, so the spans land in whatever collector the endpoint points at:
// an OpenTelemetry Collector, Jaeger, Grafana Tempo, or a vendor agent with
// OTLP ingestion enabled.
//
// # Quick Start
//
// Run a local Jaeger with OTLP ingestion:
//
//	docker run --rm -p 16686:16686 -p 4318:4318 jaegertracing/jaeger:2.9.0
//
// Enable tracing in ~/.kennis/config.yaml:
//
//	tracing:
//	  enabled: true
//	  endpoint: "localhost:4318"
//	  environment: "dev"
//	  service_name: "kennis"
//
// Ask something (`kennis ask "..."`) and open http://localhost:16686: the
// search, embedding and generation spans appear under the configured service
// name. The batch processor flushes on shutdown, so short-lived CLI runs
// export their spans when the command exits.
//
// # Configuration
//
// Environment overrides:
//   - KENNIS_TRACING_ENABLED: turn export on
//   - OTEL_EXPORTER_OTLP_ENDPOINT: collector endpoint (default: localhost:4318)
package observability

import (
	"context"
	"log/slog"
	"os"

	"github.com/firebase/genkit/go/core/tracing"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Config for the OTLP trace exporter.
type Config struct {
	// Endpoint is the collector's OTLP/HTTP endpoint (default: localhost:4318)
	Endpoint string
	// Environment is the deployment environment (dev, staging, prod)
	Environment string
	// ServiceName is the service name shown on exported spans
	ServiceName string
}

// DefaultEndpoint is the default OTLP/HTTP collector endpoint.
const DefaultEndpoint = "localhost:4318"

// Setup registers an OTLP/HTTP exporter with Genkit's TracerProvider.
// Spans are batched and sent to the configured collector endpoint.
//
// Returns a shutdown function that flushes pending spans. An exporter that
// cannot be constructed disables tracing with a warning rather than failing
// startup; the returned shutdown is then a no-op.
// If Endpoint is empty, uses DefaultEndpoint (localhost:4318).
func Setup(ctx context.Context, cfg Config) (shutdown func(context.Context) error, err error) {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}

	// Genkit's TracerProvider builds its resource from the standard OTEL
	// environment variables, so the service name and environment tag are
	// passed through them.
	if cfg.ServiceName != "" {
		_ = os.Setenv("OTEL_SERVICE_NAME", cfg.ServiceName)
	}
	if cfg.Environment != "" {
		_ = os.Setenv("OTEL_RESOURCE_ATTRIBUTES", "deployment.environment="+cfg.Environment)
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(), // local collectors speak plain HTTP
	)
	if err != nil {
		slog.Warn("failed to create otlp exporter, tracing disabled", "error", err)
		return func(context.Context) error { return nil }, nil
	}

	processor := sdktrace.NewBatchSpanProcessor(exporter)
	tracing.TracerProvider().RegisterSpanProcessor(processor)

	slog.Debug("otlp tracing enabled",
		"endpoint", endpoint,
		"service", cfg.ServiceName,
		"environment", cfg.Environment,
	)

	return tracing.TracerProvider().Shutdown, nil
}
