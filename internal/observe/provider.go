package observe

import (
	"context"
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// ProviderConfig configures the OpenTelemetry SDK providers.
type ProviderConfig struct {
	// ServiceName is reported in telemetry. Default: "voicebot".
	ServiceName string

	// ServiceVersion is reported in telemetry.
	ServiceVersion string

	// Registerer receives the Prometheus collectors. Nil uses the default
	// registry that [MetricsHandler] serves.
	Registerer prometheus.Registerer

	// TraceExporter receives finished spans. When nil spans are recorded but
	// not exported.
	TraceExporter sdktrace.SpanExporter
}

// InitProvider installs a Prometheus-bridged MeterProvider and a
// TracerProvider as the global OTel providers. The returned function flushes
// and closes both; defer it from main.
func InitProvider(ctx context.Context, cfg ProviderConfig) (shutdown func(context.Context) error, err error) {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "voicebot"
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, err
	}

	var expOpts []promexporter.Option
	if cfg.Registerer != nil {
		expOpts = append(expOpts, promexporter.WithRegisterer(cfg.Registerer))
	}
	promExp, err := promexporter.New(expOpts...)
	if err != nil {
		return nil, err
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(promExp),
	)
	otel.SetMeterProvider(mp)

	tpOpts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	if cfg.TraceExporter != nil {
		tpOpts = append(tpOpts, sdktrace.WithBatcher(cfg.TraceExporter))
	}
	tp := sdktrace.NewTracerProvider(tpOpts...)
	otel.SetTracerProvider(tp)

	shutdown = func(ctx context.Context) error {
		return errors.Join(mp.Shutdown(ctx), tp.Shutdown(ctx))
	}
	return shutdown, nil
}

// MetricsHandler serves the default Prometheus registry in text format.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
