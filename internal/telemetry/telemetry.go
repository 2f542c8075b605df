// Package telemetry installs the process-wide meter and tracer providers and
// serves the health and metrics endpoints.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"livescribe/internal/config"
)

// Provider owns the meter and tracer providers created by Setup.
type Provider struct {
	meter    *sdkmetric.MeterProvider
	tracer   *sdktrace.TracerProvider
	registry *promclient.Registry
	handler  http.Handler
}

// Setup builds the providers and installs them as the otel globals.
func Setup(ctx context.Context, cfg config.TelemetryConfig, log zerolog.Logger) (*Provider, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "livescribe"
	}
	res := resource.NewSchemaless(attribute.String("service.name", name))

	registry := promclient.NewRegistry()
	exporter, err := prometheus.New(prometheus.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("prometheus exporter: %w", err)
	}
	meter := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
		sdkmetric.WithResource(res),
	)

	tracer, err := newTracerProvider(ctx, cfg, res, log)
	if err != nil {
		_ = meter.Shutdown(ctx)
		return nil, err
	}

	otel.SetMeterProvider(meter)
	otel.SetTracerProvider(tracer)

	return &Provider{
		meter:    meter,
		tracer:   tracer,
		registry: registry,
		handler:  promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	}, nil
}

func newTracerProvider(ctx context.Context, cfg config.TelemetryConfig, res *resource.Resource, log zerolog.Logger) (*sdktrace.TracerProvider, error) {
	opts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}

	switch strings.ToLower(strings.TrimSpace(cfg.TraceExporter)) {
	case "", "none", "off":
	case "stdout":
		exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("stdout trace exporter: %w", err)
		}
		opts = append(opts, sdktrace.WithBatcher(exporter))
		log.Info().Str("exporter", "stdout").Msg("tracing enabled")
	case "otlp":
		endpoint := strings.TrimSpace(cfg.OTLPEndpoint)
		if endpoint == "" {
			return nil, errors.New("otlp trace exporter requires telemetry.otlp_endpoint")
		}
		grpcOpts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(endpoint)}
		if cfg.OTLPInsecure {
			grpcOpts = append(grpcOpts, otlptracegrpc.WithInsecure())
		}
		exporter, err := otlptracegrpc.New(ctx, grpcOpts...)
		if err != nil {
			return nil, fmt.Errorf("otlp trace exporter: %w", err)
		}
		opts = append(opts, sdktrace.WithBatcher(exporter))
		log.Info().Str("exporter", "otlp").Str("endpoint", endpoint).Msg("tracing enabled")
	default:
		return nil, fmt.Errorf("unsupported trace exporter %q", cfg.TraceExporter)
	}
	return sdktrace.NewTracerProvider(opts...), nil
}

// MetricsHandler serves the private prometheus registry.
func (p *Provider) MetricsHandler() http.Handler {
	return p.handler
}

func (p *Provider) Shutdown(ctx context.Context) error {
	var errs []error
	if err := p.meter.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := p.tracer.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Handler routes /healthz, /readyz and /metrics. metrics may be nil.
func Handler(metrics http.Handler, ready func() bool) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		if ready == nil || ready() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready"))
	})
	if metrics != nil {
		mux.Handle("/metrics", metrics)
	}
	return mux
}

// Serve runs the HTTP server on bind until ctx is cancelled.
func Serve(ctx context.Context, bind string, handler http.Handler, log zerolog.Logger) error {
	server := &http.Server{
		Addr:              bind,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	log.Info().Str("addr", bind).Msg("http server started")

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown error")
	}
	return nil
}
