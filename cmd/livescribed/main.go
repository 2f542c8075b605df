// Command livescribed runs the recording engine headless and exposes it over NATS.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"livescribe/internal/bootstrap"
	"livescribe/internal/config"
	"livescribe/internal/logging"
	"livescribe/internal/telemetry"
)

var version = "0.1.0-dev"

func main() {
	var (
		configPath  string
		showVersion bool
	)

	flag.StringVar(&configPath, "config", config.DefaultPath(), "Path to configuration file")
	flag.BoolVar(&showVersion, "version", false, "Print version and exit")
	flag.Parse()

	if showVersion {
		fmt.Println(version)
		return
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	cfg.Bus.Enabled = true

	logger, closer, err := logging.New(cfg.Telemetry)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to set up logging: %v\n", err)
		os.Exit(1)
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error().Err(err).Msg("livescribed exited with error")
		closer.Close()
		os.Exit(1)
	}
	logger.Info().Msg("shutdown complete")
}

func run(ctx context.Context, cfg config.Config, logger zerolog.Logger) error {
	provider, err := telemetry.Setup(ctx, cfg.Telemetry, logging.Component(logger, "telemetry"))
	if err != nil {
		return fmt.Errorf("setup telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("telemetry shutdown")
		}
	}()

	services, err := bootstrap.Build(ctx, cfg, logger, bootstrap.Sinks{})
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	services.Orchestrator.Open(ctx)
	logger.Info().
		Str("version", version).
		Str("provider", cfg.Recognition.Provider).
		Str("subject_prefix", cfg.Bus.SubjectPrefix).
		Msg("livescribed started")

	if cfg.Telemetry.MetricsBind != "" {
		handler := telemetry.Handler(provider.MetricsHandler(), services.Ready)
		go func() {
			if err := telemetry.Serve(ctx, cfg.Telemetry.MetricsBind, handler, logging.Component(logger, "http")); err != nil {
				logger.Error().Err(err).Msg("http server stopped")
			}
		}()
	}

	<-ctx.Done()
	logger.Info().Msg("livescribed stopping")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return services.Close(shutdownCtx)
}
