// Command livescribe-tui is a terminal front end for the recording engine.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"livescribe/internal/bootstrap"
	"livescribe/internal/config"
	"livescribe/internal/logging"
	"livescribe/internal/tui"
)

func main() {
	configPath := flag.String("config", config.DefaultPath(), "Path to configuration file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "livescribe-tui: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	// The terminal belongs to the UI, so logs go to a file.
	if cfg.Telemetry.LogPath == "" {
		dir, err := os.UserCacheDir()
		if err != nil {
			dir = os.TempDir()
		}
		cfg.Telemetry.LogPath = filepath.Join(dir, "livescribe", "tui.log")
	}

	logger, closer, err := logging.New(cfg.Telemetry)
	if err != nil {
		return err
	}
	defer closer.Close()

	ctx := context.Background()
	bridge := &tui.Bridge{}
	services, err := bootstrap.Build(ctx, cfg, logger, bootstrap.Sinks{Events: bridge, Frames: bridge})
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := services.Close(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("engine shutdown")
		}
	}()
	services.Orchestrator.Open(ctx)

	model := tui.New(services.Orchestrator, services.Preferences, services.Store, cfg.User.ID)
	program := tea.NewProgram(model, tea.WithAltScreen())
	bridge.Attach(program)

	_, err = program.Run()
	return err
}
