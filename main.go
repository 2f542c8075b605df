package main

import (
	"embed"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"
)

//go:embed all:frontend/dist
var assets embed.FS

func main() {
	logger := consoleLogger(os.Stderr)
	app := NewApp()

	err := wails.Run(appOptions(app))
	if code := exitCode(logger, err); code != 0 {
		os.Exit(code)
	}
}

func appOptions(app *App) *options.App {
	return &options.App{
		Title:  "livescribe",
		Width:  720,
		Height: 520,
		AssetServer: &assetserver.Options{
			Assets: assets,
		},
		OnStartup:  app.startup,
		OnShutdown: app.shutdown,
		Bind: []interface{}{
			app,
		},
	}
}

// consoleLogger is used until the configured logger exists.
func consoleLogger(w io.Writer) zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}).
		With().Timestamp().Str("component", "desktop").Logger()
}

func exitCode(logger zerolog.Logger, err error) int {
	if err == nil {
		return 0
	}
	logger.Error().Err(err).Msg("wails run failed")
	return 1
}
