package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/wailsapp/wails/v2/pkg/runtime"

	"livescribe/internal/bootstrap"
	"livescribe/internal/config"
	"livescribe/internal/domain"
	"livescribe/internal/logging"
	"livescribe/internal/telemetry"
	"livescribe/internal/usecase"
)

const (
	eventSession  = "livescribe:session"
	eventInterim  = "livescribe:interim"
	eventFinal    = "livescribe:final"
	eventFeedback = "livescribe:feedback"
	eventError    = "livescribe:error"
	eventLevel    = "livescribe:level"

	defaultHistoryLimit = 20
)

// App is the Wails application root.
type App struct {
	ctx context.Context

	services  *bootstrap.Services
	telemetry *telemetry.Provider
	logCloser io.Closer
	cfg       config.Config
	log       zerolog.Logger
	bootErr   error
}

func NewApp() *App {
	return &App{log: zerolog.Nop()}
}

func (a *App) startup(ctx context.Context) {
	a.ctx = ctx
	if err := a.boot(ctx); err != nil {
		a.bootErr = err
		a.log.Error().Err(err).Msg("startup failed")
		a.SessionError("", "Startup failed: "+err.Error())
		return
	}
	a.services.Orchestrator.Open(ctx)
}

func (a *App) boot(ctx context.Context) error {
	cfg, err := config.Load(config.DefaultPath())
	if err != nil {
		return err
	}
	a.cfg = cfg

	logger, closer, err := logging.New(cfg.Telemetry)
	if err != nil {
		return err
	}
	a.log, a.logCloser = logger, closer

	provider, err := telemetry.Setup(ctx, cfg.Telemetry, logging.Component(logger, "telemetry"))
	if err != nil {
		return err
	}
	a.telemetry = provider

	services, err := bootstrap.Build(ctx, cfg, logger, bootstrap.Sinks{Events: a, Frames: a})
	if err != nil {
		return err
	}
	a.services = services

	if cfg.Telemetry.MetricsBind != "" {
		handler := telemetry.Handler(provider.MetricsHandler(), services.Ready)
		go func() {
			if err := telemetry.Serve(ctx, cfg.Telemetry.MetricsBind, handler, logging.Component(logger, "http")); err != nil {
				logger.Error().Err(err).Msg("metrics server stopped")
			}
		}()
	}
	return nil
}

func (a *App) shutdown(ctx context.Context) {
	if a.services != nil {
		if err := a.services.Close(ctx); err != nil {
			a.log.Warn().Err(err).Msg("engine shutdown")
		}
	}
	if a.telemetry != nil {
		if err := a.telemetry.Shutdown(ctx); err != nil {
			a.log.Warn().Err(err).Msg("telemetry shutdown")
		}
	}
	if a.logCloser != nil {
		_ = a.logCloser.Close()
	}
}

// Toggle starts or stops a recording and returns the committed feedback event.
func (a *App) Toggle() (string, error) {
	if err := a.requireReady(); err != nil {
		return "", err
	}
	event, err := a.services.Orchestrator.Toggle(a.ctx)
	if errors.Is(err, usecase.ErrToggleInFlight) {
		return "", nil
	}
	return string(event), err
}

// Abort discards an in-progress recording.
func (a *App) Abort() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	if err := a.services.Orchestrator.Abort(a.ctx); err != nil {
		if errors.Is(err, usecase.ErrNotRecording) {
			return nil
		}
		return err
	}
	return nil
}

// Save persists the accumulated transcript.
func (a *App) Save() (domain.Transcript, error) {
	if err := a.requireReady(); err != nil {
		return domain.Transcript{}, err
	}
	return a.services.Orchestrator.Save(a.ctx)
}

// GetStatus returns the current engine snapshot.
func (a *App) GetStatus() domain.Snapshot {
	if a.services == nil {
		status := domain.Snapshot{State: domain.RecordingStateIdle, Language: domain.DefaultLanguage}
		if a.bootErr != nil {
			status.LastError = &domain.ErrorInfo{Message: "Startup failed", Detail: a.bootErr.Error()}
		}
		return status
	}
	return a.services.Orchestrator.Snapshot()
}

func (a *App) SetLanguage(code string) error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return a.services.Orchestrator.SetLanguage(code)
}

func (a *App) Languages() []domain.Language {
	return domain.SupportedLanguages
}

// History returns the most recent saved transcripts, newest first.
func (a *App) History(limit int) ([]domain.Transcript, error) {
	if err := a.requireReady(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	return a.services.Store.List(a.ctx, a.cfg.User.ID, limit)
}

// HapticsEnabled reports the stored preference. Read failures count as enabled.
func (a *App) HapticsEnabled() bool {
	if a.services == nil {
		return a.cfg.Haptics.DefaultEnabled
	}
	enabled, err := a.services.Preferences.HapticsEnabled(a.ctx)
	if err != nil {
		return true
	}
	return enabled
}

func (a *App) SetHapticsEnabled(enabled bool) error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return a.services.Preferences.SetHapticsEnabled(a.ctx, enabled)
}

// GetRuntimeInfo returns non-sensitive config for the UI.
func (a *App) GetRuntimeInfo() map[string]string {
	if a.bootErr != nil {
		return map[string]string{"error": a.bootErr.Error()}
	}

	return map[string]string{
		"provider":    a.cfg.Recognition.Provider,
		"model":       a.cfg.Deepgram.Model,
		"language":    a.cfg.Recognition.Language,
		"rulesFile":   a.cfg.Rules.Path,
		"audioInput":  a.cfg.Audio.InputDevice,
		"samplerMode": a.cfg.Sampler.Mode,
		"store":       a.cfg.Store.Path,
	}
}

func (a *App) requireReady() error {
	if a.bootErr != nil {
		return a.bootErr
	}
	if a.services == nil {
		return fmt.Errorf("application is not initialized")
	}
	return nil
}

// SessionStateChanged emits session lifecycle updates to the frontend.
func (a *App) SessionStateChanged(state domain.RecordingState, reason domain.SessionStateReason) {
	a.emit(eventSession, map[string]string{
		"state":   string(state),
		"reason":  string(reason),
		"message": sessionReasonMessage(reason),
	})
}

func (a *App) InterimTranscript(text string) {
	a.emit(eventInterim, map[string]string{"text": text})
}

// FinalTranscript emits the full accumulated final text.
func (a *App) FinalTranscript(text string) {
	a.emit(eventFinal, map[string]string{"text": text})
}

func (a *App) Feedback(event domain.FeedbackEvent) {
	a.emit(eventFeedback, map[string]string{"event": string(event)})
}

// SessionError emits backend errors to the UI.
func (a *App) SessionError(code domain.ErrorCode, detail string) {
	a.emit(eventError, map[string]string{
		"code":    string(code),
		"message": errorMessage(code, detail),
		"detail":  detail,
	})
}

func (a *App) AudioFrame(frame domain.AudioFrame) {
	a.emit(eventLevel, frame)
}

func (a *App) emit(name string, payload any) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, name, payload)
}

func sessionReasonMessage(reason domain.SessionStateReason) string {
	switch reason {
	case domain.SessionReasonMicCold:
		return "Mic cold"
	case domain.SessionReasonRecordingStarted:
		return "Listening"
	case domain.SessionReasonPermissionDenied:
		return "Microphone or speech permission denied"
	case domain.SessionReasonStartFailed:
		return "Could not start recording"
	case domain.SessionReasonTranscriptMerged:
		return "Recording stopped"
	case domain.SessionReasonNoTranscript:
		return "No speech captured"
	case domain.SessionReasonStopFailed:
		return "Recording stopped with an error"
	case domain.SessionReasonRecordingDiscarded:
		return "Recording discarded"
	case domain.SessionReasonTranscriptSaved:
		return "Transcript saved"
	default:
		return ""
	}
}

func errorMessage(code domain.ErrorCode, detail string) string {
	if code == "" {
		if detail == "" {
			return "Unknown error"
		}
		return detail
	}
	return domain.UserMessage(code)
}
