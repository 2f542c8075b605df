package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"livescribe/internal/audio"
	"livescribe/internal/bus"
	"livescribe/internal/config"
	"livescribe/internal/haptics"
	"livescribe/internal/logging"
	"livescribe/internal/ports"
	"livescribe/internal/providers/deepgram"
	"livescribe/internal/providers/scripted"
	"livescribe/internal/rules"
	"livescribe/internal/sampler"
	"livescribe/internal/store"
	"livescribe/internal/usecase"
)

// Services is the assembled runtime graph.
type Services struct {
	Config       config.Config
	Orchestrator *usecase.Orchestrator
	Store        *store.Store
	Preferences  *store.Preferences
	// Sampler is nil when sampler.mode is off.
	Sampler *sampler.Sampler
	// Bus is nil unless bus.enabled is set.
	Bus *bus.Client

	embedded *bus.EmbeddedServer
	commands *bus.CommandServer
}

// Sinks are the presentation observers attached to the engine. Either may be nil.
type Sinks struct {
	Events ports.EventSink
	Frames ports.FrameSink
}

// Build wires all backend dependencies for cfg. The caller owns the returned
// services and must Close them.
func Build(ctx context.Context, cfg config.Config, log zerolog.Logger, sinks Sinks) (*Services, error) {
	services := &Services{Config: cfg}
	ok := false
	defer func() {
		if !ok {
			_ = services.Close(context.Background())
		}
	}()

	db, err := store.Open(ctx, cfg.Store, logging.Component(log, "store"))
	if err != nil {
		return nil, err
	}
	services.Store = db
	services.Preferences = db.Preferences(cfg.User.ID, cfg.Haptics.DefaultEnabled)

	ruleSet, err := rules.Load(cfg.Rules.Path, cfg.Rules.IterationLimit)
	if err != nil {
		return nil, err
	}

	recognizer, err := newRecognizer(cfg, log)
	if err != nil {
		return nil, err
	}

	driver, err := haptics.New(cfg.Haptics.Driver, logging.Component(log, "haptics"))
	if err != nil {
		return nil, err
	}

	var events fanoutEvents
	var frames fanoutFrames
	if sinks.Events != nil {
		events = append(events, sinks.Events)
	}
	if sinks.Frames != nil {
		frames = append(frames, sinks.Frames)
	}

	var publisher *bus.Publisher
	if cfg.Bus.Enabled {
		if err := services.connectBus(ctx, cfg.Bus, logging.Component(log, "bus")); err != nil {
			return nil, err
		}
		publisher = bus.NewPublisher(services.Bus.Conn(), bus.NewSubjects(cfg.Bus.SubjectPrefix), cfg.Bus.PublishLevels, logging.Component(log, "bus"))
		events = append(events, publisher)
		frames = append(frames, publisher)
	}

	mode := usecase.ParseSamplerMode(cfg.Sampler.Mode)
	var frameSampler usecase.FrameSampler
	if mode != usecase.SamplerModeOff {
		services.Sampler = newSampler(cfg.Sampler, frames, log)
		frameSampler = services.Sampler
	}

	controller := usecase.NewSessionController(
		recognizer,
		ruleSet,
		events,
		usecase.Config{
			Language:           cfg.Recognition.Language,
			InterimResults:     cfg.Recognition.InterimResults,
			MergeOnStopFailure: cfg.Session.MergeOnStopFailure,
			MergeOnTeardown:    cfg.Session.MergeOnTeardown,
		},
		logging.Component(log, "session"),
	)

	services.Orchestrator = usecase.NewOrchestrator(
		controller,
		frameSampler,
		db,
		driver,
		services.Preferences,
		events,
		usecase.OrchestratorConfig{
			UserID:      cfg.User.ID,
			SamplerMode: mode,
			SaveGap:     time.Duration(cfg.Haptics.SaveGapMS) * time.Millisecond,
		},
		logging.Component(log, "orchestrator"),
	)

	if services.Bus != nil {
		services.commands = bus.NewCommandServer(
			services.Bus.Conn(),
			bus.NewSubjects(cfg.Bus.SubjectPrefix),
			services.Orchestrator,
			db,
			cfg.User.ID,
			logging.Component(log, "bus"),
		)
		if err := services.commands.Start(); err != nil {
			return nil, err
		}
	}

	ok = true
	return services, nil
}

func newRecognizer(cfg config.Config, log zerolog.Logger) (ports.Recognizer, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Recognition.Provider)) {
	case "", "deepgram":
		captureLog := logging.Component(log, "capture")
		return deepgram.NewRecognizer(
			deepgram.RecognizerConfig{
				Deepgram: deepgram.Config{
					APIKey:      cfg.Deepgram.APIKey,
					APIBaseURL:  cfg.Deepgram.APIBaseURL,
					Model:       cfg.Deepgram.Model,
					SmartFormat: cfg.Deepgram.SmartFormat,
				},
				Audio: ports.AudioConfig{
					SampleRate:  cfg.Audio.SampleRate,
					Channels:    cfg.Audio.Channels,
					InputFormat: cfg.Audio.InputFormat,
					InputDevice: cfg.Audio.InputDevice,
				},
				ChunkSize:      cfg.Session.ChunkSize,
				StreamingGrace: time.Duration(cfg.Session.StreamingGraceMS) * time.Millisecond,
			},
			audio.NewFFMPEGCapture(cfg.Audio.RecorderCommand, captureLog),
			logging.Component(log, "deepgram"),
		), nil
	case "scripted":
		return scripted.NewRecognizer(scripted.Config{
			Phrases:        cfg.Scripted.Phrases,
			WordInterval:   time.Duration(cfg.Scripted.WordIntervalMS) * time.Millisecond,
			DenyPermission: cfg.Scripted.DenyPermission,
		}, logging.Component(log, "scripted")), nil
	default:
		return nil, fmt.Errorf("unsupported recognition provider %q", cfg.Recognition.Provider)
	}
}

func newSampler(cfg config.SamplerConfig, sink ports.FrameSink, log zerolog.Logger) *sampler.Sampler {
	mic := audio.NewMicrophone(audio.MicrophoneConfig{
		SampleRate: cfg.SampleRate,
		Analyser: audio.AnalyserConfig{
			FFTSize:     cfg.FFTSize,
			Smoothing:   cfg.Smoothing,
			MinDecibels: cfg.MinDecibels,
			MaxDecibels: cfg.MaxDecibels,
		},
	}, logging.Component(log, "microphone"))

	interval := time.Duration(0)
	if cfg.FPS > 0 {
		interval = time.Second / time.Duration(cfg.FPS)
	}
	return sampler.New(mic, sink, sampler.Config{Bars: cfg.Bars, FrameInterval: interval}, logging.Component(log, "sampler"))
}

func (s *Services) connectBus(ctx context.Context, cfg config.BusConfig, log zerolog.Logger) error {
	var servers []string
	if cfg.Embedded {
		embedded, err := bus.StartEmbedded(cfg, log)
		if err != nil {
			return err
		}
		s.embedded = embedded
		servers = []string{embedded.ClientURL()}
	}
	client, err := bus.Connect(ctx, cfg, log, servers...)
	if err != nil {
		return err
	}
	s.Bus = client
	return nil
}

// Ready reports whether the engine can accept commands.
func (s *Services) Ready() bool {
	if s == nil || s.Orchestrator == nil {
		return false
	}
	return s.Bus == nil || s.Bus.Healthy()
}

// Close releases everything Build acquired, in reverse order.
func (s *Services) Close(ctx context.Context) error {
	var errs []error
	if s.commands != nil {
		s.commands.Close()
	}
	if s.Orchestrator != nil {
		if err := s.Orchestrator.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if s.Bus != nil {
		s.Bus.Close()
	}
	if s.embedded != nil {
		s.embedded.Shutdown()
	}
	if s.Store != nil {
		if err := s.Store.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
