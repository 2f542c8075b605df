package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"livescribe/internal/domain"
	"livescribe/internal/ports"
)

var (
	ErrSaveDisabled = errors.New("nothing to save")
	ErrSaveInFlight = errors.New("a save is already in progress")
)

// SamplerMode decides when the level sampler runs.
type SamplerMode string

const (
	SamplerModeRecording SamplerMode = "recording"
	SamplerModeIdle      SamplerMode = "idle"
	SamplerModeAlways    SamplerMode = "always"
	SamplerModeOff       SamplerMode = "off"
)

// ParseSamplerMode returns the mode for s, defaulting to recording.
func ParseSamplerMode(s string) SamplerMode {
	switch SamplerMode(strings.ToLower(strings.TrimSpace(s))) {
	case SamplerModeIdle:
		return SamplerModeIdle
	case SamplerModeAlways:
		return SamplerModeAlways
	case SamplerModeOff:
		return SamplerModeOff
	default:
		return SamplerModeRecording
	}
}

func (m SamplerMode) wants(state domain.RecordingState) bool {
	switch m {
	case SamplerModeAlways:
		return true
	case SamplerModeIdle:
		return state == domain.RecordingStateIdle
	case SamplerModeOff:
		return false
	default:
		return state == domain.RecordingStateRecording
	}
}

// FrameSampler is the level sampler as seen by the orchestrator.
type FrameSampler interface {
	Start(ctx context.Context) error
	Stop() error
	Active() bool
}

type OrchestratorConfig struct {
	UserID      string
	SamplerMode SamplerMode
	SaveGap     time.Duration
}

// Orchestrator is the presentation-facing engine. It sequences the session
// controller, the sampler, persistence and feedback.
type Orchestrator struct {
	session  *SessionController
	sampler  FrameSampler
	store    ports.TranscriptStore
	events   ports.EventSink
	feedback *feedbackPlayer
	metrics  *instruments
	cfg      OrchestratorConfig
	log      zerolog.Logger

	saving    atomic.Bool
	closeOnce sync.Once
	closeErr  error

	mu        sync.Mutex
	lastErr   *domain.ErrorInfo
	startedAt time.Time
}

func NewOrchestrator(
	session *SessionController,
	sampler FrameSampler,
	store ports.TranscriptStore,
	haptics ports.Haptics,
	prefs ports.Preferences,
	events ports.EventSink,
	cfg OrchestratorConfig,
	log zerolog.Logger,
) *Orchestrator {
	if cfg.SamplerMode == "" {
		cfg.SamplerMode = SamplerModeRecording
	}
	return &Orchestrator{
		session:  session,
		sampler:  sampler,
		store:    store,
		events:   events,
		feedback: newFeedbackPlayer(haptics, prefs, cfg.SaveGap, log),
		metrics:  newInstruments(log),
		cfg:      cfg,
		log:      log,
	}
}

// Open announces the initial idle state and starts the sampler if the mode
// asks for it while idle.
func (o *Orchestrator) Open(ctx context.Context) {
	o.events.SessionStateChanged(domain.RecordingStateIdle, domain.SessionReasonMicCold)
	o.syncSampler(ctx)
}

// Toggle starts a recording when idle and stops it when recording.
func (o *Orchestrator) Toggle(ctx context.Context) (domain.FeedbackEvent, error) {
	if o.session.State() == domain.RecordingStateRecording {
		return o.Stop(ctx)
	}
	return o.Start(ctx)
}

func (o *Orchestrator) Start(ctx context.Context) (domain.FeedbackEvent, error) {
	ctx, span := o.metrics.tracer.Start(ctx, "session.start",
		trace.WithAttributes(attribute.String("language", o.session.Language())))
	defer span.End()

	event, err := o.session.Start(ctx)
	if event == "" {
		endSpan(span, err)
		return event, err
	}
	if err == nil {
		o.mu.Lock()
		o.startedAt = time.Now()
		o.mu.Unlock()
		o.metrics.recordTransition(ctx, domain.RecordingStateRecording)
	}
	o.commit(ctx, event, err)
	o.syncSampler(ctx)
	endSpan(span, err)
	return event, err
}

func (o *Orchestrator) Stop(ctx context.Context) (domain.FeedbackEvent, error) {
	ctx, span := o.metrics.tracer.Start(ctx, "session.stop")
	defer span.End()

	event, err := o.session.Stop(ctx)
	if event == "" {
		endSpan(span, err)
		return event, err
	}
	o.recordStopped(ctx)
	o.commit(ctx, event, err)
	o.syncSampler(ctx)
	endSpan(span, err)
	return event, err
}

// Abort discards the current recording without merging or feedback.
func (o *Orchestrator) Abort(ctx context.Context) error {
	err := o.session.Abort(ctx)
	if errors.Is(err, ErrNotRecording) {
		return err
	}
	o.recordStopped(ctx)
	o.syncSampler(ctx)
	return err
}

// Save persists the final transcript. It holds the toggle slot for the whole
// store call, so a Start issued meanwhile fails with ErrToggleInFlight and the
// final text cannot change under the save.
func (o *Orchestrator) Save(ctx context.Context) (domain.Transcript, error) {
	if !o.canSave() {
		return domain.Transcript{}, ErrSaveDisabled
	}
	if !o.saving.CompareAndSwap(false, true) {
		return domain.Transcript{}, ErrSaveInFlight
	}
	defer o.saving.Store(false)

	release, err := o.session.holdIdle()
	if err != nil {
		if errors.Is(err, ErrClosed) {
			return domain.Transcript{}, err
		}
		return domain.Transcript{}, ErrSaveDisabled
	}
	defer release()

	text := strings.TrimSpace(o.session.FinalText())
	if text == "" {
		return domain.Transcript{}, ErrSaveDisabled
	}
	language := o.session.Language()

	ctx, span := o.metrics.tracer.Start(ctx, "transcript.save",
		trace.WithAttributes(attribute.String("language", language), attribute.Int("chars", len(text))))
	defer span.End()

	record, err := o.store.Save(ctx, text, language, o.cfg.UserID)
	o.metrics.recordSave(ctx, err)
	if err != nil {
		if !errors.Is(err, domain.ErrPersistenceFailed) {
			err = fmt.Errorf("%w: %w", domain.ErrPersistenceFailed, err)
		}
		o.log.Warn().Err(err).Msg("transcript save failed")
		o.events.SessionError(domain.ErrorCodePersistenceFailed, err.Error())
		o.commit(ctx, domain.FeedbackSaveError, err)
		endSpan(span, err)
		return domain.Transcript{}, err
	}

	o.session.ClearSaved(text)
	o.log.Info().Str("id", record.ID).Str("language", language).Msg("transcript saved")
	o.events.SessionStateChanged(o.session.State(), domain.SessionReasonTranscriptSaved)
	o.commit(ctx, domain.FeedbackSaveOK, nil)
	return record, nil
}

func (o *Orchestrator) SetLanguage(code string) error {
	return o.session.SetLanguage(code)
}

// Snapshot returns the observer-facing engine state.
func (o *Orchestrator) Snapshot() domain.Snapshot {
	o.mu.Lock()
	var lastErr *domain.ErrorInfo
	if o.lastErr != nil {
		copied := *o.lastErr
		lastErr = &copied
	}
	o.mu.Unlock()

	state := o.session.State()
	final := o.session.FinalText()
	saving := o.saving.Load()
	return domain.Snapshot{
		State:       state,
		FinalText:   final,
		InterimText: o.session.InterimText(),
		Language:    o.session.Language(),
		CanSave:     !saving && state == domain.RecordingStateIdle && strings.TrimSpace(final) != "",
		Saving:      saving,
		LastError:   lastErr,
	}
}

// Close tears the engine down: any recording is aborted, the sampler stopped
// and pending feedback dropped. Safe to call more than once.
func (o *Orchestrator) Close(ctx context.Context) error {
	o.closeOnce.Do(func() {
		err := o.session.Close(ctx)
		if o.sampler != nil {
			if stopErr := o.sampler.Stop(); stopErr != nil {
				err = errors.Join(err, stopErr)
			}
		}
		o.feedback.close()
		o.closeErr = err
	})
	return o.closeErr
}

func (o *Orchestrator) canSave() bool {
	return o.session.State() == domain.RecordingStateIdle &&
		strings.TrimSpace(o.session.FinalText()) != ""
}

// commit publishes a feedback event after its transition committed.
func (o *Orchestrator) commit(ctx context.Context, event domain.FeedbackEvent, err error) {
	o.mu.Lock()
	o.lastErr = domain.NewErrorInfo(err)
	o.mu.Unlock()

	o.metrics.recordFeedback(ctx, event)
	o.events.Feedback(event)
	o.feedback.play(event)
}

func (o *Orchestrator) recordStopped(ctx context.Context) {
	o.mu.Lock()
	startedAt := o.startedAt
	o.startedAt = time.Time{}
	o.mu.Unlock()

	o.metrics.recordTransition(ctx, domain.RecordingStateIdle)
	if !startedAt.IsZero() {
		o.metrics.recordDuration(ctx, o.session.Language(), time.Since(startedAt))
	}
}

// syncSampler starts or stops the sampler to match the current state.
// Sampler failures only affect visualization.
func (o *Orchestrator) syncSampler(ctx context.Context) {
	if o.sampler == nil {
		return
	}
	want := o.cfg.SamplerMode.wants(o.session.State())
	switch {
	case want && !o.sampler.Active():
		if err := o.sampler.Start(ctx); err != nil {
			o.log.Warn().Err(err).Msg("level sampler unavailable")
			o.events.SessionError(domain.CodeOf(err), err.Error())
		}
	case !want && o.sampler.Active():
		if err := o.sampler.Stop(); err != nil {
			o.log.Warn().Err(err).Msg("level sampler stop failed")
		}
	}
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}
