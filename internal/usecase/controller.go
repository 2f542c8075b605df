package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"livescribe/internal/domain"
	"livescribe/internal/ports"
)

var (
	ErrToggleInFlight      = errors.New("a start or stop is already in progress")
	ErrAlreadyRecording    = errors.New("already recording")
	ErrNotRecording        = errors.New("no active recording session")
	ErrBusy                = errors.New("not allowed while recording")
	ErrUnsupportedLanguage = errors.New("unsupported language")
	ErrClosed              = errors.New("session controller is closed")
)

// Config controls recording behavior.
type Config struct {
	Language       string
	InterimResults bool
	// MergeOnStopFailure merges the held interim text even when stop-listening fails.
	MergeOnStopFailure bool
	// MergeOnTeardown merges the held interim text when a recording is aborted.
	MergeOnTeardown bool
}

// SessionController owns the recording state, the authoritative interim slot
// and the accumulated final transcript.
type SessionController struct {
	recognizer ports.Recognizer
	rules      ports.RulesEngine
	events     ports.EventSink
	cfg        Config
	log        zerolog.Logger

	// toggle admits one start/stop/abort sequence at a time.
	toggle chan struct{}
	view   *interimView

	mu       sync.Mutex
	state    domain.RecordingState
	final    string
	language string
	current  *liveSession
	closed   bool
}

type liveSession struct {
	slot      *interimSlot
	sub       ports.Subscription
	startedAt time.Time
	once      sync.Once
}

// release drops the recognizer subscription exactly once.
func (s *liveSession) release() {
	s.once.Do(s.sub.Unsubscribe)
}

func NewSessionController(
	recognizer ports.Recognizer,
	rules ports.RulesEngine,
	events ports.EventSink,
	cfg Config,
	log zerolog.Logger,
) *SessionController {
	if strings.TrimSpace(cfg.Language) == "" {
		cfg.Language = domain.DefaultLanguage
	}
	return &SessionController{
		recognizer: recognizer,
		rules:      rules,
		events:     events,
		cfg:        cfg,
		log:        log,
		toggle:     make(chan struct{}, 1),
		view:       newInterimView(events),
		state:      domain.RecordingStateIdle,
		language:   cfg.Language,
	}
}

// Start runs the start sequence: permission, subscribe, start listening.
// The returned feedback event is empty when the request was rejected
// without running the sequence.
func (c *SessionController) Start(ctx context.Context) (domain.FeedbackEvent, error) {
	if !c.tryAcquire() {
		return "", ErrToggleInFlight
	}
	defer c.releaseToggle()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return "", ErrClosed
	}
	if c.state == domain.RecordingStateRecording {
		c.mu.Unlock()
		return "", ErrAlreadyRecording
	}
	language := c.language
	c.mu.Unlock()

	granted, err := c.recognizer.RequestPermission(ctx)
	if err != nil && !errors.Is(err, domain.ErrPermissionDenied) {
		err = fmt.Errorf("%w: permission request failed: %w", domain.ErrDeviceUnavailable, err)
		c.fail(err, domain.SessionReasonStartFailed)
		return domain.FeedbackStartError, err
	}
	if !granted || err != nil {
		err = domain.ErrPermissionDenied
		c.fail(err, domain.SessionReasonPermissionDenied)
		return domain.FeedbackStartDenied, err
	}

	// Subscribe before starting so no early event is lost.
	slot := newInterimSlot(c.view)
	sub, err := c.recognizer.Subscribe(slot.offer)
	if err != nil {
		err = fmt.Errorf("%w: subscribe: %w", domain.ErrRecognizerStartFailed, err)
		c.fail(err, domain.SessionReasonStartFailed)
		return domain.FeedbackStartError, err
	}
	session := &liveSession{slot: slot, sub: sub, startedAt: time.Now()}

	listenCfg := ports.ListenConfig{Language: language, InterimResults: c.cfg.InterimResults}
	if err := c.recognizer.StartListening(ctx, listenCfg); err != nil {
		session.release()
		slot.take()
		if !errors.Is(err, domain.ErrRecognizerStartFailed) {
			err = fmt.Errorf("%w: %w", domain.ErrRecognizerStartFailed, err)
		}
		c.fail(err, domain.SessionReasonStartFailed)
		return domain.FeedbackStartError, err
	}

	c.mu.Lock()
	c.current = session
	c.state = domain.RecordingStateRecording
	c.mu.Unlock()

	c.log.Info().Str("language", language).Msg("recording started")
	c.events.SessionStateChanged(domain.RecordingStateRecording, domain.SessionReasonRecordingStarted)
	return domain.FeedbackStartOK, nil
}

// Stop runs the stop sequence and merges the held interim text into the final
// transcript. The controller is idle when Stop returns, whatever the outcome.
func (c *SessionController) Stop(ctx context.Context) (domain.FeedbackEvent, error) {
	if !c.tryAcquire() {
		return "", ErrToggleInFlight
	}
	defer c.releaseToggle()

	session, err := c.active()
	if err != nil {
		return "", err
	}

	stopErr := c.recognizer.StopListening(ctx)
	merged := c.finish(session, stopErr == nil || c.cfg.MergeOnStopFailure)

	if stopErr != nil {
		err := fmt.Errorf("%w: %w", domain.ErrRecognizerStopFailed, stopErr)
		c.fail(err, domain.SessionReasonStopFailed)
		return domain.FeedbackStopError, err
	}

	reason := domain.SessionReasonNoTranscript
	if merged {
		reason = domain.SessionReasonTranscriptMerged
	}
	c.log.Info().Dur("duration", time.Since(session.startedAt)).Bool("merged", merged).Msg("recording stopped")
	c.events.SessionStateChanged(domain.RecordingStateIdle, reason)
	return domain.FeedbackStopOK, nil
}

// Abort discards an in-progress recording. Unlike Start and Stop it waits for
// an in-flight toggle instead of rejecting.
func (c *SessionController) Abort(ctx context.Context) error {
	if err := c.acquire(ctx); err != nil {
		return err
	}
	defer c.releaseToggle()
	return c.abortHeld(ctx)
}

// abortHeld runs the abort with the toggle slot already held.
func (c *SessionController) abortHeld(ctx context.Context) error {
	session, err := c.active()
	if err != nil {
		return err
	}

	stopErr := c.recognizer.StopListening(ctx)
	merge := c.cfg.MergeOnTeardown && (stopErr == nil || c.cfg.MergeOnStopFailure)
	merged := c.finish(session, merge)

	reason := domain.SessionReasonRecordingDiscarded
	if merged {
		reason = domain.SessionReasonTranscriptMerged
	}
	c.events.SessionStateChanged(domain.RecordingStateIdle, reason)

	if stopErr != nil {
		c.log.Warn().Err(stopErr).Msg("recognizer stop failed during abort")
		return fmt.Errorf("%w: %w", domain.ErrRecognizerStopFailed, stopErr)
	}
	return nil
}

// Close aborts any recording and stops interim delivery. The controller is
// marked closed before the toggle slot is released, so no Start can slip in
// behind the teardown.
func (c *SessionController) Close(ctx context.Context) error {
	if err := c.acquire(ctx); err != nil {
		return err
	}

	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	err := c.abortHeld(ctx)
	c.releaseToggle()
	if errors.Is(err, ErrNotRecording) {
		err = nil
	}

	c.view.close()
	return err
}

// State returns the current recording state.
func (c *SessionController) State() domain.RecordingState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// FinalText returns the accumulated final transcript.
func (c *SessionController) FinalText() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.final
}

// InterimText returns the observer copy of the current hypothesis.
func (c *SessionController) InterimText() string {
	return c.view.get()
}

func (c *SessionController) Language() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.language
}

// SetLanguage changes the language used by the next recording.
func (c *SessionController) SetLanguage(code string) error {
	lang, ok := domain.LookupLanguage(code)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnsupportedLanguage, code)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == domain.RecordingStateRecording {
		return ErrBusy
	}
	c.language = lang.Code
	return nil
}

// ClearSaved removes a saved transcript from the front of the final text.
// It does nothing while recording.
func (c *SessionController) ClearSaved(saved string) {
	c.mu.Lock()
	if c.state != domain.RecordingStateIdle {
		c.mu.Unlock()
		return
	}
	final := removeSaved(c.final, saved)
	changed := final != c.final
	c.final = final
	c.mu.Unlock()

	if changed {
		c.events.FinalTranscript(final)
	}
}

// holdIdle claims the toggle slot while the controller is idle. No recording
// can start until the returned release func runs.
func (c *SessionController) holdIdle() (func(), error) {
	if !c.tryAcquire() {
		return nil, ErrToggleInFlight
	}
	c.mu.Lock()
	closed, state := c.closed, c.state
	c.mu.Unlock()

	switch {
	case closed:
		c.releaseToggle()
		return nil, ErrClosed
	case state != domain.RecordingStateIdle:
		c.releaseToggle()
		return nil, ErrBusy
	}
	return c.releaseToggle, nil
}

func (c *SessionController) active() (*liveSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != domain.RecordingStateRecording || c.current == nil {
		return nil, ErrNotRecording
	}
	return c.current, nil
}

// finish closes the slot, releases the subscription and commits idle.
// It reports whether a fragment was appended to the final text.
func (c *SessionController) finish(session *liveSession, merge bool) bool {
	fragment := session.slot.take()
	session.release()

	if merge {
		fragment = c.rewrite(fragment)
	}

	c.mu.Lock()
	merged := false
	if merge && strings.TrimSpace(fragment) != "" {
		c.final = appendFragment(c.final, fragment)
		merged = true
	}
	final := c.final
	c.current = nil
	c.state = domain.RecordingStateIdle
	c.mu.Unlock()

	if merged {
		c.events.FinalTranscript(final)
	}
	return merged
}

func (c *SessionController) rewrite(fragment string) string {
	fragment = strings.TrimSpace(fragment)
	if fragment == "" || c.rules == nil {
		return fragment
	}
	out, err := c.rules.Apply(fragment)
	if err != nil {
		c.log.Warn().Err(err).Msg("rules failed; merging raw fragment")
		return fragment
	}
	return out
}

// fail reports a recoverable error and the resulting idle state.
func (c *SessionController) fail(err error, reason domain.SessionStateReason) {
	c.log.Warn().Err(err).Str("reason", string(reason)).Msg("session transition failed")
	c.events.SessionError(domain.CodeOf(err), err.Error())
	c.events.SessionStateChanged(domain.RecordingStateIdle, reason)
}

func (c *SessionController) tryAcquire() bool {
	select {
	case c.toggle <- struct{}{}:
		return true
	default:
		return false
	}
}

func (c *SessionController) acquire(ctx context.Context) error {
	select {
	case c.toggle <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *SessionController) releaseToggle() {
	<-c.toggle
}
