package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"livescribe/internal/domain"
	"livescribe/internal/ports"
)

func newTestController(recognizer *fakeRecognizer, events *fakeEventSink, cfg Config) *SessionController {
	return NewSessionController(recognizer, nil, events, cfg, zerolog.Nop())
}

func TestSessionControllerStopMergesLatestInterim(t *testing.T) {
	t.Parallel()

	recognizer := newFakeRecognizer()
	events := &fakeEventSink{}
	controller := newTestController(recognizer, events, Config{InterimResults: true})
	defer controller.Close(context.Background())

	event, err := controller.Start(context.Background())
	if err != nil || event != domain.FeedbackStartOK {
		t.Fatalf("start failed: event=%q err=%v", event, err)
	}
	if controller.State() != domain.RecordingStateRecording {
		t.Fatalf("expected recording, got %s", controller.State())
	}

	recognizer.emit(domain.InterimResult{Text: "hello"})
	recognizer.emit(domain.InterimResult{Text: "hello world"})

	event, err = controller.Stop(context.Background())
	if err != nil || event != domain.FeedbackStopOK {
		t.Fatalf("stop failed: event=%q err=%v", event, err)
	}
	if got := controller.FinalText(); got != "hello world" {
		t.Fatalf("unexpected final text: %q", got)
	}
	if controller.InterimText() != "" {
		t.Fatalf("expected interim text cleared, got %q", controller.InterimText())
	}

	states := events.snapshotStates()
	if states[len(states)-1].reason != domain.SessionReasonTranscriptMerged {
		t.Fatalf("unexpected final reason: %s", states[len(states)-1].reason)
	}
	if finals := events.snapshotFinals(); len(finals) != 1 || finals[0] != "hello world" {
		t.Fatalf("unexpected final transcript events: %#v", finals)
	}
}

func TestSessionControllerAppendsWithSingleSpace(t *testing.T) {
	t.Parallel()

	recognizer := newFakeRecognizer()
	controller := newTestController(recognizer, &fakeEventSink{}, Config{})
	defer controller.Close(context.Background())

	for _, fragment := range []string{"foo", "  bar  "} {
		if _, err := controller.Start(context.Background()); err != nil {
			t.Fatalf("start failed: %v", err)
		}
		recognizer.emit(domain.InterimResult{Text: fragment})
		if _, err := controller.Stop(context.Background()); err != nil {
			t.Fatalf("stop failed: %v", err)
		}
	}

	if got := controller.FinalText(); got != "foo bar" {
		t.Fatalf("unexpected final text: %q", got)
	}
}

func TestSessionControllerImmediateStopLeavesFinalText(t *testing.T) {
	t.Parallel()

	recognizer := newFakeRecognizer()
	events := &fakeEventSink{}
	controller := newTestController(recognizer, events, Config{})
	defer controller.Close(context.Background())

	if _, err := controller.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if _, err := controller.Stop(context.Background()); err != nil {
		t.Fatalf("stop failed: %v", err)
	}

	if controller.FinalText() != "" {
		t.Fatalf("expected empty final text, got %q", controller.FinalText())
	}
	states := events.snapshotStates()
	if states[len(states)-1].reason != domain.SessionReasonNoTranscript {
		t.Fatalf("unexpected reason: %s", states[len(states)-1].reason)
	}
}

func TestSessionControllerSubscribesBeforeStartListening(t *testing.T) {
	t.Parallel()

	recognizer := newFakeRecognizer()
	controller := newTestController(recognizer, &fakeEventSink{}, Config{Language: "hu-HU", InterimResults: true})
	defer controller.Close(context.Background())

	if _, err := controller.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	calls := recognizer.snapshotCalls()
	if len(calls) < 3 || calls[0] != "permission" || calls[1] != "subscribe" || calls[2] != "start" {
		t.Fatalf("unexpected call order: %v", calls)
	}
	cfg := recognizer.lastListenConfig()
	if cfg.Language != "hu-HU" || !cfg.InterimResults {
		t.Fatalf("unexpected listen config: %#v", cfg)
	}
}

func TestSessionControllerPermissionDenied(t *testing.T) {
	t.Parallel()

	recognizer := newFakeRecognizer()
	recognizer.granted = false
	events := &fakeEventSink{}
	controller := newTestController(recognizer, events, Config{})
	defer controller.Close(context.Background())

	event, err := controller.Start(context.Background())
	if event != domain.FeedbackStartDenied {
		t.Fatalf("expected start_denied, got %q", event)
	}
	if !errors.Is(err, domain.ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
	if controller.State() != domain.RecordingStateIdle {
		t.Fatalf("expected idle, got %s", controller.State())
	}
	if recognizer.subscribeCount() != 0 {
		t.Fatalf("expected no subscription after denial")
	}
	for _, state := range events.snapshotStates() {
		if state.state == domain.RecordingStateRecording {
			t.Fatalf("recording state must never be published after denial")
		}
	}
	errs := events.snapshotErrors()
	if len(errs) != 1 || errs[0].code != domain.ErrorCodePermissionDenied {
		t.Fatalf("unexpected errors: %#v", errs)
	}
}

func TestSessionControllerPermissionRequestError(t *testing.T) {
	t.Parallel()

	recognizer := newFakeRecognizer()
	recognizer.permissionErr = errors.New("no input devices")
	controller := newTestController(recognizer, &fakeEventSink{}, Config{})
	defer controller.Close(context.Background())

	event, err := controller.Start(context.Background())
	if event != domain.FeedbackStartError {
		t.Fatalf("expected start_error, got %q", event)
	}
	if domain.CodeOf(err) != domain.ErrorCodeDeviceUnavailable {
		t.Fatalf("expected device_unavailable, got %v", err)
	}
}

func TestSessionControllerStartFailureUnsubscribes(t *testing.T) {
	t.Parallel()

	recognizer := newFakeRecognizer()
	recognizer.startErr = errors.New("socket closed")
	events := &fakeEventSink{}
	controller := newTestController(recognizer, events, Config{})
	defer controller.Close(context.Background())

	event, err := controller.Start(context.Background())
	if event != domain.FeedbackStartError {
		t.Fatalf("expected start_error, got %q", event)
	}
	if !errors.Is(err, domain.ErrRecognizerStartFailed) {
		t.Fatalf("expected ErrRecognizerStartFailed, got %v", err)
	}
	if controller.State() != domain.RecordingStateIdle {
		t.Fatalf("expected idle after failed start")
	}
	if recognizer.subscribeCount() != 1 || recognizer.unsubscribeCount() != 1 {
		t.Fatalf("expected one subscribe and one unsubscribe, got %d/%d",
			recognizer.subscribeCount(), recognizer.unsubscribeCount())
	}
	states := events.snapshotStates()
	if states[len(states)-1].reason != domain.SessionReasonStartFailed {
		t.Fatalf("unexpected reason: %s", states[len(states)-1].reason)
	}
}

func TestSessionControllerStopFailureForcesIdleWithoutMerge(t *testing.T) {
	t.Parallel()

	recognizer := newFakeRecognizer()
	recognizer.stopErr = errors.New("stream reset")
	events := &fakeEventSink{}
	controller := newTestController(recognizer, events, Config{})
	defer controller.Close(context.Background())

	if _, err := controller.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	recognizer.emit(domain.InterimResult{Text: "lost words"})

	event, err := controller.Stop(context.Background())
	if event != domain.FeedbackStopError {
		t.Fatalf("expected stop_error, got %q", event)
	}
	if !errors.Is(err, domain.ErrRecognizerStopFailed) {
		t.Fatalf("expected ErrRecognizerStopFailed, got %v", err)
	}
	if controller.State() != domain.RecordingStateIdle {
		t.Fatalf("expected idle after failed stop")
	}
	if controller.FinalText() != "" {
		t.Fatalf("expected no merge, got %q", controller.FinalText())
	}
	if controller.InterimText() != "" {
		t.Fatalf("expected interim text cleared")
	}
	if recognizer.unsubscribeCount() != 1 {
		t.Fatalf("expected exactly one unsubscribe, got %d", recognizer.unsubscribeCount())
	}
}

func TestSessionControllerStopFailureMergesWhenConfigured(t *testing.T) {
	t.Parallel()

	recognizer := newFakeRecognizer()
	recognizer.stopErr = errors.New("stream reset")
	controller := newTestController(recognizer, &fakeEventSink{}, Config{MergeOnStopFailure: true})
	defer controller.Close(context.Background())

	if _, err := controller.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	recognizer.emit(domain.InterimResult{Text: "kept words"})

	if event, _ := controller.Stop(context.Background()); event != domain.FeedbackStopError {
		t.Fatalf("expected stop_error, got %q", event)
	}
	if controller.FinalText() != "kept words" {
		t.Fatalf("expected merge, got %q", controller.FinalText())
	}
}

func TestSessionControllerRejectsConcurrentToggle(t *testing.T) {
	t.Parallel()

	recognizer := newFakeRecognizer()
	recognizer.startGate = make(chan struct{})
	controller := newTestController(recognizer, &fakeEventSink{}, Config{})
	defer controller.Close(context.Background())

	done := make(chan error, 1)
	go func() {
		_, err := controller.Start(context.Background())
		done <- err
	}()

	waitFor(t, func() bool { return recognizer.startCount() == 1 })

	if _, err := controller.Start(context.Background()); !errors.Is(err, ErrToggleInFlight) {
		t.Fatalf("expected ErrToggleInFlight for second start, got %v", err)
	}
	if _, err := controller.Stop(context.Background()); !errors.Is(err, ErrToggleInFlight) {
		t.Fatalf("expected ErrToggleInFlight for stop, got %v", err)
	}

	close(recognizer.startGate)
	if err := <-done; err != nil {
		t.Fatalf("first start failed: %v", err)
	}
	if recognizer.startCount() != 1 {
		t.Fatalf("expected exactly one start-listening call, got %d", recognizer.startCount())
	}
}

func TestSessionControllerDropsStaleAndLateEvents(t *testing.T) {
	t.Parallel()

	recognizer := newFakeRecognizer()
	controller := newTestController(recognizer, &fakeEventSink{}, Config{})
	defer controller.Close(context.Background())

	if _, err := controller.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	handler := recognizer.currentHandler()

	recognizer.emit(domain.InterimResult{Seq: 2, Text: "newer"})
	recognizer.emit(domain.InterimResult{Seq: 1, Text: "older"})

	if _, err := controller.Stop(context.Background()); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if controller.FinalText() != "newer" {
		t.Fatalf("expected newest hypothesis, got %q", controller.FinalText())
	}

	handler(domain.InterimResult{Seq: 3, Text: "after stop"})
	if controller.InterimText() != "" {
		t.Fatalf("late event leaked into interim text: %q", controller.InterimText())
	}
	if controller.FinalText() != "newer" {
		t.Fatalf("late event changed final text: %q", controller.FinalText())
	}
}

func TestSessionControllerAbortDiscards(t *testing.T) {
	t.Parallel()

	recognizer := newFakeRecognizer()
	events := &fakeEventSink{}
	controller := newTestController(recognizer, events, Config{})
	defer controller.Close(context.Background())

	if err := controller.Abort(context.Background()); !errors.Is(err, ErrNotRecording) {
		t.Fatalf("expected ErrNotRecording, got %v", err)
	}

	if _, err := controller.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	recognizer.emit(domain.InterimResult{Text: "discard me"})
	if err := controller.Abort(context.Background()); err != nil {
		t.Fatalf("abort failed: %v", err)
	}

	if controller.FinalText() != "" {
		t.Fatalf("expected discarded text, got %q", controller.FinalText())
	}
	if recognizer.unsubscribeCount() != 1 {
		t.Fatalf("expected one unsubscribe, got %d", recognizer.unsubscribeCount())
	}
	states := events.snapshotStates()
	if states[len(states)-1].reason != domain.SessionReasonRecordingDiscarded {
		t.Fatalf("expected discarded reason, got %s", states[len(states)-1].reason)
	}
}

func TestSessionControllerCloseMergesWhenConfigured(t *testing.T) {
	t.Parallel()

	recognizer := newFakeRecognizer()
	controller := newTestController(recognizer, &fakeEventSink{}, Config{MergeOnTeardown: true})

	if _, err := controller.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	recognizer.emit(domain.InterimResult{Text: "keep me"})
	if err := controller.Close(context.Background()); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	if controller.FinalText() != "keep me" {
		t.Fatalf("expected teardown merge, got %q", controller.FinalText())
	}
	if _, err := controller.Start(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed after close, got %v", err)
	}
}

func TestSessionControllerCloseRejectsStartsRacingTeardown(t *testing.T) {
	t.Parallel()

	recognizer := newFakeRecognizer()
	controller := newTestController(recognizer, &fakeEventSink{}, Config{})

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		for {
			if _, err := controller.Start(context.Background()); errors.Is(err, ErrClosed) {
				return
			}
		}
	}()
	waitFor(t, func() bool { return recognizer.startCount() >= 1 })

	if err := controller.Close(context.Background()); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	<-stopped

	if controller.State() != domain.RecordingStateIdle {
		t.Fatalf("expected idle after close, got %s", controller.State())
	}
	if subs, unsubs := recognizer.subscribeCount(), recognizer.unsubscribeCount(); subs != unsubs {
		t.Fatalf("subscription left live after close: %d subscribes, %d unsubscribes", subs, unsubs)
	}
	starts := recognizer.startCount()
	if _, err := controller.Start(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed after close, got %v", err)
	}
	if recognizer.startCount() != starts {
		t.Fatalf("recognizer started after close")
	}
}

func TestSessionControllerCloseWaitsForInFlightStart(t *testing.T) {
	t.Parallel()

	recognizer := newFakeRecognizer()
	recognizer.startGate = make(chan struct{})
	controller := newTestController(recognizer, &fakeEventSink{}, Config{})

	started := make(chan error, 1)
	go func() {
		_, err := controller.Start(context.Background())
		started <- err
	}()
	waitFor(t, func() bool { return recognizer.startCount() == 1 })

	closed := make(chan error, 1)
	go func() { closed <- controller.Close(context.Background()) }()

	close(recognizer.startGate)
	if err := <-started; err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := <-closed; err != nil {
		t.Fatalf("close failed: %v", err)
	}

	if controller.State() != domain.RecordingStateIdle {
		t.Fatalf("expected close to abort the started session, got %s", controller.State())
	}
	if recognizer.unsubscribeCount() != 1 {
		t.Fatalf("expected subscription released, got %d unsubscribes", recognizer.unsubscribeCount())
	}
}

func TestSessionControllerStopReadsSlotWhileObserverLags(t *testing.T) {
	t.Parallel()

	recognizer := newFakeRecognizer()
	sink := &laggingInterimSink{
		fakeEventSink: &fakeEventSink{},
		gate:          make(chan struct{}),
		entered:       make(chan struct{}),
	}
	controller := NewSessionController(recognizer, nil, sink, Config{}, zerolog.Nop())
	defer controller.Close(context.Background())
	var release sync.Once
	unblock := func() { release.Do(func() { close(sink.gate) }) }
	defer unblock()

	if _, err := controller.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	recognizer.emit(domain.InterimResult{Seq: 1, Text: "hello"})
	<-sink.entered
	recognizer.emit(domain.InterimResult{Seq: 2, Text: "hello world"})

	if _, err := controller.Stop(context.Background()); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if got := controller.FinalText(); got != "hello world" {
		t.Fatalf("expected latest hypothesis merged, got %q", got)
	}
	if delivered := sink.snapshotInterims(); len(delivered) != 0 {
		t.Fatalf("observer was expected to lag, got %#v", delivered)
	}

	unblock()
	waitFor(t, func() bool { return len(sink.snapshotInterims()) >= 1 })
	if controller.FinalText() != "hello world" {
		t.Fatalf("observer delivery changed final text: %q", controller.FinalText())
	}
}

func TestSessionControllerClearSavedIgnoredWhileRecording(t *testing.T) {
	t.Parallel()

	recognizer := newFakeRecognizer()
	events := &fakeEventSink{}
	controller := newTestController(recognizer, events, Config{})
	defer controller.Close(context.Background())

	if _, err := controller.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	recognizer.emit(domain.InterimResult{Text: "first"})
	if _, err := controller.Stop(context.Background()); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if _, err := controller.Start(context.Background()); err != nil {
		t.Fatalf("second start failed: %v", err)
	}

	controller.ClearSaved("first")
	if controller.FinalText() != "first" {
		t.Fatalf("final text changed while recording: %q", controller.FinalText())
	}
	if finals := events.snapshotFinals(); len(finals) != 1 {
		t.Fatalf("unexpected final transcript events: %#v", finals)
	}

	if _, err := controller.Stop(context.Background()); err != nil {
		t.Fatalf("second stop failed: %v", err)
	}
	controller.ClearSaved("first")
	if controller.FinalText() != "" {
		t.Fatalf("expected saved text cleared once idle, got %q", controller.FinalText())
	}
}

func TestSessionControllerHoldIdleBlocksStart(t *testing.T) {
	t.Parallel()

	recognizer := newFakeRecognizer()
	controller := newTestController(recognizer, &fakeEventSink{}, Config{})
	defer controller.Close(context.Background())

	release, err := controller.holdIdle()
	if err != nil {
		t.Fatalf("hold failed: %v", err)
	}
	if _, err := controller.Start(context.Background()); !errors.Is(err, ErrToggleInFlight) {
		t.Fatalf("expected ErrToggleInFlight while held, got %v", err)
	}
	if _, err := controller.holdIdle(); !errors.Is(err, ErrToggleInFlight) {
		t.Fatalf("expected second hold rejected, got %v", err)
	}
	release()

	if _, err := controller.Start(context.Background()); err != nil {
		t.Fatalf("start after release failed: %v", err)
	}
	if _, err := controller.holdIdle(); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy while recording, got %v", err)
	}
}

func TestSessionControllerAppliesRulesToFragment(t *testing.T) {
	t.Parallel()

	recognizer := newFakeRecognizer()
	controller := NewSessionController(recognizer, &fakeRules{transform: "PR"}, &fakeEventSink{}, Config{}, zerolog.Nop())
	defer controller.Close(context.Background())

	if _, err := controller.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	recognizer.emit(domain.InterimResult{Text: "pull request"})
	if _, err := controller.Stop(context.Background()); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if controller.FinalText() != "PR" {
		t.Fatalf("expected rewritten fragment, got %q", controller.FinalText())
	}
}

func TestSessionControllerRulesFailureMergesRawFragment(t *testing.T) {
	t.Parallel()

	recognizer := newFakeRecognizer()
	controller := NewSessionController(recognizer, &fakeRules{err: errors.New("bad rule")}, &fakeEventSink{}, Config{}, zerolog.Nop())
	defer controller.Close(context.Background())

	if _, err := controller.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	recognizer.emit(domain.InterimResult{Text: "raw words"})
	if _, err := controller.Stop(context.Background()); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if controller.FinalText() != "raw words" {
		t.Fatalf("expected raw fragment, got %q", controller.FinalText())
	}
}

func TestSessionControllerLanguageSelection(t *testing.T) {
	t.Parallel()

	recognizer := newFakeRecognizer()
	controller := newTestController(recognizer, &fakeEventSink{}, Config{})
	defer controller.Close(context.Background())

	if controller.Language() != domain.DefaultLanguage {
		t.Fatalf("unexpected default language: %s", controller.Language())
	}
	if err := controller.SetLanguage("xx-YY"); !errors.Is(err, ErrUnsupportedLanguage) {
		t.Fatalf("expected ErrUnsupportedLanguage, got %v", err)
	}
	if err := controller.SetLanguage("fr-fr"); err != nil {
		t.Fatalf("set language failed: %v", err)
	}
	if controller.Language() != "fr-FR" {
		t.Fatalf("expected canonical code, got %s", controller.Language())
	}

	if _, err := controller.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if recognizer.lastListenConfig().Language != "fr-FR" {
		t.Fatalf("language not passed to recognizer")
	}
	if err := controller.SetLanguage("de-DE"); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy while recording, got %v", err)
	}
}

func TestSessionControllerPublishesInterimText(t *testing.T) {
	t.Parallel()

	recognizer := newFakeRecognizer()
	events := &fakeEventSink{}
	controller := newTestController(recognizer, events, Config{})
	defer controller.Close(context.Background())

	if _, err := controller.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	recognizer.emit(domain.InterimResult{Text: "one"})
	recognizer.emit(domain.InterimResult{Text: "one two"})

	if controller.InterimText() != "one two" {
		t.Fatalf("unexpected interim text: %q", controller.InterimText())
	}
	waitFor(t, func() bool {
		interims := events.snapshotInterims()
		return len(interims) > 0 && interims[len(interims)-1] == "one two"
	})
}

func TestSessionControllerStopWithoutRecording(t *testing.T) {
	t.Parallel()

	controller := newTestController(newFakeRecognizer(), &fakeEventSink{}, Config{})
	defer controller.Close(context.Background())

	event, err := controller.Stop(context.Background())
	if !errors.Is(err, ErrNotRecording) || event != "" {
		t.Fatalf("expected ErrNotRecording with no event, got %q %v", event, err)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met before deadline")
}

type fakeRecognizer struct {
	mu sync.Mutex

	granted       bool
	permissionErr error
	subscribeErr  error
	startErr      error
	stopErr       error
	startGate     chan struct{}

	handler      ports.InterimHandler
	calls        []string
	listenCfg    ports.ListenConfig
	subscribes   int
	unsubscribes int
	starts       int
	stops        int
}

func newFakeRecognizer() *fakeRecognizer {
	return &fakeRecognizer{granted: true}
}

func (f *fakeRecognizer) RequestPermission(context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "permission")
	return f.granted, f.permissionErr
}

func (f *fakeRecognizer) Subscribe(handler ports.InterimHandler) (ports.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "subscribe")
	if f.subscribeErr != nil {
		return nil, f.subscribeErr
	}
	f.subscribes++
	f.handler = handler
	return fakeSubscription{recognizer: f}, nil
}

func (f *fakeRecognizer) StartListening(_ context.Context, cfg ports.ListenConfig) error {
	f.mu.Lock()
	f.calls = append(f.calls, "start")
	f.starts++
	f.listenCfg = cfg
	gate := f.startGate
	err := f.startErr
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}
	return err
}

func (f *fakeRecognizer) StopListening(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "stop")
	f.stops++
	return f.stopErr
}

func (f *fakeRecognizer) emit(result domain.InterimResult) {
	if handler := f.currentHandler(); handler != nil {
		handler(result)
	}
}

func (f *fakeRecognizer) currentHandler() ports.InterimHandler {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.handler
}

func (f *fakeRecognizer) snapshotCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeRecognizer) lastListenConfig() ports.ListenConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listenCfg
}

func (f *fakeRecognizer) subscribeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subscribes
}

func (f *fakeRecognizer) unsubscribeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.unsubscribes
}

func (f *fakeRecognizer) startCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.starts
}

type fakeSubscription struct {
	recognizer *fakeRecognizer
}

func (s fakeSubscription) Unsubscribe() {
	s.recognizer.mu.Lock()
	defer s.recognizer.mu.Unlock()
	s.recognizer.unsubscribes++
	s.recognizer.handler = nil
}

type fakeRules struct {
	transform string
	err       error
}

func (f *fakeRules) Apply(text string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if f.transform != "" {
		return f.transform, nil
	}
	return text, nil
}

type fakeEventSink struct {
	mu sync.Mutex

	states   []stateEvent
	interims []string
	finals   []string
	feedback []domain.FeedbackEvent
	errors   []errEvent
}

type stateEvent struct {
	state  domain.RecordingState
	reason domain.SessionStateReason
}

type errEvent struct {
	code   domain.ErrorCode
	detail string
}

func (f *fakeEventSink) SessionStateChanged(state domain.RecordingState, reason domain.SessionStateReason) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states = append(f.states, stateEvent{state: state, reason: reason})
}

func (f *fakeEventSink) InterimTranscript(text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.interims = append(f.interims, text)
}

func (f *fakeEventSink) FinalTranscript(text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finals = append(f.finals, text)
}

func (f *fakeEventSink) Feedback(event domain.FeedbackEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.feedback = append(f.feedback, event)
}

func (f *fakeEventSink) SessionError(code domain.ErrorCode, detail string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors = append(f.errors, errEvent{code: code, detail: detail})
}

func (f *fakeEventSink) snapshotStates() []stateEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]stateEvent(nil), f.states...)
}

func (f *fakeEventSink) snapshotInterims() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.interims...)
}

func (f *fakeEventSink) snapshotFinals() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.finals...)
}

func (f *fakeEventSink) snapshotFeedback() []domain.FeedbackEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.FeedbackEvent(nil), f.feedback...)
}

func (f *fakeEventSink) snapshotErrors() []errEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]errEvent(nil), f.errors...)
}

// laggingInterimSink blocks observer interim delivery until gate is closed.
type laggingInterimSink struct {
	*fakeEventSink
	gate    chan struct{}
	entered chan struct{}
	once    sync.Once
}

func (s *laggingInterimSink) InterimTranscript(text string) {
	s.once.Do(func() { close(s.entered) })
	<-s.gate
	s.fakeEventSink.InterimTranscript(text)
}
