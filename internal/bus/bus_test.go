package bus

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"livescribe/internal/config"
	"livescribe/internal/domain"
)

func startTestBus(t *testing.T) *Client {
	t.Helper()

	cfg := config.BusConfig{Host: "127.0.0.1", Port: -1, ConnectTimeout: 2000}
	server, err := StartEmbedded(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("start embedded server: %v", err)
	}
	t.Cleanup(server.Shutdown)

	client, err := Connect(context.Background(), cfg, zerolog.Nop(), server.ClientURL())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(client.Close)
	if !client.Healthy() {
		t.Fatalf("expected healthy client")
	}
	return client
}

func TestSubjects(t *testing.T) {
	t.Parallel()

	s := NewSubjects(" .desk. ")
	if s.State() != "desk.session.state" || s.Command(CommandSave) != "desk.cmd.save" {
		t.Fatalf("unexpected subjects: %s %s", s.State(), s.Command(CommandSave))
	}
	if NewSubjects("").Interim() != "livescribe.transcript.interim" {
		t.Fatalf("expected default prefix")
	}
	if s.commandName("desk.cmd.toggle") != CommandToggle {
		t.Fatalf("unexpected command name")
	}
}

func TestConnectRequiresServers(t *testing.T) {
	t.Parallel()

	if _, err := Connect(context.Background(), config.BusConfig{}, zerolog.Nop()); err == nil {
		t.Fatalf("expected error without servers")
	}
}

func TestPublisherMirrorsEvents(t *testing.T) {
	t.Parallel()

	client := startTestBus(t)
	subjects := NewSubjects("test")

	messages := make(chan *nats.Msg, 16)
	sub, err := client.Conn().ChanSubscribe("test.>", messages)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Unsubscribe()
	if err := client.Conn().Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	pub := NewPublisher(client.Conn(), subjects, false, zerolog.Nop())
	pub.SessionStateChanged(domain.RecordingStateRecording, domain.SessionReasonRecordingStarted)
	pub.InterimTranscript("hel")
	pub.AudioFrame(domain.AudioFrame{Level: 0.5})
	pub.SessionError(domain.ErrorCodePersistenceFailed, "disk full")

	msg := receive(t, messages)
	var state StateMessage
	if msg.Subject != subjects.State() || json.Unmarshal(msg.Data, &state) != nil || state.State != domain.RecordingStateRecording {
		t.Fatalf("unexpected state message: %s %s", msg.Subject, msg.Data)
	}

	msg = receive(t, messages)
	var text TextMessage
	if msg.Subject != subjects.Interim() || json.Unmarshal(msg.Data, &text) != nil || text.Text != "hel" {
		t.Fatalf("unexpected interim message: %s %s", msg.Subject, msg.Data)
	}

	msg = receive(t, messages)
	var errMsg ErrorMessage
	if msg.Subject != subjects.Error() || json.Unmarshal(msg.Data, &errMsg) != nil {
		t.Fatalf("expected error message without level frames, got %s", msg.Subject)
	}
	if errMsg.Message != "Could not save transcript" || errMsg.Detail != "disk full" {
		t.Fatalf("unexpected error message: %#v", errMsg)
	}
}

func TestPublisherLevelsWhenEnabled(t *testing.T) {
	t.Parallel()

	client := startTestBus(t)
	subjects := NewSubjects("lv")

	messages := make(chan *nats.Msg, 4)
	sub, err := client.Conn().ChanSubscribe(subjects.AudioLevel(), messages)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Unsubscribe()
	_ = client.Conn().Flush()

	NewPublisher(client.Conn(), subjects, true, zerolog.Nop()).
		AudioFrame(domain.AudioFrame{Level: 0.25, Spectrum: []float64{0.1, 0.2}})

	var level LevelMessage
	if err := json.Unmarshal(receive(t, messages).Data, &level); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if level.Level != 0.25 || len(level.Spectrum) != 2 {
		t.Fatalf("unexpected level message: %#v", level)
	}
}

func TestCommandServer(t *testing.T) {
	t.Parallel()

	client := startTestBus(t)
	subjects := NewSubjects("cmd")
	ctrl := &fakeController{}
	history := &fakeHistory{items: []domain.Transcript{{ID: "a", Content: "saved"}}}

	server := NewCommandServer(client.Conn(), subjects, ctrl, history, "ada", zerolog.Nop())
	if err := server.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer server.Close()
	_ = client.Conn().Flush()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	reply, err := Request(ctx, client.Conn(), subjects, CommandToggle, CommandRequest{})
	if err != nil {
		t.Fatalf("toggle request: %v", err)
	}
	if !reply.OK || reply.Feedback != domain.FeedbackStartOK || reply.Snapshot == nil {
		t.Fatalf("unexpected toggle reply: %#v", reply)
	}

	reply, err = Request(ctx, client.Conn(), subjects, CommandLanguage, CommandRequest{Language: "de-DE"})
	if err != nil || !reply.OK || ctrl.language() != "de-DE" {
		t.Fatalf("unexpected language reply: %#v (%v)", reply, err)
	}

	ctrl.setSaveErr(domain.ErrPersistenceFailed)
	reply, err = Request(ctx, client.Conn(), subjects, CommandSave, CommandRequest{})
	if err != nil {
		t.Fatalf("save request: %v", err)
	}
	if reply.OK || reply.Code != domain.ErrorCodePersistenceFailed {
		t.Fatalf("expected persistence failure reply, got %#v", reply)
	}

	reply, err = Request(ctx, client.Conn(), subjects, CommandHistory, CommandRequest{Limit: 5})
	user, limit := history.last()
	if err != nil || !reply.OK || len(reply.History) != 1 || user != "ada" || limit != 5 {
		t.Fatalf("unexpected history reply: %#v (%v)", reply, err)
	}

	reply, err = Request(ctx, client.Conn(), subjects, "bogus", CommandRequest{})
	if err != nil || reply.OK || reply.Error == "" {
		t.Fatalf("expected unknown command error, got %#v (%v)", reply, err)
	}
}

func receive(t *testing.T, ch <-chan *nats.Msg) *nats.Msg {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for message")
		return nil
	}
}

type fakeController struct {
	mu      sync.Mutex
	lang    string
	saveErr error
	state   domain.RecordingState
}

func (f *fakeController) Toggle(context.Context) (domain.FeedbackEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == domain.RecordingStateRecording {
		f.state = domain.RecordingStateIdle
		return domain.FeedbackStopOK, nil
	}
	f.state = domain.RecordingStateRecording
	return domain.FeedbackStartOK, nil
}

func (f *fakeController) Start(context.Context) (domain.FeedbackEvent, error) {
	return domain.FeedbackStartOK, nil
}

func (f *fakeController) Stop(context.Context) (domain.FeedbackEvent, error) {
	return domain.FeedbackStopOK, nil
}

func (f *fakeController) Abort(context.Context) error { return errors.New("not recording") }

func (f *fakeController) Save(context.Context) (domain.Transcript, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return domain.Transcript{}, f.saveErr
	}
	return domain.Transcript{ID: "t"}, nil
}

func (f *fakeController) SetLanguage(code string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lang = code
	return nil
}

func (f *fakeController) Snapshot() domain.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return domain.Snapshot{State: f.state, Language: f.lang}
}

func (f *fakeController) language() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lang
}

func (f *fakeController) setSaveErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saveErr = err
}

type fakeHistory struct {
	mu        sync.Mutex
	items     []domain.Transcript
	lastUser  string
	lastLimit int
}

func (f *fakeHistory) List(_ context.Context, userID string, limit int) ([]domain.Transcript, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastUser = userID
	f.lastLimit = limit
	return f.items, nil
}

func (f *fakeHistory) last() (string, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastUser, f.lastLimit
}
