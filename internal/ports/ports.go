package ports

import (
	"context"
	"io"

	"livescribe/internal/domain"
)

// ListenConfig describes one recognition session.
type ListenConfig struct {
	Language       string
	InterimResults bool
}

// InterimHandler receives recognition events in arrival order.
type InterimHandler func(domain.InterimResult)

// Subscription is a registered interim listener.
type Subscription interface {
	Unsubscribe()
}

// Recognizer is the external speech recognizer.
type Recognizer interface {
	RequestPermission(ctx context.Context) (bool, error)
	Subscribe(handler InterimHandler) (Subscription, error)
	StartListening(ctx context.Context, cfg ListenConfig) error
	StopListening(ctx context.Context) error
}

// MagnitudeStream exposes frequency-domain magnitudes of a live microphone.
type MagnitudeStream interface {
	// BinCount is the number of magnitude bins.
	BinCount() int
	// ReadMagnitudes fills dst with byte magnitudes (0..255) and returns the count written.
	ReadMagnitudes(dst []byte) int
	Release() error
}

// Microphone opens analysable microphone streams.
type Microphone interface {
	Acquire(ctx context.Context) (MagnitudeStream, error)
}

// AudioConfig describes how PCM audio should be captured.
type AudioConfig struct {
	SampleRate  int
	Channels    int
	InputFormat string
	InputDevice string
}

// AudioSession is a live PCM capture session.
type AudioSession interface {
	io.ReadCloser
	Stop() error
}

// AudioCapture creates PCM capture sessions.
type AudioCapture interface {
	Start(ctx context.Context, cfg AudioConfig) (AudioSession, error)
}

// Haptics triggers a pulse. Best-effort: failures are swallowed by the driver.
type Haptics interface {
	Pulse(ctx context.Context, kind domain.HapticKind)
}

// Preferences exposes user preferences read at feedback time.
type Preferences interface {
	HapticsEnabled(ctx context.Context) (bool, error)
}

// TranscriptStore persists transcripts.
type TranscriptStore interface {
	Save(ctx context.Context, text string, language string, userID string) (domain.Transcript, error)
}

// RulesEngine rewrites transcript text using deterministic rules.
type RulesEngine interface {
	Apply(text string) (string, error)
}

// EventSink receives engine notifications for presentation layers.
type EventSink interface {
	SessionStateChanged(state domain.RecordingState, reason domain.SessionStateReason)
	InterimTranscript(text string)
	FinalTranscript(text string)
	Feedback(event domain.FeedbackEvent)
	SessionError(code domain.ErrorCode, detail string)
}

// FrameSink receives audio visualization frames.
type FrameSink interface {
	AudioFrame(frame domain.AudioFrame)
}
