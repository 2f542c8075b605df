package bootstrap

import (
	"livescribe/internal/domain"
	"livescribe/internal/ports"
)

// fanoutEvents forwards every event to each sink in order.
type fanoutEvents []ports.EventSink

func (f fanoutEvents) SessionStateChanged(state domain.RecordingState, reason domain.SessionStateReason) {
	for _, sink := range f {
		sink.SessionStateChanged(state, reason)
	}
}

func (f fanoutEvents) InterimTranscript(text string) {
	for _, sink := range f {
		sink.InterimTranscript(text)
	}
}

func (f fanoutEvents) FinalTranscript(text string) {
	for _, sink := range f {
		sink.FinalTranscript(text)
	}
}

func (f fanoutEvents) Feedback(event domain.FeedbackEvent) {
	for _, sink := range f {
		sink.Feedback(event)
	}
}

func (f fanoutEvents) SessionError(code domain.ErrorCode, detail string) {
	for _, sink := range f {
		sink.SessionError(code, detail)
	}
}

type fanoutFrames []ports.FrameSink

func (f fanoutFrames) AudioFrame(frame domain.AudioFrame) {
	for _, sink := range f {
		sink.AudioFrame(frame)
	}
}
