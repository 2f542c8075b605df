package tui

import (
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"

	"livescribe/internal/domain"
)

// Bridge forwards engine events into a running bubbletea program. Events that
// arrive before Attach are dropped.
type Bridge struct {
	program atomic.Pointer[tea.Program]
}

func (b *Bridge) Attach(p *tea.Program) {
	b.program.Store(p)
}

func (b *Bridge) send(msg tea.Msg) {
	if p := b.program.Load(); p != nil {
		p.Send(msg)
	}
}

func (b *Bridge) SessionStateChanged(state domain.RecordingState, reason domain.SessionStateReason) {
	b.send(StateMsg{State: state, Reason: reason})
}

func (b *Bridge) InterimTranscript(text string) {
	b.send(InterimMsg{Text: text})
}

func (b *Bridge) FinalTranscript(text string) {
	b.send(FinalMsg{Text: text})
}

func (b *Bridge) Feedback(event domain.FeedbackEvent) {
	b.send(FeedbackMsg{Event: event})
}

func (b *Bridge) SessionError(code domain.ErrorCode, detail string) {
	b.send(ErrorMsg{Code: code, Detail: detail})
}

func (b *Bridge) AudioFrame(frame domain.AudioFrame) {
	b.send(FrameMsg{Frame: frame})
}
