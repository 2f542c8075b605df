package tui

import (
	"livescribe/internal/domain"
)

// StateMsg mirrors a session state transition.
type StateMsg struct {
	State  domain.RecordingState
	Reason domain.SessionStateReason
}

// InterimMsg carries the current interim text.
type InterimMsg struct{ Text string }

// FinalMsg carries the full accumulated final text.
type FinalMsg struct{ Text string }

// FeedbackMsg carries a committed feedback event.
type FeedbackMsg struct{ Event domain.FeedbackEvent }

// ErrorMsg carries a user-visible engine error.
type ErrorMsg struct {
	Code   domain.ErrorCode
	Detail string
}

// FrameMsg carries one visualization frame.
type FrameMsg struct{ Frame domain.AudioFrame }

// SnapshotMsg replaces the cached engine view.
type SnapshotMsg struct{ Snapshot domain.Snapshot }

// HapticsMsg reports the stored haptics preference.
type HapticsMsg struct {
	Enabled bool
	Err     error
}

// HistoryMsg carries recently saved transcripts.
type HistoryMsg struct {
	Items []domain.Transcript
	Err   error
}

// CommandErrorMsg is returned when an engine command was rejected or failed.
type CommandErrorMsg struct {
	Command string
	Err     error
}

// SavedMsg reports a successful save.
type SavedMsg struct{ Transcript domain.Transcript }

// ClearNoticeMsg clears a transient notice.
type ClearNoticeMsg struct{}
