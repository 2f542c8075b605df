package domain

import "time"

// RecordingState models the capture lifecycle. Exactly one value holds at any instant.
type RecordingState string

const (
	RecordingStateIdle      RecordingState = "idle"
	RecordingStateRecording RecordingState = "recording"
)

// SessionStateReason provides a structured reason for state notifications.
type SessionStateReason string

const (
	SessionReasonMicCold            SessionStateReason = "mic_cold"
	SessionReasonRecordingStarted   SessionStateReason = "recording_started"
	SessionReasonPermissionDenied   SessionStateReason = "permission_denied"
	SessionReasonStartFailed        SessionStateReason = "start_failed"
	SessionReasonTranscriptMerged   SessionStateReason = "transcript_merged"
	SessionReasonNoTranscript       SessionStateReason = "no_transcript"
	SessionReasonStopFailed         SessionStateReason = "stop_failed"
	SessionReasonRecordingDiscarded SessionStateReason = "recording_discarded"
	SessionReasonTranscriptSaved    SessionStateReason = "transcript_saved"
)

// FeedbackEvent is a fire-and-forget signal emitted after a transition commits.
type FeedbackEvent string

const (
	FeedbackStartOK     FeedbackEvent = "start_ok"
	FeedbackStartDenied FeedbackEvent = "start_denied"
	FeedbackStartError  FeedbackEvent = "start_error"
	FeedbackStopOK      FeedbackEvent = "stop_ok"
	FeedbackStopError   FeedbackEvent = "stop_error"
	FeedbackSaveOK      FeedbackEvent = "save_ok"
	FeedbackSaveError   FeedbackEvent = "save_error"
)

// HapticKind names one haptic pulse primitive.
type HapticKind string

const (
	HapticLight     HapticKind = "light"
	HapticMedium    HapticKind = "medium"
	HapticHeavy     HapticKind = "heavy"
	HapticErrorBuzz HapticKind = "error_buzz"
)

// InterimResult is one recognition event: the full current hypothesis for the
// ongoing utterance. Seq strictly increases within a session; zero is unordered.
type InterimResult struct {
	Seq  uint64 `json:"seq"`
	Text string `json:"text"`
}

// AudioFrame is one visualization sample.
type AudioFrame struct {
	Level    float64   `json:"level"`
	Spectrum []float64 `json:"spectrum"`
	At       time.Time `json:"at"`
}

// ErrorInfo is the user-visible form of the last recoverable error.
type ErrorInfo struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Detail  string    `json:"detail,omitempty"`
}

// Snapshot is the observer-facing view of the engine.
type Snapshot struct {
	State       RecordingState `json:"state"`
	FinalText   string         `json:"finalText"`
	InterimText string         `json:"interimText"`
	Language    string         `json:"language"`
	CanSave     bool           `json:"canSave"`
	Saving      bool           `json:"saving"`
	LastError   *ErrorInfo     `json:"lastError,omitempty"`
}

// Transcript is a persisted transcript record.
type Transcript struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Content   string    `json:"content"`
	Language  string    `json:"language"`
	CreatedAt time.Time `json:"createdAt"`
}
