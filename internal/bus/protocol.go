package bus

import (
	"strings"
	"time"

	"livescribe/internal/domain"
)

// Command names accepted on <prefix>.cmd.<name>.
const (
	CommandToggle   = "toggle"
	CommandStart    = "start"
	CommandStop     = "stop"
	CommandAbort    = "abort"
	CommandSave     = "save"
	CommandStatus   = "status"
	CommandLanguage = "language"
	CommandHistory  = "history"
)

// Subjects builds subject names under one prefix.
type Subjects struct {
	prefix string
}

func NewSubjects(prefix string) Subjects {
	prefix = strings.Trim(strings.TrimSpace(prefix), ".")
	if prefix == "" {
		prefix = "livescribe"
	}
	return Subjects{prefix: prefix}
}

func (s Subjects) State() string      { return s.prefix + ".session.state" }
func (s Subjects) Interim() string    { return s.prefix + ".transcript.interim" }
func (s Subjects) Final() string      { return s.prefix + ".transcript.final" }
func (s Subjects) Feedback() string   { return s.prefix + ".feedback" }
func (s Subjects) Error() string      { return s.prefix + ".error" }
func (s Subjects) AudioLevel() string { return s.prefix + ".audio.level" }

// Command returns the request subject for a command name.
func (s Subjects) Command(name string) string { return s.prefix + ".cmd." + name }

func (s Subjects) commandWildcard() string { return s.prefix + ".cmd.*" }

func (s Subjects) commandName(subject string) string {
	return strings.TrimPrefix(subject, s.prefix+".cmd.")
}

// StateMessage is published on every committed state change.
type StateMessage struct {
	State     domain.RecordingState     `json:"state"`
	Reason    domain.SessionStateReason `json:"reason"`
	Timestamp time.Time                 `json:"timestamp"`
}

// TextMessage carries interim or final transcript text.
type TextMessage struct {
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

type FeedbackMessage struct {
	Event     domain.FeedbackEvent `json:"event"`
	Timestamp time.Time            `json:"timestamp"`
}

type ErrorMessage struct {
	Code      domain.ErrorCode `json:"code"`
	Message   string           `json:"message"`
	Detail    string           `json:"detail,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

type LevelMessage struct {
	Level     float64   `json:"level"`
	Spectrum  []float64 `json:"spectrum"`
	Timestamp time.Time `json:"timestamp"`
}

// CommandRequest is the optional body of a command request.
type CommandRequest struct {
	Language string `json:"language,omitempty"`
	Limit    int    `json:"limit,omitempty"`
}

// CommandReply is the response to every command.
type CommandReply struct {
	OK         bool                 `json:"ok"`
	Error      string               `json:"error,omitempty"`
	Code       domain.ErrorCode     `json:"code,omitempty"`
	Feedback   domain.FeedbackEvent `json:"feedback,omitempty"`
	Snapshot   *domain.Snapshot     `json:"snapshot,omitempty"`
	Transcript *domain.Transcript   `json:"transcript,omitempty"`
	History    []domain.Transcript  `json:"history,omitempty"`
}
