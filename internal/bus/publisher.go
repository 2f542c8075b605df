package bus

import (
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"livescribe/internal/domain"
)

// Publisher mirrors engine notifications onto NATS subjects. It implements
// ports.EventSink and ports.FrameSink. Publish failures are logged and dropped.
type Publisher struct {
	conn          *nats.Conn
	subjects      Subjects
	publishLevels bool
	log           zerolog.Logger
	clock         func() time.Time
}

func NewPublisher(conn *nats.Conn, subjects Subjects, publishLevels bool, log zerolog.Logger) *Publisher {
	return &Publisher{
		conn:          conn,
		subjects:      subjects,
		publishLevels: publishLevels,
		log:           log,
		clock:         time.Now,
	}
}

func (p *Publisher) SessionStateChanged(state domain.RecordingState, reason domain.SessionStateReason) {
	p.publish(p.subjects.State(), StateMessage{State: state, Reason: reason, Timestamp: p.clock().UTC()})
}

func (p *Publisher) InterimTranscript(text string) {
	p.publish(p.subjects.Interim(), TextMessage{Text: text, Timestamp: p.clock().UTC()})
}

func (p *Publisher) FinalTranscript(text string) {
	p.publish(p.subjects.Final(), TextMessage{Text: text, Timestamp: p.clock().UTC()})
}

func (p *Publisher) Feedback(event domain.FeedbackEvent) {
	p.publish(p.subjects.Feedback(), FeedbackMessage{Event: event, Timestamp: p.clock().UTC()})
}

func (p *Publisher) SessionError(code domain.ErrorCode, detail string) {
	p.publish(p.subjects.Error(), ErrorMessage{
		Code:      code,
		Message:   domain.UserMessage(code),
		Detail:    detail,
		Timestamp: p.clock().UTC(),
	})
}

// AudioFrame is published only when level publishing is enabled.
func (p *Publisher) AudioFrame(frame domain.AudioFrame) {
	if !p.publishLevels {
		return
	}
	at := frame.At
	if at.IsZero() {
		at = p.clock()
	}
	p.publish(p.subjects.AudioLevel(), LevelMessage{Level: frame.Level, Spectrum: frame.Spectrum, Timestamp: at.UTC()})
}

func (p *Publisher) publish(subject string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		p.log.Warn().Err(err).Str("subject", subject).Msg("failed to encode bus message")
		return
	}
	if err := p.conn.Publish(subject, data); err != nil {
		p.log.Debug().Err(err).Str("subject", subject).Msg("failed to publish bus message")
	}
}
