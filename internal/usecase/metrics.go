package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"

	"livescribe/internal/domain"
)

const instrumentationName = "livescribe/usecase"

type instruments struct {
	tracer      trace.Tracer
	transitions metric.Int64Counter
	feedback    metric.Int64Counter
	saves       metric.Int64Counter
	duration    metric.Float64Histogram
}

// newInstruments binds to the global providers. Instruments that cannot be
// created fall back to no-ops.
func newInstruments(log zerolog.Logger) *instruments {
	meter := otel.Meter(instrumentationName)
	fallback := noop.NewMeterProvider().Meter(instrumentationName)

	transitions, err := meter.Int64Counter("livescribe.sessions",
		metric.WithDescription("Committed recording state transitions"))
	if err != nil {
		log.Warn().Err(err).Msg("sessions counter unavailable")
		transitions, _ = fallback.Int64Counter("livescribe.sessions")
	}
	feedback, err := meter.Int64Counter("livescribe.feedback",
		metric.WithDescription("Feedback events emitted"))
	if err != nil {
		log.Warn().Err(err).Msg("feedback counter unavailable")
		feedback, _ = fallback.Int64Counter("livescribe.feedback")
	}
	saves, err := meter.Int64Counter("livescribe.saves",
		metric.WithDescription("Transcript save attempts"))
	if err != nil {
		log.Warn().Err(err).Msg("saves counter unavailable")
		saves, _ = fallback.Int64Counter("livescribe.saves")
	}
	duration, err := meter.Float64Histogram("livescribe.session.duration",
		metric.WithDescription("Recording session duration"),
		metric.WithUnit("s"))
	if err != nil {
		log.Warn().Err(err).Msg("duration histogram unavailable")
		duration, _ = fallback.Float64Histogram("livescribe.session.duration")
	}

	return &instruments{
		tracer:      otel.Tracer(instrumentationName),
		transitions: transitions,
		feedback:    feedback,
		saves:       saves,
		duration:    duration,
	}
}

func (m *instruments) recordTransition(ctx context.Context, state domain.RecordingState) {
	m.transitions.Add(ctx, 1, metric.WithAttributes(attribute.String("state", string(state))))
}

func (m *instruments) recordFeedback(ctx context.Context, event domain.FeedbackEvent) {
	m.feedback.Add(ctx, 1, metric.WithAttributes(attribute.String("event", string(event))))
}

func (m *instruments) recordSave(ctx context.Context, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.saves.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (m *instruments) recordDuration(ctx context.Context, language string, d time.Duration) {
	m.duration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("language", language)))
}
