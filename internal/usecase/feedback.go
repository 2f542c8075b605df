package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"livescribe/internal/domain"
	"livescribe/internal/ports"
)

const (
	DefaultSaveGap     = 120 * time.Millisecond
	feedbackQueueSize  = 8
	feedbackPulseLimit = 2 * time.Second
)

type pulseStep struct {
	kind domain.HapticKind
	// pause is waited before the pulse.
	pause time.Duration
}

// hapticPattern maps a feedback event to its pulse sequence.
func hapticPattern(event domain.FeedbackEvent, gap time.Duration) []pulseStep {
	switch event {
	case domain.FeedbackStartOK, domain.FeedbackStopOK:
		return []pulseStep{{kind: domain.HapticMedium}}
	case domain.FeedbackSaveOK:
		return []pulseStep{{kind: domain.HapticHeavy}, {kind: domain.HapticHeavy, pause: gap}}
	case domain.FeedbackStartDenied, domain.FeedbackStartError, domain.FeedbackStopError, domain.FeedbackSaveError:
		return []pulseStep{{kind: domain.HapticErrorBuzz}}
	default:
		return nil
	}
}

// feedbackPlayer renders feedback events on a single goroutine so patterns
// never interleave and callers never wait on the haptics driver.
type feedbackPlayer struct {
	haptics ports.Haptics
	prefs   ports.Preferences
	gap     time.Duration
	log     zerolog.Logger

	queue chan domain.FeedbackEvent
	quit  chan struct{}
	done  chan struct{}
	once  sync.Once
}

func newFeedbackPlayer(haptics ports.Haptics, prefs ports.Preferences, gap time.Duration, log zerolog.Logger) *feedbackPlayer {
	if gap <= 0 {
		gap = DefaultSaveGap
	}
	p := &feedbackPlayer{
		haptics: haptics,
		prefs:   prefs,
		gap:     gap,
		log:     log,
		queue:   make(chan domain.FeedbackEvent, feedbackQueueSize),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go p.run()
	return p
}

// play enqueues event. When the queue is full or the player is closed the
// event is dropped.
func (p *feedbackPlayer) play(event domain.FeedbackEvent) {
	if p.haptics == nil {
		return
	}
	select {
	case <-p.quit:
		return
	default:
	}
	select {
	case p.queue <- event:
	default:
		p.log.Debug().Str("event", string(event)).Msg("feedback queue full; dropping event")
	}
}

func (p *feedbackPlayer) run() {
	defer close(p.done)
	for {
		select {
		case <-p.quit:
			return
		case event := <-p.queue:
			p.render(event)
		}
	}
}

func (p *feedbackPlayer) render(event domain.FeedbackEvent) {
	steps := hapticPattern(event, p.gap)
	if len(steps) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), feedbackPulseLimit)
	defer cancel()

	if !p.enabled(ctx) {
		return
	}
	for _, step := range steps {
		if step.pause > 0 {
			timer := time.NewTimer(step.pause)
			select {
			case <-timer.C:
			case <-p.quit:
				timer.Stop()
				return
			}
		}
		p.haptics.Pulse(ctx, step.kind)
	}
}

// enabled reads the preference at play time. Read errors fall back to enabled.
func (p *feedbackPlayer) enabled(ctx context.Context) bool {
	if p.prefs == nil {
		return true
	}
	enabled, err := p.prefs.HapticsEnabled(ctx)
	if err != nil {
		p.log.Warn().Err(err).Msg("haptics preference unavailable")
		return true
	}
	return enabled
}

func (p *feedbackPlayer) close() {
	p.once.Do(func() { close(p.quit) })
	<-p.done
}
