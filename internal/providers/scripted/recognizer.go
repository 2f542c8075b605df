// Package scripted provides a recognizer that replays configured phrases,
// one word at a time, without any audio input.
package scripted

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"livescribe/internal/domain"
	"livescribe/internal/ports"
	"livescribe/internal/providers"
)

const defaultWordInterval = 250 * time.Millisecond

var defaultPhrases = []string{
	"the quick brown fox jumps over the lazy dog",
	"live transcription is working",
}

type Config struct {
	Phrases        []string
	WordInterval   time.Duration
	DenyPermission bool
}

// Recognizer emits each session's phrase as a growing hypothesis. Sessions
// cycle through the configured phrases.
type Recognizer struct {
	cfg       Config
	listeners providers.Listeners
	log       zerolog.Logger

	mu     sync.Mutex
	next   int
	cancel context.CancelFunc
	done   chan struct{}
}

func NewRecognizer(cfg Config, log zerolog.Logger) *Recognizer {
	phrases := make([]string, 0, len(cfg.Phrases))
	for _, phrase := range cfg.Phrases {
		if phrase = strings.TrimSpace(phrase); phrase != "" {
			phrases = append(phrases, phrase)
		}
	}
	if len(phrases) == 0 {
		phrases = defaultPhrases
	}
	cfg.Phrases = phrases
	if cfg.WordInterval <= 0 {
		cfg.WordInterval = defaultWordInterval
	}
	return &Recognizer{cfg: cfg, log: log}
}

func (r *Recognizer) RequestPermission(context.Context) (bool, error) {
	return !r.cfg.DenyPermission, nil
}

func (r *Recognizer) Subscribe(handler ports.InterimHandler) (ports.Subscription, error) {
	if handler == nil {
		return nil, fmt.Errorf("interim handler is required")
	}
	return r.listeners.Add(handler), nil
}

func (r *Recognizer) StartListening(_ context.Context, cfg ports.ListenConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cancel != nil {
		return fmt.Errorf("%w: already listening", domain.ErrRecognizerStartFailed)
	}

	phrase := r.cfg.Phrases[r.next%len(r.cfg.Phrases)]
	r.next++

	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.done = make(chan struct{})
	go r.replay(ctx, strings.Fields(phrase), r.done)

	r.log.Debug().Str("language", cfg.Language).Str("phrase", phrase).Msg("scripted session started")
	return nil
}

func (r *Recognizer) StopListening(context.Context) error {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel, r.done = nil, nil
	r.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	return nil
}

func (r *Recognizer) replay(ctx context.Context, words []string, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(r.cfg.WordInterval)
	defer ticker.Stop()

	for i := range words {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		r.listeners.Publish(domain.InterimResult{
			Seq:  uint64(i + 1),
			Text: strings.Join(words[:i+1], " "),
		})
	}
}
