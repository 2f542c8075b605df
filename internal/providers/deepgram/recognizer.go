package deepgram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"livescribe/internal/domain"
	"livescribe/internal/ports"
	"livescribe/internal/providers"
)

const (
	defaultChunkSize   = 4096
	defaultStopTimeout = 4 * time.Second
)

// RecognizerConfig controls the streaming recognizer.
type RecognizerConfig struct {
	Deepgram       Config
	Audio          ports.AudioConfig
	ChunkSize      int
	StreamingGrace time.Duration
	StopTimeout    time.Duration
}

// availability is implemented by captures that can check their device up front.
type availability interface {
	Available() error
}

// Recognizer streams captured PCM to Deepgram and publishes the running
// hypothesis for the current utterance to its listeners.
type Recognizer struct {
	cfg       RecognizerConfig
	capture   ports.AudioCapture
	dial      dialFunc
	listeners providers.Listeners
	log       zerolog.Logger

	mu     sync.Mutex
	active *activeStream
}

type activeStream struct {
	cancel     context.CancelFunc
	audio      ports.AudioSession
	stream     transcriptStream
	hypothesis *hypothesis
	eventsDone chan struct{}
	audioDone  chan struct{}
}

func NewRecognizer(cfg RecognizerConfig, capture ports.AudioCapture, log zerolog.Logger) *Recognizer {
	cfg.Deepgram = cfg.Deepgram.withDefaults()
	if cfg.ChunkSize < 256 {
		cfg.ChunkSize = defaultChunkSize
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = defaultStopTimeout
	}
	return &Recognizer{
		cfg:     cfg,
		capture: capture,
		dial:    dialer{cfg: cfg.Deepgram}.dial,
		log:     log,
	}
}

// RequestPermission grants recognition when an API key is configured and the
// capture device can be resolved.
func (r *Recognizer) RequestPermission(context.Context) (bool, error) {
	if strings.TrimSpace(r.cfg.Deepgram.APIKey) == "" {
		r.log.Warn().Msg("DEEPGRAM_API_KEY is not configured; recognition denied")
		return false, nil
	}
	if checker, ok := r.capture.(availability); ok {
		if err := checker.Available(); err != nil {
			return false, err
		}
	}
	return true, nil
}

func (r *Recognizer) Subscribe(handler ports.InterimHandler) (ports.Subscription, error) {
	if handler == nil {
		return nil, errors.New("interim handler is required")
	}
	return r.listeners.Add(handler), nil
}

// StartListening opens the websocket stream and starts pumping audio. The
// session outlives ctx; it ends with StopListening.
func (r *Recognizer) StartListening(ctx context.Context, cfg ports.ListenConfig) error {
	r.mu.Lock()
	busy := r.active != nil
	r.mu.Unlock()
	if busy {
		return fmt.Errorf("%w: already listening", domain.ErrRecognizerStartFailed)
	}

	sessionCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stream, err := r.dial(sessionCtx, streamConfig{
		Encoding:       "linear16",
		SampleRate:     r.cfg.Audio.SampleRate,
		Channels:       r.cfg.Audio.Channels,
		InterimResults: cfg.InterimResults,
		Language:       cfg.Language,
	})
	if err != nil {
		cancel()
		return fmt.Errorf("%w: %w", domain.ErrRecognizerStartFailed, err)
	}

	audioSession, err := r.capture.Start(sessionCtx, r.cfg.Audio)
	if err != nil {
		_ = stream.Close()
		cancel()
		return err
	}

	active := &activeStream{
		cancel:     cancel,
		audio:      audioSession,
		stream:     stream,
		hypothesis: &hypothesis{},
		eventsDone: make(chan struct{}),
		audioDone:  make(chan struct{}),
	}

	r.mu.Lock()
	r.active = active
	r.mu.Unlock()

	go r.consumeEvents(active)
	go r.pumpAudio(active)

	r.log.Info().Str("language", cfg.Language).Msg("deepgram stream started")
	return nil
}

// StopListening stops capture, lets the provider flush its last results and
// delivers them before returning.
func (r *Recognizer) StopListening(ctx context.Context) error {
	r.mu.Lock()
	active := r.active
	r.active = nil
	r.mu.Unlock()
	if active == nil {
		return nil
	}
	defer active.cancel()

	var stopErr error
	if err := active.audio.Stop(); err != nil {
		r.log.Warn().Err(err).Msg("audio capture did not stop cleanly")
	}

	if r.cfg.StreamingGrace > 0 {
		timer := time.NewTimer(r.cfg.StreamingGrace)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
		}
	}

	_ = active.stream.CloseSend()
	if err := waitForStream(active.stream, r.cfg.StopTimeout); err != nil {
		stopErr = err
	}
	<-active.eventsDone
	<-active.audioDone

	if stopErr != nil {
		return fmt.Errorf("deepgram stream ended with error: %w", stopErr)
	}
	return nil
}

func (r *Recognizer) consumeEvents(active *activeStream) {
	defer close(active.eventsDone)

	for event := range active.stream.Events() {
		result, ok := active.hypothesis.add(event)
		if !ok {
			continue
		}
		r.listeners.Publish(result)
	}
}

func (r *Recognizer) pumpAudio(active *activeStream) {
	defer close(active.audioDone)

	buf := make([]byte, r.cfg.ChunkSize)
	for {
		n, err := active.audio.Read(buf)
		if n > 0 {
			if sendErr := active.stream.SendAudio(buf[:n]); sendErr != nil {
				r.log.Warn().Err(sendErr).Msg("failed to stream audio")
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				r.log.Warn().Err(err).Msg("audio capture error")
			}
			return
		}
	}
}

func waitForStream(stream transcriptStream, timeout time.Duration) error {
	done := make(chan error, 1)
	go func() {
		done <- stream.Wait()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(timeout):
		_ = stream.Close()
		return <-done
	}
}

// hypothesis tracks committed finals plus the in-progress interim and renders
// them as one cumulative text.
type hypothesis struct {
	mu      sync.Mutex
	finals  []string
	current string
	seq     uint64
}

func (h *hypothesis) add(event transcriptEvent) (domain.InterimResult, bool) {
	text := strings.TrimSpace(event.Text)
	if text == "" {
		return domain.InterimResult{}, false
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if event.IsFinal {
		h.finals = append(h.finals, text)
		h.current = ""
	} else {
		h.current = text
	}
	h.seq++

	parts := h.finals
	if h.current != "" {
		parts = append(append([]string(nil), h.finals...), h.current)
	}
	return domain.InterimResult{Seq: h.seq, Text: strings.Join(parts, " ")}, true
}
