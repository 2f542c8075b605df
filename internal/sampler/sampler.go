package sampler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"livescribe/internal/domain"
	"livescribe/internal/ports"
)

// Config controls frame production.
type Config struct {
	Bars          int
	FrameInterval time.Duration
}

// Sampler turns a microphone magnitude stream into visualization frames.
type Sampler struct {
	mic  ports.Microphone
	sink ports.FrameSink
	cfg  Config
	log  zerolog.Logger

	mu     sync.Mutex
	stream ports.MagnitudeStream
	cancel context.CancelFunc
	done   chan struct{}

	latest atomic.Pointer[domain.AudioFrame]
	frames atomic.Uint64
}

func New(mic ports.Microphone, sink ports.FrameSink, cfg Config, log zerolog.Logger) *Sampler {
	if cfg.Bars <= 0 {
		cfg.Bars = 10
	}
	if cfg.FrameInterval <= 0 {
		cfg.FrameInterval = time.Second / 60
	}
	s := &Sampler{mic: mic, sink: sink, cfg: cfg, log: log}
	s.latest.Store(s.zeroFrame())
	return s
}

// Start acquires the microphone and begins producing frames. Starting an
// active sampler is a no-op.
func (s *Sampler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stream != nil {
		return nil
	}

	stream, err := s.mic.Acquire(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrPermissionDenied) || errors.Is(err, domain.ErrDeviceUnavailable) {
			return err
		}
		return fmt.Errorf("%w: %w", domain.ErrDeviceUnavailable, err)
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	s.stream = stream
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.run(loopCtx, stream, s.done)

	s.log.Debug().Int("bins", stream.BinCount()).Dur("interval", s.cfg.FrameInterval).Msg("sampler started")
	return nil
}

// Stop releases the stream and the pending frame. Safe to call repeatedly
// and before Start.
func (s *Sampler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stream == nil {
		return nil
	}

	s.cancel()
	<-s.done
	err := s.stream.Release()

	s.stream = nil
	s.cancel = nil
	s.done = nil

	reset := s.zeroFrame()
	s.latest.Store(reset)
	if s.sink != nil {
		s.sink.AudioFrame(*reset)
	}

	s.log.Debug().Uint64("frames", s.frames.Load()).Msg("sampler stopped")
	if err != nil {
		return fmt.Errorf("release microphone: %w", err)
	}
	return nil
}

// Active reports whether frames are being produced.
func (s *Sampler) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stream != nil
}

// Latest returns the most recent frame.
func (s *Sampler) Latest() domain.AudioFrame {
	return *s.latest.Load()
}

// run re-arms a single timer after each frame, so at most one frame is pending.
func (s *Sampler) run(ctx context.Context, stream ports.MagnitudeStream, done chan struct{}) {
	defer close(done)

	buf := make([]byte, stream.BinCount())
	timer := time.NewTimer(s.cfg.FrameInterval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-timer.C:
			n := stream.ReadMagnitudes(buf)
			level, spectrum := Analyze(buf[:n], s.cfg.Bars)
			frame := &domain.AudioFrame{Level: level, Spectrum: spectrum, At: now}
			s.latest.Store(frame)
			s.frames.Add(1)
			if s.sink != nil {
				s.sink.AudioFrame(*frame)
			}
			timer.Reset(s.cfg.FrameInterval)
		}
	}
}

func (s *Sampler) zeroFrame() *domain.AudioFrame {
	return &domain.AudioFrame{Level: 0, Spectrum: make([]float64, s.cfg.Bars), At: time.Now()}
}
