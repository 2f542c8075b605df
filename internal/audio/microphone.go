package audio

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sync"

	"github.com/rs/zerolog"

	"livescribe/internal/domain"
	"livescribe/internal/ports"
)

// MicrophoneConfig controls the analysable microphone.
type MicrophoneConfig struct {
	SampleRate int
	Device     string
	Analyser   AnalyserConfig
}

// captureDevice is a platform capture stream pushing mono float samples.
type captureDevice interface {
	Start() error
	Close()
}

type captureOpener func(cfg MicrophoneConfig, onSamples func([]float32)) (captureDevice, error)

// Microphone implements ports.Microphone on top of the platform capture backend.
type Microphone struct {
	cfg  MicrophoneConfig
	open captureOpener
	log  zerolog.Logger
}

func NewMicrophone(cfg MicrophoneConfig, log zerolog.Logger) *Microphone {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 44100
	}
	return &Microphone{cfg: cfg, open: openPlatformCapture, log: log}
}

func (m *Microphone) Acquire(ctx context.Context) (ports.MagnitudeStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	analyser := NewAnalyser(m.cfg.Analyser)
	device, err := m.open(m.cfg, analyser.Write)
	if err != nil {
		return nil, classifyCaptureErr(err)
	}
	if err := device.Start(); err != nil {
		device.Close()
		return nil, classifyCaptureErr(err)
	}

	m.log.Debug().Int("sample_rate", m.cfg.SampleRate).Int("bins", analyser.BinCount()).Msg("microphone acquired")
	return &microphoneStream{analyser: analyser, device: device}, nil
}

func classifyCaptureErr(err error) error {
	if errors.Is(err, fs.ErrPermission) || errors.Is(err, domain.ErrPermissionDenied) {
		return fmt.Errorf("%w: %w", domain.ErrPermissionDenied, err)
	}
	return fmt.Errorf("%w: %w", domain.ErrDeviceUnavailable, err)
}

type microphoneStream struct {
	analyser *Analyser
	device   captureDevice
	once     sync.Once
}

func (s *microphoneStream) BinCount() int {
	return s.analyser.BinCount()
}

func (s *microphoneStream) ReadMagnitudes(dst []byte) int {
	return s.analyser.ByteFrequencyData(dst)
}

func (s *microphoneStream) Release() error {
	s.once.Do(s.device.Close)
	return nil
}

func int16ToFloat(samples []int16, dst []float32) []float32 {
	dst = dst[:0]
	for _, s := range samples {
		dst = append(dst, float32(s)/32768)
	}
	return dst
}
