// Package haptics renders haptic pulses. Desktops have no vibration motor, so
// the tone driver plays a short synthesized tone per pulse kind instead.
package haptics

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/rs/zerolog"

	"livescribe/internal/domain"
	"livescribe/internal/ports"
)

const sampleRate = 44100

// tone describes how one pulse kind sounds.
type tone struct {
	freq     float64
	duration float64 // seconds
	volume   float64
	decay    float64
}

var tones = map[domain.HapticKind]tone{
	domain.HapticLight:     {freq: 1400, duration: 0.05, volume: 0.3, decay: 80},
	domain.HapticMedium:    {freq: 1000, duration: 0.09, volume: 0.45, decay: 50},
	domain.HapticHeavy:     {freq: 600, duration: 0.14, volume: 0.6, decay: 30},
	domain.HapticErrorBuzz: {freq: 220, duration: 0.25, volume: 0.6, decay: 12},
}

func toneFor(kind domain.HapticKind) (tone, bool) {
	t, ok := tones[kind]
	return t, ok
}

// synthesize renders a decaying mono sine wave. The error buzz gets a
// square-ish shape so it reads as a buzz rather than a tick.
func synthesize(kind domain.HapticKind, t tone) []int16 {
	n := int(float64(sampleRate) * t.duration)
	samples := make([]int16, n)
	for i := range samples {
		at := float64(i) / sampleRate
		wave := math.Sin(2 * math.Pi * t.freq * at)
		if kind == domain.HapticErrorBuzz {
			wave = math.Copysign(math.Min(1, math.Abs(wave)*3), wave)
		}
		samples[i] = int16(wave * 32767 * t.volume * math.Exp(-at*t.decay))
	}
	return samples
}

// New returns the driver named by driver: tone, log or off.
func New(driver string, log zerolog.Logger) (ports.Haptics, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", "tone":
		return NewToneDriver(log), nil
	case "log":
		return LogDriver{log: log}, nil
	case "off", "none":
		return Noop{}, nil
	default:
		return nil, fmt.Errorf("unsupported haptics driver %q", driver)
	}
}

// LogDriver records pulses in the log only.
type LogDriver struct {
	log zerolog.Logger
}

func (d LogDriver) Pulse(_ context.Context, kind domain.HapticKind) {
	d.log.Info().Str("kind", string(kind)).Msg("haptic pulse")
}

type Noop struct{}

func (Noop) Pulse(context.Context, domain.HapticKind) {}
