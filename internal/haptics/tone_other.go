//go:build !linux

package haptics

import (
	"context"

	"github.com/gen2brain/beeep"
	"github.com/rs/zerolog"

	"livescribe/internal/domain"
)

// ToneDriver plays pulse tones through the system beeper.
type ToneDriver struct {
	log zerolog.Logger
}

func NewToneDriver(log zerolog.Logger) *ToneDriver {
	return &ToneDriver{log: log}
}

func (d *ToneDriver) Pulse(ctx context.Context, kind domain.HapticKind) {
	t, ok := toneFor(kind)
	if !ok || ctx.Err() != nil {
		return
	}
	if err := beeep.Beep(t.freq, int(t.duration*1000)); err != nil {
		d.log.Debug().Err(err).Str("kind", string(kind)).Msg("beep failed")
	}
}
