//go:build linux

package haptics

import (
	"context"
	"sync"

	"github.com/jfreymuth/pulse"
	"github.com/rs/zerolog"

	"livescribe/internal/domain"
)

// ToneDriver plays pulse tones through PulseAudio.
type ToneDriver struct {
	log zerolog.Logger

	once    sync.Once
	samples map[domain.HapticKind][]int16
}

func NewToneDriver(log zerolog.Logger) *ToneDriver {
	return &ToneDriver{log: log}
}

func (d *ToneDriver) init() {
	d.samples = make(map[domain.HapticKind][]int16, len(tones))
	for kind, t := range tones {
		d.samples[kind] = synthesize(kind, t)
	}
}

// Pulse blocks until the tone has played. Errors are logged and dropped.
func (d *ToneDriver) Pulse(ctx context.Context, kind domain.HapticKind) {
	d.once.Do(d.init)
	samples := d.samples[kind]
	if len(samples) == 0 || ctx.Err() != nil {
		return
	}
	if err := play(samples); err != nil {
		d.log.Debug().Err(err).Str("kind", string(kind)).Msg("tone playback failed")
	}
}

func play(samples []int16) error {
	c, err := pulse.NewClient(pulse.ClientApplicationName("livescribe"))
	if err != nil {
		return err
	}
	defer c.Close()

	pos := 0
	reader := pulse.Int16Reader(func(buf []int16) (int, error) {
		if pos >= len(samples) {
			return 0, pulse.EndOfData
		}
		n := copy(buf, samples[pos:])
		pos += n
		return n, nil
	})
	stream, err := c.NewPlayback(reader,
		pulse.PlaybackMono,
		pulse.PlaybackSampleRate(sampleRate),
		pulse.PlaybackLatency(0.05),
	)
	if err != nil {
		return err
	}
	defer stream.Close()

	stream.Start()
	stream.Drain()
	stream.Stop()
	return stream.Error()
}
