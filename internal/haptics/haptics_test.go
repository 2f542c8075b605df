package haptics

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"livescribe/internal/domain"
)

func TestNewSelectsDriver(t *testing.T) {
	t.Parallel()

	if d, err := New("off", zerolog.Nop()); err != nil {
		t.Fatalf("off: %v", err)
	} else if _, ok := d.(Noop); !ok {
		t.Fatalf("expected Noop, got %T", d)
	}
	if d, err := New("LOG", zerolog.Nop()); err != nil {
		t.Fatalf("log: %v", err)
	} else if _, ok := d.(LogDriver); !ok {
		t.Fatalf("expected LogDriver, got %T", d)
	}
	if d, err := New("", zerolog.Nop()); err != nil {
		t.Fatalf("default: %v", err)
	} else if _, ok := d.(*ToneDriver); !ok {
		t.Fatalf("expected ToneDriver, got %T", d)
	}
	if _, err := New("motor", zerolog.Nop()); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
}

func TestLogDriverRecordsKind(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	d := LogDriver{log: zerolog.New(&buf)}
	d.Pulse(context.Background(), domain.HapticHeavy)
	if !strings.Contains(buf.String(), `"kind":"heavy"`) {
		t.Fatalf("unexpected log output: %s", buf.String())
	}
}

func TestEveryKindHasATone(t *testing.T) {
	t.Parallel()

	for _, kind := range []domain.HapticKind{domain.HapticLight, domain.HapticMedium, domain.HapticHeavy, domain.HapticErrorBuzz} {
		tone, ok := toneFor(kind)
		if !ok {
			t.Fatalf("missing tone for %s", kind)
		}
		samples := synthesize(kind, tone)
		if len(samples) != int(float64(sampleRate)*tone.duration) {
			t.Fatalf("%s: unexpected sample count %d", kind, len(samples))
		}
		peak := 0
		for _, s := range samples {
			if v := int(s); v > peak {
				peak = v
			} else if -v > peak {
				peak = -v
			}
		}
		if peak == 0 || peak > 32767 {
			t.Fatalf("%s: unexpected peak %d", kind, peak)
		}
	}
}

func TestToneDriverIgnoresCancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	NewToneDriver(zerolog.Nop()).Pulse(ctx, domain.HapticMedium)
}
