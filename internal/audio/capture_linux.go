//go:build linux

package audio

import (
	"fmt"
	"sync"

	"github.com/jfreymuth/pulse"
)

type pulseCapture struct {
	client *pulse.Client
	stream *pulse.RecordStream

	mu      sync.Mutex
	started bool
	closed  bool
}

func openPlatformCapture(cfg MicrophoneConfig, onSamples func([]float32)) (captureDevice, error) {
	client, err := pulse.NewClient(pulse.ClientApplicationName("livescribe"))
	if err != nil {
		return nil, fmt.Errorf("pulse: %w", err)
	}

	var scratch []float32
	writer := pulse.Int16Writer(func(buf []int16) (int, error) {
		if len(buf) == 0 {
			return 0, nil
		}
		scratch = int16ToFloat(buf, scratch)
		onSamples(scratch)
		return len(buf), nil
	})

	opts := []pulse.RecordOption{
		pulse.RecordMono,
		pulse.RecordSampleRate(cfg.SampleRate),
		pulse.RecordLatency(0.02),
	}
	if cfg.Device != "" && cfg.Device != "default" {
		source, err := client.SourceByID(cfg.Device)
		if err == nil && source != nil {
			opts = append(opts, pulse.RecordSource(source))
		}
	}

	stream, err := client.NewRecord(writer, opts...)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("pulse record: %w", err)
	}
	return &pulseCapture{client: client, stream: stream}, nil
}

func (c *pulseCapture) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return fmt.Errorf("pulse capture already closed")
	}
	c.stream.Start()
	c.started = true
	return nil
}

func (c *pulseCapture) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	if c.started {
		c.stream.Stop()
	}
	c.stream.Close()
	c.client.Close()
}
