//go:build !linux

package audio

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/gen2brain/malgo"
)

type malgoCapture struct {
	ctx    *malgo.AllocatedContext
	device *malgo.Device

	once sync.Once
}

func openPlatformCapture(cfg MicrophoneConfig, onSamples func([]float32)) (captureDevice, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("malgo context: %w", err)
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatF32
	deviceConfig.Capture.Channels = 1
	deviceConfig.SampleRate = uint32(cfg.SampleRate)

	var scratch []float32
	callbacks := malgo.DeviceCallbacks{
		Data: func(_, data []byte, frameCount uint32) {
			scratch = bytesToFloat32(data, scratch)
			onSamples(scratch)
		},
	}

	device, err := malgo.InitDevice(ctx.Context, deviceConfig, callbacks)
	if err != nil {
		_ = ctx.Uninit()
		ctx.Free()
		return nil, fmt.Errorf("malgo device: %w", err)
	}
	return &malgoCapture{ctx: ctx, device: device}, nil
}

func (c *malgoCapture) Start() error {
	return c.device.Start()
}

func (c *malgoCapture) Close() {
	c.once.Do(func() {
		_ = c.device.Stop()
		c.device.Uninit()
		_ = c.ctx.Uninit()
		c.ctx.Free()
	})
}

func bytesToFloat32(data []byte, dst []float32) []float32 {
	dst = dst[:0]
	for i := 0; i+4 <= len(data); i += 4 {
		dst = append(dst, math.Float32frombits(binary.LittleEndian.Uint32(data[i:])))
	}
	return dst
}
