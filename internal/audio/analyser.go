package audio

import (
	"math"
	"math/cmplx"
	"sync"

	"gonum.org/v1/gonum/dsp/fourier"
)

// AnalyserConfig mirrors the knobs of a browser AnalyserNode.
type AnalyserConfig struct {
	FFTSize     int
	Smoothing   float64
	MinDecibels float64
	MaxDecibels float64
}

// Analyser keeps the most recent FFTSize samples and converts them into
// byte frequency magnitudes: Blackman window, FFT, time smoothing, then a
// linear map of [MinDecibels, MaxDecibels] onto 0..255.
type Analyser struct {
	cfg AnalyserConfig
	fft *fourier.FFT

	mu       sync.Mutex
	ring     []float64
	pos      int
	window   []float64
	frame    []float64
	coeffs   []complex128
	smoothed []float64
}

func NewAnalyser(cfg AnalyserConfig) *Analyser {
	if cfg.FFTSize < 32 || cfg.FFTSize&(cfg.FFTSize-1) != 0 {
		cfg.FFTSize = 512
	}
	if cfg.Smoothing < 0 || cfg.Smoothing >= 1 {
		cfg.Smoothing = 0.8
	}
	if cfg.MinDecibels >= cfg.MaxDecibels {
		cfg.MinDecibels, cfg.MaxDecibels = -100, -30
	}

	n := cfg.FFTSize
	return &Analyser{
		cfg:      cfg,
		fft:      fourier.NewFFT(n),
		ring:     make([]float64, n),
		window:   blackman(n),
		frame:    make([]float64, n),
		coeffs:   make([]complex128, n/2+1),
		smoothed: make([]float64, n/2),
	}
}

// BinCount is half the FFT size.
func (a *Analyser) BinCount() int {
	return a.cfg.FFTSize / 2
}

// Write appends time-domain samples in [-1, 1].
func (a *Analyser) Write(samples []float32) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, s := range samples {
		a.ring[a.pos] = float64(s)
		a.pos = (a.pos + 1) % len(a.ring)
	}
}

// ByteFrequencyData fills dst with the current magnitudes and returns the count written.
func (a *Analyser) ByteFrequencyData(dst []byte) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	n := len(a.ring)
	for i := 0; i < n; i++ {
		a.frame[i] = a.ring[(a.pos+i)%n] * a.window[i]
	}
	a.coeffs = a.fft.Coefficients(a.coeffs, a.frame)

	tau := a.cfg.Smoothing
	span := a.cfg.MaxDecibels - a.cfg.MinDecibels
	count := len(a.smoothed)
	if len(dst) < count {
		count = len(dst)
	}
	for k := range a.smoothed {
		mag := cmplx.Abs(a.coeffs[k]) / float64(n)
		a.smoothed[k] = tau*a.smoothed[k] + (1-tau)*mag
		if k >= count {
			continue
		}
		db := 20 * math.Log10(a.smoothed[k])
		scaled := 255 * (db - a.cfg.MinDecibels) / span
		switch {
		case math.IsNaN(scaled) || scaled <= 0:
			dst[k] = 0
		case scaled >= 255:
			dst[k] = 255
		default:
			dst[k] = byte(scaled)
		}
	}
	return count
}

func blackman(n int) []float64 {
	const alpha = 0.16
	a0, a1, a2 := (1-alpha)/2, 0.5, alpha/2
	w := make([]float64, n)
	for i := range w {
		x := 2 * math.Pi * float64(i) / float64(n)
		w[i] = a0 - a1*math.Cos(x) + a2*math.Cos(2*x)
	}
	return w
}
