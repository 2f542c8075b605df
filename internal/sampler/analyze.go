package sampler

// MaxMagnitude is the largest value a magnitude bin can hold.
const MaxMagnitude = 255

// Analyze derives the scalar level and a bars-long spectrum from byte magnitudes.
// Every bin is normalized by MaxMagnitude; the level is their mean. The spectrum
// partitions the bins into bars blocks of len(bins)/bars and keeps the first
// element of each block.
func Analyze(bins []byte, bars int) (float64, []float64) {
	if bars < 0 {
		bars = 0
	}
	spectrum := make([]float64, bars)
	if len(bins) == 0 {
		return 0, spectrum
	}

	var sum float64
	for _, b := range bins {
		sum += float64(b) / MaxMagnitude
	}
	level := sum / float64(len(bins))

	step := 0
	if bars > 0 {
		step = len(bins) / bars
	}
	for i := range spectrum {
		idx := i * step
		if step == 0 {
			// fewer bins than bars: one bin per bar, rest stay silent
			idx = i
		}
		if idx < len(bins) {
			spectrum[i] = float64(bins[idx]) / MaxMagnitude
		}
	}
	return level, spectrum
}
