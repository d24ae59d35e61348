package audio

import "math"

// Resample converts samples from one rate to another using linear
// interpolation. It is cheap and artifact-tolerant enough for 30-second
// preview clips feeding an embedding model.
func Resample(samples []float32, fromRate, toRate int) []float32 {
	if fromRate == toRate || len(samples) == 0 || fromRate <= 0 || toRate <= 0 {
		out := make([]float32, len(samples))
		copy(out, samples)
		return out
	}

	ratio := float64(fromRate) / float64(toRate)
	n := int(math.Floor(float64(len(samples)) / ratio))
	if n < 1 {
		n = 1
	}

	out := make([]float32, n)
	for i := range out {
		pos := float64(i) * ratio
		j := int(pos)
		if j >= len(samples)-1 {
			out[i] = samples[len(samples)-1]
			continue
		}
		frac := float32(pos - float64(j))
		out[i] = samples[j]*(1-frac) + samples[j+1]*frac
	}
	return out
}

// PadOrTruncate forces samples to exactly n entries, zero-padding short
// input and cutting long input. The model expects a fixed window.
func PadOrTruncate(samples []float32, n int) []float32 {
	out := make([]float32, n)
	copy(out, samples)
	return out
}

// PeakNormalize scales samples so the loudest one has magnitude 1.
// Silent input is returned unchanged rather than divided by zero.
func PeakNormalize(samples []float32) []float32 {
	var peak float32
	for _, s := range samples {
		if a := float32(math.Abs(float64(s))); a > peak {
			peak = a
		}
	}

	out := make([]float32, len(samples))
	if peak == 0 {
		return out
	}
	for i, s := range samples {
		out[i] = s / peak
	}
	return out
}
