package audio

import "math"

// PeakNormalize scales samples so the peak amplitude reaches 1.0.
func PeakNormalize(samples []float32) []float32 {
	var peak float32
	for _, s := range samples {
		if a := float32(math.Abs(float64(s))); a > peak {
			peak = a
		}
	}
	if peak == 0 {
		return samples
	}
	for i := range samples {
		samples[i] /= peak
	}
	return samples
}

// DCBlock removes DC offset from samples using a high-pass filter.
func DCBlock(samples []float32, sampleRate int) []float32 {
	if sampleRate <= 0 {
		return samples
	}
	// One-pole high-pass with a 20 Hz corner: y[n] = x[n] - x[n-1] + r*y[n-1].
	r := float32(1 - 2*math.Pi*20/float64(sampleRate))
	var prevIn, prevOut float32
	for i, x := range samples {
		y := x - prevIn + r*prevOut
		prevIn, prevOut = x, y
		samples[i] = y
	}
	return samples
}

// FadeIn applies a linear fade-in ramp over the given duration in milliseconds.
func FadeIn(samples []float32, sampleRate int, ms float64) []float32 {
	n := min(int(ms/1000*float64(sampleRate)), len(samples))
	for i := 0; i < n; i++ {
		samples[i] *= float32(i) / float32(n)
	}
	return samples
}

// FadeOut applies a linear fade-out ramp over the given duration in milliseconds.
func FadeOut(samples []float32, sampleRate int, ms float64) []float32 {
	n := min(int(ms/1000*float64(sampleRate)), len(samples))
	start := len(samples) - n
	for i := 0; i < n; i++ {
		samples[start+i] *= float32(n-1-i) / float32(n)
	}
	return samples
}

// Resample stretches or compresses samples by 1/factor using linear
// interpolation, used to realize the synthesis request's speed parameter
// when the acoustic model exposes no native speed knob. factor <= 0 or
// very close to 1.0 returns samples unchanged; factor > 1 speeds up
// playback (fewer output samples), factor < 1 slows it down.
func Resample(samples []float32, factor float64) []float32 {
	if len(samples) == 0 || factor <= 0 || (factor > 0.999 && factor < 1.001) {
		return samples
	}

	outLen := int(float64(len(samples)) / factor)
	if outLen < 1 {
		outLen = 1
	}

	out := make([]float32, outLen)

	for i := range out {
		srcPos := float64(i) * factor
		idx := int(srcPos)

		if idx >= len(samples)-1 {
			out[i] = samples[len(samples)-1]
			continue
		}

		frac := srcPos - float64(idx)
		out[i] = samples[idx]*float32(1-frac) + samples[idx+1]*float32(frac)
	}

	return out
}
