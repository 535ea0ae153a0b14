package audio

import (
	"math"
)

// Silence-trim parameters, fixed process-wide. The threshold is 40 dB
// below the peak frame energy; frames follow the librosa trim convention.
const (
	TrimTopDB     = 40.0
	trimFrameSize = 2048
	trimHopSize   = 512

	// minSamples is the floor the conditioner never trims below: one FFT
	// window, so the feature extractor always has at least one frame.
	minSamples = 1024
)

// Condition trims leading/trailing silence and peak-normalizes the
// waveform. The input buffer is not modified.
//
// A pure-silence clip cannot be normalized (peak is zero); instead of
// dividing by zero the conditioner returns a minimal all-zero buffer and
// isSilent=true so the caller can short-circuit with a deterministic
// fallback instead of propagating NaN.
func Condition(in *Buffer) (out *Buffer, isSilent bool) {
	peak := in.Peak()
	if peak == 0 || len(in.Samples) == 0 {
		return &Buffer{
			Samples:    make([]float32, minSamples),
			SampleRate: in.SampleRate,
		}, true
	}

	trimmed := trim(in.Samples)
	if len(trimmed) < minSamples {
		// Keep a fixed-length zero-padded window rather than an empty
		// buffer so downstream stages never see a degenerate shape.
		padded := make([]float32, minSamples)
		copy(padded, trimmed)
		trimmed = padded
	}

	normalized := make([]float32, len(trimmed))
	for i, s := range trimmed {
		normalized[i] = s / peak
	}

	return &Buffer{Samples: normalized, SampleRate: in.SampleRate}, false
}

// trim removes leading and trailing frames whose RMS energy falls more
// than TrimTopDB below the loudest frame.
func trim(samples []float32) []float32 {
	if len(samples) == 0 {
		return samples
	}

	frames := 1 + (len(samples)-1)/trimHopSize
	rms := make([]float64, frames)
	var maxRMS float64
	for f := 0; f < frames; f++ {
		start := f * trimHopSize
		end := start + trimFrameSize
		if end > len(samples) {
			end = len(samples)
		}
		var sum float64
		for _, s := range samples[start:end] {
			sum += float64(s) * float64(s)
		}
		rms[f] = math.Sqrt(sum / float64(end-start))
		if rms[f] > maxRMS {
			maxRMS = rms[f]
		}
	}
	if maxRMS == 0 {
		return samples[:0]
	}

	threshold := maxRMS * math.Pow(10, -TrimTopDB/20)
	first, last := -1, -1
	for f := 0; f < frames; f++ {
		if rms[f] > threshold {
			if first < 0 {
				first = f
			}
			last = f
		}
	}
	if first < 0 {
		return samples[:0]
	}

	start := first * trimHopSize
	end := last*trimHopSize + trimFrameSize
	if end > len(samples) {
		end = len(samples)
	}
	return samples[start:end]
}
