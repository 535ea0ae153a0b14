// Package features computes the fixed-shape log-mel-spectrogram tensor
// the classifier was trained on.
//
// All parameters are process-wide constants matching the model's training
// front-end:
//
//	SampleRate:  16000
//	FFTSize:     1024
//	HopSize:     256
//	NumMels:     128
//	FMin:        20 Hz
//	FMax:        8000 Hz
//	ClipSamples: 64000 (4.0 s window, fixed)
//
// The waveform is zero-padded or truncated (leading samples kept) to the
// 4 s window before the transform, so the output shape is always
// NumMels x NumFrames where NumFrames = 1 + ClipSamples/HopSize = 251.
package features

import (
	"errors"
	"fmt"
	"math"

	"github.com/voiceshield/api/internal/audio"
)

const (
	SampleRate  = 16000
	FFTSize     = 1024
	HopSize     = 256
	NumMels     = 128
	FMin        = 20.0
	FMax        = 8000.0
	ClipSamples = 64000

	// NumFrames is the fixed time-axis length: centered STFT frames over
	// the padded/truncated clip window.
	NumFrames = 1 + ClipSamples/HopSize

	// dB floor relative to the peak mel energy.
	topDB = 80.0
)

// ErrDegenerateSignal is returned when the transform produces NaN or Inf,
// so bad values never reach inference.
var ErrDegenerateSignal = errors.New("numerically degenerate signal")

// Tensor is a fixed-shape time-frequency representation. Data is a
// row-major [Mels][Frames] matrix, ready to be viewed as a
// [1, 1, Mels, Frames] batch. It is owned by a single request.
type Tensor struct {
	Data   []float32
	Mels   int
	Frames int
}

// At returns the value at mel bin m, frame t.
func (t *Tensor) At(m, f int) float32 {
	return t.Data[m*t.Frames+f]
}

// Extractor computes log-mel spectrograms with precomputed window and
// filterbank. Safe for concurrent use: Extract allocates its own working
// buffers and the shared state is read-only after construction.
type Extractor struct {
	window  []float64
	melBank [][]float64
}

// NewExtractor precomputes the Hann window and mel filterbank.
func NewExtractor() *Extractor {
	return &Extractor{
		window:  hannWindow(FFTSize),
		melBank: melFilterBank(NumMels, FFTSize, SampleRate, FMin, FMax),
	}
}

// Extract computes the log-mel tensor for a conditioned buffer.
// The buffer must be at the canonical sample rate.
func (e *Extractor) Extract(buf *audio.Buffer) (*Tensor, error) {
	if buf.SampleRate != SampleRate {
		return nil, fmt.Errorf("extract: sample rate %d, want %d", buf.SampleRate, SampleRate)
	}

	clip := fitToWindow(buf.Samples)
	mel := e.melPower(clip)

	// Power to dB relative to the clip maximum, floored at -topDB.
	maxPower := 1e-10
	for _, row := range mel {
		for _, v := range row {
			if v > maxPower {
				maxPower = v
			}
		}
	}
	for _, row := range mel {
		for i, v := range row {
			if v < 1e-10 {
				v = 1e-10
			}
			db := 10 * math.Log10(v/maxPower)
			if db < -topDB {
				db = -topDB
			}
			row[i] = db
		}
	}

	standardize(mel)

	out := &Tensor{
		Data:   make([]float32, NumMels*NumFrames),
		Mels:   NumMels,
		Frames: NumFrames,
	}
	for m, row := range mel {
		for f, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("%w: NaN/Inf at mel %d frame %d", ErrDegenerateSignal, m, f)
			}
			out.Data[m*NumFrames+f] = float32(v)
		}
	}
	return out, nil
}

// fitToWindow pads the waveform with trailing zeros or truncates it to
// the leading ClipSamples. Truncation keeps the leading window because
// the conditioner has already trimmed leading silence.
func fitToWindow(samples []float32) []float32 {
	clip := make([]float32, ClipSamples)
	copy(clip, samples)
	return clip
}

// melPower computes the [NumMels][NumFrames] mel power spectrogram using
// a centered STFT (the clip is reflect-padded by FFTSize/2 on each side).
func (e *Extractor) melPower(clip []float32) [][]float64 {
	padded := reflectPad(clip, FFTSize/2)

	halfFFT := FFTSize/2 + 1
	mel := make([][]float64, NumMels)
	for m := range mel {
		mel[m] = make([]float64, NumFrames)
	}

	re := make([]float64, FFTSize)
	im := make([]float64, FFTSize)
	power := make([]float64, halfFFT)

	for f := 0; f < NumFrames; f++ {
		start := f * HopSize
		for i := 0; i < FFTSize; i++ {
			re[i] = float64(padded[start+i]) * e.window[i]
			im[i] = 0
		}
		fft(re, im)
		for k := 0; k < halfFFT; k++ {
			power[k] = re[k]*re[k] + im[k]*im[k]
		}
		for m := 0; m < NumMels; m++ {
			sum := 0.0
			for k, w := range e.melBank[m] {
				if w != 0 {
					sum += w * power[k]
				}
			}
			mel[m][f] = sum
		}
	}
	return mel
}

// reflectPad mirrors pad samples around each end of the clip.
func reflectPad(clip []float32, pad int) []float32 {
	n := len(clip)
	out := make([]float32, n+2*pad)
	copy(out[pad:], clip)
	for i := 0; i < pad; i++ {
		src := pad - i
		if src >= n {
			src = n - 1
		}
		out[i] = clip[src]

		src = n - 2 - i
		if src < 0 {
			src = 0
		}
		out[pad+n+i] = clip[src]
	}
	return out
}

// standardize applies per-clip zero-mean / unit-variance normalization,
// matching the model's training front-end. The std floor keeps constant
// spectrograms (e.g. pure silence) from dividing by zero.
func standardize(mel [][]float64) {
	n := 0.0
	sum := 0.0
	for _, row := range mel {
		for _, v := range row {
			sum += v
			n++
		}
	}
	mean := sum / n

	varSum := 0.0
	for _, row := range mel {
		for _, v := range row {
			d := v - mean
			varSum += d * d
		}
	}
	std := math.Sqrt(varSum / n)
	if std < 1e-6 {
		for _, row := range mel {
			for i := range row {
				row[i] -= mean
			}
		}
		return
	}
	for _, row := range mel {
		for i := range row {
			row[i] = (row[i] - mean) / std
		}
	}
}
