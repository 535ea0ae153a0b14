// Package audio turns uploaded byte blobs into normalized mono waveforms
// at the canonical sample rate, and conditions them for feature extraction.
package audio

import (
	"errors"
)

// CanonicalRate is the sample rate every decoded clip is resampled to.
const CanonicalRate = 16000

var (
	// ErrUnsupportedFormat is returned when the file extension or sniffed
	// content is not one of the supported container formats.
	ErrUnsupportedFormat = errors.New("unsupported audio format")

	// ErrCorruptAudio is returned when the byte stream cannot be decoded.
	ErrCorruptAudio = errors.New("corrupt or unreadable audio data")
)

// Buffer is a mono waveform at a known sample rate. Samples are in [-1, 1].
// A Buffer lives for a single request and is never shared.
type Buffer struct {
	Samples    []float32
	SampleRate int
}

// Duration returns the clip length in seconds.
func (b *Buffer) Duration() float64 {
	if b.SampleRate == 0 {
		return 0
	}
	return float64(len(b.Samples)) / float64(b.SampleRate)
}

// Peak returns the maximum absolute sample value.
func (b *Buffer) Peak() float32 {
	var peak float32
	for _, s := range b.Samples {
		if s > peak {
			peak = s
		} else if -s > peak {
			peak = -s
		}
	}
	return peak
}
