package audio

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/go-audio/wav"
	mp3 "github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
	"github.com/mewkiz/flac"
	resampling "github.com/tphakala/go-audio-resampling"
)

// Format identifies a supported audio container.
type Format string

const (
	FormatWAV  Format = "wav"
	FormatMP3  Format = "mp3"
	FormatFLAC Format = "flac"
	FormatOGG  Format = "ogg"
)

// SupportedFormats lists the container formats the decoder accepts,
// in the order they are advertised by /api/info.
var SupportedFormats = []Format{FormatWAV, FormatMP3, FormatFLAC, FormatOGG}

// DetectFormat validates the filename extension against the supported
// set and, when the payload is long enough, cross-checks it against the
// container magic bytes. It runs before any decode attempt so unsupported
// uploads are rejected cheaply.
func DetectFormat(filename string, data []byte) (Format, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))

	var f Format
	switch ext {
	case "wav":
		f = FormatWAV
	case "mp3":
		f = FormatMP3
	case "flac":
		f = FormatFLAC
	case "ogg", "oga":
		f = FormatOGG
	default:
		return "", fmt.Errorf("%w: extension %q", ErrUnsupportedFormat, ext)
	}

	// Content sniff: if magic bytes identify a different supported
	// container, trust the content over the extension.
	if sniffed, ok := sniffFormat(data); ok && sniffed != f {
		f = sniffed
	}
	return f, nil
}

// sniffFormat inspects leading magic bytes. MP3 has no reliable magic
// (frame sync or optional ID3 tag), so it is only detected via ID3.
func sniffFormat(data []byte) (Format, bool) {
	if len(data) < 4 {
		return "", false
	}
	switch {
	case bytes.HasPrefix(data, []byte("RIFF")):
		return FormatWAV, true
	case bytes.HasPrefix(data, []byte("fLaC")):
		return FormatFLAC, true
	case bytes.HasPrefix(data, []byte("OggS")):
		return FormatOGG, true
	case bytes.HasPrefix(data, []byte("ID3")):
		return FormatMP3, true
	}
	return "", false
}

// Decode converts an uploaded byte blob into a mono Buffer at
// CanonicalRate. It is a pure function of its input: no temp files, no
// shared state. Fails with ErrUnsupportedFormat before touching the
// payload body, and ErrCorruptAudio when the declared container cannot
// be decoded.
func Decode(data []byte, filename string) (*Buffer, error) {
	format, err := DetectFormat(filename, data)
	if err != nil {
		return nil, err
	}

	var (
		samples  []float32
		channels int
		rate     int
	)
	switch format {
	case FormatWAV:
		samples, channels, rate, err = decodeWAV(data)
	case FormatMP3:
		samples, channels, rate, err = decodeMP3(data)
	case FormatFLAC:
		samples, channels, rate, err = decodeFLAC(data)
	case FormatOGG:
		samples, channels, rate, err = decodeOGG(data)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptAudio, err)
	}
	if len(samples) == 0 || rate <= 0 {
		return nil, fmt.Errorf("%w: decoded stream is empty", ErrCorruptAudio)
	}

	mono := downmix(samples, channels)
	resampled, err := resample(mono, rate, CanonicalRate)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptAudio, err)
	}

	return &Buffer{Samples: resampled, SampleRate: CanonicalRate}, nil
}

func decodeWAV(data []byte) ([]float32, int, int, error) {
	dec := wav.NewDecoder(bytes.NewReader(data))
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, 0, err
	}
	if buf == nil || buf.Format == nil || len(buf.Data) == 0 {
		return nil, 0, 0, fmt.Errorf("wav: no PCM data")
	}

	bitDepth := int(dec.BitDepth)
	if bitDepth == 0 {
		bitDepth = buf.SourceBitDepth
	}
	if bitDepth == 0 {
		bitDepth = 16
	}
	scale := float32(int64(1) << (bitDepth - 1))

	samples := make([]float32, len(buf.Data))
	for i, v := range buf.Data {
		samples[i] = float32(v) / scale
	}
	return samples, buf.Format.NumChannels, buf.Format.SampleRate, nil
}

func decodeMP3(data []byte) ([]float32, int, int, error) {
	dec, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, 0, 0, err
	}
	raw, err := io.ReadAll(dec)
	if err != nil {
		return nil, 0, 0, err
	}

	// go-mp3 always emits 16-bit little-endian stereo.
	n := len(raw) / 2
	samples := make([]float32, n)
	for i := 0; i < n; i++ {
		s := int16(raw[i*2]) | int16(raw[i*2+1])<<8
		samples[i] = float32(s) / 32768.0
	}
	return samples, 2, dec.SampleRate(), nil
}

func decodeFLAC(data []byte) ([]float32, int, int, error) {
	stream, err := flac.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, 0, 0, err
	}
	defer stream.Close()

	channels := int(stream.Info.NChannels)
	rate := int(stream.Info.SampleRate)
	scale := float32(int64(1) << (stream.Info.BitsPerSample - 1))

	var samples []float32
	for {
		frame, err := stream.ParseNext()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, 0, err
		}
		if len(frame.Subframes) == 0 {
			continue
		}
		blockSize := len(frame.Subframes[0].Samples)
		// Interleave the per-channel subframes.
		for i := 0; i < blockSize; i++ {
			for ch := 0; ch < channels && ch < len(frame.Subframes); ch++ {
				samples = append(samples, float32(frame.Subframes[ch].Samples[i])/scale)
			}
		}
	}
	return samples, channels, rate, nil
}

func decodeOGG(data []byte) ([]float32, int, int, error) {
	samples, format, err := oggvorbis.ReadAll(bytes.NewReader(data))
	if err != nil {
		return nil, 0, 0, err
	}
	return samples, format.Channels, format.SampleRate, nil
}

// downmix averages interleaved channels into a mono signal.
func downmix(samples []float32, channels int) []float32 {
	if channels <= 1 {
		return samples
	}
	frames := len(samples) / channels
	mono := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float32
		for ch := 0; ch < channels; ch++ {
			sum += samples[i*channels+ch]
		}
		mono[i] = sum / float32(channels)
	}
	return mono
}

// resample converts a mono signal from srcRate to dstRate.
func resample(samples []float32, srcRate, dstRate int) ([]float32, error) {
	if srcRate == dstRate {
		return samples, nil
	}

	rs, err := resampling.New(&resampling.Config{
		InputRate:  float64(srcRate),
		OutputRate: float64(dstRate),
		Channels:   1,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return nil, fmt.Errorf("create resampler: %w", err)
	}

	input := make([]float64, len(samples))
	for i, s := range samples {
		input[i] = float64(s)
	}
	output, err := rs.Process(input)
	if err != nil {
		return nil, fmt.Errorf("resample: %w", err)
	}
	// Drain the filter-delay tail so the clip keeps its full duration.
	tail, err := rs.Flush()
	if err != nil {
		return nil, fmt.Errorf("resample flush: %w", err)
	}
	output = append(output, tail...)

	out := make([]float32, len(output))
	for i, s := range output {
		switch {
		case s > 1.0:
			out[i] = 1.0
		case s < -1.0:
			out[i] = -1.0
		default:
			out[i] = float32(s)
		}
	}
	return out, nil
}
