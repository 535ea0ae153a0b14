package audio

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// makeWAV builds a 16-bit PCM WAV blob with the given interleaved samples.
func makeWAV(t *testing.T, samples []float64, sampleRate, channels int) []byte {
	t.Helper()

	var data bytes.Buffer
	for _, s := range samples {
		v := int16(math.Round(s * 32767))
		require.NoError(t, binary.Write(&data, binary.LittleEndian, v))
	}

	var buf bytes.Buffer
	dataLen := uint32(data.Len())
	blockAlign := uint16(2 * channels)
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+dataLen))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(channels))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate)*uint32(blockAlign))
	binary.Write(&buf, binary.LittleEndian, blockAlign)
	binary.Write(&buf, binary.LittleEndian, uint16(16))
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, dataLen)
	buf.Write(data.Bytes())
	return buf.Bytes()
}

func sine(freq float64, seconds float64, sampleRate int) []float64 {
	n := int(seconds * float64(sampleRate))
	out := make([]float64, n)
	for i := range out {
		out[i] = 0.5 * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate))
	}
	return out
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		data     []byte
		want     Format
		wantErr  bool
	}{
		{name: "wav extension", filename: "clip.wav", data: []byte("RIFFxxxxWAVE"), want: FormatWAV},
		{name: "uppercase extension", filename: "CLIP.WAV", data: []byte("RIFFxxxxWAVE"), want: FormatWAV},
		{name: "mp3 extension", filename: "clip.mp3", data: []byte{0xFF, 0xFB, 0x90, 0x00}, want: FormatMP3},
		{name: "flac extension", filename: "clip.flac", data: []byte("fLaCxxxx"), want: FormatFLAC},
		{name: "ogg extension", filename: "clip.ogg", data: []byte("OggSxxxx"), want: FormatOGG},
		{name: "oga alias", filename: "clip.oga", data: []byte("OggSxxxx"), want: FormatOGG},
		{name: "content overrides extension", filename: "clip.mp3", data: []byte("fLaCxxxx"), want: FormatFLAC},
		{name: "txt rejected", filename: "notes.txt", data: []byte("hello"), wantErr: true},
		{name: "m4a rejected", filename: "clip.m4a", data: []byte{0, 0, 0, 0x20}, wantErr: true},
		{name: "no extension rejected", filename: "clip", data: []byte("RIFF"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DetectFormat(tt.filename, tt.data)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnsupportedFormat)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeWAVMono(t *testing.T) {
	wav := makeWAV(t, sine(440, 2.34, 16000), 16000, 1)

	buf, err := Decode(wav, "clip.wav")
	require.NoError(t, err)

	assert.Equal(t, CanonicalRate, buf.SampleRate)
	assert.Equal(t, int(2.34*16000), len(buf.Samples))
	assert.InDelta(t, 2.34, buf.Duration(), 0.01)
	assert.InDelta(t, 0.5, float64(buf.Peak()), 0.01)
}

func TestDecodeWAVStereoDownmix(t *testing.T) {
	// Stereo with identical channels downmixes to the same signal.
	mono := sine(440, 1, 16000)
	stereo := make([]float64, 0, len(mono)*2)
	for _, s := range mono {
		stereo = append(stereo, s, s)
	}
	wav := makeWAV(t, stereo, 16000, 2)

	buf, err := Decode(wav, "clip.wav")
	require.NoError(t, err)

	assert.Equal(t, len(mono), len(buf.Samples))
	assert.InDelta(t, 0.5, float64(buf.Peak()), 0.01)
}

func TestDecodeWAVResamples(t *testing.T) {
	wav := makeWAV(t, sine(440, 1, 44100), 44100, 1)

	buf, err := Decode(wav, "clip.wav")
	require.NoError(t, err)

	assert.Equal(t, CanonicalRate, buf.SampleRate)
	// The flushed tail keeps the full duration: only a small edge-sample
	// slack remains, not a filter-delay's worth.
	assert.InDelta(t, float64(CanonicalRate), float64(len(buf.Samples)), float64(CanonicalRate)*0.01)
}

func TestDecodeCorruptData(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		data     []byte
	}{
		{name: "truncated wav", filename: "clip.wav", data: []byte("RIFF\x00\x00\x00\x00WAVE")},
		{name: "garbage wav", filename: "clip.wav", data: bytes.Repeat([]byte{0xAB}, 256)},
		{name: "garbage flac", filename: "clip.flac", data: bytes.Repeat([]byte{0xCD}, 256)},
		{name: "garbage ogg", filename: "clip.ogg", data: bytes.Repeat([]byte{0xEF}, 256)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.data, tt.filename)
			assert.ErrorIs(t, err, ErrCorruptAudio)
		})
	}
}

func TestDecodeUnsupportedBeforeDecode(t *testing.T) {
	_, err := Decode([]byte("anything"), "notes.txt")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestDownmix(t *testing.T) {
	samples := []float32{1, 0, 0.5, 0.5, -1, 1}
	mono := downmix(samples, 2)
	assert.Equal(t, []float32{0.5, 0.5, 0}, mono)
}
