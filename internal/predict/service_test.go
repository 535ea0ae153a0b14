package predict

import (
	"bytes"
	"context"
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/voiceshield/api/internal/features"
	"github.com/voiceshield/api/internal/inference"
	"github.com/voiceshield/api/internal/observe"
)

// fixedClassifier returns a constant score, so pipeline behavior can be
// asserted independent of model weights.
type fixedClassifier struct {
	score float64
	err   error
	calls int
}

func (c *fixedClassifier) Infer(ctx context.Context, t *features.Tensor) (float64, error) {
	c.calls++
	if c.err != nil {
		return 0, c.err
	}
	return c.score, nil
}

func (c *fixedClassifier) Device() string { return "cpu" }
func (c *fixedClassifier) Close() error   { return nil }

// makeWAV builds a 16-bit mono PCM WAV blob from float samples.
func makeWAV(t *testing.T, samples []float64, sampleRate int) []byte {
	t.Helper()

	var data bytes.Buffer
	for _, s := range samples {
		v := int16(math.Round(s * 32767))
		require.NoError(t, binary.Write(&data, binary.LittleEndian, v))
	}

	var buf bytes.Buffer
	dataLen := uint32(data.Len())
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+dataLen))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // mono
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate*2))
	binary.Write(&buf, binary.LittleEndian, uint16(2))
	binary.Write(&buf, binary.LittleEndian, uint16(16))
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, dataLen)
	buf.Write(data.Bytes())
	return buf.Bytes()
}

// toneWAV generates a 440 Hz sine clip at 16 kHz.
func toneWAV(t *testing.T, seconds float64) []byte {
	t.Helper()
	n := int(seconds * 16000)
	samples := make([]float64, n)
	for i := range samples {
		samples[i] = 0.5 * math.Sin(2*math.Pi*440*float64(i)/16000)
	}
	return makeWAV(t, samples, 16000)
}

func TestPredictSuccess(t *testing.T) {
	clf := &fixedClassifier{score: 0.921}
	svc := NewPredictionService(clf, 0, nil)

	wav := toneWAV(t, 2.34)
	resp, err := svc.Predict(context.Background(), wav, "clip.wav")
	require.NoError(t, err)

	assert.Equal(t, "FAKE", resp.Label)
	assert.InDelta(t, 92.1, resp.Confidence, 1e-9)
	assert.InDelta(t, 0.921, resp.RawScore, 1e-9)
	assert.True(t, resp.Success)
	assert.Equal(t, 16000, resp.AudioInfo.SampleRate)
	assert.InDelta(t, 2.34, resp.AudioInfo.Duration, 0.01)
	assert.Equal(t, int(2.34*16000), resp.AudioInfo.Samples)
	assert.InDelta(t, float64(len(wav))/1024, resp.AudioInfo.FileSize, 0.01)
	assert.GreaterOrEqual(t, resp.ProcessingTimeSeconds, 0.0)
	assert.Equal(t, 1, clf.calls)
}

func TestPredictRealLabel(t *testing.T) {
	svc := NewPredictionService(&fixedClassifier{score: 0.0547}, 0, nil)

	resp, err := svc.Predict(context.Background(), toneWAV(t, 1), "clip.wav")
	require.NoError(t, err)
	assert.Equal(t, "REAL", resp.Label)
	assert.InDelta(t, 94.53, resp.Confidence, 1e-9)
}

func TestPredictIdempotent(t *testing.T) {
	svc := NewPredictionService(&fixedClassifier{score: 0.73}, 0, nil)
	wav := toneWAV(t, 1.5)

	first, err := svc.Predict(context.Background(), wav, "clip.wav")
	require.NoError(t, err)
	second, err := svc.Predict(context.Background(), wav, "clip.wav")
	require.NoError(t, err)

	assert.Equal(t, first.Label, second.Label)
	assert.Equal(t, first.Confidence, second.Confidence)
	assert.Equal(t, first.RawScore, second.RawScore)
	assert.Equal(t, first.AudioInfo, second.AudioInfo)
}

func TestPredictSizeLimit(t *testing.T) {
	const limit = 4096
	svc := NewPredictionService(&fixedClassifier{score: 0.2}, limit, nil)

	// Exactly at the limit: accepted (decode may still fail later, but
	// not with a size error).
	atLimit := make([]byte, limit)
	_, err := svc.Predict(context.Background(), atLimit, "clip.wav")
	assert.NotErrorIs(t, err, ErrPayloadTooLarge)

	// One byte over: rejected before decode.
	over := make([]byte, limit+1)
	_, err = svc.Predict(context.Background(), over, "clip.wav")
	assert.ErrorIs(t, err, ErrPayloadTooLarge)
}

func TestPredictUnsupportedExtension(t *testing.T) {
	clf := &fixedClassifier{score: 0.9}
	svc := NewPredictionService(clf, 0, nil)

	_, err := svc.Predict(context.Background(), []byte("definitely not audio"), "notes.txt")
	require.Error(t, err)
	assert.Equal(t, 0, clf.calls, "rejected before any decode or inference")
}

func TestPredictEmptyUpload(t *testing.T) {
	svc := NewPredictionService(&fixedClassifier{score: 0.9}, 0, nil)

	_, err := svc.Predict(context.Background(), nil, "clip.wav")
	assert.ErrorIs(t, err, ErrEmptyUpload)
}

func TestPredictSilentClipFallback(t *testing.T) {
	clf := &fixedClassifier{score: 0.99}
	svc := NewPredictionService(clf, 0, nil)

	silent := makeWAV(t, make([]float64, 16000), 16000)
	resp, err := svc.Predict(context.Background(), silent, "silence.wav")
	require.NoError(t, err)

	// Silence short-circuits inference with the deterministic fallback.
	assert.Equal(t, 0, clf.calls)
	assert.Equal(t, "REAL", resp.Label)
	assert.InDelta(t, 50.0, resp.Confidence, 1e-9)
	assert.InDelta(t, 0.5, resp.RawScore, 1e-9)
	assert.True(t, resp.Success)
}

func TestPredictModelNotLoaded(t *testing.T) {
	svc := NewPredictionService(nil, 0, nil)

	_, err := svc.Predict(context.Background(), toneWAV(t, 1), "clip.wav")
	assert.ErrorIs(t, err, inference.ErrModelNotLoaded)
}

func TestPredictInferenceError(t *testing.T) {
	svc := NewPredictionService(&fixedClassifier{err: inference.ErrShapeMismatch}, 0, nil)

	_, err := svc.Predict(context.Background(), toneWAV(t, 1), "clip.wav")
	assert.ErrorIs(t, err, inference.ErrShapeMismatch)
}

func TestPredictCancelledContext(t *testing.T) {
	svc := NewPredictionService(&fixedClassifier{score: 0.5}, 0, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := svc.Predict(ctx, toneWAV(t, 1), "clip.wav")
	assert.ErrorIs(t, err, context.Canceled)
}

// errorCount sums the predictions counter series with status=error.
func errorCount(t *testing.T, reader *sdkmetric.ManualReader) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	var total int64
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if m.Name != "predictions_total" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			for _, dp := range sum.DataPoints {
				if v, found := dp.Attributes.Value("status"); found && v.AsString() == "error" {
					total += dp.Value
				}
			}
		}
	}
	return total
}

func TestPredictFailuresCountAsErrors(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	metrics, err := observe.NewMetrics(provider)
	require.NoError(t, err)

	// Model never loaded.
	svc := NewPredictionService(nil, 0, metrics)
	_, err = svc.Predict(context.Background(), toneWAV(t, 1), "clip.wav")
	require.ErrorIs(t, err, inference.ErrModelNotLoaded)
	assert.Equal(t, int64(1), errorCount(t, reader))

	// Cancelled mid-pipeline.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = svc.Predict(ctx, toneWAV(t, 1), "clip.wav")
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int64(2), errorCount(t, reader))
}
