// Package predict orchestrates the prediction pipeline for one request:
// decode, condition, extract, infer, interpret.
package predict

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/voiceshield/api/internal/audio"
	"github.com/voiceshield/api/internal/features"
	"github.com/voiceshield/api/internal/inference"
	"github.com/voiceshield/api/internal/observe"
	"github.com/voiceshield/api/pkg/models"
)

// DefaultMaxUploadBytes is the upload size ceiling: 30 MiB.
const DefaultMaxUploadBytes = 30 * 1024 * 1024

var (
	// ErrPayloadTooLarge is returned before any decode attempt when the
	// upload exceeds the configured size limit.
	ErrPayloadTooLarge = errors.New("payload too large")

	// ErrEmptyUpload is returned when the uploaded file has no content.
	ErrEmptyUpload = errors.New("uploaded file is empty")
)

// silentFallbackScore is the deterministic score reported for a
// pure-silence clip, which is short-circuited past inference: exactly at
// the decision threshold, so it reads as REAL at 50% confidence.
const silentFallbackScore = 0.5

// PredictionService runs the full pipeline for a single uploaded clip.
type PredictionService interface {
	Predict(ctx context.Context, data []byte, filename string) (*models.PredictResponseBody, error)
}

type predictionService struct {
	classifier     inference.Classifier
	extractor      *features.Extractor
	maxUploadBytes int64
	metrics        *observe.Metrics
}

// NewPredictionService wires the pipeline. classifier may be nil when
// model loading failed at startup; predictions then fail with
// inference.ErrModelNotLoaded while the process keeps serving health
// checks. maxUploadBytes <= 0 selects DefaultMaxUploadBytes.
func NewPredictionService(classifier inference.Classifier, maxUploadBytes int64, metrics *observe.Metrics) PredictionService {
	if maxUploadBytes <= 0 {
		maxUploadBytes = DefaultMaxUploadBytes
	}
	return &predictionService{
		classifier:     classifier,
		extractor:      features.NewExtractor(),
		maxUploadBytes: maxUploadBytes,
		metrics:        metrics,
	}
}

// Predict runs decode → condition → extract → infer → interpret. Stages
// execute strictly sequentially; the context is checked at each stage
// boundary so a cancelled request stops without emitting a partial
// result. Every returned error belongs to the pipeline error taxonomy
// and is mapped to a status code at the API boundary.
func (s *predictionService) Predict(ctx context.Context, data []byte, filename string) (*models.PredictResponseBody, error) {
	start := time.Now()
	predictionID := uuid.New().String()

	if int64(len(data)) > s.maxUploadBytes {
		return nil, fmt.Errorf("%w: %d bytes (limit %d)", ErrPayloadTooLarge, len(data), s.maxUploadBytes)
	}
	if len(data) == 0 {
		return nil, ErrEmptyUpload
	}

	// Stage 1: decode to mono 16 kHz.
	stageStart := time.Now()
	buf, err := audio.Decode(data, filename)
	if err != nil {
		s.metrics.RecordPrediction(ctx, "", "error")
		return nil, err
	}
	s.metrics.RecordStage(ctx, "decode", time.Since(stageStart))

	info := models.AudioInfo{
		Duration:   round(buf.Duration(), 2),
		SampleRate: buf.SampleRate,
		FileSize:   round(float64(len(data))/1024, 2),
		Samples:    len(buf.Samples),
	}

	if err := ctx.Err(); err != nil {
		s.metrics.RecordPrediction(ctx, "", "error")
		return nil, err
	}

	// Stage 2: trim silence, normalize peak.
	stageStart = time.Now()
	conditioned, isSilent := audio.Condition(buf)
	s.metrics.RecordStage(ctx, "condition", time.Since(stageStart))

	var score float64
	if isSilent {
		// Nothing to classify; deterministic low-confidence fallback.
		score = silentFallbackScore
	} else {
		if err := ctx.Err(); err != nil {
			s.metrics.RecordPrediction(ctx, "", "error")
			return nil, err
		}

		// Stage 3: log-mel tensor.
		stageStart = time.Now()
		tensor, err := s.extractor.Extract(conditioned)
		if err != nil {
			s.metrics.RecordPrediction(ctx, "", "error")
			return nil, err
		}
		s.metrics.RecordStage(ctx, "extract", time.Since(stageStart))

		if err := ctx.Err(); err != nil {
			s.metrics.RecordPrediction(ctx, "", "error")
			return nil, err
		}

		// Stage 4: forward pass.
		if s.classifier == nil {
			s.metrics.RecordPrediction(ctx, "", "error")
			return nil, inference.ErrModelNotLoaded
		}
		stageStart = time.Now()
		score, err = s.classifier.Infer(ctx, tensor)
		if err != nil {
			s.metrics.RecordPrediction(ctx, "", "error")
			return nil, err
		}
		s.metrics.RecordStage(ctx, "infer", time.Since(stageStart))
	}

	// Stage 5: score → label + confidence.
	result := Interpret(score)
	s.metrics.RecordPrediction(ctx, string(result.Label), "ok")

	elapsed := time.Since(start)
	log.Info().
		Str("prediction_id", predictionID).
		Str("file", filename).
		Str("label", string(result.Label)).
		Float64("score", score).
		Bool("silent", isSilent).
		Dur("elapsed", elapsed).
		Msg("Prediction complete")

	return &models.PredictResponseBody{
		Label:                 string(result.Label),
		Confidence:            round(result.Confidence, 2),
		RawScore:              round(score, 4),
		AudioInfo:             info,
		ProcessingTimeSeconds: round(elapsed.Seconds(), 2),
		Success:               true,
	}, nil
}

// round rounds v half away from zero at the given number of decimal places.
func round(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}
