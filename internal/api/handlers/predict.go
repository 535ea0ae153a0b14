package handlers

import (
	"context"
	"io"

	"github.com/danielgtaylor/huma/v2"
	"github.com/rs/zerolog/log"

	"github.com/voiceshield/api/internal/predict"
	"github.com/voiceshield/api/pkg/models"
)

// PredictHandler handles prediction requests.
type PredictHandler struct {
	svc predict.PredictionService

	// mapError converts pipeline errors into the API error envelope;
	// injected by the routes package to keep handlers transport-thin.
	mapError func(error) huma.StatusError
}

// NewPredictHandler creates a new prediction handler.
func NewPredictHandler(svc predict.PredictionService, mapError func(error) huma.StatusError) *PredictHandler {
	return &PredictHandler{svc: svc, mapError: mapError}
}

// PredictFormData is the multipart form schema: one file field.
type PredictFormData struct {
	File huma.FormFile `form:"file" required:"true" doc:"Audio clip to classify (wav, mp3, flac, ogg)"`
}

// PredictRequest wraps the multipart body.
type PredictRequest struct {
	RawBody huma.MultipartFormFiles[PredictFormData]
}

// Predict reads the uploaded clip and runs the prediction pipeline.
func (h *PredictHandler) Predict(ctx context.Context, req *PredictRequest) (*models.PredictResponse, error) {
	form := req.RawBody.Data()
	if !form.File.IsSet || form.File.Filename == "" {
		return nil, huma.Error400BadRequest("No file provided")
	}

	data, err := io.ReadAll(form.File)
	if err != nil {
		return nil, huma.Error400BadRequest("Failed to read uploaded file")
	}

	log.Info().
		Str("file", form.File.Filename).
		Int("bytes", len(data)).
		Msg("Prediction request received")

	body, err := h.svc.Predict(ctx, data, form.File.Filename)
	if err != nil {
		log.Warn().Err(err).Str("file", form.File.Filename).Msg("Prediction failed")
		return nil, h.mapError(err)
	}

	return &models.PredictResponse{Body: *body}, nil
}
