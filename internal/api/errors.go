package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/voiceshield/api/internal/audio"
	"github.com/voiceshield/api/internal/features"
	"github.com/voiceshield/api/internal/inference"
	"github.com/voiceshield/api/internal/predict"
)

// apiError is the error envelope every failure path serializes to:
// {"error": "<message>", "success": false}. It replaces huma's default
// RFC7807 model so validation errors match the contract too.
type apiError struct {
	status  int
	Message string `json:"error"`
	Success bool   `json:"success"`
}

func (e *apiError) Error() string  { return e.Message }
func (e *apiError) GetStatus() int { return e.status }

// ContentType forces plain application/json instead of problem+json.
func (e *apiError) ContentType(string) string { return "application/json" }

// newAPIError builds the error envelope. Wrapped causes are logged by
// the caller, never exposed to the client.
func newAPIError(status int, message string, _ ...error) huma.StatusError {
	return &apiError{status: status, Message: message, Success: false}
}

// init replaces huma's error constructor process-wide so that built-in
// helpers (huma.Error400BadRequest etc.) and validation failures all
// produce the same envelope.
func init() {
	huma.NewError = newAPIError
}

// mapPipelineError converts a pipeline error into the HTTP error it
// contracts to: decode problems are client errors, inference-stage
// problems are server errors.
func mapPipelineError(err error) huma.StatusError {
	switch {
	case errors.Is(err, predict.ErrPayloadTooLarge):
		return newAPIError(http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, audio.ErrUnsupportedFormat),
		errors.Is(err, audio.ErrCorruptAudio),
		errors.Is(err, predict.ErrEmptyUpload):
		return newAPIError(http.StatusBadRequest, err.Error())
	case errors.Is(err, features.ErrDegenerateSignal):
		return newAPIError(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, inference.ErrModelNotLoaded):
		return newAPIError(http.StatusInternalServerError, "Model not loaded; service is not ready for predictions")
	case errors.Is(err, inference.ErrShapeMismatch):
		return newAPIError(http.StatusInternalServerError, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return newAPIError(http.StatusServiceUnavailable, "Request cancelled")
	default:
		return newAPIError(http.StatusInternalServerError, "Internal server error")
	}
}
