package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/voiceshield/api/internal/api/handlers"
	"github.com/voiceshield/api/internal/audio"
	"github.com/voiceshield/api/internal/predict"
	"github.com/voiceshield/api/pkg/models"
)

// Version is the API version reported by /api/info.
const Version = "1.0.0"

// Status describes process-wide inference readiness, fixed at startup.
type Status struct {
	ModelLoaded bool
	Device      string
}

// RegisterRoutes sets up all API routes.
func RegisterRoutes(router *chi.Mux, api huma.API, svc predict.PredictionService, status Status, maxUploadBytes int64) {
	predictHandler := handlers.NewPredictHandler(svc, mapPipelineError)

	// Multipart framing adds overhead on top of the audio payload; the
	// service enforces the exact limit on the decoded file bytes.
	maxBody := maxUploadBytes + 1024*1024

	for _, path := range []string{"/predict", "/api/predict"} {
		opID := "predict"
		if path == "/api/predict" {
			opID = "predictAPI"
		}
		huma.Register(api, huma.Operation{
			OperationID:  opID,
			Method:       http.MethodPost,
			Path:         path,
			Summary:      "Classify an audio clip",
			Description:  "Runs the uploaded clip through the deepfake classifier and returns REAL/FAKE with a confidence percentage",
			Tags:         []string{"Prediction"},
			MaxBodyBytes: maxBody,
		}, predictHandler.Predict)
	}

	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Description: "Returns service health and whether the classifier is loaded",
	}, func(ctx context.Context, input *struct{}) (*models.HealthResponse, error) {
		resp := &models.HealthResponse{}
		resp.Body.Status = "healthy"
		resp.Body.ModelLoaded = status.ModelLoaded
		resp.Body.Device = status.Device
		return resp, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "info",
		Method:      http.MethodGet,
		Path:        "/api/info",
		Summary:     "API information",
		Description: "Static capability descriptor: supported formats, size limit, endpoints",
	}, func(ctx context.Context, input *struct{}) (*models.InfoResponse, error) {
		formats := make([]string, len(audio.SupportedFormats))
		for i, f := range audio.SupportedFormats {
			formats[i] = string(f)
		}
		resp := &models.InfoResponse{}
		resp.Body = models.InfoResponseBody{
			Name:        "VoiceShield API",
			Version:     Version,
			Description: "Detects AI-generated (fake) speech in uploaded audio clips",
			Endpoints: map[string]string{
				"POST /predict": "Predict if audio is real or fake",
				"GET /health":   "Health check",
				"GET /api/info": "API information",
				"GET /metrics":  "Prometheus metrics",
			},
			SupportedFormats: formats,
			MaxFileSizeMB:    float64(maxUploadBytes) / (1024 * 1024),
		}
		return resp, nil
	})

	// Prometheus scrape endpoint (OTel metrics via the exporter bridge).
	router.Get("/metrics", promhttp.Handler().ServeHTTP)

	// Unknown routes use the same error envelope as everything else.
	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(models.ErrorResponseBody{
			Error:   "Endpoint not found",
			Success: false,
		})
	})
}
