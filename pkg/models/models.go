package models

// HealthResponse reports service liveness and model readiness.
type HealthResponse struct {
	Body HealthResponseBody
}

// HealthResponseBody is the body of the health check response.
type HealthResponseBody struct {
	Status      string `json:"status" example:"healthy" doc:"Service health status"`
	ModelLoaded bool   `json:"model_loaded" doc:"Whether the classifier weights are loaded"`
	Device      string `json:"device" enum:"cpu,cuda" doc:"Inference execution device"`
}

// InfoResponse is the static capability descriptor served by /api/info.
type InfoResponse struct {
	Body InfoResponseBody
}

// InfoResponseBody is the body of the info response.
type InfoResponseBody struct {
	Name             string            `json:"name" doc:"Service name"`
	Version          string            `json:"version" doc:"API version"`
	Description      string            `json:"description" doc:"What the service does"`
	Endpoints        map[string]string `json:"endpoints" doc:"Available endpoints"`
	SupportedFormats []string          `json:"supported_formats" doc:"Accepted audio container formats"`
	MaxFileSizeMB    float64           `json:"max_file_size_mb" doc:"Maximum upload size in megabytes"`
}

// AudioInfo describes the decoded clip; purely informational.
type AudioInfo struct {
	Duration   float64 `json:"duration" example:"2.34" doc:"Clip duration in seconds"`
	SampleRate int     `json:"sample_rate" example:"16000" doc:"Canonical sample rate in Hz"`
	FileSize   float64 `json:"file_size" doc:"Uploaded file size in KB"`
	Samples    int     `json:"samples" doc:"Number of decoded samples"`
}

// PredictResponseBody is the success contract of POST /predict. It is
// only ever populated as a whole: callers never observe a partial result.
type PredictResponseBody struct {
	Label                 string    `json:"label" enum:"REAL,FAKE" doc:"Predicted class"`
	Confidence            float64   `json:"confidence" minimum:"0" maximum:"100" doc:"Threshold-relative confidence percentage"`
	RawScore              float64   `json:"raw_score" minimum:"0" maximum:"1" doc:"Raw sigmoid output of the classifier"`
	AudioInfo             AudioInfo `json:"audio_info" doc:"Decoded clip details"`
	ProcessingTimeSeconds float64   `json:"processing_time_seconds" doc:"Wall-clock pipeline time"`
	Success               bool      `json:"success" doc:"Always true for a success response"`
}

// PredictResponse is the huma wrapper for the prediction result.
type PredictResponse struct {
	Body PredictResponseBody
}

// ErrorResponseBody is the error contract shared by every failure path:
// the message is rendered verbatim by the client.
type ErrorResponseBody struct {
	Error   string `json:"error" doc:"Human-readable error message"`
	Success bool   `json:"success" doc:"Always false for an error response"`
}
