// Package inference wraps the frozen ONNX deepfake classifier behind a
// small interface so the prediction service can be tested with
// fixed-score doubles.
package inference

import (
	"context"
	"errors"

	"github.com/voiceshield/api/internal/features"
)

var (
	// ErrModelNotLoaded is returned when inference is attempted before a
	// model has been successfully loaded (startup misconfiguration).
	ErrModelNotLoaded = errors.New("model not loaded")

	// ErrShapeMismatch is returned when the input tensor does not match
	// the architecture's expected shape.
	ErrShapeMismatch = errors.New("input tensor shape mismatch")
)

// Classifier runs a forward pass over a feature tensor and returns the
// sigmoid score in [0, 1]: the probability the input is synthetic.
// Implementations must be safe for concurrent Infer calls.
type Classifier interface {
	Infer(ctx context.Context, t *features.Tensor) (float64, error)
	Device() string
	Close() error
}
