package inference

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog/log"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/voiceshield/api/internal/features"
)

// Expected graph binding for the exported classifier: a single
// [1, 1, mels, frames] input and a [1, 1] sigmoid output.
const (
	inputName  = "input"
	outputName = "output"
)

// ortInitOnce ensures the ONNX Runtime environment is initialized exactly
// once. The error is kept at package scope so later constructor calls
// surface the original failure instead of proceeding uninitialized.
var (
	ortInitOnce sync.Once
	ortInitErr  error
)

// Config configures the ONNX classifier.
type Config struct {
	// ModelPath is the path to the exported .onnx weight file.
	ModelPath string

	// LibraryPath optionally overrides the ONNX Runtime shared library
	// location. Empty means search relative to the executable.
	LibraryPath string

	// Device selects the execution provider: "cpu" (default) or "cuda".
	// CUDA falls back to CPU with a logged warning if unavailable.
	Device string
}

// ONNXClassifier holds the process-wide, immutable-after-init model
// session. The session reuses its input/output tensors, so forward
// passes are serialized behind a mutex (single-writer discipline).
type ONNXClassifier struct {
	mu      sync.Mutex
	session *ort.AdvancedSession

	inputTensor  *ort.Tensor[float32] // [1, 1, NumMels, NumFrames]
	outputTensor *ort.Tensor[float32] // [1, 1]

	device string
}

// NewONNXClassifier initializes the runtime, loads the weight file, and
// allocates the fixed-shape input/output tensors. It fails fast when the
// weight file is missing or incompatible with the expected graph.
func NewONNXClassifier(cfg Config) (*ONNXClassifier, error) {
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, fmt.Errorf("model file %q: %w", cfg.ModelPath, err)
	}

	ortInitOnce.Do(func() {
		libPath, err := resolveORTLibPath(cfg.LibraryPath)
		if err != nil {
			ortInitErr = err
			return
		}
		ort.SetSharedLibraryPath(libPath)
		ortInitErr = ort.InitializeEnvironment()
	})
	if ortInitErr != nil {
		return nil, fmt.Errorf("initialize onnxruntime: %w", ortInitErr)
	}

	inputTensor, err := ort.NewEmptyTensor[float32](
		ort.NewShape(1, 1, features.NumMels, features.NumFrames))
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}
	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 1))
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("create output tensor: %w", err)
	}

	options, device, err := sessionOptions(cfg.Device)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, err
	}
	if options != nil {
		defer options.Destroy()
	}

	session, err := ort.NewAdvancedSession(
		cfg.ModelPath,
		[]string{inputName},
		[]string{outputName},
		[]ort.Value{inputTensor},
		[]ort.Value{outputTensor},
		options,
	)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("create session for %q: %w", cfg.ModelPath, err)
	}

	log.Info().Str("model", cfg.ModelPath).Str("device", device).Msg("Classifier loaded")
	return &ONNXClassifier{
		session:      session,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
		device:       device,
	}, nil
}

// sessionOptions builds session options for the requested device.
// Returns the device actually selected.
func sessionOptions(device string) (*ort.SessionOptions, string, error) {
	if device != "cuda" {
		return nil, "cpu", nil
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, "", fmt.Errorf("create session options: %w", err)
	}
	cudaOpts, err := ort.NewCUDAProviderOptions()
	if err != nil {
		options.Destroy()
		log.Warn().Err(err).Msg("CUDA unavailable, falling back to CPU")
		return nil, "cpu", nil
	}
	defer cudaOpts.Destroy()

	if err := options.AppendExecutionProviderCUDA(cudaOpts); err != nil {
		options.Destroy()
		log.Warn().Err(err).Msg("CUDA provider rejected, falling back to CPU")
		return nil, "cpu", nil
	}
	return options, "cuda", nil
}

// Infer runs one blocking, side-effect-free forward pass and returns the
// sigmoid score in [0, 1]. The input shape is validated before the
// network is invoked.
func (c *ONNXClassifier) Infer(ctx context.Context, t *features.Tensor) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if t.Mels != features.NumMels || t.Frames != features.NumFrames ||
		len(t.Data) != features.NumMels*features.NumFrames {
		return 0, fmt.Errorf("%w: got %dx%d (%d values), want %dx%d",
			ErrShapeMismatch, t.Mels, t.Frames, len(t.Data),
			features.NumMels, features.NumFrames)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return 0, ErrModelNotLoaded
	}

	copy(c.inputTensor.GetData(), t.Data)
	if err := c.session.Run(); err != nil {
		return 0, fmt.Errorf("forward pass: %w", err)
	}

	score := float64(c.outputTensor.GetData()[0])
	switch {
	case score < 0:
		score = 0
	case score > 1:
		score = 1
	}
	return score, nil
}

// Device reports the execution device selected at load time.
func (c *ONNXClassifier) Device() string { return c.device }

// Close releases session resources. Safe to call more than once.
func (c *ONNXClassifier) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != nil {
		c.session.Destroy()
		c.session = nil
	}
	if c.inputTensor != nil {
		c.inputTensor.Destroy()
		c.inputTensor = nil
	}
	if c.outputTensor != nil {
		c.outputTensor.Destroy()
		c.outputTensor = nil
	}
	return nil
}
