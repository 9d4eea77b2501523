package inference

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"caffmed-api/internal/vision"
)

// ErrModelUnavailable is returned by Infer when the model failed to load at
// startup.
var ErrModelUnavailable = errors.New("model not loaded or not found")

// Engine runs a single forward pass. Implementations must be safe for
// concurrent use.
type Engine interface {
	Run(t *vision.Tensor) (RawPrediction, error)
	// InputSize is the square spatial size the model expects, or 0 when the
	// model accepts any size.
	InputSize() int
	// OutputSize is the length of the probability vector.
	OutputSize() int
	Close() error
}

// Opener loads an Engine. It is called once per process.
type Opener func() (Engine, error)

// Handle owns the loaded model for the lifetime of the process. It is either
// Ready or Unavailable and never changes state after Load returns.
type Handle struct {
	engine   Engine
	loadErr  error
	loadedAt time.Time
}

// Load opens the model once. A failure is logged and recorded on the returned
// Handle instead of being returned, so the service can keep running degraded.
func Load(open Opener, log *zap.Logger) *Handle {
	start := time.Now()
	engine, err := open()
	if err != nil {
		log.Error("model load failed, serving in unavailable state", zap.Error(err))
		return &Handle{loadErr: err}
	}
	log.Info("model loaded",
		zap.Duration("took", time.Since(start)),
		zap.Int("input_size", engine.InputSize()),
		zap.Int("output_size", engine.OutputSize()),
	)
	return &Handle{engine: engine, loadedAt: time.Now()}
}

// NewReadyHandle wraps an already constructed engine.
func NewReadyHandle(engine Engine) *Handle {
	return &Handle{engine: engine, loadedAt: time.Now()}
}

// NewUnavailableHandle records a load failure without attempting a load.
func NewUnavailableHandle(err error) *Handle {
	if err == nil {
		err = ErrModelUnavailable
	}
	return &Handle{loadErr: err}
}

func (h *Handle) Ready() bool {
	return h != nil && h.engine != nil
}

// Err is the load failure, or nil when Ready.
func (h *Handle) Err() error {
	if h == nil {
		return ErrModelUnavailable
	}
	return h.loadErr
}

func (h *Handle) LoadedAt() time.Time {
	if h == nil {
		return time.Time{}
	}
	return h.loadedAt
}

func (h *Handle) InputSize() int {
	if !h.Ready() {
		return 0
	}
	return h.engine.InputSize()
}

func (h *Handle) OutputSize() int {
	if !h.Ready() {
		return 0
	}
	return h.engine.OutputSize()
}

// Infer runs the model on a batch of one.
func (h *Handle) Infer(t *vision.Tensor) (RawPrediction, error) {
	if !h.Ready() {
		return nil, ErrModelUnavailable
	}
	raw, err := h.engine.Run(t)
	if err != nil {
		return nil, fmt.Errorf("model run failed: %w", err)
	}
	return raw, nil
}

// CheckShape verifies the loaded model agrees with the configured class list
// and input size. It is a no-op for an unavailable handle.
func (h *Handle) CheckShape(classes, inputSize int) error {
	if !h.Ready() {
		return nil
	}
	if out := h.engine.OutputSize(); out != classes {
		return fmt.Errorf("model produces %d scores but %d class names are configured", out, classes)
	}
	if in := h.engine.InputSize(); in != 0 && in != inputSize {
		return fmt.Errorf("model expects %dx%d input but model.input_size is %d", in, in, inputSize)
	}
	return nil
}

func (h *Handle) Close() error {
	if !h.Ready() {
		return nil
	}
	return h.engine.Close()
}
