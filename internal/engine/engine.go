// Package engine is the boundary to the deep-learning runtime. Concrete
// engines live in subpackages; the demo only sees these interfaces.
package engine

import (
	"context"

	"inferdemo/internal/device"
	"inferdemo/internal/tensor"
)

// Option keys understood by engines.
const (
	// OptMapLocation asks the engine to remap stored weights onto the target device.
	OptMapLocation = "mapLocation"
)

// Engine loads models and reports the GPUs it can see.
type Engine interface {
	// Name is the engine's canonical name (pytorch, llama).
	Name() string
	// GPUCount returns the number of GPUs usable by this engine.
	GPUCount(ctx context.Context) (int, error)
	// Load prepares the model described by c. Callers must Close the result.
	Load(ctx context.Context, c Criteria) (Model, error)
}

// Criteria describes what to load and where.
type Criteria struct {
	ModelPath string
	Device    device.Device
	Options   map[string]string
}

// Option returns the named option, or "".
func (c Criteria) Option(key string) string {
	if c.Options == nil {
		return ""
	}
	return c.Options[key]
}

// Model is a loaded artifact.
type Model interface {
	// NewPredictor opens a predictor over the model. Callers must Close it.
	NewPredictor() (Predictor, error)
	// Close releases the model and any runtime resources behind it.
	Close() error
}

// Predictor runs forward passes.
type Predictor interface {
	Predict(ctx context.Context, in tensor.List) (tensor.List, error)
	Close() error
}
