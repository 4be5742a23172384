// Package llama runs GGUF artifacts in-process through llama.cpp. The runtime
// is only linked when built with the 'llama' tag; other builds report it as an
// unavailable dependency.
package llama

import (
	"context"
	"errors"
	"runtime"
	"strings"

	"github.com/rs/zerolog"

	"inferdemo/internal/device"
	"inferdemo/internal/engine"
)

// Name is the canonical engine name.
const Name = "llama"

const (
	defaultContextSize = 512
	// offload every layer when a GPU is selected
	defaultGPULayers = 999
)

// Options configures the engine. Zero values select defaults.
type Options struct {
	ContextSize int
	GPULayers   int
	Threads     int
	// Counter reports GPUs; defaults to an nvidia-smi probe.
	Counter device.Counter
	Logger  zerolog.Logger
}

// Engine implements engine.Engine over llama.cpp.
type Engine struct {
	opts Options
}

// New constructs an Engine, applying defaults for unset options.
func New(opts Options) *Engine {
	if opts.ContextSize <= 0 {
		opts.ContextSize = defaultContextSize
	}
	if opts.GPULayers <= 0 {
		opts.GPULayers = defaultGPULayers
	}
	if opts.Threads <= 0 {
		opts.Threads = runtime.NumCPU()
	}
	if opts.Counter == nil {
		opts.Counter = device.NewSMIProbe()
	}
	return &Engine{opts: opts}
}

func (e *Engine) Name() string { return Name }

// Built reports whether this binary carries the llama.cpp runtime.
func Built() bool { return llamaBuilt }

func (e *Engine) GPUCount(ctx context.Context) (int, error) {
	return e.opts.Counter.GPUCount(ctx)
}

// Load opens the GGUF artifact at c.ModelPath with embeddings enabled.
func (e *Engine) Load(ctx context.Context, c engine.Criteria) (engine.Model, error) {
	if strings.TrimSpace(c.ModelPath) == "" {
		return nil, errors.New("model path is empty")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	log := e.opts.Logger.With().Str("adapter", "llama").Str("device", c.Device.String()).Logger()
	m, err := e.load(c, log)
	if err != nil {
		log.Warn().Err(err).Str("event", "load_failed").Msg("llama load failed")
		return nil, err
	}
	log.Debug().Str("event", "loaded").Str("model", c.ModelPath).Msg("llama model loaded")
	return m, nil
}
