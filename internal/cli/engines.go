package cli

import (
	"fmt"

	"github.com/rs/zerolog"

	"inferdemo/internal/config"
	"inferdemo/internal/engine"
	"inferdemo/internal/engine/llama"
	"inferdemo/internal/engine/torchscript"
)

// EngineFactory builds the engine a run uses.
type EngineFactory func(cfg config.Config, log zerolog.Logger) (engine.Engine, error)

// NewEngine picks the engine named by cfg.Engine.
func NewEngine(cfg config.Config, log zerolog.Logger) (engine.Engine, error) {
	switch config.NormalizeEngine(cfg.Engine) {
	case config.EnginePyTorch:
		return torchscript.New(torchscript.Options{Python: cfg.Python, Logger: log}), nil
	case config.EngineLlama:
		if !llama.Built() {
			log.Debug().Msg("llama engine selected but not built in; loads will fail")
		}
		return llama.New(llama.Options{Logger: log}), nil
	default:
		return nil, fmt.Errorf("unknown engine %q (want %s or %s)", cfg.Engine, config.EnginePyTorch, config.EngineLlama)
	}
}
