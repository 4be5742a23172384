//go:build !llama

package llama

import (
	"github.com/rs/zerolog"

	"inferdemo/internal/engine"
)

var llamaBuilt = false

func (e *Engine) load(c engine.Criteria, _ zerolog.Logger) (engine.Model, error) {
	return nil, engine.ErrDependencyUnavailable("llama support not built (missing 'llama' build tag)")
}
