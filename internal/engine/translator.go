package engine

import (
	"context"
	"fmt"

	"inferdemo/internal/tensor"
)

// Translator shapes application values into the engine's tensor-list form
// and back.
type Translator interface {
	ProcessInput(in tensor.List) (tensor.List, error)
	ProcessOutput(out tensor.List) (tensor.List, error)
}

// Identity passes tensor lists through unchanged.
type Identity struct{}

func (Identity) ProcessInput(in tensor.List) (tensor.List, error)   { return in, nil }
func (Identity) ProcessOutput(out tensor.List) (tensor.List, error) { return out, nil }

// WithTranslator wraps p so every call goes through t. A nil t means Identity.
func WithTranslator(p Predictor, t Translator) Predictor {
	if t == nil {
		t = Identity{}
	}
	return &translatingPredictor{p: p, t: t}
}

type translatingPredictor struct {
	p Predictor
	t Translator
}

func (tp *translatingPredictor) Predict(ctx context.Context, in tensor.List) (tensor.List, error) {
	x, err := tp.t.ProcessInput(in)
	if err != nil {
		return nil, fmt.Errorf("process input: %w", err)
	}
	y, err := tp.p.Predict(ctx, x)
	if err != nil {
		return nil, err
	}
	out, err := tp.t.ProcessOutput(y)
	if err != nil {
		return nil, fmt.Errorf("process output: %w", err)
	}
	return out, nil
}

func (tp *translatingPredictor) Close() error { return tp.p.Close() }
