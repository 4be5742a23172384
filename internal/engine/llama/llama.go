//go:build llama

package llama

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	llamacpp "github.com/go-skynet/go-llama.cpp"
	"github.com/rs/zerolog"

	"inferdemo/internal/engine"
	"inferdemo/internal/tensor"
)

var llamaBuilt = true

func (e *Engine) load(c engine.Criteria, log zerolog.Logger) (engine.Model, error) {
	mo := []llamacpp.ModelOption{
		llamacpp.EnableEmbeddings,
		llamacpp.SetContext(e.opts.ContextSize),
	}
	if c.Device.IsGPU() {
		mo = append(mo,
			llamacpp.SetGPULayers(e.opts.GPULayers),
			llamacpp.SetMainGPU(strconv.Itoa(c.Device.Index)),
		)
	}
	l, err := llamacpp.New(c.ModelPath, mo...)
	if err != nil {
		return nil, fmt.Errorf("llama load %s: %w", c.ModelPath, err)
	}
	return &model{l: l, threads: e.opts.Threads, log: log}, nil
}

type model struct {
	mu      sync.Mutex
	l       *llamacpp.LLama
	threads int
	log     zerolog.Logger
}

func (m *model) NewPredictor() (engine.Predictor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.l == nil {
		return nil, errors.New("model closed")
	}
	return &predictor{m: m}, nil
}

func (m *model) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.l != nil {
		m.l.Free()
		m.l = nil
	}
	return nil
}

type predictor struct {
	m      *model
	closed bool
}

// Predict embeds the token ids of the first int64 input and returns a single
// (1, dim) float32 tensor.
func (p *predictor) Predict(ctx context.Context, in tensor.List) (tensor.List, error) {
	if p.closed {
		return nil, errors.New("predictor closed")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ids := firstTokens(in)
	if ids == nil {
		return nil, engine.ErrWorker("no int64 input to embed")
	}
	p.m.mu.Lock()
	defer p.m.mu.Unlock()
	if p.m.l == nil {
		return nil, errors.New("model closed")
	}
	emb, err := p.m.l.TokenEmbeddings(ids, llamacpp.SetThreads(p.m.threads))
	if err != nil {
		return nil, engine.ErrWorker(err.Error())
	}
	out := &tensor.Tensor{Name: "output_0", DType: tensor.Float32, Shape: tensor.Shape{1, int64(len(emb))}, Floats: emb}
	return tensor.List{out}, nil
}

func (p *predictor) Close() error {
	p.closed = true
	return nil
}
