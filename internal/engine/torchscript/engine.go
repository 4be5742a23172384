// Package torchscript runs TorchScript artifacts through a PyTorch worker
// process. The worker script is embedded and started with the configured
// interpreter; requests and replies are single JSON lines over stdio.
package torchscript

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"inferdemo/internal/engine"
	"inferdemo/internal/tensor"
)

//go:embed worker.py
var workerScript string

// Name is the canonical engine name.
const Name = "pytorch"

const (
	defaultPython       = "python3"
	defaultStartTimeout = 60 * time.Second
	defaultProbeTimeout = 15 * time.Second
	defaultStopGrace    = 2 * time.Second
)

const gpuCountScript = "import torch; print(torch.cuda.device_count())"

// Options configures the engine. Zero values select defaults.
type Options struct {
	Python       string
	StartTimeout time.Duration
	ProbeTimeout time.Duration
	StopGrace    time.Duration
	Logger       zerolog.Logger
}

// Engine implements engine.Engine on top of a Python worker.
type Engine struct {
	opts Options
}

// New constructs an Engine, applying defaults for unset options.
func New(opts Options) *Engine {
	if strings.TrimSpace(opts.Python) == "" {
		opts.Python = defaultPython
	}
	if opts.StartTimeout <= 0 {
		opts.StartTimeout = defaultStartTimeout
	}
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = defaultProbeTimeout
	}
	if opts.StopGrace <= 0 {
		opts.StopGrace = defaultStopGrace
	}
	return &Engine{opts: opts}
}

func (e *Engine) Name() string { return Name }

// python resolves the interpreter, reporting a missing one as a dependency error.
func (e *Engine) python() (string, error) {
	p, err := exec.LookPath(e.opts.Python)
	if err != nil {
		return "", engine.ErrDependencyUnavailable(fmt.Sprintf("python interpreter %q not found: set --python=PATH", e.opts.Python))
	}
	return p, nil
}

// GPUCount asks torch how many CUDA devices it can use.
func (e *Engine) GPUCount(ctx context.Context) (int, error) {
	py, err := e.python()
	if err != nil {
		return 0, err
	}
	ctx, cancel := context.WithTimeout(ctx, e.opts.ProbeTimeout)
	defer cancel()
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, py, "-c", gpuCountScript)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("torch gpu probe: %w: %s", err, tail(stderr.String(), 512))
	}
	n, err := parseCount(out)
	if err != nil {
		return 0, fmt.Errorf("torch gpu probe: %w", err)
	}
	return n, nil
}

// parseCount reads the last non-empty line of probe output as an integer.
func parseCount(out []byte) (int, error) {
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	last := strings.TrimSpace(lines[len(lines)-1])
	if last == "" {
		return 0, errors.New("empty output")
	}
	n, err := strconv.Atoi(last)
	if err != nil {
		return 0, fmt.Errorf("unexpected output %q", last)
	}
	return n, nil
}

// Load starts a worker that loads the artifact onto c.Device and waits until
// it reports ready.
func (e *Engine) Load(ctx context.Context, c engine.Criteria) (engine.Model, error) {
	if strings.TrimSpace(c.ModelPath) == "" {
		return nil, errors.New("model path is empty")
	}
	py, err := e.python()
	if err != nil {
		return nil, err
	}
	args := []string{"-u", "-c", workerScript, "--model", c.ModelPath, "--device", c.Device.TorchName()}
	if c.Option(engine.OptMapLocation) == "true" {
		args = append(args, "--map-location")
	}
	w, err := startWorker(ctx, py, args, e.opts)
	if err != nil {
		return nil, err
	}
	return &model{w: w}, nil
}

type model struct {
	w *worker
}

func (m *model) NewPredictor() (engine.Predictor, error) {
	if m.w.exited() {
		return nil, errors.New("worker is not running")
	}
	return &predictor{w: m.w}, nil
}

func (m *model) Close() error { return m.w.stop() }

type predictor struct {
	w      *worker
	closed bool
}

func (p *predictor) Predict(ctx context.Context, in tensor.List) (tensor.List, error) {
	if p.closed {
		return nil, errors.New("predictor closed")
	}
	return p.w.predict(ctx, in)
}

func (p *predictor) Close() error {
	p.closed = true
	return nil
}

func tail(s string, n int) string {
	if len(s) > n {
		return s[len(s)-n:]
	}
	return s
}
