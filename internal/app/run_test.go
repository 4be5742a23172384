package app

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"inferdemo/internal/config"
	"inferdemo/internal/device"
	"inferdemo/internal/engine"
	"inferdemo/internal/metrics"
	"inferdemo/internal/tensor"
)

// fakeEngine records calls and returns canned outputs.
type fakeEngine struct {
	gpus       int
	gpuErr     error
	loadErr    error
	predictErr error
	outputs    tensor.List

	loads     []engine.Criteria
	inputs    tensor.List
	closed    []string
	countHits int
}

func (f *fakeEngine) Name() string { return "fake" }

func (f *fakeEngine) GPUCount(context.Context) (int, error) {
	f.countHits++
	return f.gpus, f.gpuErr
}

func (f *fakeEngine) Load(_ context.Context, c engine.Criteria) (engine.Model, error) {
	f.loads = append(f.loads, c)
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return &fakeModel{f: f}, nil
}

type fakeModel struct{ f *fakeEngine }

func (m *fakeModel) NewPredictor() (engine.Predictor, error) { return &fakePredictor{f: m.f}, nil }
func (m *fakeModel) Close() error {
	m.f.closed = append(m.f.closed, "model")
	return nil
}

type fakePredictor struct{ f *fakeEngine }

func (p *fakePredictor) Predict(_ context.Context, in tensor.List) (tensor.List, error) {
	p.f.inputs = in
	if p.f.predictErr != nil {
		return nil, p.f.predictErr
	}
	return p.f.outputs, nil
}

func (p *fakePredictor) Close() error {
	p.f.closed = append(p.f.closed, "predictor")
	return nil
}

type harness struct {
	stdout, stderr bytes.Buffer
	eng            *fakeEngine
}

func (h *harness) deps() Deps {
	return Deps{Engine: h.eng, Stdout: &h.stdout, Stderr: &h.stderr, Logger: zerolog.Nop()}
}

// modelTree creates <root>/<name>/<name>.pt and returns a config pointing at it.
func modelTree(t *testing.T, name string) config.Config {
	t.Helper()
	root := t.TempDir()
	p := filepath.Join(root, name, name+".pt")
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(p, []byte("weights"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return config.FromArgs([]string{"--models-root=" + root, "--model-name=" + name}, nil)
}

func TestRunSuccess(t *testing.T) {
	cfg := modelTree(t, "tiny")
	cfg = config.Resolve(cfg, []string{"cpu", "--seq-len=4"}, nil)
	h := &harness{eng: &fakeEngine{outputs: tensor.List{
		{Name: "output_0", DType: tensor.Float32, Shape: tensor.Shape{1, 4, 768}},
		{Name: "output_1", DType: tensor.Float32, Shape: tensor.Shape{1, 768}},
	}}}
	if err := Run(context.Background(), cfg, h.deps()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	path := filepath.Join(cfg.ModelDir, "tiny.pt")
	want := "Using device: cpu()\n" +
		"Loading model " + path + " on device: cpu()\n" +
		"Inference success on cpu(). Output list size: 2; first output shape: (1, 4, 768)\n"
	if got := h.stdout.String(); got != want {
		t.Fatalf("stdout:\n%s\nwant:\n%s", got, want)
	}
	if h.stderr.Len() != 0 {
		t.Fatalf("unexpected stderr: %q", h.stderr.String())
	}
	if len(h.eng.loads) != 1 {
		t.Fatalf("loads = %d", len(h.eng.loads))
	}
	c := h.eng.loads[0]
	if c.ModelPath != path || c.Device != device.CPU() || c.Option(engine.OptMapLocation) != "true" {
		t.Fatalf("criteria = %+v", c)
	}
	if h.eng.countHits != 0 {
		t.Fatalf("explicit cpu must not query the engine")
	}
	if len(h.eng.inputs) != 3 {
		t.Fatalf("inputs = %d", len(h.eng.inputs))
	}
	for i, name := range []string{"input_ids", "attention_mask", "token_type_ids"} {
		in := h.eng.inputs[i]
		if in.Name != name || in.DType != tensor.Int64 || in.Shape.String() != "(1, 4)" {
			t.Fatalf("input %d = %+v", i, in)
		}
	}
	if got := strings.Join(h.eng.closed, ","); got != "predictor,model" {
		t.Fatalf("close order = %s", got)
	}
}

func TestRunEmptyOutputs(t *testing.T) {
	cfg := config.Resolve(modelTree(t, "m"), []string{"cpu"}, nil)
	h := &harness{eng: &fakeEngine{}}
	if err := Run(context.Background(), cfg, h.deps()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.HasSuffix(h.stdout.String(), "Output list size: 0; first output shape: -\n") {
		t.Fatalf("stdout = %q", h.stdout.String())
	}
}

func TestRunAutoSelectsGPU(t *testing.T) {
	cfg := config.Resolve(modelTree(t, "m"), []string{"--gpu-index=5"}, nil)
	h := &harness{eng: &fakeEngine{gpus: 2}}
	if err := Run(context.Background(), cfg, h.deps()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.HasPrefix(h.stdout.String(), "Using device: gpu(1)\n") {
		t.Fatalf("stdout = %q", h.stdout.String())
	}
	if h.eng.loads[0].Device != device.GPU(1) {
		t.Fatalf("device = %v", h.eng.loads[0].Device)
	}
}

func TestRunModelMissing(t *testing.T) {
	root := t.TempDir()
	for _, n := range []string{"alpha", "beta"} {
		p := filepath.Join(root, n, n+".pt")
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(p, nil, 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	cfg := config.FromArgs([]string{"cpu", "--models-root=" + root, "--model-name=nope"}, nil)
	h := &harness{eng: &fakeEngine{}}
	err := Run(context.Background(), cfg, h.deps())
	if !IsModelNotFound(err) {
		t.Fatalf("expected model not found, got %v", err)
	}
	if len(h.eng.loads) != 0 {
		t.Fatalf("engine must not load when the artifact is missing")
	}
	if h.stdout.String() != "Using device: cpu()\n" {
		t.Fatalf("stdout = %q", h.stdout.String())
	}
	abs := filepath.Join(root, "nope", "nope.pt")
	want := "Model file not found: " + abs + "\n" +
		"Expected structure: " + filepath.ToSlash(root) + "/nope/nope.pt\n" +
		"Override with --model-name=NAME --model-file=FILE or --model-dir=DIR\n" +
		"Available models: alpha, beta\n"
	if got := h.stderr.String(); got != want {
		t.Fatalf("stderr:\n%s\nwant:\n%s", got, want)
	}
}

func TestRunModelMissingEmptyRoot(t *testing.T) {
	cfg := config.FromArgs([]string{"cpu", "--models-root=" + filepath.Join(t.TempDir(), "none")}, nil)
	h := &harness{eng: &fakeEngine{}}
	if err := Run(context.Background(), cfg, h.deps()); !IsModelNotFound(err) {
		t.Fatalf("expected model not found, got %v", err)
	}
	if strings.Contains(h.stderr.String(), "Available models") {
		t.Fatalf("no models to list: %q", h.stderr.String())
	}
}

func TestRunLoadFailure(t *testing.T) {
	cfg := config.Resolve(modelTree(t, "m"), []string{"cpu"}, nil)
	boom := errors.New("corrupt archive")
	h := &harness{eng: &fakeEngine{loadErr: boom}}
	err := Run(context.Background(), cfg, h.deps())
	if !errors.Is(err, boom) || IsModelNotFound(err) {
		t.Fatalf("expected wrapped load error, got %v", err)
	}
	if len(h.eng.closed) != 0 {
		t.Fatalf("nothing to close: %v", h.eng.closed)
	}
}

func TestRunPredictFailureStillCloses(t *testing.T) {
	cfg := config.Resolve(modelTree(t, "m"), []string{"cpu"}, nil)
	boom := engine.ErrWorker("shape mismatch")
	h := &harness{eng: &fakeEngine{predictErr: boom}}
	err := Run(context.Background(), cfg, h.deps())
	if !engine.IsWorker(err) {
		t.Fatalf("expected worker error, got %v", err)
	}
	if got := strings.Join(h.eng.closed, ","); got != "predictor,model" {
		t.Fatalf("close order = %s", got)
	}
	if strings.Contains(h.stdout.String(), "Inference success") {
		t.Fatalf("no success line on failure: %q", h.stdout.String())
	}
}

func TestRunWritesMetrics(t *testing.T) {
	cfg := config.Resolve(modelTree(t, "m"), []string{"cpu"}, nil)
	cfg.MetricsFile = filepath.Join(t.TempDir(), "run.prom")
	h := &harness{eng: &fakeEngine{outputs: tensor.List{{DType: tensor.Float32, Shape: tensor.Shape{1}}}}}
	d := h.deps()
	d.Metrics = metrics.New()
	if err := Run(context.Background(), cfg, d); err != nil {
		t.Fatalf("Run: %v", err)
	}
	b, err := os.ReadFile(cfg.MetricsFile)
	if err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	for _, want := range []string{
		`inferdemo_device_selections_total{kind="cpu",preference="cpu"} 1`,
		`inferdemo_inference_total{engine="fake",status="ok"} 1`,
		`inferdemo_inference_outputs 1`,
	} {
		if !strings.Contains(string(b), want) {
			t.Fatalf("metrics missing %q:\n%s", want, b)
		}
	}
}

type firstInputOnly struct{}

func (firstInputOnly) ProcessInput(in tensor.List) (tensor.List, error) { return in[:1], nil }
func (firstInputOnly) ProcessOutput(out tensor.List) (tensor.List, error) {
	return append(out, &tensor.Tensor{DType: tensor.Float32, Shape: tensor.Shape{2}}), nil
}

func TestRunUsesTranslator(t *testing.T) {
	cfg := config.Resolve(modelTree(t, "m"), []string{"cpu"}, nil)
	h := &harness{eng: &fakeEngine{}}
	d := h.deps()
	d.Translator = firstInputOnly{}
	if err := Run(context.Background(), cfg, d); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(h.eng.inputs) != 1 {
		t.Fatalf("translator input not applied: %d", len(h.eng.inputs))
	}
	if !strings.Contains(h.stdout.String(), "Output list size: 1; first output shape: (2)") {
		t.Fatalf("stdout = %q", h.stdout.String())
	}
}

func TestDevices(t *testing.T) {
	h := &harness{eng: &fakeEngine{gpus: 3}}
	cfg := config.FromArgs([]string{"--gpu-index=7"}, nil)
	if err := Devices(context.Background(), cfg, h.deps()); err != nil {
		t.Fatalf("Devices: %v", err)
	}
	if got := h.stdout.String(); got != "GPUs available: 3\nSelected device: gpu(2)\n" {
		t.Fatalf("stdout = %q", got)
	}
	if h.eng.countHits != 1 {
		t.Fatalf("count queried %d times", h.eng.countHits)
	}

	h = &harness{eng: &fakeEngine{gpuErr: errors.New("no driver")}}
	if err := Devices(context.Background(), config.FromArgs(nil, nil), h.deps()); err != nil {
		t.Fatalf("Devices: %v", err)
	}
	if got := h.stdout.String(); got != "GPUs available: 0\nSelected device: cpu()\n" {
		t.Fatalf("stdout = %q", got)
	}
}

func TestRunOversizedSeqLen(t *testing.T) {
	cfg := config.Resolve(modelTree(t, "m"), []string{"cpu", "--seq-len=9000000000000000000"}, nil)
	if cfg.SeqLen != config.DefaultSeqLen {
		t.Fatalf("seq len = %d", cfg.SeqLen)
	}
	h := &harness{eng: &fakeEngine{}}
	if err := Run(context.Background(), cfg, h.deps()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	cfg = config.Resolve(cfg, []string{"--seq-len=2147483647"}, nil)
	h = &harness{eng: &fakeEngine{}}
	err := Run(context.Background(), cfg, h.deps())
	if !errors.Is(err, tensor.ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
	if h.eng.inputs != nil {
		t.Fatalf("predict must not run")
	}
	if got := strings.Join(h.eng.closed, ","); got != "predictor,model" {
		t.Fatalf("close order = %s", got)
	}
}

func TestRunLogsShapes(t *testing.T) {
	cfg := config.Resolve(modelTree(t, "m"), []string{"cpu", "--seq-len=2"}, nil)
	h := &harness{eng: &fakeEngine{outputs: tensor.List{{DType: tensor.Float32, Shape: tensor.Shape{1, 2, 8}}}}}
	var logs bytes.Buffer
	d := h.deps()
	d.Logger = zerolog.New(&logs).Level(zerolog.DebugLevel)
	if err := Run(context.Background(), cfg, d); err != nil {
		t.Fatalf("Run: %v", err)
	}
	for _, want := range []string{`"device":"cpu()"`, `"tensors":3`, `"shapes":"[(1, 2, 8)]"`} {
		if !strings.Contains(logs.String(), want) {
			t.Fatalf("logs missing %s:\n%s", want, logs.String())
		}
	}
}
