// Package app runs the demo: pick a device, load the model, run one forward
// pass on dummy inputs and report what came back.
package app

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"inferdemo/internal/common/fsutil"
	"inferdemo/internal/config"
	"inferdemo/internal/device"
	"inferdemo/internal/engine"
	"inferdemo/internal/metrics"
	"inferdemo/internal/registry"
	"inferdemo/internal/tensor"
)

// Deps are the collaborators of a run.
type Deps struct {
	Engine engine.Engine
	Stdout io.Writer
	Stderr io.Writer
	Logger zerolog.Logger
	// Metrics may be nil.
	Metrics *metrics.Recorder
	// Translator defaults to engine.Identity.
	Translator engine.Translator
}

// Run executes one demo run with cfg. A missing artifact yields an error for
// which IsModelNotFound is true; nothing is loaded in that case. Every handle
// acquired is released before Run returns.
func Run(ctx context.Context, cfg config.Config, d Deps) (err error) {
	log := d.Logger
	defer flushMetrics(log, d.Metrics, cfg.MetricsFile)

	dev := device.Select(ctx, cfg, d.Engine)
	d.Metrics.DeviceSelected(cfg.Device, dev.Kind.String())
	log.Debug().Str("preference", cfg.Device).Int("gpu_index", cfg.GPUIndex).Str("device", dev.String()).Msg("device selected")
	fmt.Fprintf(d.Stdout, "Using device: %s\n", dev)

	path, err := fsutil.ArtifactPath(cfg.ModelDir, cfg.ModelFile)
	if err != nil {
		return fmt.Errorf("resolve model path: %w", err)
	}
	if !fsutil.IsRegularFile(path) {
		reportMissing(d.Stderr, log, cfg, path)
		return ErrModelNotFound(path)
	}

	fmt.Fprintf(d.Stdout, "Loading model %s on device: %s\n", path, dev)
	start := time.Now()
	m, err := d.Engine.Load(ctx, engine.Criteria{
		ModelPath: path,
		Device:    dev,
		Options:   map[string]string{engine.OptMapLocation: "true"},
	})
	if err != nil {
		return fmt.Errorf("load model: %w", err)
	}
	defer closeLogged(log, "model", m)
	d.Metrics.ModelLoaded(d.Engine.Name(), dev.String(), time.Since(start))
	log.Debug().Str("engine", d.Engine.Name()).Dur("took", time.Since(start)).Msg("model loaded")

	p, err := m.NewPredictor()
	if err != nil {
		return fmt.Errorf("open predictor: %w", err)
	}
	pred := engine.WithTranslator(p, d.Translator)
	defer closeLogged(log, "predictor", pred)

	tm := tensor.NewManager(dev)
	defer closeLogged(log, "tensor manager", tm)

	in, err := DummyInputs(tm, cfg.SeqLen)
	if err != nil {
		return fmt.Errorf("build inputs: %w", err)
	}
	log.Debug().Stringer("device", tm.Device()).Int("tensors", tm.Len()).Int("seq_len", cfg.SeqLen).Msg("inputs allocated")
	start = time.Now()
	out, err := pred.Predict(ctx, in)
	d.Metrics.Inference(d.Engine.Name(), dev.String(), time.Since(start), len(out), err)
	if err != nil {
		return fmt.Errorf("inference: %w", err)
	}
	log.Debug().Str("shapes", fmt.Sprint(out.Shapes())).Msg("inference outputs")
	fmt.Fprintf(d.Stdout, "Inference success on %s. Output list size: %d; first output shape: %s\n", dev, len(out), out.FirstShape())
	return nil
}

// DummyInputs builds the encoder-style input triple of shape (1, seqLen).
func DummyInputs(tm *tensor.Manager, seqLen int) (tensor.List, error) {
	shape := tensor.Shape{1, int64(seqLen)}
	ids, err := tm.Zeros("input_ids", shape, tensor.Int64)
	if err != nil {
		return nil, err
	}
	mask, err := tm.Ones("attention_mask", shape, tensor.Int64)
	if err != nil {
		return nil, err
	}
	types, err := tm.Zeros("token_type_ids", shape, tensor.Int64)
	if err != nil {
		return nil, err
	}
	return tensor.List{ids, mask, types}, nil
}

func reportMissing(w io.Writer, log zerolog.Logger, cfg config.Config, path string) {
	fmt.Fprintf(w, "Model file not found: %s\n", path)
	fmt.Fprintf(w, "Expected structure: %s\n", cfg.ExpectedLayout())
	fmt.Fprintln(w, "Override with --model-name=NAME --model-file=FILE or --model-dir=DIR")
	models, err := registry.LoadDir(cfg.ModelsRoot, config.ArtifactExt(cfg.Engine))
	if err != nil {
		log.Debug().Err(err).Str("root", cfg.ModelsRoot).Msg("models root not readable")
		return
	}
	if len(models) > 0 {
		fmt.Fprintf(w, "Available models: %s\n", strings.Join(registry.Names(models), ", "))
	}
}

func closeLogged(log zerolog.Logger, what string, c io.Closer) {
	if err := c.Close(); err != nil {
		log.Warn().Err(err).Str("resource", what).Msg("close failed")
	}
}

func flushMetrics(log zerolog.Logger, r *metrics.Recorder, path string) {
	if path == "" {
		return
	}
	if err := r.WriteTextfile(path); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("write metrics textfile")
	}
}
