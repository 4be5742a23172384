// Package cli wires argument tokens, the defaults file and the environment
// into a run and maps its outcome to an exit code.
package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"inferdemo/internal/app"
	"inferdemo/internal/config"
	"inferdemo/internal/logging"
	"inferdemo/internal/metrics"
)

// Exit codes.
const (
	ExitOK           = 0
	ExitFailure      = 1
	ExitModelMissing = 2
)

const longHelp = `Loads a TorchScript (or GGUF) artifact on the best available device and runs
one forward pass on dummy encoder inputs.

Arguments are permissive: unknown tokens and malformed numbers are ignored.

  cpu | gpu | auto | gpu:N   device preference
  --device=cpu|gpu|cuda|auto
  --gpu-index=N              preferred GPU index (default 0)
  --model-name=NAME          artifact name; sets dir and file
  --model-dir=DIR            directory holding the artifact
  --model-file=FILE          artifact file name (sticky)
  --models-root=DIR          root of <root>/<name>/<file> (default models)
  --seq-len=N                dummy input length (default 16)
  --engine=pytorch|llama     runtime (default pytorch)
  --python=PATH              interpreter for the pytorch engine
  --config=FILE              defaults file (.yaml, .json, .toml)
  --metrics-file=FILE        write Prometheus textfile metrics
  --log-level=LEVEL          debug|info|warn|error|off
  --log-format=FORMAT        console|json

Environment: INFERDEMO_MODEL_FILE, INFERDEMO_SEQ_LEN, INFERDEMO_LOG_LEVEL.`

// Execute runs the command line args (without the program name) and returns
// the process exit code.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := NewRootCmd(stdout, stderr, NewEngine)
	root.SetArgs(args)
	return exitCode(root.ExecuteContext(ctx), stderr)
}

func exitCode(err error, stderr io.Writer) int {
	switch {
	case err == nil:
		return ExitOK
	case app.IsModelNotFound(err):
		// diagnostics are already on stderr
		return ExitModelMissing
	default:
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return ExitFailure
	}
}

// NewRootCmd builds the command tree. Flag parsing is disabled: every token is
// handed to the permissive resolver.
func NewRootCmd(stdout, stderr io.Writer, newEngine EngineFactory) *cobra.Command {
	root := &cobra.Command{
		Use:                "inferdemo [cpu|gpu|auto|gpu:N] [--key=value ...]",
		Short:              "Run one TorchScript forward pass on the best available device",
		Long:               longHelp,
		Args:               cobra.ArbitraryArgs,
		DisableFlagParsing: true,
		SilenceUsage:       true,
		SilenceErrors:      true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if wantsHelp(args) {
				return cmd.Help()
			}
			cfg, log, err := resolve(args, stderr)
			if err != nil {
				return err
			}
			eng, err := newEngine(cfg, log)
			if err != nil {
				return err
			}
			var rec *metrics.Recorder
			if cfg.MetricsFile != "" {
				rec = metrics.New()
			}
			return app.Run(cmd.Context(), cfg, app.Deps{
				Engine:  eng,
				Stdout:  stdout,
				Stderr:  stderr,
				Logger:  log,
				Metrics: rec,
			})
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.SetOut(stdout)
	root.SetErr(stderr)

	devices := &cobra.Command{
		Use:                "devices [tokens...]",
		Short:              "Show the GPU count and the device the same tokens would select",
		Args:               cobra.ArbitraryArgs,
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if wantsHelp(args) {
				return cmd.Help()
			}
			cfg, log, err := resolve(args, stderr)
			if err != nil {
				return err
			}
			eng, err := newEngine(cfg, log)
			if err != nil {
				return err
			}
			return app.Devices(cmd.Context(), cfg, app.Deps{Engine: eng, Stdout: stdout, Stderr: stderr, Logger: log})
		},
	}
	root.AddCommand(devices)
	return root
}

// resolve layers defaults, the --config file, the environment and the tokens.
func resolve(args []string, stderr io.Writer) (config.Config, zerolog.Logger, error) {
	base := config.Default()
	base.LogLevel = config.DefaultLogLevelFromEnv()
	if p := config.ConfigPath(args); p != "" {
		f, err := config.Load(p)
		if err != nil {
			return config.Config{}, zerolog.Nop(), fmt.Errorf("load config: %w", err)
		}
		base = f.Apply(base)
	}
	cfg := config.Resolve(base, args, config.EnvSource{})
	log := logging.New(stderr, cfg.LogLevel, cfg.LogFormat)
	if u := config.Unrecognized(args); len(u) > 0 {
		log.Debug().Strs("tokens", u).Msg("ignoring unrecognized arguments")
	}
	log.Debug().
		Str("device", cfg.Device).
		Int("gpu_index", cfg.GPUIndex).
		Str("engine", cfg.Engine).
		Str("model_dir", cfg.ModelDir).
		Str("model_file", cfg.ModelFile).
		Int("seq_len", cfg.SeqLen).
		Str("config", cfg.ConfigFile).
		Msg("configuration resolved")
	return cfg, log, nil
}

func wantsHelp(args []string) bool {
	for _, a := range args {
		if a == "-h" || a == "--help" {
			return true
		}
	}
	return false
}
