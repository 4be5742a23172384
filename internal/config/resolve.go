package config

import (
	"strconv"
	"strings"
)

// Argument token prefixes.
const (
	flagDevice      = "--device="
	flagGPUIndex    = "--gpu-index="
	flagModelName   = "--model-name="
	flagModelDir    = "--model-dir="
	flagModelFile   = "--model-file="
	flagSeqLen      = "--seq-len="
	flagEngine      = "--engine="
	flagModelsRoot  = "--models-root="
	flagLogLevel    = "--log-level="
	flagLogFormat   = "--log-format="
	flagMetricsFile = "--metrics-file="
	flagPython      = "--python="
	flagConfig      = "--config="
)

// FromArgs resolves args on top of the built-in defaults.
func FromArgs(args []string, src Source) Config {
	return Resolve(Default(), args, src)
}

// Resolve applies the override source and then every argument token, in
// order, to base. Malformed numbers and unknown tokens are ignored and the
// previous value is kept.
func Resolve(base Config, args []string, src Source) Config {
	c := base
	applySource(&c, src)
	for _, a := range args {
		applyToken(&c, a)
	}
	return c
}

// Unrecognized returns the tokens Resolve would ignore.
func Unrecognized(args []string) []string {
	var out []string
	scratch := Default()
	for _, a := range args {
		if !applyToken(&scratch, a) {
			out = append(out, a)
		}
	}
	return out
}

// ConfigPath returns the value of the last --config= token, or "".
func ConfigPath(args []string) string {
	var p string
	for _, a := range args {
		if strings.HasPrefix(a, flagConfig) {
			p = strings.TrimPrefix(a, flagConfig)
		}
	}
	return p
}

func applySource(c *Config, src Source) {
	if src == nil {
		return
	}
	if v, ok := src.Lookup(KeySeqLen); ok {
		if n, ok := parsePositive(v); ok {
			c.SeqLen = n
		}
	}
	if v, ok := src.Lookup(KeyModelFile); ok && strings.TrimSpace(v) != "" {
		c.setModelFile(strings.TrimSpace(v))
	}
}

// applyToken reports whether the token was recognized.
func applyToken(c *Config, a string) bool {
	switch {
	case strings.HasPrefix(a, flagDevice):
		c.Device = strings.ToLower(strings.TrimPrefix(a, flagDevice))
	case strings.HasPrefix(a, flagGPUIndex):
		if n, ok := parseInt32(strings.TrimPrefix(a, flagGPUIndex)); ok {
			c.GPUIndex = n
		}
	case strings.HasPrefix(a, flagModelName):
		if name := strings.TrimPrefix(a, flagModelName); name != "" {
			c.setModelName(name)
		}
	case strings.HasPrefix(a, flagModelDir):
		c.ModelDir = strings.TrimPrefix(a, flagModelDir)
	case strings.HasPrefix(a, flagModelFile):
		c.setModelFile(strings.TrimPrefix(a, flagModelFile))
	case strings.HasPrefix(a, flagSeqLen):
		if n, ok := parsePositive(strings.TrimPrefix(a, flagSeqLen)); ok {
			c.SeqLen = n
		}
	case strings.HasPrefix(a, flagEngine):
		c.setEngine(strings.TrimPrefix(a, flagEngine))
	case strings.HasPrefix(a, flagModelsRoot):
		c.ModelsRoot = strings.TrimPrefix(a, flagModelsRoot)
		c.ModelDir = ModelDirFor(c.ModelsRoot, c.ModelName)
	case strings.HasPrefix(a, flagLogLevel):
		c.LogLevel = strings.ToLower(strings.TrimPrefix(a, flagLogLevel))
	case strings.HasPrefix(a, flagLogFormat):
		c.LogFormat = strings.ToLower(strings.TrimPrefix(a, flagLogFormat))
	case strings.HasPrefix(a, flagMetricsFile):
		c.MetricsFile = strings.TrimPrefix(a, flagMetricsFile)
	case strings.HasPrefix(a, flagPython):
		c.Python = strings.TrimPrefix(a, flagPython)
	case strings.HasPrefix(a, flagConfig):
		c.ConfigFile = strings.TrimPrefix(a, flagConfig)
	default:
		return applyPositional(c, a)
	}
	return true
}

// applyPositional handles the device shorthand: cpu | gpu | auto | gpu:N.
func applyPositional(c *Config, a string) bool {
	l := strings.ToLower(a)
	switch {
	case l == "cpu", l == "gpu", l == "auto":
		c.Device = l
	case strings.HasPrefix(l, "gpu:"):
		c.Device = "gpu"
		if n, ok := parseInt32(strings.TrimPrefix(l, "gpu:")); ok {
			c.GPUIndex = n
		}
	default:
		return false
	}
	return true
}

// parseInt32 accepts decimal integers in the 32-bit range; anything else is
// treated as unparseable.
func parseInt32(s string) (int, bool) {
	n, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, false
	}
	return int(n), true
}

func parsePositive(s string) (int, bool) {
	n, ok := parseInt32(strings.TrimSpace(s))
	if !ok || n <= 0 {
		return 0, false
	}
	return n, true
}
