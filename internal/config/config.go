// Package config resolves the demo's run configuration from argument tokens,
// an optional defaults file and an explicit override source.
package config

import (
	"path/filepath"
	"strings"
)

// Built-in defaults.
const (
	DefaultDevice     = "auto"
	DefaultModelName  = "OpenMed-NER-ChemicalDetect-ModernMed-149M"
	DefaultModelsRoot = "models"
	DefaultSeqLen     = 16
	DefaultEngine     = EnginePyTorch
	DefaultLogLevel   = "info"
	DefaultLogFormat  = "console"
	DefaultPython     = "python3"
)

// Engine names.
const (
	EnginePyTorch = "pytorch"
	EngineLlama   = "llama"
)

// Config is the resolved run configuration. Resolve returns it by value and
// nothing mutates it afterwards.
type Config struct {
	Device   string // cpu | gpu | cuda | auto; anything else behaves like auto
	GPUIndex int

	ModelName           string
	ModelsRoot          string
	ModelDir            string
	ModelFile           string
	ModelFileOverridden bool

	SeqLen int
	Engine string

	LogLevel    string
	LogFormat   string
	MetricsFile string
	Python      string
	ConfigFile  string
}

// Default returns the configuration used when no tokens are given.
func Default() Config {
	c := Config{
		Device:     DefaultDevice,
		ModelsRoot: DefaultModelsRoot,
		SeqLen:     DefaultSeqLen,
		Engine:     DefaultEngine,
		LogLevel:   DefaultLogLevel,
		LogFormat:  DefaultLogFormat,
		Python:     DefaultPython,
	}
	c.setModelName(DefaultModelName)
	return c
}

// NormalizeEngine maps engine aliases to their canonical name. Unknown names
// are lowercased and returned unchanged.
func NormalizeEngine(name string) string {
	switch n := strings.ToLower(strings.TrimSpace(name)); n {
	case "", "pytorch", "torch", "torchscript":
		return EnginePyTorch
	case "llama", "llama.cpp", "gguf":
		return EngineLlama
	default:
		return n
	}
}

// ArtifactExt returns the artifact file extension for an engine.
func ArtifactExt(engine string) string {
	if NormalizeEngine(engine) == EngineLlama {
		return ".gguf"
	}
	return ".pt"
}

// ModelDirFor derives the artifact directory for a model name.
func ModelDirFor(root, name string) string {
	return filepath.Join(root, name)
}

// setModelName updates the name and everything derived from it. An explicit
// file override is never reset.
func (c *Config) setModelName(name string) {
	c.ModelName = name
	c.ModelDir = ModelDirFor(c.ModelsRoot, name)
	if !c.ModelFileOverridden {
		c.ModelFile = name + ArtifactExt(c.Engine)
	}
}

func (c *Config) setModelFile(file string) {
	c.ModelFile = file
	c.ModelFileOverridden = true
}

func (c *Config) setEngine(name string) {
	c.Engine = NormalizeEngine(name)
	if !c.ModelFileOverridden {
		c.ModelFile = c.ModelName + ArtifactExt(c.Engine)
	}
}

// ExpectedLayout is the relative layout shown in missing-artifact diagnostics.
func (c Config) ExpectedLayout() string {
	return filepath.ToSlash(filepath.Join(c.ModelsRoot, c.ModelName, c.ModelFile))
}
