package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// File holds defaults read from a configuration file.
// Zero values mean "unspecified" and leave the base configuration untouched.
type File struct {
	Device      string `json:"device" yaml:"device" toml:"device"`
	GPUIndex    *int   `json:"gpu_index" yaml:"gpu_index" toml:"gpu_index"`
	Engine      string `json:"engine" yaml:"engine" toml:"engine"`
	ModelName   string `json:"model_name" yaml:"model_name" toml:"model_name"`
	ModelsRoot  string `json:"models_root" yaml:"models_root" toml:"models_root"`
	ModelDir    string `json:"model_dir" yaml:"model_dir" toml:"model_dir"`
	ModelFile   string `json:"model_file" yaml:"model_file" toml:"model_file"`
	SeqLen      int    `json:"seq_len" yaml:"seq_len" toml:"seq_len"`
	LogLevel    string `json:"log_level" yaml:"log_level" toml:"log_level"`
	LogFormat   string `json:"log_format" yaml:"log_format" toml:"log_format"`
	MetricsFile string `json:"metrics_file" yaml:"metrics_file" toml:"metrics_file"`
	Python      string `json:"python" yaml:"python" toml:"python"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (File, error) {
	var f File
	if path == "" {
		return f, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return f, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &f)
	case ".json":
		err = json.Unmarshal(b, &f)
	case ".toml":
		err = toml.Unmarshal(b, &f)
	default:
		return f, fmt.Errorf("unsupported config extension: %s", ext)
	}
	if err != nil {
		return f, fmt.Errorf("parse config %s: %w", path, err)
	}
	return f, nil
}

// Apply layers the file's specified values over c. Engine and models root are
// applied before the model name so derived paths use them.
func (f File) Apply(c Config) Config {
	if f.Device != "" {
		c.Device = strings.ToLower(f.Device)
	}
	if f.GPUIndex != nil && *f.GPUIndex >= math.MinInt32 && *f.GPUIndex <= math.MaxInt32 {
		c.GPUIndex = *f.GPUIndex
	}
	if f.Engine != "" {
		c.setEngine(f.Engine)
	}
	if f.ModelsRoot != "" {
		c.ModelsRoot = f.ModelsRoot
		c.ModelDir = ModelDirFor(c.ModelsRoot, c.ModelName)
	}
	if f.ModelName != "" {
		c.setModelName(f.ModelName)
	}
	if f.ModelDir != "" {
		c.ModelDir = f.ModelDir
	}
	if f.ModelFile != "" {
		c.setModelFile(f.ModelFile)
	}
	if f.SeqLen > 0 && f.SeqLen <= math.MaxInt32 {
		c.SeqLen = f.SeqLen
	}
	if f.LogLevel != "" {
		c.LogLevel = strings.ToLower(f.LogLevel)
	}
	if f.LogFormat != "" {
		c.LogFormat = strings.ToLower(f.LogFormat)
	}
	if f.MetricsFile != "" {
		c.MetricsFile = f.MetricsFile
	}
	if f.Python != "" {
		c.Python = f.Python
	}
	return c
}
