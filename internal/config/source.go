package config

import (
	"os"
	"strings"
)

// Override keys understood by Resolve.
const (
	KeyModelFile = "modelFile"
	KeySeqLen    = "seqLen"
)

// Source supplies out-of-band overrides. Resolve consults it once, before any
// argument token is applied.
type Source interface {
	Lookup(key string) (string, bool)
}

// MapSource is a fixed set of overrides.
type MapSource map[string]string

func (m MapSource) Lookup(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

// envNames maps override keys to environment variables.
var envNames = map[string]string{
	KeyModelFile: "INFERDEMO_MODEL_FILE",
	KeySeqLen:    "INFERDEMO_SEQ_LEN",
}

// EnvSource reads overrides from the process environment. LookupEnv defaults
// to os.LookupEnv.
type EnvSource struct {
	LookupEnv func(string) (string, bool)
}

func (e EnvSource) Lookup(key string) (string, bool) {
	name := EnvName(key)
	if name == "" {
		return "", false
	}
	look := e.LookupEnv
	if look == nil {
		look = os.LookupEnv
	}
	return look(name)
}

// EnvName returns the environment variable backing an override key.
func EnvName(key string) string { return envNames[key] }

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// DefaultLogLevelFromEnv returns INFERDEMO_LOG_LEVEL or the built-in level.
func DefaultLogLevelFromEnv() string {
	return strings.ToLower(envStr("INFERDEMO_LOG_LEVEL", DefaultLogLevel))
}
