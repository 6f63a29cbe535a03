package config

import (
	"github.com/coral-mesh/codesize/internal/constants"
)

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Version: SchemaVersion,
		Log: LogConfig{
			Level: constants.DefaultLogLevel,
		},
		Analysis: AnalysisConfig{
			Demangle:          true,
			FallbackSymtab:    true,
			CacheSize:         constants.DefaultCacheSize,
			MaxReferenceDepth: 8,
		},
		Output: OutputConfig{
			Format: "text",
			Limit:  constants.DefaultOutputLimit,
		},
	}
}
