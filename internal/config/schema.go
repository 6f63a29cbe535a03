package config

// SchemaVersion is the current config file schema version.
const SchemaVersion = "1"

// Config is the codesize configuration file (~/.codesize/config.yaml).
type Config struct {
	Version  string         `yaml:"version"`
	Log      LogConfig      `yaml:"log"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Output   OutputConfig   `yaml:"output"`
	Store    StoreConfig    `yaml:"store"`
}

// LogConfig controls diagnostic logging on stderr.
type LogConfig struct {
	// Level is a zerolog level name: trace, debug, info, warn, error.
	Level string `yaml:"level" env:"CODESIZE_LOG_LEVEL"`
	// Pretty enables human-readable console output instead of JSON lines.
	Pretty bool `yaml:"pretty" env:"CODESIZE_LOG_PRETTY"`
}

// AnalysisConfig controls the analysis front-ends.
type AnalysisConfig struct {
	Demangle       bool `yaml:"demangle" env:"CODESIZE_DEMANGLE"`
	FallbackSymtab bool `yaml:"fallback_symtab" env:"CODESIZE_FALLBACK_SYMTAB"`
	// CacheSize is the number of analyzed binaries kept in memory.
	CacheSize int `yaml:"cache_size" env:"CODESIZE_CACHE_SIZE"`
	// MaxReferenceDepth bounds how far a name lookup follows
	// DW_AT_specification and DW_AT_abstract_origin.
	MaxReferenceDepth int `yaml:"max_reference_depth" env:"CODESIZE_MAX_REFERENCE_DEPTH"`
}

// OutputConfig controls report rendering.
type OutputConfig struct {
	// Format is text, json or csv.
	Format string `yaml:"format" env:"CODESIZE_OUTPUT_FORMAT"`
	// Limit is the number of rows shown; 0 shows all.
	Limit int `yaml:"limit" env:"CODESIZE_OUTPUT_LIMIT"`
}

// StoreConfig locates the snapshot database.
type StoreConfig struct {
	// Path of the DuckDB file. Empty means <config dir>/snapshots.duckdb.
	Path string `yaml:"path" env:"CODESIZE_STORE_PATH"`
}
