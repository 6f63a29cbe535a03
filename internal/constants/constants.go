// Package constants defines shared configuration constants.
package constants

var (
	// ConfigFile is the config file name inside the config directory.
	ConfigFile = "config.yaml"

	DefaultDir = ".codesize"

	// DefaultStoreFile is the snapshot database, relative to the config directory.
	DefaultStoreFile = "snapshots.duckdb"

	// FallbackDir is used when no home directory exists (scratch containers).
	FallbackDir = "/tmp/codesize-fallback"

	DefaultOutputLimit = 20

	DefaultCacheSize = 16

	DefaultLogLevel = "warn"
)
