// Package testutil provides fixtures for codesize tests: loggers, contexts,
// in-memory DuckDB handles and encoders for DWARF and ELF test binaries.
package testutil

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// NewTestContext creates a test context with a 30-second timeout.
func NewTestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}

// WriteTempFile writes data to a file in a per-test temporary directory and
// returns its path.
func WriteTempFile(t *testing.T, name string, data []byte) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
	return path
}
