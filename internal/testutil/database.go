package testutil

import (
	"database/sql"
	"testing"

	"github.com/coral-mesh/codesize/internal/duckdb"
)

// NewTestDatabase opens an in-memory DuckDB database.
// The database is automatically closed when the test completes.
func NewTestDatabase(t *testing.T) *sql.DB {
	t.Helper()

	db, err := duckdb.OpenDB("")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("failed to close test database: %v", err)
		}
	})

	return db
}
