package duckdb

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	duckdbDriver "github.com/marcboeker/go-duckdb"
)

// OpenDB opens a DuckDB database. An empty dsn or ":memory:" opens an
// in-memory database; otherwise the parent directory of the file is created.
// bootQueries run on every new pooled connection.
func OpenDB(dsn string, bootQueries ...string) (*sql.DB, error) {
	if !isMemoryDSN(dsn) {
		if err := os.MkdirAll(filepath.Dir(dsnPath(dsn)), 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	connector, err := duckdbDriver.NewConnector(dsn, func(execer driver.ExecerContext) error {
		ctx := context.Background()
		for _, query := range bootQueries {
			if _, err := execer.ExecContext(ctx, query, nil); err != nil {
				return fmt.Errorf("boot query %q: %w", query, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open duckdb %q: %w", dsn, err)
	}

	return sql.OpenDB(connector), nil
}

func isMemoryDSN(dsn string) bool {
	p := dsnPath(dsn)
	return p == "" || p == ":memory:"
}

// dsnPath strips the query string from a DuckDB DSN.
func dsnPath(dsn string) string {
	if sep := strings.IndexByte(dsn, '?'); sep >= 0 {
		return dsn[:sep]
	}
	return dsn
}
