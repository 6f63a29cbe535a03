// Package duckdb provides DuckDB helpers: opening databases, a small
// generic table mapper, and a SELECT query builder.
//
// # Tables
//
// Table maps a struct with `duckdb` tags onto a table. Primary key columns
// drive the ON CONFLICT clause of upserts:
//
//	type Row struct {
//	    SnapshotID string `duckdb:"snapshot_id,pk"`
//	    Name       string `duckdb:"name"`
//	    Size       uint64 `duckdb:"size"`
//	}
//
//	table := duckdb.NewTable[Row](db, "rows")
//	err := table.BatchUpsert(ctx, rows)
//
// # Query Builder
//
//	q, args, err := duckdb.NewQueryBuilder("snapshots").
//	    Select("id", "path").
//	    Eq("build_id", buildID).
//	    OrderBy("-created_at").
//	    Limit(10).
//	    Build()
//
// The builder only generates SQL. Empty string filters passed to Eq are
// skipped, which gives wildcard behavior for optional CLI flags.
package duckdb
