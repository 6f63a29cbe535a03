package store

import (
	"context"
	"fmt"
)

// schemaDDL creates the snapshot tables. Statements are idempotent.
var schemaDDL = []string{
	`CREATE TABLE IF NOT EXISTS snapshots (
		id          VARCHAR PRIMARY KEY,
		path        VARCHAR NOT NULL,
		format      VARCHAR NOT NULL,
		build_id    VARCHAR,
		frontend    VARCHAR NOT NULL,
		item_count  INTEGER NOT NULL,
		total_size  UBIGINT NOT NULL,
		created_at  TIMESTAMP NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS items (
		snapshot_id VARCHAR NOT NULL,
		namespace   UINTEGER NOT NULL,
		item_index  UBIGINT NOT NULL,
		name        VARCHAR NOT NULL,
		size        UBIGINT NOT NULL,
		kind        VARCHAR NOT NULL,
		PRIMARY KEY (snapshot_id, namespace, item_index)
	)`,
}

func (s *Store) initSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, ddl := range schemaDDL {
		if _, err := tx.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("failed to execute DDL: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit schema transaction: %w", err)
	}
	return nil
}
