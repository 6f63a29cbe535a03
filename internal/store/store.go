// Package store persists analysis results as snapshots in a DuckDB file so
// that binaries can be compared across builds.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/coral-mesh/codesize/internal/analyzer"
	"github.com/coral-mesh/codesize/internal/duckdb"
	cerrors "github.com/coral-mesh/codesize/internal/errors"
	"github.com/coral-mesh/codesize/internal/retry"
	"github.com/coral-mesh/codesize/pkg/ir"
)

// ErrSnapshotNotFound is returned when no snapshot matches an ID.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// ErrAmbiguousID is returned when an ID prefix matches several snapshots.
var ErrAmbiguousID = errors.New("snapshot id prefix is ambiguous")

// lockRetry waits for another process to release the database file.
var lockRetry = retry.Config{
	MaxRetries:     5,
	InitialBackoff: 50 * time.Millisecond,
	MaxBackoff:     time.Second,
	Jitter:         0.2,
}

// Snapshot describes one stored analysis.
type Snapshot struct {
	ID        string    `duckdb:"id,pk" json:"id"`
	Path      string    `duckdb:"path" json:"path"`
	Format    string    `duckdb:"format" json:"format"`
	BuildID   string    `duckdb:"build_id" json:"build_id,omitempty"`
	Frontend  string    `duckdb:"frontend" json:"frontend"`
	ItemCount int       `duckdb:"item_count" json:"item_count"`
	TotalSize uint64    `duckdb:"total_size" json:"total_size"`
	CreatedAt time.Time `duckdb:"created_at,immutable" json:"created_at"`
}

type itemRow struct {
	SnapshotID string `duckdb:"snapshot_id,pk"`
	Namespace  uint32 `duckdb:"namespace,pk"`
	Index      uint64 `duckdb:"item_index,pk"`
	Name       string `duckdb:"name"`
	Size       uint64 `duckdb:"size"`
	Kind       string `duckdb:"kind"`
}

// KindSummary totals the items of one kind in a snapshot.
type KindSummary struct {
	Kind      string `duckdb:"kind" json:"kind"`
	ItemCount int    `duckdb:"item_count" json:"item_count"`
	TotalSize uint64 `duckdb:"total_size" json:"total_size"`
}

// Store is a snapshot database. It is safe for concurrent use.
type Store struct {
	db        *sql.DB
	snapshots *duckdb.Table[Snapshot]
	items     *duckdb.Table[itemRow]
	kinds     *duckdb.Table[KindSummary]
	now       func() time.Time
	mu        sync.Mutex
	logger    zerolog.Logger
}

// Open opens or creates the snapshot database at path. An empty path
// opens an in-memory database.
func Open(ctx context.Context, path string, logger zerolog.Logger) (*Store, error) {
	db, err := duckdb.OpenDB(path)
	if err != nil {
		return nil, err
	}

	err = retry.Do(ctx, lockRetry, func() error {
		return db.PingContext(ctx)
	}, isLockHeld)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to open snapshot database %s: %w", path, err)
	}

	s, err := New(ctx, db, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an open database, creating the schema if needed.
func New(ctx context.Context, db *sql.DB, logger zerolog.Logger) (*Store, error) {
	s := &Store{
		db:        db,
		snapshots: duckdb.NewTable[Snapshot](db, "snapshots"),
		items:     duckdb.NewTable[itemRow](db, "items"),
		kinds:     duckdb.NewTable[KindSummary](db, "items"),
		now:       func() time.Time { return time.Now().UTC() },
		logger:    logger.With().Str("component", "snapshot_store").Logger(),
	}
	if err := s.initSchema(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SnapshotID derives the ID of a result: the content hash plus the
// front-end, so re-saving the same binary replaces its snapshot.
func SnapshotID(res *analyzer.Result) string {
	return fmt.Sprintf("%016x-%s", res.Hash, res.Frontend)
}

// SaveSnapshot stores res and its items in one transaction.
func (s *Store) SaveSnapshot(ctx context.Context, res *analyzer.Result) (*Snapshot, error) {
	snap := &Snapshot{
		ID:        SnapshotID(res),
		Path:      res.Path,
		Format:    string(res.Format),
		BuildID:   res.BuildID,
		Frontend:  string(res.Frontend),
		ItemCount: res.Items.Len(),
		TotalSize: res.Items.TotalSize(),
		CreatedAt: s.now(),
	}

	rows := make([]*itemRow, 0, res.Items.Len())
	for _, it := range res.Items.All() {
		rows = append(rows, &itemRow{
			SnapshotID: snap.ID,
			Namespace:  uint32(it.ID.Namespace),
			Index:      it.ID.Index,
			Name:       it.Name,
			Size:       it.Size,
			Kind:       it.Kind.String(),
		})
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer cerrors.DeferRollback(s.logger, tx)

	if err := s.snapshots.WithExecer(tx).Upsert(ctx, snap); err != nil {
		return nil, fmt.Errorf("failed to save snapshot: %w", err)
	}
	if err := s.items.WithExecer(tx).BatchUpsert(ctx, rows); err != nil {
		return nil, fmt.Errorf("failed to save items: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit snapshot: %w", err)
	}

	s.logger.Debug().
		Str("id", snap.ID).
		Str("path", snap.Path).
		Int("items", snap.ItemCount).
		Msg("Saved snapshot")
	return snap, nil
}

// ListFilter narrows ListSnapshots. Zero values match everything.
type ListFilter struct {
	BuildID   string
	Frontends []string
	// PathContains is a case-insensitive substring of the binary path.
	PathContains string
	// Since keeps snapshots created at or after this time.
	Since  time.Time
	Limit  int
	Offset int
}

// ListSnapshots returns matching snapshots, newest first.
func (s *Store) ListSnapshots(ctx context.Context, f ListFilter) ([]*Snapshot, error) {
	frontends := make([]any, len(f.Frontends))
	for i, fe := range f.Frontends {
		frontends[i] = fe
	}

	b := s.snapshots.Select().
		Eq("build_id", f.BuildID).
		In("frontend", frontends...).
		Like("path", f.PathContains)
	if !f.Since.IsZero() {
		b.Gte("created_at", f.Since.UTC())
	}
	b.OrderBy("-created_at", "id").
		Limit(f.Limit).
		Offset(f.Offset)

	if e := s.logger.Trace(); e.Enabled() {
		if q, args, err := b.Build(); err == nil {
			e.Str("query", duckdb.InterpolateQuery(q, args)).Msg("Listing snapshots")
		}
	}

	snaps, err := s.snapshots.Query(ctx, b)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	return snaps, nil
}

// GetSnapshot looks a snapshot up by ID or by a unique ID prefix.
func (s *Store) GetSnapshot(ctx context.Context, id string) (*Snapshot, error) {
	snap, err := s.snapshots.Get(ctx, id)
	if err == nil {
		return snap, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}

	matches, err := s.snapshots.Query(ctx, s.snapshots.Select().
		Where("starts_with(id, ?)", strings.ToLower(id)).
		Limit(2))
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrSnapshotNotFound, id)
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrAmbiguousID, id)
	}
}

// LoadItems rebuilds the items of a snapshot.
func (s *Store) LoadItems(ctx context.Context, id string) (*Snapshot, *ir.Items, error) {
	snap, err := s.GetSnapshot(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	rows, err := s.items.List(ctx, map[string]any{"snapshot_id": snap.ID})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load items: %w", err)
	}

	b := ir.NewItemsBuilder()
	for _, r := range rows {
		kind, err := ir.ParseKind(r.Kind)
		if err != nil {
			return nil, nil, fmt.Errorf("snapshot %s: %w", snap.ID, err)
		}
		id := ir.EntryID(ir.Namespace(r.Namespace), r.Index)
		if err := b.AddItem(ir.NewItem(id, r.Name, r.Size, kind)); err != nil {
			return nil, nil, err
		}
	}
	return snap, b.Finish(), nil
}

// SummarizeKinds totals the items of a snapshot per kind, largest first.
func (s *Store) SummarizeKinds(ctx context.Context, id string) (*Snapshot, []*KindSummary, error) {
	snap, err := s.GetSnapshot(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	b := duckdb.NewQueryBuilder(s.items.Name()).
		Select("kind", "COUNT(*) AS item_count", "CAST(SUM(size) AS UBIGINT) AS total_size").
		Eq("snapshot_id", snap.ID).
		GroupBy("kind").
		OrderBy("-total_size", "kind")

	kinds, err := s.kinds.Query(ctx, b)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to summarize snapshot: %w", err)
	}
	return snap, kinds, nil
}

// DeleteSnapshot removes a snapshot and its items.
func (s *Store) DeleteSnapshot(ctx context.Context, id string) error {
	snap, err := s.GetSnapshot(ctx, id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer cerrors.DeferRollback(s.logger, tx)

	// #nosec G202 - table name comes from the table mapping
	if _, err := tx.ExecContext(ctx, "DELETE FROM "+s.items.Name()+" WHERE snapshot_id = ?", snap.ID); err != nil {
		return fmt.Errorf("failed to delete items: %w", err)
	}
	if _, err := s.snapshots.WithExecer(tx).Delete(ctx, snap.ID); err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit delete: %w", err)
	}

	s.logger.Debug().Str("id", snap.ID).Msg("Deleted snapshot")
	return nil
}

func isLockHeld(err error) bool {
	return err != nil && strings.Contains(err.Error(), "Could not set lock")
}
