package duckdb

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sizeRow struct {
	SnapshotID string `duckdb:"snapshot_id,pk"`
	ItemID     string `duckdb:"item_id,pk"`
	Name       string `duckdb:"name"`
	Size       uint64 `duckdb:"size"`
	Origin     string `duckdb:"origin,immutable"`
	Scratch    int
}

func newSizeTable(t *testing.T) (*sql.DB, *Table[sizeRow]) {
	t.Helper()
	db, err := OpenDB("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`CREATE TABLE sizes (
		snapshot_id VARCHAR,
		item_id VARCHAR,
		name VARCHAR,
		size UBIGINT,
		origin VARCHAR,
		PRIMARY KEY (snapshot_id, item_id)
	)`)
	require.NoError(t, err)
	return db, NewTable[sizeRow](db, "sizes")
}

func TestNewTable_Columns(t *testing.T) {
	tbl := NewTable[sizeRow](nil, "sizes")
	assert.Equal(t, "sizes", tbl.Name())
	assert.Equal(t,
		"INSERT INTO sizes (snapshot_id, item_id, name, size, origin) VALUES (?, ?, ?, ?, ?) "+
			"ON CONFLICT (snapshot_id, item_id) DO UPDATE SET name = excluded.name, size = excluded.size",
		tbl.upsertQuery())

	type noKey struct {
		Name string `duckdb:"name"`
	}
	assert.Equal(t, "INSERT INTO t (name) VALUES (?)", NewTable[noKey](nil, "t").upsertQuery())
}

func TestNewTable_RejectsNonStruct(t *testing.T) {
	assert.Panics(t, func() { NewTable[int](nil, "x") })
}

func TestTable_UpsertAndGet(t *testing.T) {
	ctx := context.Background()
	_, tbl := newSizeTable(t)

	require.NoError(t, tbl.Upsert(ctx, &sizeRow{SnapshotID: "s1", ItemID: "dwarf:0x10", Name: "main", Size: 10, Origin: "dwarf"}))
	require.NoError(t, tbl.Upsert(ctx, &sizeRow{SnapshotID: "s1", ItemID: "dwarf:0x10", Name: "main2", Size: 12, Origin: "symtab"}))

	got, err := tbl.Get(ctx, "s1", "dwarf:0x10")
	require.NoError(t, err)
	assert.Equal(t, "main2", got.Name)
	assert.Equal(t, uint64(12), got.Size)
	assert.Equal(t, "dwarf", got.Origin, "immutable column is not updated")

	_, err = tbl.Get(ctx, "s1", "missing")
	assert.True(t, errors.Is(err, sql.ErrNoRows))

	_, err = tbl.Get(ctx, "s1")
	assert.Error(t, err)
}

func TestTable_BatchUpsertAndQuery(t *testing.T) {
	ctx := context.Background()
	_, tbl := newSizeTable(t)

	rows := []*sizeRow{
		{SnapshotID: "s1", ItemID: "a", Name: "alpha", Size: 30},
		{SnapshotID: "s1", ItemID: "b", Name: "beta", Size: 10},
		{SnapshotID: "s2", ItemID: "a", Name: "alpha", Size: 40},
	}
	require.NoError(t, tbl.BatchUpsert(ctx, rows))
	require.NoError(t, tbl.BatchUpsert(ctx, nil))

	got, err := tbl.Query(ctx, tbl.Select().Eq("snapshot_id", "s1").OrderBy("-size"))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "alpha", got[0].Name)
	assert.Equal(t, "beta", got[1].Name)

	all, err := tbl.List(ctx, nil)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "s1", all[0].SnapshotID)
	assert.Equal(t, "s2", all[2].SnapshotID)

	filtered, err := tbl.List(ctx, map[string]any{"item_id": "a"})
	require.NoError(t, err)
	assert.Len(t, filtered, 2)
}

func TestTable_BatchUpsertInCallerTransaction(t *testing.T) {
	ctx := context.Background()
	db, tbl := newSizeTable(t)

	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, tbl.WithExecer(tx).BatchUpsert(ctx, []*sizeRow{
		{SnapshotID: "s1", ItemID: "a", Name: "alpha", Size: 1},
	}))
	require.NoError(t, tx.Rollback())

	all, err := tbl.List(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, all, "rolled back batch must not be visible")
}

func TestTable_Delete(t *testing.T) {
	ctx := context.Background()
	_, tbl := newSizeTable(t)

	require.NoError(t, tbl.Upsert(ctx, &sizeRow{SnapshotID: "s1", ItemID: "a"}))

	n, err := tbl.Delete(ctx, "s1", "a")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = tbl.Delete(ctx, "s1", "a")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestTable_NoPrimaryKey(t *testing.T) {
	type noKey struct {
		Name string `duckdb:"name"`
	}
	tbl := NewTable[noKey](nil, "t")

	_, err := tbl.Get(context.Background(), "x")
	assert.ErrorIs(t, err, ErrNoPrimaryKey)
	_, err = tbl.Delete(context.Background(), "x")
	assert.ErrorIs(t, err, ErrNoPrimaryKey)
}

func TestIsTransactionConflict(t *testing.T) {
	assert.False(t, isTransactionConflict(nil))
	assert.True(t, isTransactionConflict(errors.New("TransactionContext Error: Conflict on update")))
	assert.False(t, isTransactionConflict(errors.New("Catalog Error: table not found")))
}
