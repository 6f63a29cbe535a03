package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coral-mesh/codesize/internal/analyzer"
	"github.com/coral-mesh/codesize/internal/objfile"
	"github.com/coral-mesh/codesize/internal/testutil"
	"github.com/coral-mesh/codesize/pkg/ir"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(context.Background(), testutil.NewTestDatabase(t), testutil.NewTestLogger(t))
	require.NoError(t, err)

	clock := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	s.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}
	return s
}

func result(t *testing.T, path string, hash uint64, frontend analyzer.Frontend, items ...ir.Item) *analyzer.Result {
	t.Helper()
	b := ir.NewItemsBuilder()
	for _, it := range items {
		require.NoError(t, b.AddItem(it))
	}
	return &analyzer.Result{
		Path:     path,
		Format:   objfile.FormatELF,
		BuildID:  "deadbeef",
		Hash:     hash,
		Frontend: frontend,
		Items:    b.Finish(),
	}
}

func dwarfItem(off uint64, name string, size uint64) ir.Item {
	return ir.NewItem(ir.EntryID(ir.NamespaceDWARF, off), name, size, ir.KindCode)
}

func TestStore_SaveAndLoad(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	res := result(t, "/bin/app", 0xabc, analyzer.FrontendDWARF,
		dwarfItem(0x10, "main", 100),
		dwarfItem(0x40, "helper", 20),
		ir.NewItem(ir.EntryID(ir.NamespaceSymtab, 3), "table", 8, ir.KindData),
	)

	snap, err := s.SaveSnapshot(ctx, res)
	require.NoError(t, err)
	assert.Equal(t, "0000000000000abc-dwarf", snap.ID)
	assert.Equal(t, 3, snap.ItemCount)
	assert.Equal(t, uint64(128), snap.TotalSize)

	got, items, err := s.LoadItems(ctx, snap.ID)
	require.NoError(t, err)
	assert.Equal(t, "/bin/app", got.Path)
	assert.Equal(t, "elf", got.Format)
	assert.Equal(t, "deadbeef", got.BuildID)
	assert.Equal(t, "dwarf", got.Frontend)
	assert.Equal(t, res.Items.All(), items.All())
	assert.Equal(t, uint64(128), items.TotalSize())
}

func TestStore_ResaveReplacesItems(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	first, err := s.SaveSnapshot(ctx, result(t, "/bin/app", 1, analyzer.FrontendDWARF, dwarfItem(0x10, "main", 100)))
	require.NoError(t, err)
	second, err := s.SaveSnapshot(ctx, result(t, "/tmp/app", 1, analyzer.FrontendDWARF, dwarfItem(0x10, "main::demangled", 100)))
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	snaps, err := s.ListSnapshots(ctx, ListFilter{})
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, "/tmp/app", snaps[0].Path)
	assert.Equal(t, first.CreatedAt, snaps[0].CreatedAt, "creation time survives a re-save")

	_, items, err := s.LoadItems(ctx, first.ID)
	require.NoError(t, err)
	require.Equal(t, 1, items.Len())
	assert.Equal(t, "main::demangled", items.All()[0].Name)
}

func TestStore_ListSnapshots(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.SaveSnapshot(ctx, result(t, "/build/v1/server", 1, analyzer.FrontendDWARF, dwarfItem(1, "a", 1)))
	require.NoError(t, err)
	_, err = s.SaveSnapshot(ctx, result(t, "/build/v2/server", 2, analyzer.FrontendDWARF, dwarfItem(1, "a", 2)))
	require.NoError(t, err)
	_, err = s.SaveSnapshot(ctx, result(t, "/build/v2/client", 3, analyzer.FrontendSymtab, dwarfItem(1, "a", 3)))
	require.NoError(t, err)

	all, err := s.ListSnapshots(ctx, ListFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "/build/v2/client", all[0].Path, "newest first")
	assert.Equal(t, "/build/v1/server", all[2].Path)

	servers, err := s.ListSnapshots(ctx, ListFilter{PathContains: "SERVER"})
	require.NoError(t, err)
	assert.Len(t, servers, 2)

	symtab, err := s.ListSnapshots(ctx, ListFilter{Frontends: []string{"symtab"}})
	require.NoError(t, err)
	require.Len(t, symtab, 1)
	assert.Equal(t, "/build/v2/client", symtab[0].Path)

	both, err := s.ListSnapshots(ctx, ListFilter{Frontends: []string{"dwarf", "symtab"}})
	require.NoError(t, err)
	assert.Len(t, both, 3)

	// Snapshots were created at 10:01, 10:02 and 10:03.
	recent, err := s.ListSnapshots(ctx, ListFilter{Since: time.Date(2024, 5, 1, 10, 2, 0, 0, time.UTC)})
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "/build/v2/client", recent[0].Path)
	assert.Equal(t, "/build/v2/server", recent[1].Path)

	limited, err := s.ListSnapshots(ctx, ListFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	page, err := s.ListSnapshots(ctx, ListFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "/build/v2/server", page[0].Path)
}

func TestStore_SummarizeKinds(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	snap, err := s.SaveSnapshot(ctx, result(t, "/bin/app", 9, analyzer.FrontendSymtab,
		dwarfItem(1, "main", 100),
		dwarfItem(2, "helper", 20),
		ir.NewItem(ir.EntryID(ir.NamespaceSymtab, 3), "table", 8, ir.KindData),
	))
	require.NoError(t, err)

	got, kinds, err := s.SummarizeKinds(ctx, "00000000000000")
	require.NoError(t, err)
	assert.Equal(t, snap.ID, got.ID)
	assert.Equal(t, []*KindSummary{
		{Kind: "code", ItemCount: 2, TotalSize: 120},
		{Kind: "data", ItemCount: 1, TotalSize: 8},
	}, kinds)

	_, _, err = s.SummarizeKinds(ctx, "ffff")
	assert.ErrorIs(t, err, ErrSnapshotNotFound)
}

func TestStore_GetSnapshotByPrefix(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.SaveSnapshot(ctx, result(t, "a", 0x1100, analyzer.FrontendDWARF))
	require.NoError(t, err)
	_, err = s.SaveSnapshot(ctx, result(t, "b", 0x1200, analyzer.FrontendDWARF))
	require.NoError(t, err)

	snap, err := s.GetSnapshot(ctx, "0000000000001")
	assert.ErrorIs(t, err, ErrAmbiguousID)
	assert.Nil(t, snap)

	snap, err = s.GetSnapshot(ctx, "00000000000012")
	require.NoError(t, err)
	assert.Equal(t, "b", snap.Path)

	_, err = s.GetSnapshot(ctx, "ffff")
	assert.ErrorIs(t, err, ErrSnapshotNotFound)
}

func TestStore_DeleteSnapshot(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	snap, err := s.SaveSnapshot(ctx, result(t, "a", 7, analyzer.FrontendDWARF, dwarfItem(1, "a", 1), dwarfItem(2, "b", 2)))
	require.NoError(t, err)

	require.NoError(t, s.DeleteSnapshot(ctx, snap.ID))

	_, _, err = s.LoadItems(ctx, snap.ID)
	assert.ErrorIs(t, err, ErrSnapshotNotFound)

	var n int
	require.NoError(t, s.db.QueryRow("SELECT count(*) FROM items").Scan(&n))
	assert.Zero(t, n)

	assert.ErrorIs(t, s.DeleteSnapshot(ctx, snap.ID), ErrSnapshotNotFound)
}

func TestOpen_File(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "snapshots.duckdb")

	s, err := Open(ctx, path, testutil.NewTestLogger(t))
	require.NoError(t, err)
	snap, err := s.SaveSnapshot(ctx, result(t, "a", 9, analyzer.FrontendSymtab, dwarfItem(1, "a", 1)))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(ctx, path, testutil.NewTestLogger(t))
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	_, items, err := s.LoadItems(ctx, snap.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, items.Len())
}
