package analyzer

import (
	"context"
	"debug/dwarf"
	"debug/elf"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coral-mesh/codesize/internal/dwarfsize"
	"github.com/coral-mesh/codesize/internal/safe"
	"github.com/coral-mesh/codesize/internal/testutil"
	"github.com/coral-mesh/codesize/pkg/ir"
)

func dwarfBinary(t *testing.T, withSymbols bool) []byte {
	t.Helper()

	b := testutil.NewDWARFBuilder(binary.LittleEndian, 4)
	b.StartUnit()
	b.Open(dwarf.TagCompileUnit, testutil.Name("main.c"))
	callee := b.Leaf(dwarf.TagSubprogram, testutil.Name("callee"))
	b.Open(dwarf.TagSubprogram, append(testutil.Code(0x1000, 0x40), testutil.Name("main"))...)
	b.Leaf(dwarf.TagInlinedSubroutine, append(testutil.Code(0x1010, 0x10), testutil.Origin(callee))...)
	b.Close()
	b.Close()
	b.EndUnit()
	abbrev, info := b.Build()

	eb := testutil.NewELFBuilder(binary.LittleEndian).
		AddText(".text", 0x1000, 0x40).
		AddDebug(".debug_abbrev", abbrev).
		AddDebug(".debug_info", info)
	if withSymbols {
		eb.AddSymbol(testutil.ELFSymbol{Name: "main", Type: elf.STT_FUNC, Section: ".text", Value: 0x1000, Size: 0x40})
	}
	return eb.Build()
}

func brokenDWARFBinary() []byte {
	b := testutil.NewDWARFBuilder(binary.LittleEndian, 4)
	b.StartUnit()
	b.Open(dwarf.TagCompileUnit)
	b.Leaf(dwarf.TagInlinedSubroutine, testutil.Code(0x1000, 4)...)
	b.Close()
	b.EndUnit()
	abbrev, info := b.Build()

	return testutil.NewELFBuilder(binary.LittleEndian).
		AddText(".text", 0x1000, 0x20).
		AddDebug(".debug_abbrev", abbrev).
		AddDebug(".debug_info", info).
		AddSymbol(testutil.ELFSymbol{Name: "only", Type: elf.STT_FUNC, Section: ".text", Value: 0x1000}).
		Build()
}

func TestAnalyze_DWARF(t *testing.T) {
	ctx, cancel := testutil.NewTestContext()
	defer cancel()

	path := testutil.WriteTempFile(t, "prog", dwarfBinary(t, true))
	a := New(DefaultConfig(), testutil.NewTestLogger(t))

	res, err := a.Analyze(ctx, path)
	require.NoError(t, err)

	assert.Equal(t, FrontendDWARF, res.Frontend)
	assert.Equal(t, path, res.Path)
	assert.Equal(t, "elf", string(res.Format))
	assert.NotEmpty(t, res.BuildID)
	assert.NotZero(t, res.Hash)
	assert.NoError(t, res.DWARFErr)
	require.Equal(t, 2, res.Items.Len())
	assert.Equal(t, uint64(0x40), res.Items.TotalSize())

	for _, it := range res.Items.All() {
		assert.Equal(t, ir.NamespaceDWARF, it.ID.Namespace)
	}
}

func TestAnalyze_FallsBackOnBrokenDWARF(t *testing.T) {
	ctx, cancel := testutil.NewTestContext()
	defer cancel()

	a := New(DefaultConfig(), testutil.NewTestLogger(t))
	res, err := a.AnalyzeBytes(ctx, "broken", brokenDWARFBinary())
	require.NoError(t, err)

	assert.Equal(t, FrontendSymtab, res.Frontend)
	assert.ErrorIs(t, res.DWARFErr, dwarfsize.ErrUnresolvedOrigin)
	require.Equal(t, 1, res.Items.Len())
	assert.Equal(t, "only", res.Items.All()[0].Name)
	assert.Equal(t, uint64(0x20), res.Items.All()[0].Size)
}

func TestAnalyze_NoFallback(t *testing.T) {
	ctx, cancel := testutil.NewTestContext()
	defer cancel()

	cfg := DefaultConfig()
	cfg.FallbackSymtab = false
	a := New(cfg, testutil.NewTestLogger(t))

	_, err := a.AnalyzeBytes(ctx, "broken", brokenDWARFBinary())
	assert.ErrorIs(t, err, dwarfsize.ErrUnresolvedOrigin)

	stripped := testutil.NewELFBuilder(binary.LittleEndian).AddText(".text", 0, 8).Build()
	_, err = a.AnalyzeBytes(ctx, "stripped", stripped)
	assert.ErrorIs(t, err, ErrNoSizeInfo)
}

func TestAnalyze_StrippedBinary(t *testing.T) {
	ctx, cancel := testutil.NewTestContext()
	defer cancel()

	a := New(DefaultConfig(), testutil.NewTestLogger(t))
	_, err := a.AnalyzeBytes(ctx, "stripped", testutil.NewELFBuilder(binary.LittleEndian).AddText(".text", 0, 8).Build())
	assert.ErrorIs(t, err, ErrNoSizeInfo)
}

func TestAnalyze_Cache(t *testing.T) {
	ctx, cancel := testutil.NewTestContext()
	defer cancel()

	data := dwarfBinary(t, false)
	a := New(DefaultConfig(), testutil.NewTestLogger(t))

	first, err := a.AnalyzeBytes(ctx, "a", data)
	require.NoError(t, err)
	second, err := a.AnalyzeBytes(ctx, "b", data)
	require.NoError(t, err)

	assert.Equal(t, 1, a.cache.Len())
	assert.Same(t, first.Items, second.Items)
	assert.Equal(t, "a", first.Path)
	assert.Equal(t, "b", second.Path)
}

func TestAnalyze_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(DefaultConfig(), testutil.NewTestLogger(t)).AnalyzeBytes(ctx, "x", dwarfBinary(t, false))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAnalyze_MissingFile(t *testing.T) {
	_, err := New(DefaultConfig(), testutil.NewTestLogger(t)).Analyze(context.Background(), "/nonexistent/codesize")
	assert.Error(t, err)
}

func TestLRUCache_Evicts(t *testing.T) {
	c := newLRUCache(2)
	c.Put(1, &Result{Path: "one"})
	c.Put(2, &Result{Path: "two"})

	_, ok := c.Get(1)
	require.True(t, ok)

	c.Put(3, &Result{Path: "three"})
	assert.Equal(t, 2, c.Len())

	_, ok = c.Get(2)
	assert.False(t, ok, "least recently used entry should be evicted")

	r, ok := c.Get(1)
	require.True(t, ok)
	assert.Equal(t, "one", r.Path)

	c.Put(1, &Result{Path: "uno"})
	r, _ = c.Get(1)
	assert.Equal(t, "uno", r.Path)
}

func TestAnalyze_FileLimits(t *testing.T) {
	ctx, cancel := testutil.NewTestContext()
	defer cancel()

	path := testutil.WriteTempFile(t, "prog", dwarfBinary(t, false))

	cfg := DefaultConfig()
	cfg.MaxFileSize = 16
	_, err := New(cfg, testutil.NewTestLogger(t)).Analyze(ctx, path)
	assert.ErrorIs(t, err, safe.ErrTooLarge)
	assert.ErrorContains(t, err, "failed to read binary")

	_, err = New(DefaultConfig(), testutil.NewTestLogger(t)).Analyze(ctx, t.TempDir())
	assert.ErrorContains(t, err, "not a regular file")
}
