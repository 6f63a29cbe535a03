package dwarfsize

import (
	"debug/dwarf"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// step is one NextDFS result of a scriptedCursor.
type step struct {
	delta int
	e     *dwarf.Entry
}

type scriptedCursor struct {
	steps []step
	pos   int
	err   error // returned once the steps run out, if set
}

func (c *scriptedCursor) NextDFS() (int, *dwarf.Entry, error) {
	if c.pos >= len(c.steps) {
		return 0, nil, c.err
	}
	s := c.steps[c.pos]
	c.pos++
	return s.delta, s.e, nil
}

type mapNames map[dwarf.Offset]string

func (m mapNames) ResolveName(e *dwarf.Entry, _ *Unit) (string, bool, error) {
	name, ok := m[e.Offset]
	return name, ok, nil
}

type mapSizes map[dwarf.Offset]uint64

func (m mapSizes) ResolveSize(e *dwarf.Entry, _ *Unit) (uint64, bool, error) {
	size, ok := m[e.Offset]
	return size, ok, nil
}

type failingResolver struct{ err error }

func (f failingResolver) ResolveName(*dwarf.Entry, *Unit) (string, bool, error) {
	return "", false, f.err
}

func (f failingResolver) ResolveSize(*dwarf.Entry, *Unit) (uint64, bool, error) {
	return 0, false, f.err
}

func testHeader() *UnitHeader {
	return &UnitHeader{Offset: 0x100, Length: 0x1fc, Version: 4, UnitType: unitTypeCompile, AddrSize: 8, HeaderSize: 11}
}

func entry(off dwarf.Offset, tag dwarf.Tag, fields ...dwarf.Field) *dwarf.Entry {
	return &dwarf.Entry{Offset: off, Tag: tag, Field: fields}
}

func localOrigin(off UnitOffset) dwarf.Field {
	return dwarf.Field{Attr: dwarf.AttrAbstractOrigin, Val: off, Class: dwarf.ClassReference}
}

func globalOrigin(off dwarf.Offset) dwarf.Field {
	return dwarf.Field{Attr: dwarf.AttrAbstractOrigin, Val: off, Class: dwarf.ClassReference}
}

func root() step {
	return step{0, entry(0x10b, dwarf.TagCompileUnit)}
}

func parseSteps(t *testing.T, names mapNames, sizes mapSizes, steps ...step) (*Subroutines, error) {
	t.Helper()
	p := NewParser(names, sizes, zerolog.Nop())
	err := p.Parse(&Unit{Header: testHeader(), Entries: &scriptedCursor{steps: steps}})
	return p.Subroutines(), err
}

func requireRecord(t *testing.T, subs *Subroutines, off dwarf.Offset, name string, size uint64) {
	t.Helper()
	r, ok := subs.Get(off)
	require.True(t, ok, "no record at %#x", off)
	assert.Equal(t, name, r.Name, "name at %#x", off)
	assert.Equal(t, size, r.Size, "size at %#x", off)
}

func TestParse_InlinedChildIsSubtractedFromCaller(t *testing.T) {
	subs, err := parseSteps(t,
		mapNames{0x120: "B", 0x130: "A"},
		mapSizes{0x130: 100, 0x140: 30},
		root(),
		step{1, entry(0x120, dwarf.TagSubprogram)},
		step{0, entry(0x130, dwarf.TagSubprogram)},
		step{1, entry(0x140, dwarf.TagInlinedSubroutine, localOrigin(0x20))},
	)
	require.NoError(t, err)

	assert.Equal(t, 2, subs.Len())
	requireRecord(t, subs, 0x130, "A", 70)
	requireRecord(t, subs, 0x120, "B", 30)
}

func TestParse_NestedInliningCorrectsOnlyNearestScope(t *testing.T) {
	// A(100) { B inlined (40) { C inlined (10) } }
	subs, err := parseSteps(t,
		mapNames{0x120: "B", 0x128: "C", 0x130: "A"},
		mapSizes{0x130: 100, 0x140: 40, 0x150: 10},
		root(),
		step{1, entry(0x120, dwarf.TagSubprogram)},
		step{0, entry(0x128, dwarf.TagSubprogram)},
		step{0, entry(0x130, dwarf.TagSubprogram)},
		step{1, entry(0x140, dwarf.TagInlinedSubroutine, localOrigin(0x20))},
		step{1, entry(0x150, dwarf.TagInlinedSubroutine, localOrigin(0x28))},
	)
	require.NoError(t, err)

	requireRecord(t, subs, 0x130, "A", 60)
	requireRecord(t, subs, 0x120, "B", 30)
	requireRecord(t, subs, 0x128, "C", 10)
}

func TestParse_SkipsOtherAncestors(t *testing.T) {
	// A(100) { lexical block { B inlined (25) } }
	subs, err := parseSteps(t,
		mapNames{0x130: "A"},
		mapSizes{0x130: 100, 0x150: 25},
		root(),
		step{1, entry(0x130, dwarf.TagSubprogram)},
		step{1, entry(0x140, dwarf.TagLexDwarfBlock)},
		step{1, entry(0x150, dwarf.TagInlinedSubroutine, localOrigin(0x20))},
	)
	require.NoError(t, err)

	requireRecord(t, subs, 0x130, "A", 75)
	requireRecord(t, subs, 0x120, "", 25)
}

func TestParse_SiblingsAfterClimbingOut(t *testing.T) {
	// A(100) { B inlined (30) } ; D(50) { B inlined (5) }
	subs, err := parseSteps(t,
		mapNames{0x130: "A", 0x160: "D"},
		mapSizes{0x130: 100, 0x140: 30, 0x160: 50, 0x170: 5},
		root(),
		step{1, entry(0x130, dwarf.TagSubprogram)},
		step{1, entry(0x140, dwarf.TagInlinedSubroutine, localOrigin(0x20))},
		step{1, entry(0x150, dwarf.TagFormalParameter)},
		step{-2, entry(0x160, dwarf.TagSubprogram)},
		step{1, entry(0x170, dwarf.TagInlinedSubroutine, localOrigin(0x20))},
	)
	require.NoError(t, err)

	requireRecord(t, subs, 0x130, "A", 70)
	requireRecord(t, subs, 0x160, "D", 45)
	requireRecord(t, subs, 0x120, "", 35)
}

func TestParse_SubtractionSaturatesAtZero(t *testing.T) {
	subs, err := parseSteps(t,
		mapNames{0x130: "A"},
		mapSizes{0x130: 10, 0x140: 30},
		root(),
		step{1, entry(0x130, dwarf.TagSubprogram)},
		step{1, entry(0x140, dwarf.TagInlinedSubroutine, localOrigin(0x20))},
	)
	require.NoError(t, err)

	requireRecord(t, subs, 0x130, "A", 0)
	requireRecord(t, subs, 0x120, "", 30)
}

func TestParse_SizeWithoutInliningIsSumOfOccurrences(t *testing.T) {
	// A concrete out-of-line copy of A refers back to it.
	subs, err := parseSteps(t,
		mapNames{0x130: "A"},
		mapSizes{0x130: 12, 0x140: 8},
		root(),
		step{1, entry(0x130, dwarf.TagSubprogram)},
		step{0, entry(0x140, dwarf.TagSubprogram, localOrigin(0x30))},
		step{1, entry(0x150, dwarf.TagVariable)},
	)
	require.NoError(t, err)

	assert.Equal(t, 1, subs.Len())
	requireRecord(t, subs, 0x130, "A", 20)
}

func TestParse_GlobalAndLocalOriginsShareIdentity(t *testing.T) {
	subs, err := parseSteps(t,
		mapNames{0x130: "A"},
		mapSizes{0x130: 100, 0x140: 10, 0x150: 20},
		root(),
		step{1, entry(0x120, dwarf.TagSubprogram)},
		step{0, entry(0x130, dwarf.TagSubprogram)},
		step{1, entry(0x140, dwarf.TagInlinedSubroutine, localOrigin(0x20))},
		step{0, entry(0x150, dwarf.TagInlinedSubroutine, globalOrigin(0x120))},
	)
	require.NoError(t, err)

	assert.Equal(t, 2, subs.Len())
	requireRecord(t, subs, 0x120, "", 30)
	requireRecord(t, subs, 0x130, "A", 70)
}

func TestParse_RecordsAccumulateAcrossUnits(t *testing.T) {
	p := NewParser(mapNames{0x130: "A"}, mapSizes{0x130: 100, 0x140: 30, 0x340: 7}, zerolog.Nop())

	first := &Unit{Header: testHeader(), Entries: &scriptedCursor{steps: []step{
		root(),
		step{1, entry(0x130, dwarf.TagSubprogram)},
		step{1, entry(0x140, dwarf.TagInlinedSubroutine, globalOrigin(0x500))},
	}}}
	second := &Unit{
		Header: &UnitHeader{Offset: 0x300, Length: 0x7c, Version: 4, HeaderSize: 11},
		Entries: &scriptedCursor{steps: []step{
			{0, entry(0x30b, dwarf.TagCompileUnit)},
			{1, entry(0x340, dwarf.TagInlinedSubroutine, globalOrigin(0x500))},
		}},
	}

	require.NoError(t, p.Parse(first))
	require.NoError(t, p.Parse(second))

	requireRecord(t, p.Subroutines(), 0x500, "", 37)
	requireRecord(t, p.Subroutines(), 0x130, "A", 70)
}

func TestParse_Offsets(t *testing.T) {
	subs, err := parseSteps(t, mapNames{}, mapSizes{},
		root(),
		step{1, entry(0x1f0, dwarf.TagSubprogram)},
		step{0, entry(0x130, dwarf.TagSubprogram)},
		step{0, entry(0x160, dwarf.TagSubprogram)},
	)
	require.NoError(t, err)
	assert.Equal(t, []dwarf.Offset{0x130, 0x160, 0x1f0}, subs.Offsets())
}

func TestParse_Deterministic(t *testing.T) {
	steps := func() []step {
		return []step{
			root(),
			step{1, entry(0x120, dwarf.TagSubprogram)},
			step{0, entry(0x130, dwarf.TagSubprogram)},
			step{1, entry(0x140, dwarf.TagInlinedSubroutine, localOrigin(0x20))},
			step{-1, entry(0x150, dwarf.TagSubprogram)},
		}
	}
	names := mapNames{0x120: "B", 0x130: "A", 0x150: "C"}
	sizes := mapSizes{0x130: 64, 0x140: 16, 0x150: 8}

	type rec struct {
		off  dwarf.Offset
		name string
		size uint64
	}
	run := func() []rec {
		subs, err := parseSteps(t, names, sizes, steps()...)
		require.NoError(t, err)
		var out []rec
		for _, off := range subs.Offsets() {
			r, _ := subs.Get(off)
			out = append(out, rec{off, r.Name, r.Size})
		}
		return out
	}

	assert.Equal(t, run(), run())
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		names   NameResolver
		sizes   SizeResolver
		steps   []step
		cursErr error
		wantErr error
	}{
		{
			name:    "empty unit",
			wantErr: ErrMissingTreeRoot,
		},
		{
			name:    "cursor failure at root",
			cursErr: ErrMalformedFormat,
			wantErr: ErrMalformedFormat,
		},
		{
			name: "inlined subroutine without origin",
			steps: []step{
				root(),
				{1, entry(0x130, dwarf.TagSubprogram)},
				{1, entry(0x140, dwarf.TagInlinedSubroutine)},
			},
			wantErr: ErrUnresolvedOrigin,
		},
		{
			name: "type signature origin",
			steps: []step{
				root(),
				{1, entry(0x140, dwarf.TagInlinedSubroutine,
					dwarf.Field{Attr: dwarf.AttrAbstractOrigin, Val: uint64(0xfeed), Class: dwarf.ClassReferenceSig})},
			},
			wantErr: ErrMalformedAttribute,
		},
		{
			name: "unit reference inside the header",
			steps: []step{
				root(),
				{1, entry(0x130, dwarf.TagSubprogram, localOrigin(0x4))},
			},
			wantErr: ErrMalformedAttribute,
		},
		{
			name: "unit reference past the unit",
			steps: []step{
				root(),
				{1, entry(0x130, dwarf.TagSubprogram, localOrigin(0x200))},
			},
			wantErr: ErrMalformedAttribute,
		},
		{
			name:  "conflicting names",
			names: mapNames{0x130: "A", 0x140: "B"},
			steps: []step{
				root(),
				{1, entry(0x130, dwarf.TagSubprogram)},
				{0, entry(0x140, dwarf.TagSubprogram, localOrigin(0x30))},
			},
			wantErr: ErrDuplicateDefinition,
		},
		{
			name: "entries after returning past the root",
			steps: []step{
				root(),
				{1, entry(0x130, dwarf.TagSubprogram)},
				{-1, entry(0x140, dwarf.TagCompileUnit)},
				{0, entry(0x150, dwarf.TagSubprogram)},
			},
			wantErr: ErrMalformedFormat,
		},
		{
			name:  "name resolver failure",
			names: failingResolver{err: ErrMalformedAttribute},
			steps: []step{
				root(),
				{1, entry(0x130, dwarf.TagSubprogram)},
			},
			wantErr: ErrMalformedAttribute,
		},
		{
			name:  "size resolver failure",
			sizes: failingResolver{err: ErrMalformedAttribute},
			steps: []step{
				root(),
				{1, entry(0x130, dwarf.TagVariable)},
				{0, entry(0x140, dwarf.TagSubprogram)},
			},
			wantErr: ErrMalformedAttribute,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			names, sizes := tt.names, tt.sizes
			if names == nil {
				names = mapNames{}
			}
			if sizes == nil {
				sizes = mapSizes{}
			}

			p := NewParser(names, sizes, zerolog.Nop())
			err := p.Parse(&Unit{Header: testHeader(), Entries: &scriptedCursor{steps: tt.steps, err: tt.cursErr}})
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

func TestParse_SameNameTwiceIsAccepted(t *testing.T) {
	subs, err := parseSteps(t,
		mapNames{0x130: "A", 0x140: "A"},
		mapSizes{0x130: 4, 0x140: 6},
		root(),
		step{1, entry(0x130, dwarf.TagSubprogram)},
		step{0, entry(0x140, dwarf.TagSubprogram, localOrigin(0x30))},
	)
	require.NoError(t, err)
	requireRecord(t, subs, 0x130, "A", 10)
}

func TestParse_ReturnPastRootEndsUnit(t *testing.T) {
	subs, err := parseSteps(t,
		mapNames{0x130: "A"},
		mapSizes{0x130: 9},
		root(),
		step{1, entry(0x130, dwarf.TagSubprogram)},
		step{-1, entry(0x140, dwarf.TagSubprogram)},
	)
	require.NoError(t, err)

	// The entry that climbed past the root is not attributed.
	assert.Equal(t, 1, subs.Len())
	requireRecord(t, subs, 0x130, "A", 9)
}

func TestParse_RootOnly(t *testing.T) {
	subs, err := parseSteps(t, mapNames{}, mapSizes{}, root())
	require.NoError(t, err)
	assert.Zero(t, subs.Len())
}
