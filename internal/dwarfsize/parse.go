package dwarfsize

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/coral-mesh/codesize/pkg/ir"
)

// Config controls the DWARF front-end.
type Config struct {
	// Demangle linkage names before they become item names.
	Demangle bool
	// MaxReferenceDepth bounds DW_AT_specification chasing during name lookup.
	MaxReferenceDepth int
}

// DefaultConfig returns the front-end defaults.
func DefaultConfig() Config {
	return Config{
		Demangle:          true,
		MaxReferenceDepth: defaultReferenceDepth,
	}
}

// ParseItems attributes code size to every subroutine described by the
// debug sections of src and adds one code item per subroutine to items, in
// .debug_info offset order. A file without .debug_info adds nothing.
func ParseItems(items *ir.ItemsBuilder, src SectionSource, cfg Config, logger zerolog.Logger) error {
	ctx, err := NewContext(LoadSections(src))
	if err != nil {
		return err
	}

	parser := NewParser(
		AttrNameResolver{Demangle: cfg.Demangle, MaxDepth: cfg.MaxReferenceDepth},
		RangeSizeResolver{},
		logger,
	)

	units := ctx.Units()
	count := 0
	for {
		h, err := units.Next()
		if err != nil {
			return err
		}
		if h == nil {
			break
		}

		u, err := ctx.Unit(h)
		if err != nil {
			return err
		}
		if err := parser.Parse(u); err != nil {
			return fmt.Errorf("unit at %#x: %w", h.Offset, err)
		}
		count++
	}

	subs := parser.Subroutines()
	for _, off := range subs.Offsets() {
		sub, _ := subs.Get(off)
		name := sub.Name
		if name == "" {
			name = fmt.Sprintf("Subroutine[%#x]", uint64(off))
		}
		id := ir.EntryID(ir.NamespaceDWARF, uint64(off))
		if err := items.AddItem(ir.NewItem(id, name, sub.Size, ir.KindCode)); err != nil {
			return err
		}
	}

	logger.Debug().
		Str("component", "dwarf_parser").
		Int("units", count).
		Int("items", subs.Len()).
		Msg("Parsed debug info")
	return nil
}

// ParseEdges adds call-graph edges derived from the debug sections. The
// DWARF front-end does not produce any.
func ParseEdges(items *ir.ItemsBuilder, src SectionSource) error {
	return nil
}
