// Package symtab is the symbol-table front-end: it produces one item per
// defined function or data symbol when a binary has no usable debug info.
package symtab

import (
	"fmt"
	"sort"

	"github.com/ianlancetaylor/demangle"
	"github.com/rs/zerolog"

	"github.com/coral-mesh/codesize/internal/objfile"
	"github.com/coral-mesh/codesize/pkg/ir"
)

// Config controls the symbol-table front-end.
type Config struct {
	// Demangle C++ and Rust symbol names.
	Demangle bool
}

// ParseItems adds one item per symbol of f to items. Aliases (symbols
// sharing an address) are reported once, under the first name seen. IDs are
// the symbol's position in address order, in the symtab namespace.
func ParseItems(items *ir.ItemsBuilder, f *objfile.File, cfg Config, logger zerolog.Logger) error {
	syms, err := f.Symbols()
	if err != nil {
		return err
	}
	sized := SynthesizeSizes(syms, f.Sections())

	synthesized := 0
	for i, s := range sized {
		name := s.Name
		if cfg.Demangle {
			name = demangle.Filter(name)
		}
		kind := ir.KindData
		if s.Code {
			kind = ir.KindCode
		}
		if err := items.AddItem(ir.NewItem(ir.EntryID(ir.NamespaceSymtab, uint64(i)), name, s.Size, kind)); err != nil {
			return fmt.Errorf("symbol %s: %w", s.Name, err)
		}
		if s.synthesized {
			synthesized++
		}
	}

	logger.Debug().
		Str("component", "symtab").
		Int("symbols", len(sized)).
		Int("synthesized_sizes", synthesized).
		Msg("Parsed symbol table")
	return nil
}

// Symbol is a deduplicated symbol with its final size.
type Symbol struct {
	objfile.Symbol
	synthesized bool
}

// SynthesizeSizes sorts syms by address, drops aliases and gives every
// zero-sized symbol the distance to the next symbol in its section, or to
// the end of the section for the last one. Mach-O and PE symbol tables do
// not record sizes at all.
func SynthesizeSizes(syms []objfile.Symbol, sections []objfile.Section) []Symbol {
	sorted := make([]objfile.Symbol, len(syms))
	copy(sorted, syms)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Addr != sorted[j].Addr {
			return sorted[i].Addr < sorted[j].Addr
		}
		// Prefer the sized symbol among aliases.
		return sorted[i].Size > sorted[j].Size
	})

	out := make([]Symbol, 0, len(sorted))
	for i, s := range sorted {
		if i > 0 && s.Addr == sorted[i-1].Addr && s.Section == sorted[i-1].Section {
			continue
		}
		out = append(out, Symbol{Symbol: s})
	}

	for i := range out {
		s := &out[i]
		if s.Size != 0 {
			continue
		}

		var end uint64
		if s.Section >= 0 && s.Section < len(sections) {
			sect := sections[s.Section]
			end = sect.Addr + sect.Size
		}
		for j := i + 1; j < len(out); j++ {
			if out[j].Section == s.Section && out[j].Addr > s.Addr {
				end = out[j].Addr
				break
			}
		}
		if end > s.Addr {
			s.Size = end - s.Addr
			s.synthesized = true
		}
	}
	return out
}
