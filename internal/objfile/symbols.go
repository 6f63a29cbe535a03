package objfile

import (
	"debug/elf"
	"debug/macho"
	"debug/pe"
	"errors"
	"strings"
)

// ErrNoSymbols reports that the container has no usable symbol table.
var ErrNoSymbols = errors.New("no symbol table")

// Symbol is a defined symbol with an address inside one of the file's sections.
type Symbol struct {
	Name    string
	Addr    uint64
	Size    uint64 // zero when the format does not record sizes
	Code    bool
	Section int // index into File.Sections
}

// Symbols returns the defined function and data symbols.
func (f *File) Symbols() ([]Symbol, error) {
	if f.symErr != nil {
		return nil, f.symErr
	}
	return f.symbols, nil
}

func elfSymbols(ef *elf.File) ([]Symbol, error) {
	syms, err := ef.Symbols()
	if errors.Is(err, elf.ErrNoSymbols) {
		return nil, ErrNoSymbols
	}
	if err != nil {
		return nil, err
	}

	var out []Symbol
	for _, s := range syms {
		typ := elf.ST_TYPE(s.Info)
		if typ != elf.STT_FUNC && typ != elf.STT_OBJECT {
			continue
		}
		if s.Section == elf.SHN_UNDEF || s.Section >= elf.SHN_LORESERVE || int(s.Section) >= len(ef.Sections) {
			continue
		}
		out = append(out, Symbol{
			Name:    s.Name,
			Addr:    s.Value,
			Size:    s.Size,
			Code:    typ == elf.STT_FUNC,
			Section: int(s.Section),
		})
	}
	if len(out) == 0 {
		return nil, ErrNoSymbols
	}
	return out, nil
}

const (
	machoTypeStab = 0xe0
	machoTypeMask = 0x0e
	machoTypeSect = 0x0e
)

func machoSymbols(mf *macho.File) ([]Symbol, error) {
	if mf.Symtab == nil {
		return nil, ErrNoSymbols
	}

	var out []Symbol
	for _, s := range mf.Symtab.Syms {
		if s.Type&machoTypeStab != 0 || s.Type&machoTypeMask != machoTypeSect {
			continue
		}
		idx := int(s.Sect) - 1
		if idx < 0 || idx >= len(mf.Sections) {
			continue
		}
		sect := mf.Sections[idx]
		out = append(out, Symbol{
			Name:    s.Name,
			Addr:    s.Value,
			Code:    sect.Seg == "__TEXT" && sect.Name == "__text",
			Section: idx,
		})
	}
	if len(out) == 0 {
		return nil, ErrNoSymbols
	}
	return out, nil
}

func peSymbols(pf *pe.File, base uint64) ([]Symbol, error) {
	var out []Symbol
	for _, s := range pf.Symbols {
		idx := int(s.SectionNumber) - 1
		if idx < 0 || idx >= len(pf.Sections) || strings.HasPrefix(s.Name, ".") {
			continue
		}
		sect := pf.Sections[idx]
		out = append(out, Symbol{
			Name:    s.Name,
			Addr:    base + uint64(sect.VirtualAddress) + uint64(s.Value),
			Code:    sect.Characteristics&pe.IMAGE_SCN_CNT_CODE != 0,
			Section: idx,
		})
	}
	if len(out) == 0 {
		return nil, ErrNoSymbols
	}
	return out, nil
}
