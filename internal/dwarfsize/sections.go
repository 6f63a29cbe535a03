package dwarfsize

import "encoding/binary"

// Debug section names, in ELF spelling.
const (
	SectionAbbrev     = ".debug_abbrev"
	SectionAddr       = ".debug_addr"
	SectionInfo       = ".debug_info"
	SectionLine       = ".debug_line"
	SectionLineStr    = ".debug_line_str"
	SectionStr        = ".debug_str"
	SectionStrOffsets = ".debug_str_offsets"
	SectionRanges     = ".debug_ranges"
	SectionRngLists   = ".debug_rnglists"
)

// SectionSource provides named section contents and the container's byte
// order. *objfile.File implements it.
type SectionSource interface {
	SectionData(name string) []byte
	ByteOrder() binary.ByteOrder
}

// Sections holds the debug sections the engine reads. Absent sections are
// empty slices.
type Sections struct {
	Order binary.ByteOrder

	Abbrev     []byte
	Addr       []byte
	Info       []byte
	Line       []byte
	LineStr    []byte
	Str        []byte
	StrOffsets []byte
	Ranges     []byte
	RngLists   []byte
}

// LoadSections copies the section views out of src.
func LoadSections(src SectionSource) *Sections {
	load := func(name string) []byte {
		if b := src.SectionData(name); b != nil {
			return b
		}
		return []byte{}
	}

	order := src.ByteOrder()
	if order == nil {
		order = binary.LittleEndian
	}

	return &Sections{
		Order:      order,
		Abbrev:     load(SectionAbbrev),
		Addr:       load(SectionAddr),
		Info:       load(SectionInfo),
		Line:       load(SectionLine),
		LineStr:    load(SectionLineStr),
		Str:        load(SectionStr),
		StrOffsets: load(SectionStrOffsets),
		Ranges:     load(SectionRanges),
		RngLists:   load(SectionRngLists),
	}
}
