package testutil

import (
	"debug/elf"
	"encoding/binary"
)

// ELFSection is a section written by ELFBuilder.
type ELFSection struct {
	Name  string
	Type  elf.SectionType
	Flags elf.SectionFlag
	Addr  uint64
	Data  []byte
}

// ELFSymbol is a symbol table entry written by ELFBuilder. Section names the
// section the symbol is defined in; an empty name means SHN_UNDEF.
type ELFSymbol struct {
	Name    string
	Type    elf.SymType
	Section string
	Value   uint64
	Size    uint64
}

// ELFBuilder assembles a minimal ELF64 executable: a file header, the
// section contents, an optional .symtab/.strtab pair, .shstrtab and the
// section header table. There are no program headers.
type ELFBuilder struct {
	order    ByteOrder
	sections []ELFSection
	symbols  []ELFSymbol
}

// NewELFBuilder creates a builder for the given byte order.
func NewELFBuilder(order ByteOrder) *ELFBuilder {
	return &ELFBuilder{order: order}
}

// AddSection appends a section.
func (b *ELFBuilder) AddSection(s ELFSection) *ELFBuilder {
	if s.Type == elf.SHT_NULL {
		s.Type = elf.SHT_PROGBITS
	}
	b.sections = append(b.sections, s)
	return b
}

// AddDebug appends a non-allocated .debug_* style section.
func (b *ELFBuilder) AddDebug(name string, data []byte) *ELFBuilder {
	return b.AddSection(ELFSection{Name: name, Data: data})
}

// AddText appends an executable section of size bytes at addr.
func (b *ELFBuilder) AddText(name string, addr uint64, size int) *ELFBuilder {
	return b.AddSection(ELFSection{
		Name:  name,
		Flags: elf.SHF_ALLOC | elf.SHF_EXECINSTR,
		Addr:  addr,
		Data:  make([]byte, size),
	})
}

// AddBuildID appends a .note.gnu.build-id section carrying id.
func (b *ELFBuilder) AddBuildID(id []byte) *ELFBuilder {
	note := b.order.AppendUint32(nil, 4)
	note = b.order.AppendUint32(note, uint32(len(id)))
	note = b.order.AppendUint32(note, 3) // NT_GNU_BUILD_ID
	note = append(note, "GNU\x00"...)
	note = append(note, id...)
	for len(note)%4 != 0 {
		note = append(note, 0)
	}
	return b.AddSection(ELFSection{
		Name:  ".note.gnu.build-id",
		Type:  elf.SHT_NOTE,
		Flags: elf.SHF_ALLOC,
		Data:  note,
	})
}

// AddSymbol appends a symbol. A .symtab section is emitted when at least one
// symbol was added.
func (b *ELFBuilder) AddSymbol(s ELFSymbol) *ELFBuilder {
	b.symbols = append(b.symbols, s)
	return b
}

// Build encodes the file.
func (b *ELFBuilder) Build() []byte {
	const (
		ehdrSize = 64
		shdrSize = 64
		symSize  = 24
	)

	type shdr struct {
		name    uint32
		typ     elf.SectionType
		flags   elf.SectionFlag
		addr    uint64
		off     uint64
		size    uint64
		link    uint32
		entsize uint64
	}

	var shstrtab []byte
	addName := func(tab *[]byte, s string) uint32 {
		off := uint32(len(*tab))
		*tab = append(*tab, s...)
		*tab = append(*tab, 0)
		return off
	}
	addName(&shstrtab, "")

	out := make([]byte, ehdrSize)
	headers := []shdr{{}}
	index := make(map[string]int)

	appendData := func(data []byte) uint64 {
		for len(out)%8 != 0 {
			out = append(out, 0)
		}
		off := uint64(len(out))
		out = append(out, data...)
		return off
	}

	for _, s := range b.sections {
		index[s.Name] = len(headers)
		headers = append(headers, shdr{
			name:  addName(&shstrtab, s.Name),
			typ:   s.Type,
			flags: s.Flags,
			addr:  s.Addr,
			off:   appendData(s.Data),
			size:  uint64(len(s.Data)),
		})
	}

	if len(b.symbols) > 0 {
		strtab := []byte{0}
		symtab := make([]byte, symSize) // null symbol
		for _, s := range b.symbols {
			shndx := uint16(elf.SHN_UNDEF)
			if i, ok := index[s.Section]; ok {
				shndx = uint16(i)
			}
			symtab = b.order.AppendUint32(symtab, addName(&strtab, s.Name))
			symtab = append(symtab, byte(elf.STB_GLOBAL)<<4|byte(s.Type), 0)
			symtab = b.order.AppendUint16(symtab, shndx)
			symtab = b.order.AppendUint64(symtab, s.Value)
			symtab = b.order.AppendUint64(symtab, s.Size)
		}

		symIdx := len(headers)
		headers = append(headers, shdr{
			name:    addName(&shstrtab, ".symtab"),
			typ:     elf.SHT_SYMTAB,
			off:     appendData(symtab),
			size:    uint64(len(symtab)),
			link:    uint32(symIdx + 1),
			entsize: symSize,
		})
		headers = append(headers, shdr{
			name: addName(&shstrtab, ".strtab"),
			typ:  elf.SHT_STRTAB,
			off:  appendData(strtab),
			size: uint64(len(strtab)),
		})
	}

	shstrndx := len(headers)
	nameOff := addName(&shstrtab, ".shstrtab")
	headers = append(headers, shdr{
		name: nameOff,
		typ:  elf.SHT_STRTAB,
		off:  appendData(shstrtab),
		size: uint64(len(shstrtab)),
	})

	shoff := appendData(nil)
	for _, h := range headers {
		out = b.order.AppendUint32(out, h.name)
		out = b.order.AppendUint32(out, uint32(h.typ))
		out = b.order.AppendUint64(out, uint64(h.flags))
		out = b.order.AppendUint64(out, h.addr)
		out = b.order.AppendUint64(out, h.off)
		out = b.order.AppendUint64(out, h.size)
		out = b.order.AppendUint32(out, h.link)
		out = b.order.AppendUint32(out, 0) // info
		out = b.order.AppendUint64(out, 1) // addralign
		out = b.order.AppendUint64(out, h.entsize)
	}

	hdr := make([]byte, 0, ehdrSize)
	hdr = append(hdr, elf.ELFMAG...)
	hdr = append(hdr, byte(elf.ELFCLASS64))
	if b.order == binary.BigEndian {
		hdr = append(hdr, byte(elf.ELFDATA2MSB))
	} else {
		hdr = append(hdr, byte(elf.ELFDATA2LSB))
	}
	hdr = append(hdr, byte(elf.EV_CURRENT), byte(elf.ELFOSABI_NONE))
	hdr = append(hdr, make([]byte, 8)...)
	hdr = b.order.AppendUint16(hdr, uint16(elf.ET_EXEC))
	hdr = b.order.AppendUint16(hdr, uint16(elf.EM_X86_64))
	hdr = b.order.AppendUint32(hdr, uint32(elf.EV_CURRENT))
	hdr = b.order.AppendUint64(hdr, 0) // entry
	hdr = b.order.AppendUint64(hdr, 0) // phoff
	hdr = b.order.AppendUint64(hdr, shoff)
	hdr = b.order.AppendUint32(hdr, 0) // flags
	hdr = b.order.AppendUint16(hdr, ehdrSize)
	hdr = b.order.AppendUint16(hdr, 0) // phentsize
	hdr = b.order.AppendUint16(hdr, 0) // phnum
	hdr = b.order.AppendUint16(hdr, shdrSize)
	hdr = b.order.AppendUint16(hdr, uint16(len(headers)))
	hdr = b.order.AppendUint16(hdr, uint16(shstrndx))
	copy(out, hdr)

	return out
}

// BuildDWARFELF wraps abbrev/info (and optional extra debug sections, keyed by
// name) in a little-endian ELF file.
func BuildDWARFELF(abbrev, info []byte, extra map[string][]byte) []byte {
	b := NewELFBuilder(binary.LittleEndian).
		AddDebug(".debug_abbrev", abbrev).
		AddDebug(".debug_info", info)
	for _, name := range []string{".debug_ranges", ".debug_str", ".debug_line", ".debug_rnglists", ".debug_addr"} {
		if data, ok := extra[name]; ok {
			b.AddDebug(name, data)
		}
	}
	return b.Build()
}
