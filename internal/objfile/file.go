package objfile

import (
	"bytes"
	"debug/elf"
	"debug/macho"
	"debug/pe"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/zlib"
)

// ErrMalformedFormat reports that the bytes are not a decodable object file.
var ErrMalformedFormat = errors.New("malformed object file")

// Format names a container format.
type Format string

const (
	FormatELF   Format = "elf"
	FormatMachO Format = "macho"
	FormatPE    Format = "pe"
	FormatWasm  Format = "wasm"
)

// Section describes one section of the container.
type Section struct {
	Index int
	Name  string
	Addr  uint64
	Size  uint64
	Code  bool
}

// File is a decoded object file. Section contents are loaded eagerly so the
// File does not keep the input reader alive.
type File struct {
	format   Format
	order    binary.ByteOrder
	data     []byte
	sections []Section
	contents map[string][]byte
	symbols  []Symbol
	symErr   error
	buildID  []byte
}

// Open decodes an object file held in memory.
func Open(data []byte) (*File, error) {
	switch {
	case len(data) >= 8 && bytes.Equal(data[:4], wasmMagic):
		return openWasm(data)
	case len(data) >= 4 && bytes.Equal(data[:4], []byte(elf.ELFMAG)):
		return openELF(data)
	case len(data) >= 4 && isMachO(data):
		return openMachO(data)
	case len(data) >= 2 && binary.LittleEndian.Uint16(data) == 0x5a4d:
		return openPE(data)
	}
	return nil, fmt.Errorf("%w: unrecognized container format", ErrMalformedFormat)
}

// Format returns the detected container format.
func (f *File) Format() Format {
	return f.format
}

// ByteOrder returns the byte order declared by the container header.
func (f *File) ByteOrder() binary.ByteOrder {
	return f.order
}

// IsLittleEndian reports whether the container is little-endian.
func (f *File) IsLittleEndian() bool {
	return f.order == binary.LittleEndian
}

// Bytes returns the raw input.
func (f *File) Bytes() []byte {
	return f.data
}

// Sections returns the container's sections in header order.
func (f *File) Sections() []Section {
	return f.sections
}

// SectionData returns the contents of the named section, using ELF spelling
// (".debug_info"). Absent sections yield nil.
func (f *File) SectionData(name string) []byte {
	return f.contents[name]
}

// HasSection reports whether the named section is present and non-empty.
func (f *File) HasSection(name string) bool {
	return len(f.contents[name]) > 0
}

func openELF(data []byte) (*File, error) {
	ef, err := elf.NewFile(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFormat, err)
	}
	defer func() { _ = ef.Close() }()

	f := &File{
		format:   FormatELF,
		order:    ef.ByteOrder,
		data:     data,
		contents: make(map[string][]byte),
	}

	for i, s := range ef.Sections {
		f.sections = append(f.sections, Section{
			Index: i,
			Name:  s.Name,
			Addr:  s.Addr,
			Size:  s.Size,
			Code:  s.Flags&elf.SHF_EXECINSTR != 0,
		})
		if !isDebugSection(s.Name) || s.Type == elf.SHT_NOBITS {
			continue
		}
		// Data decompresses SHF_COMPRESSED sections itself.
		b, err := s.Data()
		if err != nil {
			return nil, fmt.Errorf("%w: section %s: %v", ErrMalformedFormat, s.Name, err)
		}
		name := s.Name
		if strings.HasPrefix(name, ".zdebug_") {
			name = ".debug_" + strings.TrimPrefix(name, ".zdebug_")
			if b, err = decompressZdebug(b); err != nil {
				return nil, fmt.Errorf("%w: section %s: %v", ErrMalformedFormat, s.Name, err)
			}
		}
		f.contents[name] = b
	}

	f.buildID = elfBuildID(ef)
	f.symbols, f.symErr = elfSymbols(ef)
	return f, nil
}

func isDebugSection(name string) bool {
	return strings.HasPrefix(name, ".debug_") || strings.HasPrefix(name, ".zdebug_")
}

// decompressZdebug inflates a GNU-style .zdebug section: "ZLIB", an 8-byte
// big-endian uncompressed size, then a zlib stream.
func decompressZdebug(b []byte) ([]byte, error) {
	if len(b) < 12 || string(b[:4]) != "ZLIB" {
		return b, nil
	}
	size := binary.BigEndian.Uint64(b[4:12])
	r, err := zlib.NewReader(bytes.NewReader(b[12:]))
	if err != nil {
		return nil, err
	}
	defer func() { _ = r.Close() }()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return nil, err
	}
	if uint64(buf.Len()) != size {
		return nil, fmt.Errorf("zdebug size mismatch: header says %d, got %d", size, buf.Len())
	}
	return buf.Bytes(), nil
}

func isMachO(data []byte) bool {
	switch binary.BigEndian.Uint32(data) {
	case macho.Magic32, macho.Magic64, macho.MagicFat:
		return true
	}
	switch binary.LittleEndian.Uint32(data) {
	case macho.Magic32, macho.Magic64:
		return true
	}
	return false
}

func openMachO(data []byte) (*File, error) {
	var mf *macho.File
	if binary.BigEndian.Uint32(data) == macho.MagicFat {
		ff, err := macho.NewFatFile(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedFormat, err)
		}
		if len(ff.Arches) == 0 {
			return nil, fmt.Errorf("%w: universal binary without architectures", ErrMalformedFormat)
		}
		mf = ff.Arches[0].File
	} else {
		var err error
		mf, err = macho.NewFile(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedFormat, err)
		}
	}
	defer func() { _ = mf.Close() }()

	f := &File{
		format:   FormatMachO,
		order:    mf.ByteOrder,
		data:     data,
		contents: make(map[string][]byte),
	}

	for i, s := range mf.Sections {
		f.sections = append(f.sections, Section{
			Index: i,
			Name:  s.Name,
			Addr:  s.Addr,
			Size:  s.Size,
			Code:  s.Seg == "__TEXT" && s.Name == "__text",
		})
		name, ok := machoDebugName(s.Name)
		if !ok {
			continue
		}
		b, err := s.Data()
		if err != nil {
			return nil, fmt.Errorf("%w: section %s: %v", ErrMalformedFormat, s.Name, err)
		}
		if strings.HasPrefix(s.Name, "__zdebug_") {
			if b, err = decompressZdebug(b); err != nil {
				return nil, fmt.Errorf("%w: section %s: %v", ErrMalformedFormat, s.Name, err)
			}
		}
		f.contents[name] = b
	}

	f.buildID = machoUUID(mf)
	f.symbols, f.symErr = machoSymbols(mf)
	return f, nil
}

// machoDebugName maps a Mach-O section name, truncated to 16 bytes by the
// format, to its ELF spelling.
func machoDebugName(name string) (string, bool) {
	var rest string
	switch {
	case strings.HasPrefix(name, "__debug_"):
		rest = strings.TrimPrefix(name, "__debug_")
	case strings.HasPrefix(name, "__zdebug_"):
		rest = strings.TrimPrefix(name, "__zdebug_")
	default:
		return "", false
	}
	if rest == "str_offs" {
		rest = "str_offsets"
	}
	return ".debug_" + rest, true
}

func openPE(data []byte) (*File, error) {
	pf, err := pe.NewFile(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFormat, err)
	}
	defer func() { _ = pf.Close() }()

	f := &File{
		format:   FormatPE,
		order:    binary.LittleEndian,
		data:     data,
		contents: make(map[string][]byte),
	}

	base := peImageBase(pf)
	for i, s := range pf.Sections {
		f.sections = append(f.sections, Section{
			Index: i,
			Name:  s.Name,
			Addr:  base + uint64(s.VirtualAddress),
			Size:  uint64(s.VirtualSize),
			Code:  s.Characteristics&pe.IMAGE_SCN_CNT_CODE != 0,
		})
		if !isDebugSection(s.Name) {
			continue
		}
		b, err := s.Data()
		if err != nil {
			return nil, fmt.Errorf("%w: section %s: %v", ErrMalformedFormat, s.Name, err)
		}
		// Raw data is padded to the file alignment.
		if 0 < s.VirtualSize && s.VirtualSize < s.Size {
			b = b[:s.VirtualSize]
		}
		f.contents[s.Name] = b
	}

	f.symbols, f.symErr = peSymbols(pf, base)
	return f, nil
}

func peImageBase(pf *pe.File) uint64 {
	switch oh := pf.OptionalHeader.(type) {
	case *pe.OptionalHeader32:
		return uint64(oh.ImageBase)
	case *pe.OptionalHeader64:
		return oh.ImageBase
	}
	return 0
}
