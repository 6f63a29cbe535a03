package objfile

import (
	"encoding/binary"
	"fmt"
	"strings"
)

var wasmMagic = []byte{0x00, 0x61, 0x73, 0x6d}

const (
	wasmSectionCustom = 0
	wasmSectionCode   = 10
)

var wasmSectionNames = map[byte]string{
	1:  "type",
	2:  "import",
	3:  "function",
	4:  "table",
	5:  "memory",
	6:  "global",
	7:  "export",
	8:  "start",
	9:  "element",
	10: "code",
	11: "data",
	12: "datacount",
}

// openWasm walks the module's sections. DWARF is carried in custom sections
// whose names are the ELF section names.
func openWasm(data []byte) (*File, error) {
	if v := binary.LittleEndian.Uint32(data[4:8]); v != 1 {
		return nil, fmt.Errorf("%w: unsupported wasm version %d", ErrMalformedFormat, v)
	}

	f := &File{
		format:   FormatWasm,
		order:    binary.LittleEndian,
		data:     data,
		contents: make(map[string][]byte),
	}

	off := 8
	for off < len(data) {
		id := data[off]
		off++
		size, n := binary.Uvarint(data[off:])
		if n <= 0 {
			return nil, fmt.Errorf("%w: bad wasm section size at %#x", ErrMalformedFormat, off)
		}
		off += n
		if size > uint64(len(data)-off) {
			return nil, fmt.Errorf("%w: wasm section %d overruns input", ErrMalformedFormat, id)
		}
		payload := data[off : off+int(size)]

		name := wasmSectionNames[id]
		if id == wasmSectionCustom {
			nameLen, n := binary.Uvarint(payload)
			if n <= 0 || nameLen > uint64(len(payload)-n) {
				return nil, fmt.Errorf("%w: bad custom section name at %#x", ErrMalformedFormat, off)
			}
			name = string(payload[n : n+int(nameLen)])
			if strings.HasPrefix(name, ".debug_") {
				f.contents[name] = payload[n+int(nameLen):]
			}
		}

		f.sections = append(f.sections, Section{
			Index: len(f.sections),
			Name:  name,
			Addr:  uint64(off),
			Size:  size,
			Code:  id == wasmSectionCode,
		})
		off += int(size)
	}

	f.symErr = ErrNoSymbols
	return f, nil
}
