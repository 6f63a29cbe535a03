package objfile

import (
	"debug/elf"
	"debug/macho"
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/zeebo/xxh3"
)

const (
	ntGNUBuildID = 3
	lcUUID       = 0x1b
)

// BuildID returns the toolchain-assigned identifier of the binary: the GNU
// build-id note for ELF, LC_UUID for Mach-O. Other inputs fall back to an
// xxh3-128 hash of the contents, prefixed with "xxh3:".
func (f *File) BuildID() string {
	if len(f.buildID) > 0 {
		return hex.EncodeToString(f.buildID)
	}
	h := xxh3.Hash128(f.data)
	return fmt.Sprintf("xxh3:%016x%016x", h.Hi, h.Lo)
}

// ContentHash returns the xxh3-64 hash of the raw input.
func (f *File) ContentHash() uint64 {
	return xxh3.Hash(f.data)
}

func elfBuildID(ef *elf.File) []byte {
	for _, s := range ef.Sections {
		if s.Type != elf.SHT_NOTE {
			continue
		}
		data, err := s.Data()
		if err != nil {
			continue
		}
		if id := findGNUBuildID(data, ef.ByteOrder); id != nil {
			return id
		}
	}
	return nil
}

// findGNUBuildID scans a note section: namesz(4) descsz(4) type(4), then the
// name and descriptor, each padded to 4 bytes.
func findGNUBuildID(data []byte, order binary.ByteOrder) []byte {
	for len(data) >= 12 {
		namesz := order.Uint32(data[0:4])
		descsz := order.Uint32(data[4:8])
		typ := order.Uint32(data[8:12])
		data = data[12:]

		nameEnd := align4(uint64(namesz))
		descEnd := nameEnd + align4(uint64(descsz))
		if descEnd > uint64(len(data)) {
			return nil
		}
		name := data[:namesz]
		desc := data[nameEnd : nameEnd+uint64(descsz)]
		if typ == ntGNUBuildID && string(name) == "GNU\x00" {
			return desc
		}
		data = data[descEnd:]
	}
	return nil
}

func align4(n uint64) uint64 {
	return (n + 3) &^ 3
}

func machoUUID(mf *macho.File) []byte {
	for _, l := range mf.Loads {
		raw := l.Raw()
		if len(raw) >= 24 && mf.ByteOrder.Uint32(raw[0:4]) == lcUUID {
			return raw[8:24]
		}
	}
	return nil
}
