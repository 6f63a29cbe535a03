package dwarfsize

import (
	"debug/dwarf"
	"encoding/binary"
	"fmt"
)

// UnitOffset is an entry offset relative to the start of its unit header.
type UnitOffset uint64

// DWARF 5 unit types.
const (
	unitTypeCompile      = 0x01
	unitTypeType         = 0x02
	unitTypePartial      = 0x03
	unitTypeSkeleton     = 0x04
	unitTypeSplitCompile = 0x05
	unitTypeSplitType    = 0x06
)

// UnitHeader describes one unit in .debug_info.
type UnitHeader struct {
	Offset       dwarf.Offset // of the unit_length field
	Length       uint64       // unit_length, excluding the length field itself
	Format64     bool
	Version      uint16
	UnitType     uint8 // DW_UT_compile for versions before 5
	AbbrevOffset uint64
	AddrSize     uint8
	HeaderSize   uint64 // bytes from Offset to the first entry
}

func (h *UnitHeader) initialLengthSize() uint64 {
	if h.Format64 {
		return 12
	}
	return 4
}

// Size returns the number of bytes the unit occupies, header included.
func (h *UnitHeader) Size() uint64 {
	return h.initialLengthSize() + h.Length
}

// End returns the offset just past the unit.
func (h *UnitHeader) End() dwarf.Offset {
	return h.Offset + dwarf.Offset(h.Size())
}

// FirstEntryOffset returns the global offset of the unit's root entry.
func (h *UnitHeader) FirstEntryOffset() dwarf.Offset {
	return h.Offset + dwarf.Offset(h.HeaderSize)
}

// ToGlobal converts a unit-relative reference into a .debug_info offset.
// The reference must land in the unit's entry area.
func (h *UnitHeader) ToGlobal(off UnitOffset) (dwarf.Offset, error) {
	if uint64(off) < h.HeaderSize || uint64(off) >= h.Size() {
		return 0, fmt.Errorf("%w: unit reference %#x outside unit at %#x (size %#x)",
			ErrMalformedAttribute, uint64(off), h.Offset, h.Size())
	}
	return h.Offset + dwarf.Offset(off), nil
}

// UnitIterator walks unit headers in .debug_info in file order.
type UnitIterator struct {
	info  []byte
	order binary.ByteOrder
	off   uint64
	err   error
}

// NewUnitIterator creates an iterator over the units in info.
func NewUnitIterator(info []byte, order binary.ByteOrder) *UnitIterator {
	return &UnitIterator{info: info, order: order}
}

// Next returns the next unit header, or nil once the section is exhausted.
// A decoding error is sticky.
func (it *UnitIterator) Next() (*UnitHeader, error) {
	if it.err != nil {
		return nil, it.err
	}
	if it.off >= uint64(len(it.info)) {
		return nil, nil
	}

	h, err := it.readHeader()
	if err != nil {
		it.err = fmt.Errorf("%w: unit header at %#x: %v", ErrMalformedFormat, it.off, err)
		return nil, it.err
	}
	it.off += h.Size()
	return h, nil
}

func (it *UnitIterator) readHeader() (*UnitHeader, error) {
	r := headerReader{data: it.info, off: it.off, order: it.order}
	h := &UnitHeader{Offset: dwarf.Offset(it.off), UnitType: unitTypeCompile}

	length := uint64(r.u32())
	switch {
	case length == 0xffffffff:
		h.Format64 = true
		length = r.u64()
	case length >= 0xfffffff0:
		return nil, fmt.Errorf("reserved unit length %#x", length)
	}
	h.Length = length
	if r.err == nil && (length > uint64(len(it.info)) || h.Size() > uint64(len(it.info))-it.off) {
		return nil, fmt.Errorf("unit length %#x overruns section", length)
	}

	h.Version = r.u16()
	switch {
	case r.err != nil:
	case h.Version == 5:
		h.UnitType = r.u8()
		h.AddrSize = r.u8()
		h.AbbrevOffset = r.offset(h.Format64)
		switch h.UnitType {
		case unitTypeType, unitTypeSplitType:
			r.skip(8) // type_signature
			r.offset(h.Format64)
		case unitTypeSkeleton, unitTypeSplitCompile:
			r.skip(8) // dwo_id
		case unitTypeCompile, unitTypePartial:
		default:
			return nil, fmt.Errorf("unknown unit type %#x", h.UnitType)
		}
	case h.Version >= 2 && h.Version <= 4:
		h.AbbrevOffset = r.offset(h.Format64)
		h.AddrSize = r.u8()
	default:
		return nil, fmt.Errorf("unsupported DWARF version %d", h.Version)
	}
	if r.err != nil {
		return nil, r.err
	}

	h.HeaderSize = r.off - it.off
	if h.HeaderSize > h.Size() {
		return nil, fmt.Errorf("header of %d bytes exceeds unit size %d", h.HeaderSize, h.Size())
	}
	return h, nil
}

// headerReader is a bounds-checked cursor over .debug_info. The first
// out-of-range read sets err and turns later reads into no-ops.
type headerReader struct {
	data  []byte
	off   uint64
	order binary.ByteOrder
	err   error
}

func (r *headerReader) bytes(n uint64) []byte {
	if r.err != nil {
		return nil
	}
	if n > uint64(len(r.data)) || r.off > uint64(len(r.data))-n {
		r.err = fmt.Errorf("truncated at %#x", r.off)
		return nil
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b
}

func (r *headerReader) skip(n uint64) { r.bytes(n) }

func (r *headerReader) u8() uint8 {
	if b := r.bytes(1); b != nil {
		return b[0]
	}
	return 0
}

func (r *headerReader) u16() uint16 {
	if b := r.bytes(2); b != nil {
		return r.order.Uint16(b)
	}
	return 0
}

func (r *headerReader) u32() uint32 {
	if b := r.bytes(4); b != nil {
		return r.order.Uint32(b)
	}
	return 0
}

func (r *headerReader) u64() uint64 {
	if b := r.bytes(8); b != nil {
		return r.order.Uint64(b)
	}
	return 0
}

func (r *headerReader) offset(format64 bool) uint64 {
	if format64 {
		return r.u64()
	}
	return uint64(r.u32())
}
