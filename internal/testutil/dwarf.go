package testutil

import (
	"bytes"
	"debug/dwarf"
	"encoding/binary"
	"fmt"
	"strings"
)

// DWARF form codes used by DWARFBuilder.
const (
	FormAddr      = 0x01
	FormData4     = 0x06
	FormString    = 0x08
	FormData1     = 0x0b
	FormUdata     = 0x0f
	FormRefAddr   = 0x10
	FormRef4      = 0x13
	FormSecOffset = 0x17
	FormRefSig8   = 0x20
)

// AttrValue is one attribute of an entry written by DWARFBuilder.
type AttrValue struct {
	Attr dwarf.Attr
	Form uint64
	// Val is a string for FormString, a dwarf.Offset for reference forms
	// (always the global target offset) and a uint64 otherwise.
	Val any
}

// Name is a DW_AT_name string attribute.
func Name(s string) AttrValue {
	return AttrValue{Attr: dwarf.AttrName, Form: FormString, Val: s}
}

// LinkageName is a DW_AT_linkage_name string attribute.
func LinkageName(s string) AttrValue {
	return AttrValue{Attr: dwarf.AttrLinkageName, Form: FormString, Val: s}
}

// LowPC is a DW_AT_low_pc address attribute.
func LowPC(addr uint64) AttrValue {
	return AttrValue{Attr: dwarf.AttrLowpc, Form: FormAddr, Val: addr}
}

// HighPCOffset is a DW_AT_high_pc attribute of class constant, i.e. a length.
func HighPCOffset(n uint64) AttrValue {
	return AttrValue{Attr: dwarf.AttrHighpc, Form: FormUdata, Val: n}
}

// HighPCAddr is a DW_AT_high_pc attribute of class address.
func HighPCAddr(addr uint64) AttrValue {
	return AttrValue{Attr: dwarf.AttrHighpc, Form: FormAddr, Val: addr}
}

// Code is a low_pc/high_pc pair covering size bytes from addr.
func Code(addr, size uint64) []AttrValue {
	return []AttrValue{LowPC(addr), HighPCOffset(size)}
}

// RangesAt is a DW_AT_ranges attribute pointing into .debug_ranges.
func RangesAt(off uint64) AttrValue {
	return AttrValue{Attr: dwarf.AttrRanges, Form: FormSecOffset, Val: off}
}

// LocalRef is a unit-relative (DW_FORM_ref4) reference to target.
func LocalRef(attr dwarf.Attr, target dwarf.Offset) AttrValue {
	return AttrValue{Attr: attr, Form: FormRef4, Val: target}
}

// GlobalRef is a section-relative (DW_FORM_ref_addr) reference to target.
func GlobalRef(attr dwarf.Attr, target dwarf.Offset) AttrValue {
	return AttrValue{Attr: attr, Form: FormRefAddr, Val: target}
}

// SigRef is a type-signature (DW_FORM_ref_sig8) reference.
func SigRef(attr dwarf.Attr, sig uint64) AttrValue {
	return AttrValue{Attr: attr, Form: FormRefSig8, Val: sig}
}

// Origin is a unit-relative DW_AT_abstract_origin reference.
func Origin(target dwarf.Offset) AttrValue {
	return LocalRef(dwarf.AttrAbstractOrigin, target)
}

// ByteOrder is a byte order that can both put and append integers, as
// binary.LittleEndian and binary.BigEndian do.
type ByteOrder interface {
	binary.ByteOrder
	binary.AppendByteOrder
}

// DWARFBuilder encodes .debug_abbrev and .debug_info contents for tests.
// All units share one abbreviation table at offset 0 and use the 32-bit
// DWARF format with 8-byte addresses. References may only point backwards.
type DWARFBuilder struct {
	order   ByteOrder
	version uint16

	abbrev   bytes.Buffer
	codes    map[string]uint64
	nextCode uint64

	info      bytes.Buffer
	unitStart int
	inUnit    bool
	depth     int
}

// NewDWARFBuilder creates a builder emitting units of the given DWARF
// version (4 or 5).
func NewDWARFBuilder(order ByteOrder, version uint16) *DWARFBuilder {
	return &DWARFBuilder{
		order:    order,
		version:  version,
		codes:    make(map[string]uint64),
		nextCode: 1,
	}
}

// StartUnit writes a compilation unit header.
func (b *DWARFBuilder) StartUnit() {
	if b.inUnit {
		panic("testutil: StartUnit inside a unit")
	}
	b.inUnit = true
	b.depth = 0
	b.unitStart = b.info.Len()

	b.write32(0) // unit_length, patched by EndUnit
	b.write16(b.version)
	if b.version >= 5 {
		b.info.WriteByte(0x01) // DW_UT_compile
		b.info.WriteByte(8)
		b.write32(0) // debug_abbrev_offset
	} else {
		b.write32(0)
		b.info.WriteByte(8)
	}
}

// EndUnit closes the current unit and patches its length.
func (b *DWARFBuilder) EndUnit() {
	if !b.inUnit {
		panic("testutil: EndUnit outside a unit")
	}
	if b.depth != 0 {
		panic(fmt.Sprintf("testutil: EndUnit with %d open entries", b.depth))
	}
	buf := b.info.Bytes()
	b.order.PutUint32(buf[b.unitStart:], uint32(len(buf)-b.unitStart-4))
	b.inUnit = false
}

// Open writes an entry that has children. It must be matched by Close.
func (b *DWARFBuilder) Open(tag dwarf.Tag, attrs ...AttrValue) dwarf.Offset {
	off := b.entry(tag, true, attrs)
	b.depth++
	return off
}

// Leaf writes an entry without children.
func (b *DWARFBuilder) Leaf(tag dwarf.Tag, attrs ...AttrValue) dwarf.Offset {
	return b.entry(tag, false, attrs)
}

// Close terminates the sibling list of the innermost open entry.
func (b *DWARFBuilder) Close() {
	if b.depth == 0 {
		panic("testutil: Close without Open")
	}
	b.info.WriteByte(0)
	b.depth--
}

// Null writes a bare null entry, for exercising malformed trees.
func (b *DWARFBuilder) Null() {
	b.info.WriteByte(0)
}

// Build returns the abbreviation table and the info section.
func (b *DWARFBuilder) Build() (abbrev, info []byte) {
	if b.inUnit {
		panic("testutil: Build with an open unit")
	}
	abbrev = append(append([]byte(nil), b.abbrev.Bytes()...), 0)
	return abbrev, append([]byte(nil), b.info.Bytes()...)
}

func (b *DWARFBuilder) entry(tag dwarf.Tag, children bool, attrs []AttrValue) dwarf.Offset {
	if !b.inUnit {
		panic("testutil: entry outside a unit")
	}
	off := dwarf.Offset(b.info.Len())
	b.info.Write(binary.AppendUvarint(nil, b.abbrevCode(tag, children, attrs)))

	for _, a := range attrs {
		switch a.Form {
		case FormString:
			b.info.WriteString(a.Val.(string))
			b.info.WriteByte(0)
		case FormAddr:
			b.write64(a.Val.(uint64))
		case FormData1:
			b.info.WriteByte(byte(a.Val.(uint64)))
		case FormData4:
			b.write32(uint32(a.Val.(uint64)))
		case FormUdata:
			b.info.Write(binary.AppendUvarint(nil, a.Val.(uint64)))
		case FormSecOffset:
			b.write32(uint32(a.Val.(uint64)))
		case FormRef4:
			b.write32(uint32(a.Val.(dwarf.Offset)) - uint32(b.unitStart))
		case FormRefAddr:
			b.write32(uint32(a.Val.(dwarf.Offset)))
		case FormRefSig8:
			b.write64(a.Val.(uint64))
		default:
			panic(fmt.Sprintf("testutil: unsupported form %#x", a.Form))
		}
	}
	return off
}

func (b *DWARFBuilder) abbrevCode(tag dwarf.Tag, children bool, attrs []AttrValue) uint64 {
	var key strings.Builder
	fmt.Fprintf(&key, "%d/%t", tag, children)
	for _, a := range attrs {
		fmt.Fprintf(&key, "/%d:%d", a.Attr, a.Form)
	}
	if code, ok := b.codes[key.String()]; ok {
		return code
	}

	code := b.nextCode
	b.nextCode++
	b.codes[key.String()] = code

	b.abbrev.Write(binary.AppendUvarint(nil, code))
	b.abbrev.Write(binary.AppendUvarint(nil, uint64(tag)))
	if children {
		b.abbrev.WriteByte(1)
	} else {
		b.abbrev.WriteByte(0)
	}
	for _, a := range attrs {
		b.abbrev.Write(binary.AppendUvarint(nil, uint64(a.Attr)))
		b.abbrev.Write(binary.AppendUvarint(nil, a.Form))
	}
	b.abbrev.Write([]byte{0, 0})
	return code
}

func (b *DWARFBuilder) write16(v uint16) {
	var buf [2]byte
	b.order.PutUint16(buf[:], v)
	b.info.Write(buf[:])
}

func (b *DWARFBuilder) write32(v uint32) {
	var buf [4]byte
	b.order.PutUint32(buf[:], v)
	b.info.Write(buf[:])
}

func (b *DWARFBuilder) write64(v uint64) {
	var buf [8]byte
	b.order.PutUint64(buf[:], v)
	b.info.Write(buf[:])
}

// EncodeRanges encodes a .debug_ranges list (DWARF 4, 8-byte addresses)
// terminated by an end-of-list entry.
func EncodeRanges(order binary.AppendByteOrder, ranges ...[2]uint64) []byte {
	out := make([]byte, 0, 16*(len(ranges)+1))
	for _, r := range append(ranges, [2]uint64{0, 0}) {
		out = order.AppendUint64(out, r[0])
		out = order.AppendUint64(out, r[1])
	}
	return out
}
