package dwarfsize

import (
	"debug/dwarf"
	"fmt"

	"github.com/ianlancetaylor/demangle"
)

// attrMIPSLinkageName is DW_AT_MIPS_linkage_name, still emitted by older
// GCC and Clang releases.
const attrMIPSLinkageName dwarf.Attr = 0x2007

// defaultReferenceDepth bounds how many DW_AT_specification or
// DW_AT_abstract_origin hops a name lookup follows.
const defaultReferenceDepth = 8

// AttrNameResolver names entries from their linkage name, falling back to
// DW_AT_name and then to the declaration the entry refers to.
type AttrNameResolver struct {
	// Demangle turns C++ and Rust linkage names into readable names.
	Demangle bool
	// MaxDepth bounds reference chasing; zero means a default of 8.
	MaxDepth int
}

var _ NameResolver = AttrNameResolver{}

// ResolveName implements NameResolver.
func (r AttrNameResolver) ResolveName(e *dwarf.Entry, u *Unit) (string, bool, error) {
	depth := r.MaxDepth
	if depth <= 0 {
		depth = defaultReferenceDepth
	}

	var reader *dwarf.Reader
	for {
		name, ok, err := r.ownName(e)
		if err != nil || ok {
			return name, ok, err
		}

		ref, ok := e.Val(dwarf.AttrSpecification).(dwarf.Offset)
		if !ok {
			ref, ok = e.Val(dwarf.AttrAbstractOrigin).(dwarf.Offset)
		}
		if !ok || depth == 0 || u.Data() == nil {
			return "", false, nil
		}
		depth--

		if reader == nil {
			reader = u.Data().Reader()
		}
		reader.Seek(ref)
		target, err := reader.Next()
		if err != nil || target == nil || target.Offset != ref {
			return "", false, fmt.Errorf("%w: entry at %#x refers to %#x, which cannot be read",
				ErrMalformedAttribute, e.Offset, ref)
		}
		e = target
	}
}

func (r AttrNameResolver) ownName(e *dwarf.Entry) (string, bool, error) {
	for _, attr := range []dwarf.Attr{dwarf.AttrLinkageName, attrMIPSLinkageName} {
		f := e.AttrField(attr)
		if f == nil {
			continue
		}
		s, ok := f.Val.(string)
		if !ok {
			return "", false, fmt.Errorf("%w: linkage name of entry at %#x is %T",
				ErrMalformedAttribute, e.Offset, f.Val)
		}
		if r.Demangle {
			s = demangle.Filter(s)
		}
		return s, true, nil
	}

	if f := e.AttrField(dwarf.AttrName); f != nil {
		s, ok := f.Val.(string)
		if !ok {
			return "", false, fmt.Errorf("%w: name of entry at %#x is %T",
				ErrMalformedAttribute, e.Offset, f.Val)
		}
		return s, true, nil
	}
	return "", false, nil
}

// RangeSizeResolver sizes an entry by summing its address ranges, from
// DW_AT_low_pc/DW_AT_high_pc or DW_AT_ranges in either the DWARF 4 or the
// DWARF 5 encoding. Empty and inverted ranges count as zero.
type RangeSizeResolver struct{}

var _ SizeResolver = RangeSizeResolver{}

// ResolveSize implements SizeResolver.
func (RangeSizeResolver) ResolveSize(e *dwarf.Entry, u *Unit) (uint64, bool, error) {
	_, hasLow := e.Val(dwarf.AttrLowpc).(uint64)
	hasRanges := e.AttrField(dwarf.AttrRanges) != nil
	if (!hasLow && !hasRanges) || u.Data() == nil {
		return 0, false, nil
	}

	if f := e.AttrField(dwarf.AttrHighpc); f != nil && f.Class == dwarf.ClassConstant {
		if n, ok := f.Val.(int64); ok && n < 0 {
			return 0, false, fmt.Errorf("%w: entry at %#x has negative high_pc offset %d",
				ErrMalformedAttribute, e.Offset, n)
		}
	}

	ranges, err := u.Data().Ranges(e)
	if err != nil {
		return 0, false, fmt.Errorf("%w: ranges of entry at %#x: %v", ErrMalformedAttribute, e.Offset, err)
	}

	var size uint64
	for _, r := range ranges {
		if r[1] > r[0] {
			size += r[1] - r[0]
		}
	}
	return size, true, nil
}
