package dwarfsize

import (
	"debug/dwarf"
	"encoding/binary"
	"fmt"
	"sort"
)

// Context aggregates the loaded debug sections with the decoded DWARF data
// and hands out units for the engine.
type Context struct {
	sections *Sections
	data     *dwarf.Data // nil when .debug_info is empty
	headers  []*UnitHeader
}

// Unit is one compilation unit ready to be walked.
type Unit struct {
	Header  *UnitHeader
	Entries Cursor

	ctx *Context
}

// Data returns the decoded DWARF of the file the unit belongs to. It is nil
// for units that were not produced by a Context.
func (u *Unit) Data() *dwarf.Data {
	if u.ctx == nil {
		return nil
	}
	return u.ctx.data
}

// checkRef fails unless off lies in the entry area of one of the file's
// units. debug/dwarf resolves unit-relative references to
// section offsets without checking them, so dangling references only show
// up here.
func (u *Unit) checkRef(off dwarf.Offset) error {
	if off >= u.Header.FirstEntryOffset() && off < u.Header.End() {
		return nil
	}
	if u.ctx == nil {
		return nil
	}
	return u.ctx.checkRef(off)
}

// NewContext decodes the debug sections. An empty .debug_info is valid and
// yields a context without units.
func NewContext(s *Sections) (*Context, error) {
	ctx := &Context{sections: s}
	if len(s.Info) == 0 {
		return ctx, nil
	}

	var frame, pubnames []byte
	d, err := dwarf.New(s.Abbrev, nil, frame, s.Info, s.Line, pubnames, s.Ranges, s.Str)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFormat, err)
	}

	extra := []struct {
		name string
		data []byte
	}{
		{SectionAddr, s.Addr},
		{SectionLineStr, s.LineStr},
		{SectionStrOffsets, s.StrOffsets},
		{SectionRngLists, s.RngLists},
	}
	for _, sec := range extra {
		if len(sec.data) == 0 {
			continue
		}
		if err := d.AddSection(sec.name, sec.data); err != nil {
			return nil, fmt.Errorf("%w: section %s: %v", ErrMalformedFormat, sec.name, err)
		}
	}

	ctx.data = d
	return ctx, nil
}

// ByteOrder returns the byte order of the debug sections.
func (c *Context) ByteOrder() binary.ByteOrder {
	return c.sections.Order
}

// Data returns the decoded DWARF, or nil when there is none.
func (c *Context) Data() *dwarf.Data {
	return c.data
}

// Units returns an iterator over the unit headers in file order.
func (c *Context) Units() *UnitIterator {
	if c.data == nil {
		return NewUnitIterator(nil, c.sections.Order)
	}
	return NewUnitIterator(c.sections.Info, c.sections.Order)
}

// Unit positions a cursor at the root of the unit described by h.
func (c *Context) Unit(h *UnitHeader) (*Unit, error) {
	cur, err := newReaderCursor(c.data, h)
	if err != nil {
		return nil, err
	}
	return &Unit{Header: h, Entries: cur, ctx: c}, nil
}

func (c *Context) checkRef(off dwarf.Offset) error {
	if c.headers == nil {
		units := c.Units()
		for {
			h, err := units.Next()
			if err != nil {
				return err
			}
			if h == nil {
				break
			}
			c.headers = append(c.headers, h)
		}
	}

	i := sort.Search(len(c.headers), func(i int) bool { return c.headers[i].End() > off })
	if i < len(c.headers) && off >= c.headers[i].FirstEntryOffset() {
		return nil
	}
	return fmt.Errorf("%w: reference %#x is not inside any unit", ErrMalformedAttribute, uint64(off))
}
