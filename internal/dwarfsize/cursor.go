package dwarfsize

import (
	"debug/dwarf"
	"fmt"
)

// Cursor walks one unit's entries in depth-first order.
//
// NextDFS returns the next entry together with its depth relative to the
// previously returned entry: 1 for the first child, 0 for a sibling and
// negative when the walk climbs back up. Null entries are never returned.
// A nil entry with a nil error means the unit is exhausted.
type Cursor interface {
	NextDFS() (delta int, e *dwarf.Entry, err error)
}

// readerCursor adapts a dwarf.Reader positioned at a unit's root. The reader
// reports sibling-list terminators as Tag 0 entries, which drive the depth.
type readerCursor struct {
	r    *dwarf.Reader
	end  dwarf.Offset
	next int // depth of the next real entry
	prev int // depth of the last returned entry
	done bool
}

func newReaderCursor(d *dwarf.Data, h *UnitHeader) (*readerCursor, error) {
	c := &readerCursor{end: h.End()}
	if h.FirstEntryOffset() >= h.End() {
		c.done = true
		return c, nil
	}

	c.r = d.Reader()
	c.r.Seek(h.FirstEntryOffset())
	return c, nil
}

func (c *readerCursor) NextDFS() (int, *dwarf.Entry, error) {
	for !c.done {
		e, err := c.r.Next()
		if err != nil {
			c.done = true
			return 0, nil, fmt.Errorf("%w: %v", ErrMalformedFormat, err)
		}
		if e == nil {
			break
		}
		if e.Tag == 0 {
			c.next--
			continue
		}
		if e.Offset >= c.end {
			break
		}

		depth := c.next
		if e.Children {
			c.next++
		}
		delta := depth - c.prev
		c.prev = depth
		return delta, e, nil
	}
	c.done = true
	return 0, nil, nil
}
