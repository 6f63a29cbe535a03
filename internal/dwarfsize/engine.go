package dwarfsize

import (
	"debug/dwarf"
	"fmt"
	"sort"

	"github.com/rs/zerolog"
)

// Subroutine is the accumulated record for one logical function.
type Subroutine struct {
	Name string // empty until a Subprogram occurrence supplies one
	Size uint64
}

// Subroutines maps .debug_info offsets to records. It is shared by every
// unit of a file.
type Subroutines struct {
	records map[dwarf.Offset]*Subroutine
}

// NewSubroutines creates an empty record map.
func NewSubroutines() *Subroutines {
	return &Subroutines{records: make(map[dwarf.Offset]*Subroutine)}
}

// Len returns the number of records.
func (s *Subroutines) Len() int {
	return len(s.records)
}

// Get returns the record for off.
func (s *Subroutines) Get(off dwarf.Offset) (*Subroutine, bool) {
	r, ok := s.records[off]
	return r, ok
}

// Offsets returns the record offsets in ascending order.
func (s *Subroutines) Offsets() []dwarf.Offset {
	offs := make([]dwarf.Offset, 0, len(s.records))
	for off := range s.records {
		offs = append(offs, off)
	}
	sort.Slice(offs, func(i, j int) bool { return offs[i] < offs[j] })
	return offs
}

func (s *Subroutines) getOrCreate(off dwarf.Offset) *Subroutine {
	r, ok := s.records[off]
	if !ok {
		r = &Subroutine{}
		s.records[off] = r
	}
	return r
}

// NameResolver produces the display name of a Subprogram entry.
type NameResolver interface {
	ResolveName(e *dwarf.Entry, u *Unit) (name string, ok bool, err error)
}

// SizeResolver produces the number of code bytes an entry covers. ok is
// false when the entry carries no address information.
type SizeResolver interface {
	ResolveSize(e *dwarf.Entry, u *Unit) (size uint64, ok bool, err error)
}

type nodeKind uint8

const (
	nodeOther nodeKind = iota
	nodeSubprogram
	nodeInlinedSubroutine
)

type node struct {
	kind   nodeKind
	offset dwarf.Offset // identity; unset for nodeOther
}

// Parser attributes code size to subroutines, one unit at a time.
//
// A subroutine's size is the sum of the address ranges of every entry that
// resolves to it. The range of an inlined subroutine is also covered by its
// nearest enclosing Subprogram or InlinedSubroutine, so it is subtracted
// from that caller once. The subtraction saturates at zero, which
// approximates overlapping or non-contiguous ranges.
type Parser struct {
	names       NameResolver
	sizes       SizeResolver
	subroutines *Subroutines
	logger      zerolog.Logger
}

// NewParser creates a parser with an empty record map.
func NewParser(names NameResolver, sizes SizeResolver, logger zerolog.Logger) *Parser {
	return &Parser{
		names:       names,
		sizes:       sizes,
		subroutines: NewSubroutines(),
		logger:      logger.With().Str("component", "dwarf_parser").Logger(),
	}
}

// Subroutines returns the records accumulated so far.
func (p *Parser) Subroutines() *Subroutines {
	return p.subroutines
}

// Parse walks every entry of u. Units must be parsed in file order; the
// first error aborts the walk and leaves the records of earlier entries in
// place.
func (p *Parser) Parse(u *Unit) error {
	_, root, err := u.Entries.NextDFS()
	if err != nil {
		return err
	}
	if root == nil {
		return fmt.Errorf("%w: unit at %#x", ErrMissingTreeRoot, u.Header.Offset)
	}

	var stack []node
	entries := 1

walk:
	for {
		delta, e, err := u.Entries.NextDFS()
		if err != nil {
			return err
		}
		if e == nil {
			break
		}
		entries++

		// Drop the previous entry and every scope the walk climbed out of.
		for pops := 1 - delta; pops > 0; pops-- {
			if len(stack) == 0 {
				// Back at or above the root: nothing may follow.
				_, extra, err := u.Entries.NextDFS()
				if err != nil {
					return err
				}
				if extra != nil {
					return fmt.Errorf("%w: entry at %#x follows the end of unit at %#x",
						ErrMalformedFormat, extra.Offset, u.Header.Offset)
				}
				break walk
			}
			stack = stack[:len(stack)-1]
		}

		n, err := p.classify(e, u)
		if err != nil {
			return err
		}
		if n.kind != nodeOther {
			if err := p.record(n, e, u, stack); err != nil {
				return err
			}
		}
		stack = append(stack, n)
	}

	p.logger.Debug().
		Uint64("unit", uint64(u.Header.Offset)).
		Int("entries", entries).
		Int("subroutines", p.subroutines.Len()).
		Msg("Parsed compilation unit")
	return nil
}

func (p *Parser) classify(e *dwarf.Entry, u *Unit) (node, error) {
	switch e.Tag {
	case dwarf.TagSubprogram:
		origin, ok, err := abstractOrigin(e, u)
		if err != nil {
			return node{}, err
		}
		if !ok {
			origin = e.Offset
		}
		return node{kind: nodeSubprogram, offset: origin}, nil

	case dwarf.TagInlinedSubroutine:
		origin, ok, err := abstractOrigin(e, u)
		if err != nil {
			return node{}, err
		}
		if !ok {
			return node{}, fmt.Errorf("%w: entry at %#x", ErrUnresolvedOrigin, e.Offset)
		}
		return node{kind: nodeInlinedSubroutine, offset: origin}, nil
	}
	return node{kind: nodeOther}, nil
}

func (p *Parser) record(n node, e *dwarf.Entry, u *Unit, stack []node) error {
	sub := p.subroutines.getOrCreate(n.offset)

	if n.kind == nodeSubprogram {
		name, ok, err := p.names.ResolveName(e, u)
		if err != nil {
			return err
		}
		if ok {
			if sub.Name != "" && sub.Name != name {
				return fmt.Errorf("%w: %#x named %q and %q",
					ErrDuplicateDefinition, n.offset, sub.Name, name)
			}
			sub.Name = name
		}
	}

	size, _, err := p.sizes.ResolveSize(e, u)
	if err != nil {
		return err
	}
	sub.Size += size

	if n.kind != nodeInlinedSubroutine {
		return nil
	}
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i].kind == nodeOther {
			continue
		}
		caller := p.subroutines.getOrCreate(stack[i].offset)
		if caller.Size >= size {
			caller.Size -= size
		} else {
			caller.Size = 0
		}
		break
	}
	return nil
}

// abstractOrigin returns the global offset DW_AT_abstract_origin points at.
// Unit-relative references are converted through the unit header. Either
// way the target must lie in the entry area of a unit.
func abstractOrigin(e *dwarf.Entry, u *Unit) (dwarf.Offset, bool, error) {
	f := e.AttrField(dwarf.AttrAbstractOrigin)
	if f == nil {
		return 0, false, nil
	}

	switch v := f.Val.(type) {
	case dwarf.Offset:
		if err := u.checkRef(v); err != nil {
			return 0, false, fmt.Errorf("abstract origin of entry at %#x: %w", e.Offset, err)
		}
		return v, true, nil
	case UnitOffset:
		off, err := u.Header.ToGlobal(v)
		if err != nil {
			return 0, false, err
		}
		return off, true, nil
	}
	return 0, false, fmt.Errorf("%w: abstract origin of entry at %#x has %s value %v",
		ErrMalformedAttribute, e.Offset, f.Class, f.Val)
}
