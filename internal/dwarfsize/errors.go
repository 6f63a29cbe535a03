package dwarfsize

import (
	"errors"

	"github.com/coral-mesh/codesize/internal/objfile"
)

var (
	// ErrMalformedFormat reports that the object file or its debug sections
	// could not be decoded.
	ErrMalformedFormat = objfile.ErrMalformedFormat

	// ErrMissingTreeRoot reports a compilation unit without a root entry.
	ErrMissingTreeRoot = errors.New("compilation unit has no root entry")

	// ErrMalformedAttribute reports an attribute value of an unexpected shape,
	// e.g. a type-signature abstract origin or a non-string name.
	ErrMalformedAttribute = errors.New("malformed attribute")

	// ErrUnresolvedOrigin reports an inlined subroutine without an abstract origin.
	ErrUnresolvedOrigin = errors.New("inlined subroutine has no abstract origin")

	// ErrDuplicateDefinition reports two different names for one subroutine.
	ErrDuplicateDefinition = errors.New("subroutine defined with conflicting names")
)
