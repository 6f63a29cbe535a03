// Package dwarfsize attributes code size to functions using DWARF debug
// information.
//
// Every compilation unit in .debug_info is walked depth first. Subprogram and
// InlinedSubroutine entries are keyed by the .debug_info offset of the
// declaration they stand for (their abstract origin, or themselves), so all
// concrete and inlined copies of a function collect into one record. The code
// bytes of an inlined copy are charged to the inlined function and removed
// from the innermost enclosing function, which already covered them.
//
// Usage:
//
//	f, err := objfile.Open(data)
//	items := ir.NewItemsBuilder()
//	err = dwarfsize.ParseItems(items, f, dwarfsize.DefaultConfig(), logger)
//
// The Parser can also be driven directly with any Cursor, NameResolver and
// SizeResolver, one Unit at a time.
package dwarfsize
