// Package objfile opens compiled binaries and exposes the pieces the size
// front-ends need: named sections with their byte order, symbol tables, and a
// stable build identifier.
//
// # Formats
//
// The container format is detected from the leading magic bytes:
//
//   - ELF (including SHF_COMPRESSED and legacy .zdebug_* sections)
//   - Mach-O, thin or universal (the first architecture is used)
//   - PE/COFF
//   - WebAssembly, where DWARF travels in custom sections
//
// Section names are canonicalized to their ELF spelling, so ".debug_info" finds
// "__debug_info" in a Mach-O file. A section that is absent is reported as
// empty, never as an error.
package objfile
