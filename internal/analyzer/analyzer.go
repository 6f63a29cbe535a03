// Package analyzer turns a binary into sized items, choosing between the
// DWARF and symbol-table front-ends.
package analyzer

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/coral-mesh/codesize/internal/dwarfsize"
	"github.com/coral-mesh/codesize/internal/objfile"
	"github.com/coral-mesh/codesize/internal/safe"
	"github.com/coral-mesh/codesize/internal/symtab"
	"github.com/coral-mesh/codesize/pkg/ir"
)

// ErrNoSizeInfo reports a binary with neither debug info nor symbols.
var ErrNoSizeInfo = errors.New("binary has no debug info or symbol table (stripped binary?)")

// Frontend names the analysis path that produced a result.
type Frontend string

const (
	FrontendDWARF  Frontend = "dwarf"
	FrontendSymtab Frontend = "symtab"
)

// Config holds analyzer settings.
type Config struct {
	// Demangle C++ and Rust names in both front-ends.
	Demangle bool
	// FallbackSymtab enables the symbol-table front-end when DWARF is
	// missing, malformed or empty.
	FallbackSymtab bool
	// CacheSize is the number of results kept in memory; zero disables caching.
	CacheSize int
	// MaxReferenceDepth bounds DW_AT_specification chasing.
	MaxReferenceDepth int
	// MaxFileSize rejects larger binaries; zero means 4 GiB.
	MaxFileSize int64
}

// DefaultConfig returns the default analyzer configuration.
func DefaultConfig() Config {
	return Config{
		Demangle:          true,
		FallbackSymtab:    true,
		CacheSize:         16,
		MaxReferenceDepth: dwarfsize.DefaultConfig().MaxReferenceDepth,
	}
}

// Result is the outcome of analyzing one binary.
type Result struct {
	Path     string
	Format   objfile.Format
	BuildID  string
	Hash     uint64
	Frontend Frontend
	Items    *ir.Items
	// DWARFErr is the DWARF failure that triggered the symbol-table fallback.
	DWARFErr error
}

// Analyzer runs front-ends over binaries and caches the results.
type Analyzer struct {
	cfg    Config
	cache  *lruCache
	logger zerolog.Logger
}

// New creates an analyzer.
func New(cfg Config, logger zerolog.Logger) *Analyzer {
	a := &Analyzer{
		cfg:    cfg,
		logger: logger.With().Str("component", "analyzer").Logger(),
	}
	if cfg.CacheSize > 0 {
		a.cache = newLRUCache(cfg.CacheSize)
	}
	return a
}

// Analyze reads and analyzes the binary at path.
func (a *Analyzer) Analyze(ctx context.Context, path string) (*Result, error) {
	data, err := safe.ReadFile(path, a.cfg.MaxFileSize)
	if err != nil {
		return nil, fmt.Errorf("failed to read binary: %w", err)
	}
	return a.AnalyzeBytes(ctx, path, data)
}

// AnalyzeBytes analyzes an in-memory binary. name is recorded as the result
// path.
func (a *Analyzer) AnalyzeBytes(ctx context.Context, name string, data []byte) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := objfile.Open(data)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", name, err)
	}

	hash := f.ContentHash()
	if a.cache != nil {
		if cached, ok := a.cache.Get(hash); ok {
			a.logger.Debug().Str("path", name).Msg("Analysis cache hit")
			res := *cached
			res.Path = name
			return &res, nil
		}
	}

	res := &Result{
		Path:    name,
		Format:  f.Format(),
		BuildID: f.BuildID(),
		Hash:    hash,
	}

	if err := a.run(ctx, f, res); err != nil {
		return nil, fmt.Errorf("failed to analyze %s: %w", name, err)
	}

	a.logger.Info().
		Str("path", name).
		Str("format", string(res.Format)).
		Str("frontend", string(res.Frontend)).
		Int("items", res.Items.Len()).
		Uint64("total_size", res.Items.TotalSize()).
		Msg("Analyzed binary")

	if a.cache != nil {
		a.cache.Put(hash, res)
	}
	return res, nil
}

func (a *Analyzer) run(ctx context.Context, f *objfile.File, res *Result) error {
	if f.HasSection(dwarfsize.SectionInfo) {
		items := ir.NewItemsBuilder()
		cfg := dwarfsize.Config{Demangle: a.cfg.Demangle, MaxReferenceDepth: a.cfg.MaxReferenceDepth}
		err := dwarfsize.ParseItems(items, f, cfg, a.logger)
		if err == nil {
			err = dwarfsize.ParseEdges(items, f)
		}

		switch {
		case err != nil && !a.cfg.FallbackSymtab:
			return err
		case err != nil:
			a.logger.Warn().Err(err).Str("path", res.Path).Msg("DWARF analysis failed, falling back to symbol table")
			res.DWARFErr = err
		case items.Len() > 0 || !a.cfg.FallbackSymtab:
			res.Frontend = FrontendDWARF
			res.Items = items.Finish()
			return nil
		default:
			a.logger.Debug().Msg("DWARF describes no subroutines, falling back to symbol table")
		}
	} else if !a.cfg.FallbackSymtab {
		return ErrNoSizeInfo
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	items := ir.NewItemsBuilder()
	err := symtab.ParseItems(items, f, symtab.Config{Demangle: a.cfg.Demangle}, a.logger)
	if errors.Is(err, objfile.ErrNoSymbols) {
		if res.DWARFErr != nil {
			return res.DWARFErr
		}
		return ErrNoSizeInfo
	}
	if err != nil {
		return err
	}

	res.Frontend = FrontendSymtab
	res.Items = items.Finish()
	return nil
}
