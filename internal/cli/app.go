package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/coral-mesh/codesize/internal/analyzer"
	"github.com/coral-mesh/codesize/internal/config"
	cerrors "github.com/coral-mesh/codesize/internal/errors"
	"github.com/coral-mesh/codesize/internal/logging"
	"github.com/coral-mesh/codesize/internal/report"
	"github.com/coral-mesh/codesize/internal/store"
	"github.com/coral-mesh/codesize/pkg/ir"
)

// snapshotPrefix marks a command argument as a stored snapshot ID rather
// than a file path.
const snapshotPrefix = "@"

// app holds what every command needs once flags and config are resolved.
type app struct {
	cfg      *config.Config
	logger   zerolog.Logger
	analyzer *analyzer.Analyzer
}

func (a *app) init(cmd *cobra.Command, opts *globalOptions) error {
	loader := config.NewLoader()

	var (
		cfg *config.Config
		err error
	)
	if opts.configPath != "" {
		cfg, err = loader.LoadFile(opts.configPath)
	} else {
		cfg, err = loader.Load()
	}
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if changed(flags, "log-level") {
		cfg.Log.Level = opts.logLevel
	}
	if changed(flags, "log-pretty") {
		cfg.Log.Pretty = opts.logPretty
	}
	if changed(flags, "demangle") {
		cfg.Analysis.Demangle = opts.demangle
	}
	if changed(flags, "fallback-symtab") {
		cfg.Analysis.FallbackSymtab = opts.fallback
	}
	if changed(flags, "store") {
		cfg.Store.Path = opts.storePath
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	a.cfg = cfg
	a.logger = logging.New(logging.Config{
		Level:  cfg.Log.Level,
		Pretty: cfg.Log.Pretty,
		Output: cmd.ErrOrStderr(),
	})
	a.analyzer = analyzer.New(analyzer.Config{
		Demangle:          cfg.Analysis.Demangle,
		FallbackSymtab:    cfg.Analysis.FallbackSymtab,
		CacheSize:         cfg.Analysis.CacheSize,
		MaxReferenceDepth: cfg.Analysis.MaxReferenceDepth,
	}, a.logger)

	a.logger.Debug().
		Str("store", cfg.Store.Path).
		Bool("demangle", cfg.Analysis.Demangle).
		Bool("fallback_symtab", cfg.Analysis.FallbackSymtab).
		Msg("Configuration loaded")
	return nil
}

func (a *app) openStore(ctx context.Context) (*store.Store, error) {
	return store.Open(ctx, a.cfg.Store.Path, a.logger)
}

// formatter resolves the output format and row limit, preferring flags
// over config.
func (a *app) formatter(cmd *cobra.Command, opts *outputOptions) (report.Formatter, int, error) {
	name := a.cfg.Output.Format
	if changed(cmd.Flags(), "format") {
		name = opts.format
	}
	format, err := report.ParseOutputFormat(name)
	if err != nil {
		return nil, 0, err
	}

	limit := a.cfg.Output.Limit
	if changed(cmd.Flags(), "limit") {
		if opts.limit < 0 {
			return nil, 0, fmt.Errorf("--limit must not be negative")
		}
		limit = opts.limit
	}
	return report.NewFormatter(format), limit, nil
}

// source is a set of items together with where they came from.
type source struct {
	Name     string
	BuildID  string
	Frontend string
	Items    *ir.Items
	Result   *analyzer.Result
}

// load analyzes the binary at ref, or loads the stored snapshot when ref
// starts with "@".
func (a *app) load(ctx context.Context, ref string) (*source, error) {
	if id, ok := strings.CutPrefix(ref, snapshotPrefix); ok {
		st, err := a.openStore(ctx)
		if err != nil {
			return nil, err
		}
		defer cerrors.DeferClose(a.logger, st, "failed to close store")

		snap, items, err := st.LoadItems(ctx, id)
		if err != nil {
			return nil, err
		}
		return &source{
			Name:     fmt.Sprintf("%s (snapshot %s)", snap.Path, snap.ID),
			BuildID:  snap.BuildID,
			Frontend: snap.Frontend,
			Items:    items,
		}, nil
	}

	res, err := a.analyzer.Analyze(ctx, ref)
	if err != nil {
		return nil, err
	}
	return &source{
		Name:     res.Path,
		BuildID:  res.BuildID,
		Frontend: string(res.Frontend),
		Items:    res.Items,
		Result:   res,
	}, nil
}

func writeOutput(w io.Writer, output string) error {
	_, err := fmt.Fprint(w, output)
	return err
}

