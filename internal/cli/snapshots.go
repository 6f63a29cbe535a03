package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	cerrors "github.com/coral-mesh/codesize/internal/errors"
	"github.com/coral-mesh/codesize/internal/store"
)

func newSnapshotsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "snapshots",
		Aliases: []string{"snapshot", "snap"},
		Short:   "Manage stored analyses",
		Long: `Snapshots keep the analysis of a binary in a local DuckDB file so later
builds can be compared against it with "codesize diff @ID NEW".`,
	}

	cmd.AddCommand(newSnapshotsSaveCmd(a))
	cmd.AddCommand(newSnapshotsListCmd(a))
	cmd.AddCommand(newSnapshotsShowCmd(a))
	cmd.AddCommand(newSnapshotsDeleteCmd(a))
	return cmd
}

func newSnapshotsSaveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "save BINARY...",
		Short: "Analyze binaries and store the results",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			st, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer cerrors.DeferClose(a.logger, st, "failed to close store")

			for _, path := range args {
				res, err := a.analyzer.Analyze(ctx, path)
				if err != nil {
					return err
				}
				snap, err := st.SaveSnapshot(ctx, res)
				if err != nil {
					return err
				}
				cmd.Printf("%s\t%s\n", snap.ID, snap.Path)
			}
			return nil
		},
	}
}

func newSnapshotsListCmd(a *app) *cobra.Command {
	var (
		out    outputOptions
		filter store.ListFilter
		since  string
	)

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List stored snapshots, newest first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			formatter, _, err := a.formatter(cmd, &out)
			if err != nil {
				return err
			}
			if since != "" {
				if filter.Since, err = parseSince(since, time.Now()); err != nil {
					return err
				}
			}
			if filter.Limit < 0 || filter.Offset < 0 {
				return fmt.Errorf("--limit and --offset must not be negative")
			}

			st, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer cerrors.DeferClose(a.logger, st, "failed to close store")

			snaps, err := st.ListSnapshots(ctx, filter)
			if err != nil {
				return err
			}

			output, err := formatter.FormatSnapshots(snaps)
			if err != nil {
				return fmt.Errorf("failed to format output: %w", err)
			}
			return writeOutput(cmd.OutOrStdout(), output)
		},
	}

	addOutputFlags(cmd, &out, false)
	cmd.Flags().StringVar(&filter.BuildID, "build-id", "", "Filter by build id")
	cmd.Flags().StringSliceVar(&filter.Frontends, "frontend", nil, "Filter by front-end (dwarf, symtab), repeatable")
	cmd.Flags().StringVar(&filter.PathContains, "path", "", "Filter by binary path substring")
	cmd.Flags().StringVar(&since, "since", "", "Only snapshots newer than a duration (24h) or a date (2006-01-02, RFC 3339)")
	cmd.Flags().IntVarP(&filter.Limit, "limit", "n", 0, "Maximum number of snapshots")
	cmd.Flags().IntVar(&filter.Offset, "offset", 0, "Skip the first snapshots")
	return cmd
}

// parseSince accepts a duration back from now or an absolute date.
func parseSince(s string, now time.Time) (time.Time, error) {
	if d, err := time.ParseDuration(s); err == nil {
		if d < 0 {
			return time.Time{}, fmt.Errorf("--since duration must not be negative")
		}
		return now.Add(-d), nil
	}
	for _, layout := range []string{time.RFC3339, time.DateTime, time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid --since %q (want a duration such as 24h or a date such as 2006-01-02)", s)
}

func newSnapshotsShowCmd(a *app) *cobra.Command {
	var out outputOptions

	cmd := &cobra.Command{
		Use:   "show ID",
		Short: "Show a stored snapshot with its size per item kind",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			formatter, _, err := a.formatter(cmd, &out)
			if err != nil {
				return err
			}

			st, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer cerrors.DeferClose(a.logger, st, "failed to close store")

			snap, kinds, err := st.SummarizeKinds(ctx, args[0])
			if err != nil {
				return err
			}

			output, err := formatter.FormatKinds(snap, kinds)
			if err != nil {
				return fmt.Errorf("failed to format output: %w", err)
			}
			return writeOutput(cmd.OutOrStdout(), output)
		},
	}

	addOutputFlags(cmd, &out, false)
	return cmd
}

func newSnapshotsDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "delete ID...",
		Aliases: []string{"rm"},
		Short:   "Delete stored snapshots",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			st, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer cerrors.DeferClose(a.logger, st, "failed to close store")

			for _, id := range args {
				if err := st.DeleteSnapshot(ctx, id); err != nil {
					return err
				}
				cmd.Printf("Deleted %s\n", id)
			}
			return nil
		},
	}
}
