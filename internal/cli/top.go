package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	cerrors "github.com/coral-mesh/codesize/internal/errors"
	"github.com/coral-mesh/codesize/internal/report"
)

func newTopCmd(a *app) *cobra.Command {
	var (
		out  outputOptions
		save bool
	)

	cmd := &cobra.Command{
		Use:   "top BINARY|@SNAPSHOT",
		Short: "List the largest functions of a binary",
		Long: `List the largest items of a binary, largest first, with each item's share
of the total. A leading "@" selects a stored snapshot instead of a file.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			formatter, limit, err := a.formatter(cmd, &out)
			if err != nil {
				return err
			}

			src, err := a.load(ctx, args[0])
			if err != nil {
				return err
			}

			if save {
				if src.Result == nil {
					return fmt.Errorf("--save needs a binary, not a snapshot")
				}
				st, err := a.openStore(ctx)
				if err != nil {
					return err
				}
				defer cerrors.DeferClose(a.logger, st, "failed to close store")
				snap, err := st.SaveSnapshot(ctx, src.Result)
				if err != nil {
					return err
				}
				a.logger.Info().Str("id", snap.ID).Msg("Snapshot saved")
			}

			rep := topReport(src, limit)
			output, err := formatter.FormatTop(rep)
			if err != nil {
				return fmt.Errorf("failed to format output: %w", err)
			}
			return writeOutput(cmd.OutOrStdout(), output)
		},
	}

	addOutputFlags(cmd, &out, true)
	cmd.Flags().BoolVar(&save, "save", false, "Also store the analysis as a snapshot")
	return cmd
}

func topReport(src *source, limit int) *report.TopReport {
	rep := report.Top(src.Items, limit)
	rep.Binary = src.Name
	rep.Frontend = src.Frontend
	return rep
}
