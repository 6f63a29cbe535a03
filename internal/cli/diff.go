package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/coral-mesh/codesize/internal/report"
)

func newDiffCmd(a *app) *cobra.Command {
	var out outputOptions

	cmd := &cobra.Command{
		Use:   "diff OLD NEW",
		Short: "Compare the function sizes of two binaries",
		Long: `Compare two binaries by item name and list every name whose size changed,
largest change first. Either side may be a stored snapshot ("@ID").`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			formatter, limit, err := a.formatter(cmd, &out)
			if err != nil {
				return err
			}

			oldSrc, err := a.load(ctx, args[0])
			if err != nil {
				return err
			}
			newSrc, err := a.load(ctx, args[1])
			if err != nil {
				return err
			}
			if oldSrc.Frontend != newSrc.Frontend {
				a.logger.Warn().
					Str("old", oldSrc.Frontend).
					Str("new", newSrc.Frontend).
					Msg("Comparing sizes from different front-ends")
			}

			rep := report.Diff(oldSrc.Items, newSrc.Items, limit)
			rep.OldBinary = oldSrc.Name
			rep.NewBinary = newSrc.Name

			output, err := formatter.FormatDiff(rep)
			if err != nil {
				return fmt.Errorf("failed to format output: %w", err)
			}
			return writeOutput(cmd.OutOrStdout(), output)
		},
	}

	addOutputFlags(cmd, &out, true)
	return cmd
}
