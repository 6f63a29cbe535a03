package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	cerrors "github.com/coral-mesh/codesize/internal/errors"
	"github.com/coral-mesh/codesize/internal/report"
)

func newPprofCmd(a *app) *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "pprof BINARY|@SNAPSHOT",
		Short: "Export sizes as a pprof profile",
		Long: `Write a gzip-compressed pprof profile with one "size/bytes" sample per item,
for use with "go tool pprof". The default output is <binary>.size.pb.gz in
the current directory.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := a.load(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if outPath == "" {
				outPath = filepath.Base(args[0]) + ".size.pb.gz"
				if id, ok := strings.CutPrefix(args[0], snapshotPrefix); ok {
					outPath = "snapshot-" + id + ".size.pb.gz"
				}
			}

			// #nosec G304 -- the user chose the output path.
			f, err := os.Create(outPath)
			if err != nil {
				return fmt.Errorf("failed to create profile: %w", err)
			}
			defer cerrors.DeferClose(a.logger, f, "failed to close profile")

			if err := report.WriteProfile(f, src.Items, src.Name, src.BuildID); err != nil {
				return err
			}

			cmd.Printf("Wrote %d items (%d bytes) to %s\n", src.Items.Len(), src.Items.TotalSize(), outPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&outPath, "out", "", "Output file")
	return cmd
}
