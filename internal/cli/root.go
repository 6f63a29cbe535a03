// Package cli implements the codesize command line.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/coral-mesh/codesize/pkg/version"
)

// NewRootCmd builds the codesize command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "codesize",
		Short: "Attribute binary size to the functions that produced it",
		Long: `codesize reports which functions account for the code in a compiled binary.

Sizes come from DWARF debug info when present: every function is charged for
its own address ranges, and code inlined into a caller is charged to the
inlined function instead of the caller. Stripped or DWARF-less binaries fall
back to the symbol table.

Examples:
  # Largest 20 functions
  codesize top ./bin/server

  # What grew between two builds
  codesize diff ./old/server ./new/server

  # Keep a snapshot and compare against it later
  codesize snapshots save ./bin/server
  codesize diff @1f2e3d ./bin/server

  # Explore in pprof
  codesize pprof ./bin/server --out size.pb.gz && go tool pprof -top size.pb.gz`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd, opts)
		},
	}

	cmd.Version = version.Version
	cmd.SetVersionTemplate(version.String() + "\n")
	addGlobalFlags(cmd, opts)

	cmd.AddCommand(newTopCmd(a))
	cmd.AddCommand(newDiffCmd(a))
	cmd.AddCommand(newPprofCmd(a))
	cmd.AddCommand(newSnapshotsCmd(a))
	cmd.AddCommand(newConfigCmd(a, opts))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
