package cli

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/coral-mesh/codesize/internal/report"
)

// globalOptions are the persistent flags. Flags that were not set leave
// the config file and environment values in place.
type globalOptions struct {
	configPath string
	logLevel   string
	logPretty  bool
	demangle   bool
	fallback   bool
	storePath  string
}

func addGlobalFlags(cmd *cobra.Command, opts *globalOptions) {
	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "Config file (default $CODESIZE_CONFIG/config.yaml or ~/.codesize/config.yaml)")
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level (trace, debug, info, warn, error)")
	flags.BoolVar(&opts.logPretty, "log-pretty", false, "Human-readable logs on stderr")
	flags.BoolVar(&opts.demangle, "demangle", true, "Demangle C++ and Rust names")
	flags.BoolVar(&opts.fallback, "fallback-symtab", true, "Use the symbol table when DWARF is missing or unusable")
	flags.StringVar(&opts.storePath, "store", "", "Snapshot database file")
}

// outputOptions are the per-command rendering flags.
type outputOptions struct {
	format string
	limit  int
}

// addOutputFlags adds --format/-o and, when withLimit is set, --limit/-n.
func addOutputFlags(cmd *cobra.Command, opts *outputOptions, withLimit bool) {
	formats := []string{string(report.FormatText), string(report.FormatJSON), string(report.FormatCSV)}
	cmd.Flags().StringVarP(&opts.format, "format", "o", "", "Output format (text, json, csv)")
	_ = cmd.RegisterFlagCompletionFunc("format", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return formats, cobra.ShellCompDirectiveNoFileComp
	})
	if withLimit {
		cmd.Flags().IntVarP(&opts.limit, "limit", "n", 0, "Number of rows to show, 0 for all (default from config)")
	}
}

func changed(flags *pflag.FlagSet, name string) bool {
	f := flags.Lookup(name)
	return f != nil && f.Changed
}
