package cmd

import (
	"context"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "envdiff",
	Short: "envdiff compares database schemas and events across environments",
	Long: `Extracts table structures or application events from every selected
connection concurrently and reports what differs between them.

Connections are keyed ENV_LOC_VER (e.g. PRO_NYC_V8) and come from the config
file or from <ENV>_<LOC>_<VER>_<FIELD> environment variables.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	// Configuration sources
	rootCmd.PersistentFlags().String(
		"config", "",
		"Config file (default ~/.envdiff/config.yaml)",
	)
	rootCmd.PersistentFlags().String(
		"env-file", "",
		"Env file with connection variables (default ./.env when present)",
	)

	// Connection selection (global - overrides config and environment)
	rootCmd.PersistentFlags().StringSlice(
		"include", nil,
		"Only keep connections whose key contains ALL of these substrings",
	)
	rootCmd.PersistentFlags().StringSlice(
		"exclude", nil,
		"Drop connections whose key contains ANY of these substrings",
	)
	rootCmd.PersistentFlags().String(
		"regex", "",
		"Only keep connections whose whole key matches this expression (not combinable with --include/--exclude)",
	)

	// Extraction
	rootCmd.PersistentFlags().Int(
		"workers", 0,
		"Maximum concurrent extractions (default 4)",
	)
	rootCmd.PersistentFlags().Duration(
		"timeout", 0,
		"Per-connection extraction timeout (default 2m)",
	)
	rootCmd.PersistentFlags().Bool(
		"prompt", false,
		"Prompt for passwords missing from config and the credential store",
	)

	// Logging
	rootCmd.PersistentFlags().String(
		"log-level", "info",
		"Log level: debug, info, warn, error",
	)
	rootCmd.PersistentFlags().String(
		"log-file", "",
		"JSON log file (default <output-dir>/<kind>_comparison.log)",
	)

	// Output configuration (global)
	rootCmd.PersistentFlags().String(
		"output-dir", "",
		"Directory for reports (default docs)",
	)
	rootCmd.PersistentFlags().Bool(
		"csv", false,
		"Also write delimited text reports",
	)
	rootCmd.PersistentFlags().Bool(
		"plain", false,
		"Use plain ASCII output instead of Unicode box-drawing characters.",
	)
	rootCmd.PersistentFlags().Int(
		"max-width", 48,
		"Truncate console cells to this many characters (0 disables)",
	)
	rootCmd.PersistentFlags().BoolP(
		"verbose", "v", false,
		"List identical entities in the console summary too",
	)
}
