package cmd

import (
	"github.com/spf13/cobra"

	"github.com/kamusis/envdiff/internal/diff"
	"github.com/kamusis/envdiff/internal/report"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Compare table structures across the selected connections",
	Long: `Reads columns, indexes, constraints and triggers of the owner schema on
every selected connection and reports tables and attributes that differ.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := prepare(cmd, "schema")
		if err != nil {
			return err
		}
		defer func() { _ = r.logger.Sync() }()

		ignorePosition, _ := cmd.Flags().GetBool("ignore-column-order")
		results := r.collector().Schemas(cmd.Context(), r.selected)
		m := diff.Schemas(results, diff.SchemaOptions{IgnoreColumnPosition: ignorePosition})
		return r.write(cmd, report.Assemble(m, r.cfg.Connections), r.cfg.Reports.Schema, "schema")
	},
}

func init() {
	rootCmd.AddCommand(schemaCmd)
	schemaCmd.Flags().Bool("ignore-column-order", false, "Do not report columns that only differ in position")
}
