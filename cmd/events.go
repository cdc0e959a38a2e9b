package cmd

import (
	"github.com/spf13/cobra"

	"github.com/kamusis/envdiff/internal/diff"
	"github.com/kamusis/envdiff/internal/report"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Compare application events and their subroutine calls",
	Long: `Reads events, test_events and database_events on every selected
connection, extracts the subroutine calls of each formula and reports events
whose trigger points or called subroutines differ.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := prepare(cmd, "events")
		if err != nil {
			return err
		}
		defer func() { _ = r.logger.Sync() }()

		formula, _ := cmd.Flags().GetBool("compare-formula")
		order, _ := cmd.Flags().GetBool("compare-order")
		results := r.collector().Events(cmd.Context(), r.selected)
		m := diff.Events(results, diff.EventOptions{CompareFormulaText: formula, CompareCallOrder: order})
		return r.write(cmd, report.Assemble(m, r.cfg.Connections), r.cfg.Reports.Events, "events")
	},
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.Flags().Bool("compare-formula", false, "Also report trigger points whose formula text differs")
	eventsCmd.Flags().Bool("compare-order", false, "Also report events whose active calls are ordered differently")
}
