package cmd

import (
	"context"
	"fmt"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kamusis/envdiff/internal/config"
	"github.com/kamusis/envdiff/internal/dbclient"
	"github.com/kamusis/envdiff/internal/registry"
	"github.com/kamusis/envdiff/internal/report"
)

var connectionsCmd = &cobra.Command{
	Use:     "connections",
	Short:   "List configured connections and whether the filter selects them",
	Aliases: []string{"ls"},
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(cfg.Connections) == 0 {
			fmt.Fprintln(out, "No connections configured. Add them to the config file or define <ENV>_<LOC>_<VER>_HOST variables.")
			return nil
		}

		spec := registry.FromConfig(cfg.Filter)
		selected, _, err := registry.Partition(cfg.Connections, spec)
		if err != nil {
			return err
		}
		isSelected := map[string]bool{}
		for _, c := range selected {
			isSelected[c.ID()] = true
		}

		check, _ := cmd.Flags().GetBool("check")
		var client *dbclient.Client
		if check {
			client = dbclient.New(cfg.Limits, zap.NewNop())
		}

		maxWidth, _ := cmd.Flags().GetInt("max-width")
		table := tablewriter.NewWriter(out)
		// Keep headers exactly as given.
		table.Options(tablewriter.WithConfig(tablewriter.Config{
			Header: tw.CellConfig{
				Formatting: tw.CellFormatting{AutoFormat: tw.Off},
			},
		}))
		if usePlainTables(cmd, out) {
			table.Options(tablewriter.WithSymbols(&tw.SymbolASCII{}))
		}

		headers := []any{"CONNECTION", "NAME", "DRIVER", "DSN", "SELECTED"}
		if check {
			headers = append(headers, "STATUS")
		}
		table.Header(headers...)

		for _, c := range cfg.Connections {
			sel := "no"
			if isSelected[c.ID()] {
				sel = "yes"
			}
			values := []any{
				c.ID(),
				report.TruncateWithEllipsis(c.DisplayName(), maxWidth),
				c.Driver,
				report.TruncateWithEllipsis(c.MaskedDSN(), maxWidth),
				sel,
			}
			if check {
				values = append(values, report.TruncateWithEllipsis(ping(cmd.Context(), client, cfg, c), maxWidth))
			}
			if err := table.Append(values...); err != nil {
				return err
			}
		}
		if err := table.Render(); err != nil {
			return err
		}
		fmt.Fprintf(out, "%d configured, %d selected (filter %s)\n", len(cfg.Connections), len(selected), spec)
		return nil
	},
}

func ping(ctx context.Context, client *dbclient.Client, cfg *config.Config, c config.Connection) string {
	ctx, cancel := context.WithTimeout(ctx, cfg.ExtractTimeout)
	defer cancel()
	if err := client.Ping(ctx, c); err != nil {
		return err.Error()
	}
	return "ok"
}

func init() {
	rootCmd.AddCommand(connectionsCmd)
	connectionsCmd.Flags().Bool("check", false, "Open a session on every connection and report whether it answers")
}
