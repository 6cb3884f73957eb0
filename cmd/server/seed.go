package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/warp/invoice-ledger/api"
)

var seedCmd = &cobra.Command{
	Use:   "seed [scenario]",
	Short: "Reset the database and load a demo scenario",
	Long: `Drops every table, recreates the schema and records the scenario's
invoices, payments and returns. Without an argument, lists the scenarios.`,
	Example: `  ledger seed
  ledger seed trading-month --db ./data/demo.db`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSeed,
}

func init() {
	rootCmd.AddCommand(seedCmd)
}

func runSeed(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		for _, s := range api.Scenarios() {
			fmt.Fprintf(w, "%s\t%s\n", s.ID, s.Description)
		}
		return w.Flush()
	}

	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.handler.Load(cmd.Context(), args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "loaded %s into %s\n", args[0], cfg.DBPath)
	return nil
}
