package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/warp/invoice-ledger/invoice"
	"github.com/warp/invoice-ledger/ledger"
	"github.com/warp/invoice-ledger/report"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Print one page of invoices with its summary",
	Long: `Lists invoices of one direction, newest first, reconciled in bulk.
The summary line covers the printed page only; the range line covers
every invoice between --start and --end.`,
	Example: `  ledger list --direction sale --start 2024-03-01 --end 2024-03-31
  ledger list --direction purchase --page 2 --limit 20
  ledger list --direction purchase --xlsx purchases.xlsx`,
	RunE: runList,
}

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().String("direction", "purchase", "purchase | sale")
	listCmd.Flags().String("start", "0001-01-01", "First day (YYYY-MM-DD)")
	listCmd.Flags().String("end", "9999-12-31", "Last day (YYYY-MM-DD)")
	listCmd.Flags().Int("page", 1, "Page number (1-based)")
	listCmd.Flags().Int("limit", invoice.DefaultPageSize, "Invoices per page")
	listCmd.Flags().String("xlsx", "", "Write the page to this .xlsx file instead of stdout")
}

func runList(cmd *cobra.Command, args []string) error {
	dirFlag, _ := cmd.Flags().GetString("direction")
	start, _ := cmd.Flags().GetString("start")
	end, _ := cmd.Flags().GetString("end")
	page, _ := cmd.Flags().GetInt("page")
	limit, _ := cmd.Flags().GetInt("limit")
	xlsx, _ := cmd.Flags().GetString("xlsx")

	dir, err := invoice.ParseDirection(dirFlag)
	if err != nil {
		return err
	}
	rng, err := ledger.NewDateRange(start, end)
	if err != nil {
		return err
	}
	if page < 1 || limit < 1 {
		return fmt.Errorf("page and limit must be positive")
	}

	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close()

	p, err := a.handler.Aggregator.List(cmd.Context(), invoice.Query{
		Direction: dir,
		Range:     rng,
		Offset:    (page - 1) * limit,
		Limit:     limit,
	})
	if err != nil {
		return err
	}

	if xlsx != "" {
		return writeXLSX(cmd.Context(), xlsx, a, dir, p)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "ID\tDATE\tPARTY\tTOTAL\tDISCOUNT\tPAID\tRETURNED\tDUE\tSTATUS\t")
	for _, it := range p.Items {
		fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%s\t%s\t%s\t%s\t%s\t\n",
			it.Invoice.ID, it.Invoice.Date.Format(ledger.DateLayout), it.Invoice.CounterpartyID,
			it.Invoice.TotalAmount, it.Discount, it.PaidAmount, it.ReturnAmount, it.DueAmount, it.Status)
	}
	s := p.Summary
	fmt.Fprintf(w, "page\t%d invoices\t\t%s\t%s\t%s\t\t%s\t\t\n", s.Count, s.TotalAmount, s.Discount, s.PaidAmount, s.DueAmount)
	fmt.Fprintf(w, "range\t%d invoices\t\t%s\t%s\t\t\t\t\t\n", p.Range.Count, p.Range.TotalAmount, p.Range.Discount)
	return w.Flush()
}

func writeXLSX(ctx context.Context, path string, a *app, dir invoice.Direction, p *invoice.Page) error {
	counterparties, err := a.store.ListCounterparties(ctx, dir.CounterpartyKind())
	if err != nil {
		return err
	}
	names := make(map[int64]string, len(counterparties))
	for _, c := range counterparties {
		names[c.ID] = c.Name
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := report.WritePage(f, dir, p, names); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
