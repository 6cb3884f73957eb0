package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/warp/invoice-ledger/ledger"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile <invoice-id>",
	Short: "Print an invoice's reconciliation",
	Long: `Reconciles one invoice from its postings and returns and prints the
derived amounts followed by every posting that references it.`,
	Example: `  ledger reconcile 3
  ledger reconcile 3 --db ./data/ledger.db`,
	Args: cobra.ExactArgs(1),
	RunE: runReconcile,
}

func init() {
	rootCmd.AddCommand(reconcileCmd)
}

func runReconcile(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return fmt.Errorf("invalid invoice id %q", args[0])
	}

	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close()

	rec, err := a.handler.Engine.Reconcile(cmd.Context(), ledger.InvoiceID(id))
	if err != nil {
		return err
	}

	inv := rec.Invoice
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s #%d\t%s\tcounterparty #%d\n", inv.Direction.Title(), inv.ID, inv.Date.Format(ledger.DateLayout), inv.CounterpartyID)
	fmt.Fprintf(w, "total\t%s\n", inv.TotalAmount)
	fmt.Fprintf(w, "discount\t%s\n", rec.Discount)
	fmt.Fprintf(w, "paid\t%s\n", rec.PaidAmount)
	fmt.Fprintf(w, "returned\t%s\n", rec.ReturnAmount)
	fmt.Fprintf(w, "refunded\t%s\n", rec.ReturnSettlement)
	fmt.Fprintf(w, "due\t%s\t%s\n", rec.DueAmount, rec.Status)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "DATE\tDEBIT\tCREDIT\tAMOUNT\tTYPE\tPARTICULARS")
	for _, p := range rec.Postings {
		fmt.Fprintf(w, "%s\t%d\t%d\t%s\t%s\t%s\n",
			p.Date.Format(ledger.DateLayout), p.DebitAccountID, p.CreditAccountID, p.Amount, p.Type, p.Particulars)
	}
	return w.Flush()
}
