// Package report renders invoice listings as spreadsheets.
package report

import (
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/warp/invoice-ledger/invoice"
	"github.com/warp/invoice-ledger/ledger"
)

// ContentType is the MIME type of the files produced here.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var headings = []string{
	"Invoice", "Date", "Counterparty", "Memo", "Total", "Discount", "Paid", "Returned", "Refunded", "Due", "Status",
}

// WritePage writes one row per invoice of page followed by a summary row.
// names maps counterparty ids to display names; unknown ids print as "#id".
func WritePage(w io.Writer, dir invoice.Direction, page *invoice.Page, names map[int64]string) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := dir.Title() + "s"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return err
	}

	if err := setRow(f, sheet, 1, toAny(headings)); err != nil {
		return err
	}
	for i, it := range page.Items {
		name, ok := names[it.Invoice.CounterpartyID]
		if !ok {
			name = fmt.Sprintf("#%d", it.Invoice.CounterpartyID)
		}
		row := []any{
			int64(it.Invoice.ID),
			it.Invoice.Date.Format(ledger.DateLayout),
			name,
			it.Invoice.MemoNo,
			number(it.Invoice.TotalAmount),
			number(it.Discount),
			number(it.PaidAmount),
			number(it.ReturnAmount),
			number(it.ReturnSettlement),
			number(it.DueAmount),
			string(it.Status),
		}
		if err := setRow(f, sheet, i+2, row); err != nil {
			return err
		}
	}

	s := page.Summary
	summary := []any{
		"Total", "", fmt.Sprintf("%d invoices", s.Count), "",
		number(s.TotalAmount), number(s.Discount), number(s.PaidAmount), "", "", number(s.DueAmount), "",
	}
	if err := setRow(f, sheet, len(page.Items)+2, summary); err != nil {
		return err
	}

	return f.Write(w)
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}

func number(d decimal.Decimal) float64 {
	return d.InexactFloat64()
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
