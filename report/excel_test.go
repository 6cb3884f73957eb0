package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/warp/invoice-ledger/invoice"
)

func TestWritePage(t *testing.T) {
	// GIVEN: A page with two reconciled purchases
	d := decimal.RequireFromString
	items := []invoice.Reconciliation{
		{
			Invoice:    invoice.Invoice{ID: 2, CounterpartyID: 1, Date: time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC), TotalAmount: d("40")},
			Discount:   d("5"),
			PaidAmount: d("20"),
			DueAmount:  d("15"),
			Status:     invoice.StatusUnpaid,
		},
		{
			Invoice:    invoice.Invoice{ID: 1, CounterpartyID: 7, Date: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), TotalAmount: d("10.5")},
			Discount:   d("0"),
			PaidAmount: d("10.5"),
			DueAmount:  d("0"),
			Status:     invoice.StatusPaid,
		},
	}
	page := &invoice.Page{Items: items, Summary: invoice.Summarize(items)}

	// WHEN: Writing it
	var buf bytes.Buffer
	require.NoError(t, WritePage(&buf, invoice.Purchase, page, map[int64]string{1: "Acme Supplies"}))

	// THEN: Header, one row per invoice and a summary row
	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Purchase Invoices")
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "Invoice", rows[0][0])
	assert.Equal(t, []string{"2", "2024-03-02", "Acme Supplies"}, rows[1][:3])
	assert.Equal(t, "#7", rows[2][2])
	assert.Equal(t, "PAID", rows[2][10])
	assert.Equal(t, "Total", rows[3][0])
	assert.Equal(t, "50.5", rows[3][4])
	assert.Equal(t, "15", rows[3][9])
}
