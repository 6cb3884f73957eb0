/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. Field names follow
  the camelCase convention existing clients of the invoice endpoints use
  (paidAmount, dueAmount, totalPaidAmount, ...).

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

WIRE FORMATS:
  Money:  JSON numbers (Amount); quoted strings are accepted on input
  Dates:  "YYYY-MM-DD"

VALIDATION:
  Validation is done by the invoice package on the domain drafts the
  handlers build from these types. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/invoice-ledger/invoice"
	"github.com/warp/invoice-ledger/ledger"
)

// Amount is money on the wire: a bare JSON number on output, a number or
// a quoted string on input. It leaves decimal.MarshalJSONWithoutQuotes
// alone, so other encoders of decimals keep their own format.
type Amount struct {
	decimal.Decimal
}

func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.String()), nil
}

// =============================================================================
// INVOICES
// =============================================================================

// LineDTO is one invoice or return line.
type LineDTO struct {
	ProductID int64  `json:"productId"`
	Quantity  int64  `json:"quantity"`
	UnitPrice Amount `json:"unitPrice"`
}

// CreateInvoiceRequest is the body of POST /api/{purchase,sale}-invoices.
type CreateInvoiceRequest struct {
	Date           string    `json:"date"`
	CounterpartyID int64     `json:"counterpartyId"`
	Discount       Amount    `json:"discount"`
	PaidAmount     Amount    `json:"paidAmount"`
	Note           string    `json:"note"`
	MemoNo         string    `json:"memoNo"`
	Lines          []LineDTO `json:"lines"`
}

type InvoiceDTO struct {
	ID             int64     `json:"id"`
	Direction      string    `json:"direction"`
	Date           string    `json:"date"`
	CounterpartyID int64     `json:"counterpartyId"`
	Note           string    `json:"note,omitempty"`
	MemoNo         string    `json:"memoNo,omitempty"`
	TotalAmount    Amount    `json:"totalAmount"`
	Discount       Amount    `json:"discount"`
	Lines          []LineDTO `json:"lines,omitempty"`
	CreatedAt      string    `json:"createdAt,omitempty"`
}

// ReconciliationDTO is one invoice with its derived amounts. Transactions
// and returns are only filled on the detail endpoint.
type ReconciliationDTO struct {
	Invoice          InvoiceDTO   `json:"invoice"`
	Status           string       `json:"status"`
	TotalPaidAmount  Amount       `json:"totalPaidAmount"`
	DiscountEarned   Amount       `json:"discountEarned"`
	Discount         Amount       `json:"discount"`
	ReturnAmount     Amount       `json:"totalReturnAmount"`
	ReturnSettlement Amount       `json:"paidAmountReturn"`
	DueAmount        Amount       `json:"dueAmount"`
	Returns          []ReturnDTO  `json:"returns,omitempty"`
	Transactions     []PostingDTO `json:"transactions,omitempty"`
}

type PostingDTO struct {
	ID          string `json:"id"`
	Date        string `json:"date"`
	DebitID     int64  `json:"debitId"`
	CreditID    int64  `json:"creditId"`
	Amount      Amount `json:"amount"`
	Particulars string `json:"particulars"`
	Type        string `json:"type"`
	RelatedID   int64  `json:"relatedId"`
}

// =============================================================================
// LISTING
// =============================================================================

type SummaryDTO struct {
	Count       int    `json:"count"`
	TotalAmount Amount `json:"totalAmount"`
	Discount    Amount `json:"discount"`
	PaidAmount  Amount `json:"paidAmount"`
	DueAmount   Amount `json:"dueAmount"`
}

type AggregateDTO struct {
	Count       int    `json:"count"`
	TotalAmount Amount `json:"totalAmount"`
	Discount    Amount `json:"discount"`
}

// ListInvoicesResponse is one page. Summary covers Items only;
// Aggregations covers every invoice in the date range.
type ListInvoicesResponse struct {
	Items        []ReconciliationDTO `json:"items"`
	Summary      SummaryDTO          `json:"summary"`
	Aggregations AggregateDTO        `json:"aggregations"`
	Page         int                 `json:"page"`
	Count        int                 `json:"count"`
}

// TotalsDTO answers ?query=info.
type TotalsDTO struct {
	Count            int    `json:"count"`
	TotalAmount      Amount `json:"totalAmount"`
	Discount         Amount `json:"discount"`
	PaidAmount       Amount `json:"paidAmount"`
	DiscountEarned   Amount `json:"discountEarned"`
	ReturnAmount     Amount `json:"returnAmount"`
	ReturnSettlement Amount `json:"paidAmountReturn"`
	DueAmount        Amount `json:"dueAmount"`
}

// =============================================================================
// PAYMENTS AND RETURNS
// =============================================================================

type PaymentRequest struct {
	Date     string `json:"date"`
	Amount   Amount `json:"amount"`
	Discount Amount `json:"discount"`
	Account  string `json:"account"` // cash | bank
	Note     string `json:"note"`
}

type ReturnRequest struct {
	Date              string    `json:"date"`
	Note              string    `json:"note"`
	Lines             []LineDTO `json:"lines"`
	Settlement        Amount    `json:"settlement"`
	SettlementAccount string    `json:"settlementAccount"` // cash | bank
}

type ReturnDTO struct {
	ID          int64     `json:"id"`
	InvoiceID   int64     `json:"invoiceId"`
	Date        string    `json:"date"`
	Note        string    `json:"note,omitempty"`
	TotalAmount Amount    `json:"totalAmount"`
	Lines       []LineDTO `json:"lines"`
}

// =============================================================================
// CATALOG
// =============================================================================

type ProductDTO struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	Quantity      int64  `json:"quantity"`
	PurchasePrice Amount `json:"purchasePrice"`
	SalePrice     Amount `json:"salePrice"`
}

type CreateProductRequest struct {
	Name          string `json:"name"`
	PurchasePrice Amount `json:"purchasePrice"`
	SalePrice     Amount `json:"salePrice"`
}

type CounterpartyDTO struct {
	ID   int64  `json:"id"`
	Kind string `json:"kind"`
	Name string `json:"name"`
}

type CreateCounterpartyRequest struct {
	Kind string `json:"kind"` // supplier | customer
	Name string `json:"name"`
}

// =============================================================================
// SCENARIOS AND ERRORS
// =============================================================================

type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenarioId"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Kind    string            `json:"kind,omitempty"`
	Details string            `json:"details,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func formatDate(t time.Time) string {
	return t.Format(ledger.DateLayout)
}

func toLineDTOs(lines []invoice.Line) []LineDTO {
	out := make([]LineDTO, len(lines))
	for i, l := range lines {
		out[i] = LineDTO{ProductID: l.ProductID, Quantity: l.Quantity, UnitPrice: Amount{l.UnitPrice}}
	}
	return out
}

func toDraftLines(lines []LineDTO) []invoice.DraftLine {
	out := make([]invoice.DraftLine, len(lines))
	for i, l := range lines {
		out[i] = invoice.DraftLine{ProductID: l.ProductID, Quantity: l.Quantity, UnitPrice: l.UnitPrice.Decimal}
	}
	return out
}

func toInvoiceDTO(inv invoice.Invoice) InvoiceDTO {
	dto := InvoiceDTO{
		ID:             int64(inv.ID),
		Direction:      string(inv.Direction),
		Date:           formatDate(inv.Date),
		CounterpartyID: inv.CounterpartyID,
		Note:           inv.Note,
		MemoNo:         inv.MemoNo,
		TotalAmount:    Amount{inv.TotalAmount},
		Discount:       Amount{inv.Discount},
	}
	if len(inv.Lines) > 0 {
		dto.Lines = toLineDTOs(inv.Lines)
	}
	if !inv.CreatedAt.IsZero() {
		dto.CreatedAt = inv.CreatedAt.Format(time.RFC3339)
	}
	return dto
}

func toReturnDTO(r invoice.ReturnInvoice) ReturnDTO {
	return ReturnDTO{
		ID:          r.ID,
		InvoiceID:   int64(r.InvoiceID),
		Date:        formatDate(r.Date),
		Note:        r.Note,
		TotalAmount: Amount{r.TotalAmount},
		Lines:       toLineDTOs(r.Lines),
	}
}

func toPostingDTO(p ledger.Posting) PostingDTO {
	return PostingDTO{
		ID:          string(p.ID),
		Date:        formatDate(p.Date),
		DebitID:     int64(p.DebitAccountID),
		CreditID:    int64(p.CreditAccountID),
		Amount:      Amount{p.Amount},
		Particulars: p.Particulars,
		Type:        string(p.Type),
		RelatedID:   int64(p.RelatedInvoiceID),
	}
}

// toReconciliationDTO converts rec; detail adds transactions and returns.
func toReconciliationDTO(rec invoice.Reconciliation, detail bool) ReconciliationDTO {
	dto := ReconciliationDTO{
		Invoice:          toInvoiceDTO(rec.Invoice),
		Status:           string(rec.Status),
		TotalPaidAmount:  Amount{rec.PaidAmount},
		DiscountEarned:   Amount{rec.DiscountEarned},
		Discount:         Amount{rec.Discount},
		ReturnAmount:     Amount{rec.ReturnAmount},
		ReturnSettlement: Amount{rec.ReturnSettlement},
		DueAmount:        Amount{rec.DueAmount},
	}
	if !detail {
		return dto
	}
	dto.Returns = make([]ReturnDTO, len(rec.Returns))
	for i, r := range rec.Returns {
		dto.Returns[i] = toReturnDTO(r)
	}
	dto.Transactions = make([]PostingDTO, len(rec.Postings))
	for i, p := range rec.Postings {
		dto.Transactions[i] = toPostingDTO(p)
	}
	return dto
}

func toProductDTO(p invoice.Product) ProductDTO {
	return ProductDTO{
		ID:            p.ID,
		Name:          p.Name,
		Quantity:      p.Quantity,
		PurchasePrice: Amount{p.PurchasePrice},
		SalePrice:     Amount{p.SalePrice},
	}
}

func toCounterpartyDTO(c invoice.Counterparty) CounterpartyDTO {
	return CounterpartyDTO{ID: c.ID, Kind: string(c.Kind), Name: c.Name}
}
