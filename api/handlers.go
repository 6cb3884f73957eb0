/*
handlers.go - HTTP API handlers for the invoice ledger

PURPOSE:
  Exposes invoice creation, reconciliation, listing, payments and returns
  via REST. Handles HTTP request/response and JSON serialization, and
  delegates to the invoice package.

ENDPOINTS (same set under /api/purchase-invoices and /api/sale-invoices):
  POST   /                  Create invoice
  GET    /                  List ?startdate&enddate&page&count
  GET    /?query=info       All-time totals
  GET    /?query=search     Invoices by id, ?purchase=<id> or ?sale=<id>
  GET    /export            List as .xlsx (same query)
  GET    /{id}              Reconciled invoice with transactions and returns
  POST   /{id}/payments     Record a payment and/or discount
  POST   /{id}/returns      Record a return

  Catalog:
    GET/POST /api/products
    GET/POST /api/counterparties   (?kind=supplier|customer)

REQUEST FLOW:
  1. Parse HTTP request
  2. Build a domain draft
  3. Call the invoice package (it validates)
  4. Serialize response
  5. Map error kind to status (errors.go)

ERROR HANDLING:
  - 400: Validation errors, invalid input
  - 404: Unknown invoice, or an id of the other direction
  - 409: Concurrent stock modification
  - 500: Store failures

SECURITY NOTE:
  No authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo data loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/warp/invoice-ledger/invoice"
	"github.com/warp/invoice-ledger/ledger"
	"github.com/warp/invoice-ledger/report"
	"github.com/warp/invoice-ledger/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store      *sqlite.Store
	Workflow   *invoice.Workflow
	Engine     *invoice.Engine
	Payments   *invoice.Payments
	Returns    *invoice.Returns
	Aggregator *invoice.Aggregator

	cache invoice.Cache
	log   zerolog.Logger

	mu              sync.RWMutex
	currentScenario string
}

// NewHandler wires the invoice components onto store. deps.Store is
// replaced by store; the other collaborators are passed through.
func NewHandler(store *sqlite.Store, deps invoice.Deps) *Handler {
	deps.Store = store
	if deps.Cache == nil {
		deps.Cache = invoice.NopCache{}
	}
	return &Handler{
		Store:      store,
		Workflow:   invoice.NewWorkflow(deps),
		Engine:     invoice.NewEngine(deps),
		Payments:   invoice.NewPayments(deps),
		Returns:    invoice.NewReturns(deps),
		Aggregator: invoice.NewAggregator(deps),
		cache:      deps.Cache,
		log:        deps.Logger.With().Str("component", "api").Logger(),
	}
}

// =============================================================================
// INVOICE HANDLERS
// =============================================================================

// CreateInvoice creates an invoice of direction dir.
func (h *Handler) CreateInvoice(dir invoice.Direction) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateInvoiceRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeBadRequest(w, "Invalid request body", err)
			return
		}
		date, err := parseDate("date", req.Date)
		if err != nil {
			writeError(w, err)
			return
		}

		inv, err := h.Workflow.Create(r.Context(), invoice.Draft{
			Direction:      dir,
			Date:           date,
			CounterpartyID: req.CounterpartyID,
			Discount:       req.Discount.Decimal,
			PaidAmount:     req.PaidAmount.Decimal,
			Note:           req.Note,
			MemoNo:         req.MemoNo,
			Lines:          toDraftLines(req.Lines),
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toInvoiceDTO(*inv))
	}
}

// ListInvoices returns one page of reconciled invoices, or the all-time
// totals when called with ?query=info.
func (h *Handler) ListInvoices(dir invoice.Direction) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("query") {
		case "info":
			h.writeTotals(w, r, dir)
			return
		case "search":
			h.writeSearch(w, r, dir)
			return
		}
		q, err := parseListQuery(r, dir)
		if err != nil {
			writeError(w, err)
			return
		}
		page, err := h.Aggregator.List(r.Context(), q)
		if err != nil {
			writeError(w, err)
			return
		}

		resp := ListInvoicesResponse{
			Items: make([]ReconciliationDTO, len(page.Items)),
			Summary: SummaryDTO{
				Count:       page.Summary.Count,
				TotalAmount: Amount{page.Summary.TotalAmount},
				Discount:    Amount{page.Summary.Discount},
				PaidAmount:  Amount{page.Summary.PaidAmount},
				DueAmount:   Amount{page.Summary.DueAmount},
			},
			Aggregations: AggregateDTO{
				Count:       page.Range.Count,
				TotalAmount: Amount{page.Range.TotalAmount},
				Discount:    Amount{page.Range.Discount},
			},
			Page:  page.Offset/page.Limit + 1,
			Count: page.Limit,
		}
		for i, it := range page.Items {
			resp.Items[i] = toReconciliationDTO(it, false)
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// writeSearch answers ?query=search&purchase=<id> (sale=<id> for sales).
// The parameter may repeat.
func (h *Handler) writeSearch(w http.ResponseWriter, r *http.Request, dir invoice.Direction) {
	param := string(dir)
	values := r.URL.Query()[param]
	if len(values) == 0 {
		writeError(w, ledger.ValidationFields("api.SearchInvoices", map[string]string{param: "required"}))
		return
	}
	ids := make([]ledger.InvoiceID, len(values))
	for i, v := range values {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			writeBadRequest(w, "Invalid invoice id", err)
			return
		}
		ids[i] = ledger.InvoiceID(id)
	}

	recs, err := h.Aggregator.Search(r.Context(), dir, ids)
	if err != nil {
		writeError(w, err)
		return
	}
	dtos := make([]ReconciliationDTO, len(recs))
	for i, rec := range recs {
		dtos[i] = toReconciliationDTO(rec, true)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) writeTotals(w http.ResponseWriter, r *http.Request, dir invoice.Direction) {
	t, err := h.Aggregator.Totals(r.Context(), dir)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, TotalsDTO{
		Count:            t.Count,
		TotalAmount:      Amount{t.TotalAmount},
		Discount:         Amount{t.Discount},
		PaidAmount:       Amount{t.PaidAmount},
		DiscountEarned:   Amount{t.DiscountEarned},
		ReturnAmount:     Amount{t.ReturnAmount},
		ReturnSettlement: Amount{t.ReturnSettlement},
		DueAmount:        Amount{t.DueAmount},
	})
}

// ExportInvoices writes the requested page as an .xlsx attachment.
func (h *Handler) ExportInvoices(dir invoice.Direction) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q, err := parseListQuery(r, dir)
		if err != nil {
			writeError(w, err)
			return
		}
		page, err := h.Aggregator.List(r.Context(), q)
		if err != nil {
			writeError(w, err)
			return
		}
		counterparties, err := h.Store.ListCounterparties(r.Context(), dir.CounterpartyKind())
		if err != nil {
			writeError(w, ledger.Persistence("api.ExportInvoices", err))
			return
		}
		names := make(map[int64]string, len(counterparties))
		for _, c := range counterparties {
			names[c.ID] = c.Name
		}

		w.Header().Set("Content-Type", report.ContentType)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s-invoices.xlsx", dir))
		if err := report.WritePage(w, dir, page, names); err != nil {
			h.log.Error().Err(err).Str("direction", string(dir)).Msg("export failed")
		}
	}
}

// GetInvoice returns the reconciled invoice with its transactions and returns.
func (h *Handler) GetInvoice(dir invoice.Direction) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, ok := h.reconcile(w, r, dir)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, toReconciliationDTO(*rec, true))
	}
}

// RecordPayment settles part or all of an invoice's due amount.
func (h *Handler) RecordPayment(dir invoice.Direction) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, ok := h.reconcile(w, r, dir)
		if !ok {
			return
		}
		var req PaymentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeBadRequest(w, "Invalid request body", err)
			return
		}
		date, err := parseDate("date", req.Date)
		if err != nil {
			writeError(w, err)
			return
		}

		after, err := h.Payments.Record(r.Context(), invoice.PaymentDraft{
			InvoiceID: rec.Invoice.ID,
			Date:      date,
			Amount:    req.Amount.Decimal,
			Discount:  req.Discount.Decimal,
			Account:   req.Account,
			Note:      req.Note,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toReconciliationDTO(*after, true))
	}
}

// RecordReturn records goods coming back against an invoice.
func (h *Handler) RecordReturn(dir invoice.Direction) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, ok := h.reconcile(w, r, dir)
		if !ok {
			return
		}
		var req ReturnRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeBadRequest(w, "Invalid request body", err)
			return
		}
		date, err := parseDate("date", req.Date)
		if err != nil {
			writeError(w, err)
			return
		}

		ret, err := h.Returns.Record(r.Context(), invoice.ReturnDraft{
			InvoiceID:         rec.Invoice.ID,
			Date:              date,
			Note:              req.Note,
			Lines:             toDraftLines(req.Lines),
			Settlement:        req.Settlement.Decimal,
			SettlementAccount: req.SettlementAccount,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toReturnDTO(*ret))
	}
}

// reconcile loads the {id} invoice and checks it belongs to dir. It writes
// the error response itself and reports whether the caller may continue.
func (h *Handler) reconcile(w http.ResponseWriter, r *http.Request, dir invoice.Direction) (*invoice.Reconciliation, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeBadRequest(w, "Invalid invoice id", err)
		return nil, false
	}
	rec, err := h.Engine.Reconcile(r.Context(), ledger.InvoiceID(id))
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	if rec.Invoice.Direction != dir {
		writeError(w, ledger.NotFound("api.GetInvoice", "%s #%d does not exist", dir.Title(), id))
		return nil, false
	}
	return rec, true
}

// =============================================================================
// CATALOG HANDLERS
// =============================================================================

// ListProducts returns all products with their stock on hand.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.Store.ListProducts(r.Context())
	if err != nil {
		writeError(w, ledger.Persistence("api.ListProducts", err))
		return
	}
	dtos := make([]ProductDTO, len(products))
	for i, p := range products {
		dtos[i] = toProductDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateProduct adds a product at zero stock. Stock only changes through invoices.
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req CreateProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "Invalid request body", err)
		return
	}
	if req.Name == "" {
		writeError(w, ledger.ValidationFields("api.CreateProduct", map[string]string{"name": "required"}))
		return
	}
	if req.PurchasePrice.IsNegative() || req.SalePrice.IsNegative() {
		writeError(w, ledger.Validation("api.CreateProduct", "prices must not be negative"))
		return
	}

	p := invoice.Product{Name: req.Name, PurchasePrice: req.PurchasePrice.Decimal, SalePrice: req.SalePrice.Decimal}
	if err := h.Store.CreateProduct(r.Context(), &p); err != nil {
		writeError(w, ledger.Persistence("api.CreateProduct", err))
		return
	}
	writeJSON(w, http.StatusCreated, toProductDTO(p))
}

// ListCounterparties returns suppliers and customers, optionally filtered by ?kind.
func (h *Handler) ListCounterparties(w http.ResponseWriter, r *http.Request) {
	kind := invoice.CounterpartyKind(r.URL.Query().Get("kind"))
	if kind != "" && kind != invoice.Supplier && kind != invoice.Customer {
		writeError(w, ledger.Validation("api.ListCounterparties", "unknown kind %q", kind))
		return
	}
	cps, err := h.Store.ListCounterparties(r.Context(), kind)
	if err != nil {
		writeError(w, ledger.Persistence("api.ListCounterparties", err))
		return
	}
	dtos := make([]CounterpartyDTO, len(cps))
	for i, c := range cps {
		dtos[i] = toCounterpartyDTO(c)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateCounterparty adds a supplier or customer.
func (h *Handler) CreateCounterparty(w http.ResponseWriter, r *http.Request) {
	var req CreateCounterpartyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "Invalid request body", err)
		return
	}
	kind := invoice.CounterpartyKind(req.Kind)
	fields := map[string]string{}
	if kind != invoice.Supplier && kind != invoice.Customer {
		fields["kind"] = "oneof=supplier customer"
	}
	if req.Name == "" {
		fields["name"] = "required"
	}
	if len(fields) > 0 {
		writeError(w, ledger.ValidationFields("api.CreateCounterparty", fields))
		return
	}

	c := invoice.Counterparty{Kind: kind, Name: req.Name}
	if err := h.Store.CreateCounterparty(r.Context(), &c); err != nil {
		writeError(w, ledger.Persistence("api.CreateCounterparty", err))
		return
	}
	writeJSON(w, http.StatusCreated, toCounterpartyDTO(c))
}

// =============================================================================
// QUERY PARSING
// =============================================================================

var allTime = ledger.DateRange{
	Start: time.Date(1, 1, 1, 0, 0, 0, 0, time.UTC),
	End:   time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC),
}

// parseListQuery reads ?startdate&enddate&page&count. Without dates every
// invoice is in range; page is 1-based.
func parseListQuery(r *http.Request, dir invoice.Direction) (invoice.Query, error) {
	const op = "api.parseListQuery"
	v := r.URL.Query()
	q := invoice.Query{Direction: dir, Range: allTime, Limit: invoice.DefaultPageSize}

	start, end := v.Get("startdate"), v.Get("enddate")
	switch {
	case start == "" && end == "":
	case start == "" || end == "":
		return q, ledger.Validation(op, "startdate and enddate go together")
	default:
		rng, err := ledger.NewDateRange(start, end)
		if err != nil {
			return q, err
		}
		q.Range = rng
	}

	page := 1
	if s := v.Get("page"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			return q, ledger.Validation(op, "page must be a positive number, got %q", s)
		}
		page = n
	}
	if s := v.Get("count"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			return q, ledger.Validation(op, "count must be a positive number, got %q", s)
		}
		q.Limit = min(n, invoice.MaxPageSize)
	}
	q.Offset = (page - 1) * q.Limit
	return q, nil
}

func parseDate(field, s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, ledger.ValidationFields("api.parseDate", map[string]string{field: "required"})
	}
	t, err := ledger.ParseDate(s)
	if err != nil {
		return time.Time{}, ledger.Validation("api.parseDate", "invalid %s %q (use YYYY-MM-DD)", field, s)
	}
	return t, nil
}
