/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     Request logging (zerolog, tagged with the request id)
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for the configured origins

ROUTE GROUPS:
  /api/purchase-invoices/*   Purchases (supplier side)
  /api/sale-invoices/*       Sales (customer side)
  /api/products              Product catalog
  /api/counterparties        Suppliers and customers
  /api/scenarios/*           Demo scenarios
  /healthz                   Liveness

SECURITY NOTE:
  No authentication middleware. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/serve.go: Server startup
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/warp/invoice-ledger/invoice"
	"github.com/warp/invoice-ledger/logger"
)

// NewRouter creates a new router with all routes configured. origins lists
// the allowed CORS origins; "*" allows any.
func NewRouter(h *Handler, origins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(requestLogger(h.log))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/purchase-invoices", invoiceRoutes(h, invoice.Purchase))
		r.Route("/sale-invoices", invoiceRoutes(h, invoice.Sale))

		r.Route("/products", func(r chi.Router) {
			r.Get("/", h.ListProducts)
			r.Post("/", h.CreateProduct)
		})

		r.Route("/counterparties", func(r chi.Router) {
			r.Get("/", h.ListCounterparties)
			r.Post("/", h.CreateCounterparty)
		})

		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
			r.Post("/reset", h.ResetDatabase)
		})
	})

	return r
}

// invoiceRoutes mounts the same endpoint set for either direction.
func invoiceRoutes(h *Handler, dir invoice.Direction) func(chi.Router) {
	return func(r chi.Router) {
		r.Get("/", h.ListInvoices(dir))
		r.Post("/", h.CreateInvoice(dir))
		r.Get("/export", h.ExportInvoices(dir))
		r.Get("/{id}", h.GetInvoice(dir))
		r.Post("/{id}/payments", h.RecordPayment(dir))
		r.Post("/{id}/returns", h.RecordReturn(dir))
	}
}

func requestLogger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			reqLog := logger.WithRequestID(log, middleware.GetReqID(r.Context()))
			defer func() {
				ev := reqLog.Info()
				if ww.Status() >= http.StatusInternalServerError {
					ev = reqLog.Error()
				}
				ev.Str("method", r.Method).
					Str("path", r.URL.Path).
					Int("status", ww.Status()).
					Int("bytes", ww.BytesWritten()).
					Dur("duration", time.Since(start)).
					Msg("request")
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
