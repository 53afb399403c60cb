package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"invoicing-backend/internal/app"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
)

// Handler holds the ApplicationService and the chi router.
type Handler struct {
	svc      app.ApplicationService
	validate *validator.Validate
	log      *logrus.Logger
}

// NewHandler creates and wires the chi router with all routes.
func NewHandler(svc app.ApplicationService, log *logrus.Logger, allowedOrigins string) http.Handler {
	h := &Handler{
		svc:      svc,
		validate: validator.New(),
		log:      log,
	}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logger(log))
	r.Use(Recoverer(log))
	r.Use(CORS(allowedOrigins))
	r.Use(RequestBodyLimit(1 << 20)) // 1 MB

	r.Get("/api/health", h.health)

	r.Route("/api/orgs/{code}", func(r chi.Router) {
		// Settings
		r.Get("/", h.getOrganization)
		r.Put("/settings", h.updateSettings)
		r.Get("/taxes", h.listCustomTaxes)
		r.Post("/taxes", h.addCustomTax)
		r.Delete("/taxes/{name}", h.removeCustomTax)

		// Invoices
		r.Get("/invoices", h.listInvoices)
		r.Post("/invoices", h.createInvoice)
		r.Post("/invoices/preview", h.previewInvoice)
		r.Get("/invoices/{id}", h.getInvoice)
		r.Put("/invoices/{id}", h.updateInvoice)
		r.Delete("/invoices/{id}", h.deleteInvoice)

		// Credit notes
		r.Get("/invoices/{id}/credit-notes", h.listCreditNotes)
		r.Post("/invoices/{id}/credit-notes", h.createCreditNote)
		r.Post("/invoices/{id}/credit-notes/preview", h.previewCreditNote)
		r.Get("/credit-notes/{id}", h.getCreditNote)

		// Payments
		r.Get("/invoices/{id}/payments", h.listPayments)
		r.Post("/invoices/{id}/payments", h.recordPayment)
		r.Delete("/payments/{id}", h.deletePayment)

		// Clients
		r.Get("/clients", h.listClients)
		r.Post("/clients", h.createClient)
		r.Get("/clients/{id}", h.getClient)
		r.Put("/clients/{id}", h.updateClient)
		r.Delete("/clients/{id}", h.deactivateClient)
		r.Post("/clients/{id}/deposits", h.recordDeposit)

		// Suppliers
		r.Get("/suppliers", h.listSuppliers)
		r.Post("/suppliers", h.createSupplier)
		r.Get("/suppliers/{id}", h.getSupplier)
		r.Put("/suppliers/{id}", h.updateSupplier)
		r.Delete("/suppliers/{id}", h.deactivateSupplier)

		// Products, stock, reservations
		r.Get("/products", h.listProducts)
		r.Post("/products", h.createProduct)
		r.Get("/products/{id}", h.getProduct)
		r.Put("/products/{id}", h.updateProduct)
		r.Delete("/products/{id}", h.deactivateProduct)
		r.Post("/products/{id}/stock", h.adjustStock)
		r.Get("/products/{id}/movements", h.listStockMovements)
		r.Get("/reservations", h.listReservations)
		r.Post("/reservations", h.reserveStock)
		r.Delete("/reservations/{id}", h.cancelReservation)

		// AI
		r.Post("/ai/generate-invoice", h.generateInvoiceDraft)
		r.Post("/ai/search-invoices", h.searchInvoices)
		r.Post("/ai/search-suppliers", h.searchSuppliers)
	})

	return r
}

// health returns service status.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	type response struct {
		Status string `json:"status"`
	}
	writeJSON(w, response{Status: "ok"})
}

// orgCode extracts the {code} URL parameter.
func orgCode(r *http.Request) string {
	return chi.URLParam(r, "code")
}

// pathID parses a numeric {id} URL parameter. Writes a 400 and returns false
// on failure.
func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, r, "invalid id in URL", "BAD_REQUEST", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

// decodeJSON decodes the request body into v, runs struct validation, and
// writes an appropriate error response on failure. Returns HTTP 413 when the
// body exceeds the size limit set by RequestBodyLimit middleware.
func (h *Handler) decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, r, "request body too large", "REQUEST_TOO_LARGE", http.StatusRequestEntityTooLarge)
			return false
		}
		writeError(w, r, "invalid JSON body: "+err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return false
	}
	if err := h.validate.Struct(v); err != nil {
		writeError(w, r, "validation failed: "+err.Error(), "VALIDATION_FAILED", http.StatusBadRequest)
		return false
	}
	return true
}
