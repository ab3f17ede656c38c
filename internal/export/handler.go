package export

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/procureflow/procureflow/internal/orders"
	"github.com/procureflow/procureflow/internal/platform/httpx"
	"github.com/procureflow/procureflow/internal/requests"
	"github.com/procureflow/procureflow/internal/shared"
)

// RequestSource loads requests with the caller's visibility rules applied.
type RequestSource interface {
	Get(ctx context.Context, actor shared.Principal, id int64) (*requests.Request, error)
}

// OrderSource loads orders with the caller's visibility rules applied.
type OrderSource interface {
	Get(ctx context.Context, actor shared.Principal, id int64) (*orders.PurchaseOrder, error)
}

// Handler exposes the document export endpoints.
type Handler struct {
	logger   *slog.Logger
	exporter *Exporter
	reqs     RequestSource
	ords     OrderSource
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, exporter *Exporter, reqs RequestSource, ords OrderSource) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, exporter: exporter, reqs: reqs, ords: ords}
}

// MountRequestRoutes registers the request document route, mounted under
// /requests.
func (h *Handler) MountRequestRoutes(r chi.Router) {
	r.Get("/{id}/document", h.requestDocument)
}

// MountOrderRoutes registers the order document route, mounted under
// /purchase-orders.
func (h *Handler) MountOrderRoutes(r chi.Router) {
	r.Get("/{id}/document", h.orderDocument)
}

func (h *Handler) requestDocument(w http.ResponseWriter, r *http.Request) {
	actor := shared.PrincipalFromContext(r.Context())
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	req, err := h.reqs.Get(r.Context(), *actor, id)
	if err != nil {
		h.respondSourceErr(w, err)
		return
	}
	if r.URL.Query().Get("format") == "pdf" {
		pdf, err := h.exporter.RequestPDF(r.Context(), req)
		if err != nil {
			h.logger.Error("render request pdf", slog.Any("error", err))
			httpx.Problem(w, http.StatusBadGateway, "Export Failed", "The document could not be rendered to PDF.")
			return
		}
		servePDF(w, req.RequestNumber, pdf)
		return
	}
	html, err := h.exporter.RequestHTML(req)
	if err != nil {
		h.logger.Error("render request document", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	serveHTML(w, html)
}

func (h *Handler) orderDocument(w http.ResponseWriter, r *http.Request) {
	actor := shared.PrincipalFromContext(r.Context())
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	o, err := h.ords.Get(r.Context(), *actor, id)
	if err != nil {
		h.respondSourceErr(w, err)
		return
	}
	if r.URL.Query().Get("format") == "pdf" {
		pdf, err := h.exporter.OrderPDF(r.Context(), o)
		if err != nil {
			h.logger.Error("render order pdf", slog.Any("error", err))
			httpx.Problem(w, http.StatusBadGateway, "Export Failed", "The document could not be rendered to PDF.")
			return
		}
		servePDF(w, o.OrderNumber, pdf)
		return
	}
	html, err := h.exporter.OrderHTML(o)
	if err != nil {
		h.logger.Error("render order document", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	serveHTML(w, html)
}

func (h *Handler) respondSourceErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, requests.ErrNotFound), errors.Is(err, orders.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "The requested document was not found.")
	case errors.Is(err, requests.ErrForbidden), errors.Is(err, orders.ErrForbidden):
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "Your role does not permit this action.")
	default:
		h.logger.Error("export", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

func serveHTML(w http.ResponseWriter, html string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(html))
}

func servePDF(w http.ResponseWriter, name string, pdf []byte) {
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`.pdf"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "The identifier in the URL must be a positive number.")
		return 0, false
	}
	return id, true
}
