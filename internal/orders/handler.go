package orders

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/procureflow/procureflow/internal/platform/httpx"
	"github.com/procureflow/procureflow/internal/rbac"
	"github.com/procureflow/procureflow/internal/shared"
	"github.com/procureflow/procureflow/internal/workflow"
)

// Handler exposes purchase order endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	guard    rbac.Middleware
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, guard rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, guard: guard, validate: validator.New()}
}

// MountRoutes registers the purchase order routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.guard.RequireRole(workflow.RoleProcurementManager)).Post("/", h.create)
	r.Get("/", h.list)
	r.Get("/pending-delivery", h.pendingDelivery)
	r.Get("/{id}", h.get)
	r.Get("/{id}/approvals", h.approvalTrail)
	r.With(h.guard.RequireRole(workflow.RolePrinter)).Put("/{id}/print", h.print)
	r.With(h.guard.RequireRole(workflow.RoleProcurementManager, workflow.RoleDeliveryTracker)).
		Put("/{id}/deliver", h.ship)
}

// MountTrackerRoutes registers the delivery tracker routes.
func (h *Handler) MountTrackerRoutes(r chi.Router) {
	r.With(h.guard.RequireRole(workflow.RoleDeliveryTracker)).Get("/orders", h.list)
	r.With(h.guard.RequireRole(workflow.RoleDeliveryTracker, workflow.RoleSupervisor)).
		Put("/orders/{id}/confirm-receipt", h.confirmReceipt)
}

// MountGMRoutes registers the general manager approval routes.
func (h *Handler) MountGMRoutes(r chi.Router) {
	r.Use(h.guard.RequireRole(workflow.RoleGeneralManager))
	r.Get("/pending-approvals", h.pendingApprovals)
	r.Put("/approve/{id}", h.gmApprove)
	r.Put("/reject/{id}", h.gmReject)
}

type listResponse struct {
	Data       []PurchaseOrder   `json:"data"`
	Pagination shared.Pagination `json:"pagination"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	actor := shared.PrincipalFromContext(r.Context())
	var in CreateOrderInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "Request body must be valid JSON.")
		return
	}
	if err := h.validate.Struct(in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "Request, supplier and at least one item with a positive quantity are required.")
		return
	}
	o, err := h.service.Create(r.Context(), *actor, in)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, o)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	actor := shared.PrincipalFromContext(r.Context())
	page, perPage := pageParams(r)
	filters, ok := listFilters(w, r, page, perPage)
	if !ok {
		return
	}
	out, total, err := h.service.List(r.Context(), *actor, filters)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	h.respondList(w, out, page, perPage, total)
}

func (h *Handler) pendingDelivery(w http.ResponseWriter, r *http.Request) {
	actor := shared.PrincipalFromContext(r.Context())
	page, perPage := pageParams(r)
	filters, ok := listFilters(w, r, page, perPage)
	if !ok {
		return
	}
	out, total, err := h.service.PendingDelivery(r.Context(), *actor, filters)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	h.respondList(w, out, page, perPage, total)
}

func (h *Handler) pendingApprovals(w http.ResponseWriter, r *http.Request) {
	page, perPage := pageParams(r)
	out, total, err := h.service.PendingApprovals(r.Context(), ListFilters{Limit: perPage, Offset: (page - 1) * perPage})
	if err != nil {
		h.respondErr(w, err)
		return
	}
	h.respondList(w, out, page, perPage, total)
}

func (h *Handler) respondList(w http.ResponseWriter, out []PurchaseOrder, page, perPage, total int) {
	if out == nil {
		out = []PurchaseOrder{}
	}
	httpx.JSON(w, http.StatusOK, listResponse{Data: out, Pagination: shared.NewPagination(page, perPage, total)})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	actor := shared.PrincipalFromContext(r.Context())
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	o, err := h.service.Get(r.Context(), *actor, id)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, o)
}

type approvalEntry struct {
	ActorID int64     `json:"actor_id"`
	Action  string    `json:"action"`
	Note    string    `json:"note,omitempty"`
	At      time.Time `json:"at"`
}

func (h *Handler) approvalTrail(w http.ResponseWriter, r *http.Request) {
	actor := shared.PrincipalFromContext(r.Context())
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	logs, err := h.service.ApprovalTrail(r.Context(), *actor, id)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	out := make([]approvalEntry, 0, len(logs))
	for _, l := range logs {
		out = append(out, approvalEntry{ActorID: l.ActorID, Action: string(l.Action), Note: l.Note, At: l.At})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": out})
}

func (h *Handler) print(w http.ResponseWriter, r *http.Request) {
	actor := shared.PrincipalFromContext(r.Context())
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	o, err := h.service.Print(r.Context(), *actor, id)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, o)
}

func (h *Handler) ship(w http.ResponseWriter, r *http.Request) {
	actor := shared.PrincipalFromContext(r.Context())
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var in ShipInput
	if r.ContentLength > 0 {
		if err := httpx.DecodeJSON(r, &in); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "Request body must be valid JSON.")
			return
		}
	}
	o, err := h.service.Ship(r.Context(), *actor, id, in.DeliveryNotes)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, o)
}

func (h *Handler) confirmReceipt(w http.ResponseWriter, r *http.Request) {
	actor := shared.PrincipalFromContext(r.Context())
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var in ConfirmReceiptInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "Request body must be valid JSON.")
		return
	}
	if err := h.validate.Struct(in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "Supplier receipt number and at least one delivered item are required.")
		return
	}
	o, err := h.service.ConfirmReceipt(r.Context(), *actor, id, in)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, o)
}

func (h *Handler) gmApprove(w http.ResponseWriter, r *http.Request) {
	actor := shared.PrincipalFromContext(r.Context())
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	o, err := h.service.GMApprove(r.Context(), *actor, id)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, o)
}

func (h *Handler) gmReject(w http.ResponseWriter, r *http.Request) {
	actor := shared.PrincipalFromContext(r.Context())
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var in RejectOrderInput
	if r.ContentLength > 0 {
		if err := httpx.DecodeJSON(r, &in); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "Request body must be valid JSON.")
			return
		}
	}
	o, err := h.service.GMReject(r.Context(), *actor, id, in.Reason)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, o)
}

func (h *Handler) respondErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "The requested purchase order was not found.")
	case errors.Is(err, ErrForbidden):
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "Your role does not permit this action.")
	case errors.Is(err, ErrInvalidState):
		httpx.Problem(w, http.StatusConflict, "Invalid State", "The order status does not permit this action.")
	case errors.Is(err, ErrValidation):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "The order payload is invalid.")
	default:
		h.logger.Error("orders", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

func listFilters(w http.ResponseWriter, r *http.Request, page, perPage int) (ListFilters, bool) {
	filters := ListFilters{
		Status: workflow.Status(r.URL.Query().Get("status")),
		Limit:  perPage,
		Offset: (page - 1) * perPage,
	}
	if v := r.URL.Query().Get("project_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "project_id must be a number.")
			return filters, false
		}
		filters.ProjectID = id
	}
	return filters, true
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "The identifier in the URL must be a positive number.")
		return 0, false
	}
	return id, true
}

func pageParams(r *http.Request) (page, perPage int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	if page <= 0 {
		page = 1
	}
	perPage, _ = strconv.Atoi(r.URL.Query().Get("per_page"))
	if perPage <= 0 || perPage > 100 {
		perPage = 20
	}
	return page, perPage
}
