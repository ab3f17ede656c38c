package requests

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/procureflow/procureflow/internal/platform/httpx"
	"github.com/procureflow/procureflow/internal/rbac"
	"github.com/procureflow/procureflow/internal/shared"
	"github.com/procureflow/procureflow/internal/workflow"
)

// Handler exposes material request endpoints.
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

// MountRoutes registers request routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.guard.RequireRole(workflow.RoleSupervisor)).Post("/", h.create)
	r.Get("/", h.list)
	r.Get("/{id}", h.get)
	r.With(h.guard.RequireRole(workflow.RoleSupervisor)).Put("/{id}/edit", h.update)
	r.With(h.guard.RequireRole(workflow.RoleEngineer)).Put("/{id}/approve", h.approve)
	r.With(h.guard.RequireRole(workflow.RoleEngineer)).Put("/{id}/reject", h.reject)
}

type listResponse struct {
	Data       []Request         `json:"data"`
	Pagination shared.Pagination `json:"pagination"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	actor := shared.PrincipalFromContext(r.Context())
	var in CreateRequestInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "Request body must be valid JSON.")
		return
	}
	if err := h.validate.Struct(in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "Project, reason, engineer and at least one item are required.")
		return
	}
	req, err := h.service.Create(r.Context(), *actor, in)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, req)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	actor := shared.PrincipalFromContext(r.Context())
	page, perPage := pageParams(r)
	filters := ListFilters{
		Status: workflow.Status(r.URL.Query().Get("status")),
		Search: r.URL.Query().Get("search"),
		Limit:  perPage,
		Offset: (page - 1) * perPage,
	}
	if v := r.URL.Query().Get("project_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "project_id must be a number.")
			return
		}
		filters.ProjectID = id
	}
	out, total, err := h.service.List(r.Context(), *actor, filters)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	if out == nil {
		out = []Request{}
	}
	httpx.JSON(w, http.StatusOK, listResponse{Data: out, Pagination: shared.NewPagination(page, perPage, total)})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	actor := shared.PrincipalFromContext(r.Context())
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	req, err := h.service.Get(r.Context(), *actor, id)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, req)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	actor := shared.PrincipalFromContext(r.Context())
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var in EditRequestInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "Request body must be valid JSON.")
		return
	}
	if err := h.validate.Struct(in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "Project, reason, engineer and at least one item are required.")
		return
	}
	req, err := h.service.Update(r.Context(), *actor, id, in)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, req)
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	actor := shared.PrincipalFromContext(r.Context())
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	req, err := h.service.Approve(r.Context(), *actor, id)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, req)
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request) {
	actor := shared.PrincipalFromContext(r.Context())
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var in RejectInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "Request body must be valid JSON.")
		return
	}
	req, err := h.service.Reject(r.Context(), *actor, id, in.Reason)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, req)
}

func (h *Handler) respondErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "The requested material request was not found.")
	case errors.Is(err, ErrForbidden):
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "Your role does not permit this action.")
	case errors.Is(err, ErrInvalidState):
		httpx.Problem(w, http.StatusConflict, "Invalid State", "The request status does not permit this action.")
	case errors.Is(err, ErrValidation):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", validationDetail(err))
	default:
		h.logger.Error("requests", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

// validationDetail strips the sentinel prefix so the user sees the message
// written in the service layer.
func validationDetail(err error) string {
	msg := err.Error()
	if idx := len(ErrValidation.Error()) + 2; idx < len(msg) {
		return capitalize(msg[idx:]) + "."
	}
	return "The request payload is invalid."
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	if s[0] >= 'a' && s[0] <= 'z' {
		return string(s[0]-'a'+'A') + s[1:]
	}
	return s
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
