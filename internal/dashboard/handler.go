package dashboard

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/procureflow/procureflow/internal/platform/httpx"
	"github.com/procureflow/procureflow/internal/rbac"
	"github.com/procureflow/procureflow/internal/shared"
	"github.com/procureflow/procureflow/internal/workflow"
)

// Handler exposes the dashboard endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	guard   rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, guard rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, guard: guard}
}

// MountRoutes registers /stats. Mounted twice: under /dashboard and under
// /v2/dashboard, which is a plain alias.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/stats", h.stats)
}

// MountTrackerRoutes registers the delivery tracker stats endpoint.
func (h *Handler) MountTrackerRoutes(r chi.Router) {
	r.With(h.guard.RequireRole(workflow.RoleDeliveryTracker)).Get("/stats", h.deliveryStats)
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	actor := shared.PrincipalFromContext(r.Context())
	stats, err := h.service.Stats(r.Context(), *actor)
	if err != nil {
		h.logger.Error("dashboard", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, stats)
}

func (h *Handler) deliveryStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.DeliveryStats(r.Context())
	if err != nil {
		h.logger.Error("dashboard", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, stats)
}
