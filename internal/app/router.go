package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/procureflow/procureflow/internal/auth"
	"github.com/procureflow/procureflow/internal/dashboard"
	"github.com/procureflow/procureflow/internal/export"
	"github.com/procureflow/procureflow/internal/observability"
	"github.com/procureflow/procureflow/internal/orders"
	"github.com/procureflow/procureflow/internal/projects"
	"github.com/procureflow/procureflow/internal/requests"
	"github.com/procureflow/procureflow/internal/settings"
	"github.com/procureflow/procureflow/internal/shared"
	"github.com/procureflow/procureflow/internal/users"
	"github.com/procureflow/procureflow/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	Tokens           *shared.TokenManager
	AuthHandler      *auth.Handler
	RequestsHandler  *requests.Handler
	OrdersHandler    *orders.Handler
	UsersHandler     *users.Handler
	ProjectsHandler  *projects.Handler
	SettingsHandler  *settings.Handler
	DashboardHandler *dashboard.Handler
	ExportHandler    *export.Handler
	JobsHandler      *jobs.Handler
	Metrics          *observability.Metrics
}

// NewRouter constructs the chi.Router with application defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())

	// Login and logout manage their own tokens, so they sit outside the
	// authenticated group.
	r.Route("/auth", params.AuthHandler.MountRoutes)

	r.Group(func(pr chi.Router) {
		pr.Use(auth.Middleware(params.Tokens, params.Logger))

		pr.Route("/requests", func(rr chi.Router) {
			params.RequestsHandler.MountRoutes(rr)
			params.ExportHandler.MountRequestRoutes(rr)
		})
		pr.Route("/purchase-orders", func(rr chi.Router) {
			params.OrdersHandler.MountRoutes(rr)
			params.ExportHandler.MountOrderRoutes(rr)
		})
		pr.Route("/users", params.UsersHandler.MountEngineerRoutes)
		pr.Route("/projects", params.ProjectsHandler.MountRoutes)
		pr.Route("/dashboard", params.DashboardHandler.MountRoutes)
		pr.Route("/v2/dashboard", params.DashboardHandler.MountRoutes)
		pr.Route("/delivery-tracker", func(rr chi.Router) {
			params.OrdersHandler.MountTrackerRoutes(rr)
			params.DashboardHandler.MountTrackerRoutes(rr)
		})
		pr.Route("/admin/users", params.UsersHandler.MountAdminRoutes)
		pr.Route("/api/gm", params.OrdersHandler.MountGMRoutes)
		pr.Route("/api/system-settings", params.SettingsHandler.MountRoutes)
		if params.JobsHandler != nil {
			pr.Route("/jobs", params.JobsHandler.MountRoutes)
		}
	})

	return r
}
