package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/procureflow/procureflow/internal/app"
	"github.com/procureflow/procureflow/internal/auth"
	"github.com/procureflow/procureflow/internal/dashboard"
	"github.com/procureflow/procureflow/internal/export"
	"github.com/procureflow/procureflow/internal/observability"
	"github.com/procureflow/procureflow/internal/orders"
	"github.com/procureflow/procureflow/internal/platform/cache"
	"github.com/procureflow/procureflow/internal/platform/db"
	"github.com/procureflow/procureflow/internal/projects"
	"github.com/procureflow/procureflow/internal/rbac"
	"github.com/procureflow/procureflow/internal/requests"
	"github.com/procureflow/procureflow/internal/settings"
	"github.com/procureflow/procureflow/internal/shared"
	"github.com/procureflow/procureflow/internal/users"
	"github.com/procureflow/procureflow/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	tokens := shared.NewTokenManager(redisClient, cfg.TokenTTL)
	auditLogger := shared.NewAuditLogger(pool)
	approvalRecorder := shared.NewApprovalRecorder(pool, logger)
	idempotencyStore := shared.NewIdempotencyStore(pool)

	guard := rbac.Middleware{Logger: logger}
	metrics := observability.NewMetrics()

	authService := auth.NewService(auth.NewRepository(pool), tokens)
	authHandler := auth.NewHandler(logger, authService, tokens)

	requestService := requests.NewService(requests.NewRepository(pool), auditLogger, metrics, logger)
	requestsHandler := requests.NewHandler(logger, requestService, guard)

	settingsService := settings.NewService(settings.NewRepository(pool), auditLogger, logger)
	settingsHandler := settings.NewHandler(logger, settingsService, guard)

	orderService := orders.NewService(orders.NewRepository(pool), requestService, settingsService,
		approvalRecorder, idempotencyStore, auditLogger, metrics, logger)
	ordersHandler := orders.NewHandler(logger, orderService, guard)

	userService := users.NewService(users.NewRepository(pool), tokens, auditLogger, logger)
	usersHandler := users.NewHandler(logger, userService, guard)

	projectService := projects.NewService(projects.NewRepository(pool), auditLogger, logger)
	projectsHandler := projects.NewHandler(logger, projectService, guard)

	dashboardService := dashboard.NewService(dashboard.NewStatsRepository(pool), redisClient, logger)
	dashboardHandler := dashboard.NewHandler(logger, dashboardService, guard)

	gotenberg := export.NewGotenbergClient(cfg.GotenbergURL)
	exporter, err := export.NewExporter(gotenberg)
	if err != nil {
		logger.Error("init exporter", slog.Any("error", err))
		os.Exit(1)
	}
	exportHandler := export.NewHandler(logger, exporter, requestService, orderService)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobsClient := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()
	jobsHandler := jobs.NewHandler(inspector, jobsClient, guard, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		Tokens:           tokens,
		AuthHandler:      authHandler,
		RequestsHandler:  requestsHandler,
		OrdersHandler:    ordersHandler,
		UsersHandler:     usersHandler,
		ProjectsHandler:  projectsHandler,
		SettingsHandler:  settingsHandler,
		DashboardHandler: dashboardHandler,
		ExportHandler:    exportHandler,
		JobsHandler:      jobsHandler,
		Metrics:          metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("http server", slog.Any("error", err))
		os.Exit(1)
	}
}
