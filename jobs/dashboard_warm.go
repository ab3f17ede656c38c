package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/procureflow/procureflow/internal/dashboard"
)

var defaultJobMetrics = NewMetrics(nil)

// DashboardWarmJob pre-populates the shared dashboard counter caches so the
// first request of the day does not pay the aggregation cost.
type DashboardWarmJob struct {
	Dashboards *dashboard.Service
	Logger     *slog.Logger
	Metrics    *Metrics
}

// NewDashboardWarmJob wires dependencies for the warmup handler.
func NewDashboardWarmJob(dashboards *dashboard.Service, logger *slog.Logger, metrics *Metrics) *DashboardWarmJob {
	return &DashboardWarmJob{Dashboards: dashboards, Logger: logger, Metrics: metrics}
}

// Handle processes dashboard warmup tasks.
func (j *DashboardWarmJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Dashboards == nil {
		return errors.New("dashboard warm: handler not configured")
	}
	var payload DashboardWarmPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.Reason == "" {
		payload.Reason = "cron"
	}

	tracker := j.metrics().Track(TaskDashboardWarm)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.String("reason", payload.Reason))
	start := time.Now()

	warmCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := j.Dashboards.Warm(warmCtx); err != nil {
		resultErr = err
		logger.Error("warm dashboards", slog.Any("error", err))
		return resultErr
	}

	logger.Info("completed dashboard warmup", slog.Duration("duration", time.Since(start)))
	return resultErr
}

func (j *DashboardWarmJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskDashboardWarm))
	}
	return slog.Default().With(slog.String("job", TaskDashboardWarm))
}

func (j *DashboardWarmJob) metrics() *Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
