package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"

	// TaskDashboardWarm precomputes the shared dashboard counters.
	TaskDashboardWarm = "dashboard:warm"
	// TaskIdempotencyCleanup prunes aged idempotency keys.
	TaskIdempotencyCleanup = "idempotency:cleanup"
	// TaskDeliveryOverdueScan flags orders past their expected delivery date.
	TaskDeliveryOverdueScan = "delivery:overdue_scan"
)

// DashboardWarmPayload configures a dashboard warmup run.
type DashboardWarmPayload struct {
	// Reason tags the run origin in logs (cron, manual).
	Reason string `json:"reason"`
}

// NewDashboardWarmTask constructs an Asynq task for dashboard warmup.
func NewDashboardWarmTask(reason string) (*asynq.Task, error) {
	data, err := json.Marshal(DashboardWarmPayload{Reason: reason})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskDashboardWarm, data), nil
}

// IdempotencyCleanupPayload configures the retention window.
type IdempotencyCleanupPayload struct {
	RetentionHours int `json:"retention_hours"`
}

// NewIdempotencyCleanupTask constructs an Asynq task for key cleanup.
func NewIdempotencyCleanupTask(retentionHours int) (*asynq.Task, error) {
	data, err := json.Marshal(IdempotencyCleanupPayload{RetentionHours: retentionHours})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, data), nil
}

// DeliveryOverdueScanPayload configures the overdue grace window.
type DeliveryOverdueScanPayload struct {
	GraceDays int `json:"grace_days"`
}

// NewDeliveryOverdueScanTask constructs an Asynq task for the overdue scan.
func NewDeliveryOverdueScanTask(graceDays int) (*asynq.Task, error) {
	data, err := json.Marshal(DeliveryOverdueScanPayload{GraceDays: graceDays})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskDeliveryOverdueScan, data), nil
}
