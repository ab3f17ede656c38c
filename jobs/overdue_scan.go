package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DeliveryOverdueScanJob surfaces purchase orders that are still in flight
// past the expected delivery date of their originating request. Results go to
// the log and the overdue counter; the orders themselves are not touched.
type DeliveryOverdueScanJob struct {
	Pool    *pgxpool.Pool
	Logger  *slog.Logger
	Metrics *Metrics
	clock   func() time.Time
}

// NewDeliveryOverdueScanJob wires dependencies for the scan handler.
func NewDeliveryOverdueScanJob(pool *pgxpool.Pool, logger *slog.Logger, metrics *Metrics) *DeliveryOverdueScanJob {
	return &DeliveryOverdueScanJob{
		Pool:    pool,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

type overdueOrder struct {
	OrderNumber   string
	RequestNumber string
	ProjectName   string
	Status        string
	ExpectedDate  time.Time
}

// Handle processes overdue scan tasks.
func (j *DeliveryOverdueScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Pool == nil {
		return errors.New("delivery overdue scan: handler not configured")
	}
	var payload DeliveryOverdueScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.GraceDays < 0 {
		payload.GraceDays = 0
	}

	tracker := j.metrics().Track(TaskDeliveryOverdueScan)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	cutoff := j.now().AddDate(0, 0, -payload.GraceDays)
	orders, err := j.fetchOverdue(ctx, cutoff)
	if err != nil {
		resultErr = err
		j.logger().Error("scan overdue orders", slog.Any("error", err))
		return resultErr
	}

	logger := j.logger()
	for _, o := range orders {
		logger.Warn("purchase order overdue",
			slog.String("order_number", o.OrderNumber),
			slog.String("request_number", o.RequestNumber),
			slog.String("project", o.ProjectName),
			slog.String("status", o.Status),
			slog.Time("expected_delivery_date", o.ExpectedDate))
	}
	j.metrics().AddOverdue(len(orders))

	logger.Info("completed overdue scan", slog.Int("overdue", len(orders)), slog.Int("grace_days", payload.GraceDays))
	return resultErr
}

func (j *DeliveryOverdueScanJob) fetchOverdue(ctx context.Context, cutoff time.Time) ([]overdueOrder, error) {
	rows, err := j.Pool.Query(ctx, `
SELECT o.order_number, r.request_number, p.name, o.status, r.expected_delivery_date
FROM purchase_orders o
JOIN material_requests r ON r.id = o.request_id
JOIN projects p ON p.id = o.project_id
WHERE o.status IN ('approved', 'printed', 'shipped', 'partially_delivered')
  AND r.expected_delivery_date < $1
ORDER BY r.expected_delivery_date`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := make([]overdueOrder, 0)
	for rows.Next() {
		var o overdueOrder
		if err := rows.Scan(&o.OrderNumber, &o.RequestNumber, &o.ProjectName, &o.Status, &o.ExpectedDate); err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return orders, nil
}

func (j *DeliveryOverdueScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskDeliveryOverdueScan))
	}
	return slog.Default().With(slog.String("job", TaskDeliveryOverdueScan))
}

func (j *DeliveryOverdueScanJob) metrics() *Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *DeliveryOverdueScanJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
