package jobs

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/procureflow/procureflow/internal/dashboard"
	"github.com/procureflow/procureflow/internal/workflow"
)

type stubStats struct{}

func (stubStats) RequestStatusCounts(ctx context.Context, supervisorID, engineerID int64) (map[workflow.Status]int64, error) {
	return map[workflow.Status]int64{workflow.RequestPendingEngineer: 3}, nil
}

func (stubStats) OrderStatusCounts(ctx context.Context, supervisorID int64) (map[workflow.Status]int64, error) {
	return map[workflow.Status]int64{workflow.OrderApproved: 2}, nil
}

func (stubStats) UserCounts(ctx context.Context) (int64, int64, error) {
	return 10, 8, nil
}

func TestDashboardWarmJobFillsCaches(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	svc := dashboard.NewService(stubStats{}, cache, nil)

	job := NewDashboardWarmJob(svc, nil, nil)
	task, err := NewDashboardWarmTask("manual")
	require.NoError(t, err)

	require.NoError(t, job.Handle(context.Background(), task))
	require.True(t, mr.Exists("dashboard:printer"))
	require.True(t, mr.Exists("dashboard:general_manager"))
}

func TestDashboardWarmJobRejectsGarbagePayload(t *testing.T) {
	job := NewDashboardWarmJob(dashboard.NewService(stubStats{}, nil, nil), nil, nil)
	err := job.Handle(context.Background(), asynq.NewTask(TaskDashboardWarm, []byte("{not json")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}
