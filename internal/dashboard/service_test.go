package dashboard

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/procureflow/procureflow/internal/shared"
	"github.com/procureflow/procureflow/internal/workflow"
)

type stubStats struct {
	requestCalls int
	requests     map[workflow.Status]int64
	orders       map[workflow.Status]int64
}

func (s *stubStats) RequestStatusCounts(_ context.Context, _, _ int64) (map[workflow.Status]int64, error) {
	s.requestCalls++
	return s.requests, nil
}

func (s *stubStats) OrderStatusCounts(_ context.Context, _ int64) (map[workflow.Status]int64, error) {
	return s.orders, nil
}

func (s *stubStats) UserCounts(_ context.Context) (int64, int64, error) {
	return 10, 8, nil
}

var _ StatsRepositoryPort = (*stubStats)(nil)

func newStub() *stubStats {
	return &stubStats{
		requests: map[workflow.Status]int64{
			workflow.RequestPendingEngineer:    3,
			workflow.RequestApprovedByEngineer: 2,
			workflow.RequestRejectedByEngineer: 1,
		},
		orders: map[workflow.Status]int64{
			workflow.OrderPendingApproval:    1,
			workflow.OrderApproved:           2,
			workflow.OrderPrinted:            3,
			workflow.OrderShipped:            1,
			workflow.OrderPartiallyDelivered: 1,
			workflow.OrderDelivered:          4,
		},
	}
}

func TestSupervisorCounters(t *testing.T) {
	svc := NewService(newStub(), nil, nil)

	stats, err := svc.Stats(context.Background(), shared.Principal{UserID: 1, Role: workflow.RoleSupervisor})
	require.NoError(t, err)
	require.Equal(t, int64(6), stats.Counters["my_requests"])
	require.Equal(t, int64(3), stats.Counters["pending_engineer"])
	require.Equal(t, int64(1), stats.Counters["rejected"])
	require.Equal(t, int64(5), stats.Counters["pending_delivery"])
}

func TestEngineerCounters(t *testing.T) {
	svc := NewService(newStub(), nil, nil)

	stats, err := svc.Stats(context.Background(), shared.Principal{UserID: 2, Role: workflow.RoleEngineer})
	require.NoError(t, err)
	require.Equal(t, int64(3), stats.Counters["pending_review"])
	require.Equal(t, int64(3), stats.Counters["processed"])
}

func TestPrinterCounters(t *testing.T) {
	svc := NewService(newStub(), nil, nil)

	stats, err := svc.Stats(context.Background(), shared.Principal{UserID: 4, Role: workflow.RolePrinter})
	require.NoError(t, err)
	require.Equal(t, int64(2), stats.Counters["to_print"])
	require.Equal(t, int64(3), stats.Counters["printed"])
}

func TestDeliveryStats(t *testing.T) {
	svc := NewService(newStub(), nil, nil)

	stats, err := svc.DeliveryStats(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(5), stats.Counters["pending_delivery"])
	require.Equal(t, int64(4), stats.Counters["delivered"])
}

func TestAdminCounters(t *testing.T) {
	svc := NewService(newStub(), nil, nil)

	stats, err := svc.Stats(context.Background(), shared.Principal{UserID: 9, Role: workflow.RoleAdmin})
	require.NoError(t, err)
	require.Equal(t, int64(10), stats.Counters["users_total"])
	require.Equal(t, int64(8), stats.Counters["users_active"])
	require.Equal(t, int64(12), stats.Counters["orders_total"])
}

func TestStatsCached(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	stub := newStub()
	svc := NewService(stub, client, nil)
	actor := shared.Principal{UserID: 2, Role: workflow.RoleEngineer}

	_, err := svc.Stats(context.Background(), actor)
	require.NoError(t, err)
	_, err = svc.Stats(context.Background(), actor)
	require.NoError(t, err)
	require.Equal(t, 1, stub.requestCalls)
}

func TestWarmFillsSharedCaches(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	svc := NewService(newStub(), client, nil)

	require.NoError(t, svc.Warm(context.Background()))
	require.True(t, mr.Exists("dashboard:printer"))
	require.True(t, mr.Exists("dashboard:general_manager"))
}
