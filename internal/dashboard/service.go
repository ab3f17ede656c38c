// Package dashboard assembles role-scoped counters for the home screens.
// Stats are cached in Redis for a short window; a background job keeps the
// shared role caches warm.
package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/procureflow/procureflow/internal/shared"
	"github.com/procureflow/procureflow/internal/workflow"
)

// cacheTTL bounds staleness of cached dashboards.
const cacheTTL = time.Minute

// Stats is the dashboard payload: counters keyed by what the role cares
// about.
type Stats struct {
	Role        workflow.Role    `json:"role"`
	Counters    map[string]int64 `json:"counters"`
	GeneratedAt time.Time        `json:"generated_at"`
}

// StatsRepositoryPort supplies the aggregate queries.
type StatsRepositoryPort interface {
	RequestStatusCounts(ctx context.Context, supervisorID, engineerID int64) (map[workflow.Status]int64, error)
	OrderStatusCounts(ctx context.Context, supervisorID int64) (map[workflow.Status]int64, error)
	UserCounts(ctx context.Context) (total, active int64, err error)
}

// Service computes and caches dashboard stats.
type Service struct {
	repo   StatsRepositoryPort
	cache  *redis.Client
	logger *slog.Logger
}

// NewService constructs a Service. cache may be nil to disable caching.
func NewService(repo StatsRepositoryPort, cache *redis.Client, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cache: cache, logger: logger}
}

func cacheKey(role workflow.Role, userID int64) string {
	// Supervisor and engineer dashboards are per-user; the rest are shared
	// per role.
	switch role {
	case workflow.RoleSupervisor, workflow.RoleEngineer:
		return fmt.Sprintf("dashboard:%s:%d", role, userID)
	default:
		return fmt.Sprintf("dashboard:%s", role)
	}
}

// Stats returns the dashboard for the acting principal.
func (s *Service) Stats(ctx context.Context, actor shared.Principal) (*Stats, error) {
	key := cacheKey(actor.Role, actor.UserID)
	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, key).Bytes(); err == nil {
			var cached Stats
			if json.Unmarshal(raw, &cached) == nil {
				return &cached, nil
			}
		}
	}
	stats, err := s.compute(ctx, actor)
	if err != nil {
		return nil, err
	}
	s.store(ctx, key, stats)
	return stats, nil
}

func (s *Service) store(ctx context.Context, key string, stats *Stats) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(stats)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, raw, cacheTTL).Err(); err != nil {
		s.logger.Warn("cache dashboard", slog.Any("error", err))
	}
}

func (s *Service) compute(ctx context.Context, actor shared.Principal) (*Stats, error) {
	counters := map[string]int64{}
	stats := &Stats{Role: actor.Role, Counters: counters, GeneratedAt: time.Now()}

	switch actor.Role {
	case workflow.RoleSupervisor:
		reqs, err := s.repo.RequestStatusCounts(ctx, actor.UserID, 0)
		if err != nil {
			return nil, err
		}
		counters["my_requests"] = sum(reqs)
		counters["pending_engineer"] = reqs[workflow.RequestPendingEngineer]
		counters["approved"] = reqs[workflow.RequestApprovedByEngineer] +
			reqs[workflow.RequestPartiallyOrdered] + reqs[workflow.RequestPurchaseOrderIssued]
		counters["rejected"] = reqs[workflow.RequestRejectedByEngineer]
		orders, err := s.repo.OrderStatusCounts(ctx, actor.UserID)
		if err != nil {
			return nil, err
		}
		counters["pending_delivery"] = orders[workflow.OrderPrinted] +
			orders[workflow.OrderShipped] + orders[workflow.OrderPartiallyDelivered]

	case workflow.RoleEngineer:
		reqs, err := s.repo.RequestStatusCounts(ctx, 0, actor.UserID)
		if err != nil {
			return nil, err
		}
		counters["pending_review"] = reqs[workflow.RequestPendingEngineer]
		counters["processed"] = sum(reqs) - reqs[workflow.RequestPendingEngineer]

	case workflow.RoleProcurementManager:
		reqs, err := s.repo.RequestStatusCounts(ctx, 0, 0)
		if err != nil {
			return nil, err
		}
		counters["awaiting_order"] = reqs[workflow.RequestApprovedByEngineer] +
			reqs[workflow.RequestPartiallyOrdered]
		orders, err := s.repo.OrderStatusCounts(ctx, 0)
		if err != nil {
			return nil, err
		}
		counters["orders_total"] = sum(orders)
		counters["pending_approval"] = orders[workflow.OrderPendingApproval]

	case workflow.RolePrinter:
		orders, err := s.repo.OrderStatusCounts(ctx, 0)
		if err != nil {
			return nil, err
		}
		counters["to_print"] = orders[workflow.OrderApproved]
		counters["printed"] = orders[workflow.OrderPrinted]

	case workflow.RoleDeliveryTracker:
		orders, err := s.repo.OrderStatusCounts(ctx, 0)
		if err != nil {
			return nil, err
		}
		counters["pending_delivery"] = orders[workflow.OrderPrinted] +
			orders[workflow.OrderShipped] + orders[workflow.OrderPartiallyDelivered]
		counters["partially_delivered"] = orders[workflow.OrderPartiallyDelivered]
		counters["delivered"] = orders[workflow.OrderDelivered]

	case workflow.RoleGeneralManager:
		orders, err := s.repo.OrderStatusCounts(ctx, 0)
		if err != nil {
			return nil, err
		}
		counters["pending_approvals"] = orders[workflow.OrderPendingApproval]
		counters["orders_total"] = sum(orders)

	case workflow.RoleAdmin:
		total, active, err := s.repo.UserCounts(ctx)
		if err != nil {
			return nil, err
		}
		counters["users_total"] = total
		counters["users_active"] = active
		reqs, err := s.repo.RequestStatusCounts(ctx, 0, 0)
		if err != nil {
			return nil, err
		}
		counters["requests_total"] = sum(reqs)
		orders, err := s.repo.OrderStatusCounts(ctx, 0)
		if err != nil {
			return nil, err
		}
		counters["orders_total"] = sum(orders)
	}
	return stats, nil
}

// DeliveryStats is the tracker stats endpoint: the shared tracker dashboard.
func (s *Service) DeliveryStats(ctx context.Context) (*Stats, error) {
	return s.Stats(ctx, shared.Principal{Role: workflow.RoleDeliveryTracker})
}

// Warm recomputes the shared role dashboards into the cache. Called from the
// background worker.
func (s *Service) Warm(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	for _, role := range []workflow.Role{
		workflow.RoleProcurementManager, workflow.RolePrinter,
		workflow.RoleDeliveryTracker, workflow.RoleGeneralManager, workflow.RoleAdmin,
	} {
		stats, err := s.compute(ctx, shared.Principal{Role: role})
		if err != nil {
			return fmt.Errorf("dashboard: warm %s: %w", role, err)
		}
		s.store(ctx, cacheKey(role, 0), stats)
	}
	return nil
}

func sum(counts map[workflow.Status]int64) int64 {
	var total int64
	for _, n := range counts {
		total += n
	}
	return total
}
