package dashboard

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/procureflow/procureflow/internal/workflow"
)

// PGStatsRepository implements StatsRepositoryPort with GROUP BY counts.
type PGStatsRepository struct {
	pool *pgxpool.Pool
}

// NewStatsRepository constructs a PostgreSQL stats repository.
func NewStatsRepository(pool *pgxpool.Pool) *PGStatsRepository {
	return &PGStatsRepository{pool: pool}
}

// RequestStatusCounts counts requests per status. Zero ids mean unscoped.
func (r *PGStatsRepository) RequestStatusCounts(ctx context.Context, supervisorID, engineerID int64) (map[workflow.Status]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT status, count(*) FROM material_requests
WHERE ($1 = 0 OR supervisor_id = $1) AND ($2 = 0 OR engineer_id = $2)
GROUP BY status`, supervisorID, engineerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[workflow.Status]int64{}
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		out[workflow.Status(status)] = n
	}
	return out, rows.Err()
}

// OrderStatusCounts counts orders per status, optionally scoped to the
// supervisor who raised the underlying request.
func (r *PGStatsRepository) OrderStatusCounts(ctx context.Context, supervisorID int64) (map[workflow.Status]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT o.status, count(*) FROM purchase_orders o
JOIN material_requests r ON r.id = o.request_id
WHERE ($1 = 0 OR r.supervisor_id = $1)
GROUP BY o.status`, supervisorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[workflow.Status]int64{}
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		out[workflow.Status(status)] = n
	}
	return out, rows.Err()
}

// UserCounts returns total and active account counts.
func (r *PGStatsRepository) UserCounts(ctx context.Context) (total, active int64, err error) {
	err = r.pool.QueryRow(ctx, `SELECT count(*), count(*) FILTER (WHERE is_active) FROM users`).Scan(&total, &active)
	return total, active, err
}

var _ StatsRepositoryPort = (*PGStatsRepository)(nil)
