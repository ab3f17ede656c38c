package projects

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RepositoryPort defines persistence operations for projects.
type RepositoryPort interface {
	Get(ctx context.Context, id int64) (*Project, error)
	List(ctx context.Context) ([]Project, error)
	Create(ctx context.Context, p *Project) error
	Update(ctx context.Context, p *Project) error
	Delete(ctx context.Context, id int64) error
}

// PGRepository implements RepositoryPort backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// projectColumns joins the live aggregates in: request count, order count and
// the summed total of non-rejected purchase orders.
const projectColumns = `p.id, p.name, p.owner_name, p.location, p.description, p.status,
p.created_at, p.updated_at,
(SELECT count(*) FROM material_requests r WHERE r.project_id = p.id),
(SELECT count(*) FROM purchase_orders o WHERE o.project_id = p.id),
COALESCE((SELECT sum(o.total_amount) FROM purchase_orders o
	WHERE o.project_id = p.id AND o.status <> 'rejected'), 0)`

func scanProject(row pgx.Row) (*Project, error) {
	var p Project
	var status string
	if err := row.Scan(&p.ID, &p.Name, &p.OwnerName, &p.Location, &p.Description, &status,
		&p.CreatedAt, &p.UpdatedAt, &p.TotalRequests, &p.TotalOrders, &p.TotalSpent); err != nil {
		return nil, err
	}
	p.Status = Status(status)
	return &p, nil
}

// Get fetches a project with aggregates.
func (r *PGRepository) Get(ctx context.Context, id int64) (*Project, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+projectColumns+` FROM projects p WHERE p.id = $1`, id)
	p, err := scanProject(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

// List returns all projects, newest first.
func (r *PGRepository) List(ctx context.Context) ([]Project, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+projectColumns+` FROM projects p ORDER BY p.created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// Create inserts a new project.
func (r *PGRepository) Create(ctx context.Context, p *Project) error {
	row := r.pool.QueryRow(ctx, `INSERT INTO projects (name, owner_name, location, description, status)
VALUES ($1, $2, $3, $4, $5) RETURNING id, created_at, updated_at`,
		p.Name, p.OwnerName, p.Location, p.Description, string(p.Status))
	return row.Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
}

// Update rewrites the mutable fields.
func (r *PGRepository) Update(ctx context.Context, p *Project) error {
	tag, err := r.pool.Exec(ctx, `UPDATE projects
SET name = $2, owner_name = $3, location = $4, description = $5, status = $6, updated_at = NOW()
WHERE id = $1`, p.ID, p.Name, p.OwnerName, p.Location, p.Description, string(p.Status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a project. Foreign keys guard against deleting projects
// with requests or orders.
func (r *PGRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return ErrInUse
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

var _ RepositoryPort = (*PGRepository)(nil)
