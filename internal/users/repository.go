package users

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/procureflow/procureflow/internal/platform/db"
	"github.com/procureflow/procureflow/internal/workflow"
)

// RepositoryPort defines persistence operations for accounts.
type RepositoryPort interface {
	Get(ctx context.Context, id int64) (*User, error)
	List(ctx context.Context) ([]User, error)
	ListByRole(ctx context.Context, role workflow.Role) ([]Summary, error)
	Create(ctx context.Context, u *User) error
	Update(ctx context.Context, u *User) error
	UpdatePassword(ctx context.Context, id int64, hash string) error
	SetActive(ctx context.Context, id int64, active bool) error
	SetAssignments(ctx context.Context, supervisorID int64, projectIDs, engineerIDs []int64) error
}

// PGRepository implements RepositoryPort backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const userColumns = `id, name, email, password_hash, role, is_active, created_at, updated_at`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	var role string
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &role, &u.IsActive, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.Role = workflow.Role(role)
	return &u, nil
}

// Get fetches a single account, including supervisor assignments.
func (r *PGRepository) Get(ctx context.Context, id int64) (*User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if u.Role == workflow.RoleSupervisor {
		if err := r.loadAssignments(ctx, u); err != nil {
			return nil, err
		}
	}
	return u, nil
}

func (r *PGRepository) loadAssignments(ctx context.Context, u *User) error {
	var err error
	u.AssignedProjectIDs, err = scanIDs(r.pool.Query(ctx,
		`SELECT project_id FROM supervisor_projects WHERE supervisor_id = $1 ORDER BY project_id`, u.ID))
	if err != nil {
		return err
	}
	u.AssignedEngineerIDs, err = scanIDs(r.pool.Query(ctx,
		`SELECT engineer_id FROM supervisor_engineers WHERE supervisor_id = $1 ORDER BY engineer_id`, u.ID))
	return err
}

func scanIDs(rows pgx.Rows, err error) ([]int64, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// SetAssignments replaces the supervisor's project and engineer assignments.
func (r *PGRepository) SetAssignments(ctx context.Context, supervisorID int64, projectIDs, engineerIDs []int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM supervisor_projects WHERE supervisor_id = $1`, supervisorID); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM supervisor_engineers WHERE supervisor_id = $1`, supervisorID); err != nil {
			return err
		}
		for _, id := range projectIDs {
			if _, err := tx.Exec(ctx, `INSERT INTO supervisor_projects (supervisor_id, project_id) VALUES ($1, $2)`, supervisorID, id); err != nil {
				return err
			}
		}
		for _, id := range engineerIDs {
			if _, err := tx.Exec(ctx, `INSERT INTO supervisor_engineers (supervisor_id, engineer_id) VALUES ($1, $2)`, supervisorID, id); err != nil {
				return err
			}
		}
		return nil
	})
}

// List returns every account, newest first.
func (r *PGRepository) List(ctx context.Context) ([]User, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

// ListByRole returns active accounts holding the role, for assignment pickers.
func (r *PGRepository) ListByRole(ctx context.Context, role workflow.Role) ([]Summary, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, email FROM users
WHERE role = $1 AND is_active ORDER BY name`, string(role))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Summary
	for rows.Next() {
		var s Summary
		if err := rows.Scan(&s.ID, &s.Name, &s.Email); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Create inserts a new account.
func (r *PGRepository) Create(ctx context.Context, u *User) error {
	row := r.pool.QueryRow(ctx, `INSERT INTO users (name, email, password_hash, role, is_active)
VALUES ($1, lower($2), $3, $4, $5) RETURNING id, created_at, updated_at`,
		u.Name, u.Email, u.PasswordHash, string(u.Role), u.IsActive)
	if err := row.Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return duplicateErr(err)
	}
	return nil
}

// Update rewrites profile fields and the role.
func (r *PGRepository) Update(ctx context.Context, u *User) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users
SET name = $2, email = lower($3), role = $4, updated_at = NOW() WHERE id = $1`,
		u.ID, u.Name, u.Email, string(u.Role))
	if err != nil {
		return duplicateErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdatePassword stores the new bcrypt hash.
func (r *PGRepository) UpdatePassword(ctx context.Context, id int64, hash string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`, id, hash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetActive toggles the account.
func (r *PGRepository) SetActive(ctx context.Context, id int64, active bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET is_active = $2, updated_at = NOW() WHERE id = $1`, id, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func duplicateErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicateEmail
	}
	return err
}

var _ RepositoryPort = (*PGRepository)(nil)
