package requests

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/procureflow/procureflow/internal/platform/db"
	"github.com/procureflow/procureflow/internal/workflow"
)

// Scope restricts listings to what the acting role may see.
type Scope struct {
	SupervisorID int64
	EngineerID   int64
	Statuses     []workflow.Status
}

// RepositoryPort defines persistence operations for material requests.
type RepositoryPort interface {
	Get(ctx context.Context, id int64) (*Request, error)
	List(ctx context.Context, filters ListFilters, scope Scope) ([]Request, int, error)
	Create(ctx context.Context, req *Request) error
	Replace(ctx context.Context, req *Request) error
	UpdateStatus(ctx context.Context, id int64, status workflow.Status, rejectionReason *string) error
	RecordOrdered(ctx context.Context, id int64, ordered map[int64]float64, status workflow.Status) error
}

// PGRepository implements RepositoryPort backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const requestColumns = `r.id, r.request_number, r.project_id, p.name, r.reason, r.supervisor_id,
r.engineer_id, r.expected_delivery_date, r.status, r.rejection_reason, r.created_at, r.updated_at`

func scanRequest(row pgx.Row) (*Request, error) {
	var req Request
	var status string
	if err := row.Scan(&req.ID, &req.RequestNumber, &req.ProjectID, &req.ProjectName, &req.Reason,
		&req.SupervisorID, &req.EngineerID, &req.ExpectedDeliveryDate, &status,
		&req.RejectionReason, &req.CreatedAt, &req.UpdatedAt); err != nil {
		return nil, err
	}
	req.Status = workflow.Status(status)
	return &req, nil
}

// Get loads a request with its items.
func (r *PGRepository) Get(ctx context.Context, id int64) (*Request, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+requestColumns+`
FROM material_requests r JOIN projects p ON p.id = r.project_id WHERE r.id = $1`, id)
	req, err := scanRequest(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	items, err := r.loadItems(ctx, id)
	if err != nil {
		return nil, err
	}
	req.Items = items
	return req, nil
}

func (r *PGRepository) loadItems(ctx context.Context, requestID int64) ([]Item, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, request_id, name, quantity, unit, estimated_price, ordered_quantity
FROM material_request_items WHERE request_id = $1 ORDER BY id`, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Item
	for rows.Next() {
		var item Item
		if err := rows.Scan(&item.ID, &item.RequestID, &item.Name, &item.Quantity, &item.Unit,
			&item.EstimatedPrice, &item.OrderedQuantity); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// List returns requests visible to the scope, newest first, with a total count.
func (r *PGRepository) List(ctx context.Context, filters ListFilters, scope Scope) ([]Request, int, error) {
	var conds []string
	var args []any
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if scope.SupervisorID > 0 {
		add("r.supervisor_id = $%d", scope.SupervisorID)
	}
	if scope.EngineerID > 0 {
		add("r.engineer_id = $%d", scope.EngineerID)
	}
	if len(scope.Statuses) > 0 {
		statuses := make([]string, len(scope.Statuses))
		for i, s := range scope.Statuses {
			statuses[i] = string(s)
		}
		add("r.status = ANY($%d)", statuses)
	}
	if filters.Status != "" {
		add("r.status = $%d", string(filters.Status))
	}
	if filters.ProjectID > 0 {
		add("r.project_id = $%d", filters.ProjectID)
	}
	if filters.Search != "" {
		add("(r.request_number ILIKE '%%' || $%d || '%%' OR r.reason ILIKE '%%' || $%[1]d || '%%')", filters.Search)
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM material_requests r`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := filters.Limit
	if limit <= 0 {
		limit = 20
	}
	args = append(args, limit, filters.Offset)
	query := `SELECT ` + requestColumns + `
FROM material_requests r JOIN projects p ON p.id = r.project_id` + where +
		fmt.Sprintf(" ORDER BY r.created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *req)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	for i := range out {
		items, err := r.loadItems(ctx, out[i].ID)
		if err != nil {
			return nil, 0, err
		}
		out[i].Items = items
	}
	return out, total, nil
}

// Create inserts the request header and its items atomically.
func (r *PGRepository) Create(ctx context.Context, req *Request) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `INSERT INTO material_requests
(request_number, project_id, reason, supervisor_id, engineer_id, expected_delivery_date, status)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id, created_at, updated_at`,
			req.RequestNumber, req.ProjectID, req.Reason, req.SupervisorID,
			req.EngineerID, req.ExpectedDeliveryDate, string(req.Status))
		if err := row.Scan(&req.ID, &req.CreatedAt, &req.UpdatedAt); err != nil {
			return err
		}
		return insertItems(ctx, tx, req)
	})
}

func insertItems(ctx context.Context, tx pgx.Tx, req *Request) error {
	for i := range req.Items {
		item := &req.Items[i]
		item.RequestID = req.ID
		row := tx.QueryRow(ctx, `INSERT INTO material_request_items
(request_id, name, quantity, unit, estimated_price, ordered_quantity)
VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
			item.RequestID, item.Name, item.Quantity, item.Unit, item.EstimatedPrice, item.OrderedQuantity)
		if err := row.Scan(&item.ID); err != nil {
			return err
		}
	}
	return nil
}

// Replace rewrites the editable fields and the item list of a request.
func (r *PGRepository) Replace(ctx context.Context, req *Request) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE material_requests
SET project_id = $2, reason = $3, engineer_id = $4, expected_delivery_date = $5, updated_at = NOW()
WHERE id = $1`, req.ID, req.ProjectID, req.Reason, req.EngineerID, req.ExpectedDeliveryDate)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		if _, err := tx.Exec(ctx, `DELETE FROM material_request_items WHERE request_id = $1`, req.ID); err != nil {
			return err
		}
		return insertItems(ctx, tx, req)
	})
}

// UpdateStatus moves the request to the given status.
func (r *PGRepository) UpdateStatus(ctx context.Context, id int64, status workflow.Status, rejectionReason *string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE material_requests
SET status = $2, rejection_reason = $3, updated_at = NOW() WHERE id = $1`, id, string(status), rejectionReason)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// RecordOrdered bumps ordered quantities on the given items and moves the
// request status in the same transaction.
func (r *PGRepository) RecordOrdered(ctx context.Context, id int64, ordered map[int64]float64, status workflow.Status) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		for itemID, qty := range ordered {
			tag, err := tx.Exec(ctx, `UPDATE material_request_items
SET ordered_quantity = ordered_quantity + $3 WHERE id = $1 AND request_id = $2`, itemID, id, qty)
			if err != nil {
				return err
			}
			if tag.RowsAffected() == 0 {
				return fmt.Errorf("%w: item %d not on request", ErrValidation, itemID)
			}
		}
		tag, err := tx.Exec(ctx, `UPDATE material_requests
SET status = $2, updated_at = NOW() WHERE id = $1`, id, string(status))
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

var _ RepositoryPort = (*PGRepository)(nil)
