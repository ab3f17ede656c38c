package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/procureflow/procureflow/internal/platform/db"
	"github.com/procureflow/procureflow/internal/workflow"
)

// Scope restricts listings to what the acting role may see.
type Scope struct {
	SupervisorID int64
	Statuses     []workflow.Status
}

// RepositoryPort defines persistence operations for purchase orders.
type RepositoryPort interface {
	Get(ctx context.Context, id int64) (*PurchaseOrder, error)
	List(ctx context.Context, filters ListFilters, scope Scope) ([]PurchaseOrder, int, error)
	Create(ctx context.Context, o *PurchaseOrder) error
	Delete(ctx context.Context, id int64) error
	SetDecision(ctx context.Context, id int64, status workflow.Status, approvedAt *time.Time, reason *string) error
	SetPrinted(ctx context.Context, id int64, printedAt time.Time) error
	SetShipped(ctx context.Context, id int64, notes *string) error
	RecordDelivery(ctx context.Context, o *PurchaseOrder) error
}

// PGRepository implements RepositoryPort backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const orderColumns = `o.id, o.ref, o.order_number, o.request_id, r.request_number, o.project_id, p.name,
o.supplier_name, o.total_amount, o.notes, o.manager_id, o.status, o.printed_at, o.approved_at,
o.rejection_reason, o.supplier_receipt_number, o.delivery_notes, o.created_at, o.updated_at`

const orderJoins = ` FROM purchase_orders o
JOIN material_requests r ON r.id = o.request_id
JOIN projects p ON p.id = o.project_id`

func scanOrder(row pgx.Row) (*PurchaseOrder, error) {
	var o PurchaseOrder
	var status string
	if err := row.Scan(&o.ID, &o.Ref, &o.OrderNumber, &o.RequestID, &o.RequestNumber, &o.ProjectID, &o.ProjectName,
		&o.SupplierName, &o.TotalAmount, &o.Notes, &o.ManagerID, &status, &o.PrintedAt, &o.ApprovedAt,
		&o.RejectionReason, &o.SupplierReceiptNumber, &o.DeliveryNotes, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	o.Status = workflow.Status(status)
	return &o, nil
}

// Get loads an order with its items.
func (r *PGRepository) Get(ctx context.Context, id int64) (*PurchaseOrder, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+orderColumns+orderJoins+` WHERE o.id = $1`, id)
	o, err := scanOrder(row)
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
	o.Items = items
	return o, nil
}

func (r *PGRepository) loadItems(ctx context.Context, orderID int64) ([]Item, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, order_id, request_item_id, name, quantity, unit,
unit_price, total_price, delivered_quantity
FROM purchase_order_items WHERE order_id = $1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Item
	for rows.Next() {
		var item Item
		if err := rows.Scan(&item.ID, &item.OrderID, &item.RequestItemID, &item.Name, &item.Quantity,
			&item.Unit, &item.UnitPrice, &item.TotalPrice, &item.DeliveredQuantity); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// List returns orders visible to the scope, newest first, with a total count.
func (r *PGRepository) List(ctx context.Context, filters ListFilters, scope Scope) ([]PurchaseOrder, int, error) {
	var conds []string
	var args []any
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if scope.SupervisorID > 0 {
		add("r.supervisor_id = $%d", scope.SupervisorID)
	}
	if len(scope.Statuses) > 0 {
		statuses := make([]string, len(scope.Statuses))
		for i, s := range scope.Statuses {
			statuses[i] = string(s)
		}
		add("o.status = ANY($%d)", statuses)
	}
	if filters.Status != "" {
		add("o.status = $%d", string(filters.Status))
	}
	if filters.ProjectID > 0 {
		add("o.project_id = $%d", filters.ProjectID)
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT count(*)`+orderJoins+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := filters.Limit
	if limit <= 0 {
		limit = 20
	}
	args = append(args, limit, filters.Offset)
	query := `SELECT ` + orderColumns + orderJoins + where +
		fmt.Sprintf(" ORDER BY o.created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []PurchaseOrder
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *o)
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

// Create inserts the order header and its items atomically.
func (r *PGRepository) Create(ctx context.Context, o *PurchaseOrder) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `INSERT INTO purchase_orders
(ref, order_number, request_id, project_id, supplier_name, total_amount, notes, manager_id, status, approved_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING id, created_at, updated_at`,
			o.Ref, o.OrderNumber, o.RequestID, o.ProjectID, o.SupplierName, o.TotalAmount,
			o.Notes, o.ManagerID, string(o.Status), o.ApprovedAt)
		if err := row.Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return err
		}
		for i := range o.Items {
			item := &o.Items[i]
			item.OrderID = o.ID
			row := tx.QueryRow(ctx, `INSERT INTO purchase_order_items
(order_id, request_item_id, name, quantity, unit, unit_price, total_price, delivered_quantity)
VALUES ($1, $2, $3, $4, $5, $6, $7, 0) RETURNING id`,
				item.OrderID, item.RequestItemID, item.Name, item.Quantity, item.Unit,
				item.UnitPrice, item.TotalPrice)
			if err := row.Scan(&item.ID); err != nil {
				return err
			}
		}
		return nil
	})
}

// Delete removes the order and its items. Used to unwind a creation whose
// request-side bookkeeping failed.
func (r *PGRepository) Delete(ctx context.Context, id int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM purchase_order_items WHERE order_id = $1`, id); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `DELETE FROM purchase_orders WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// SetDecision records the general manager decision.
func (r *PGRepository) SetDecision(ctx context.Context, id int64, status workflow.Status, approvedAt *time.Time, reason *string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE purchase_orders
SET status = $2, approved_at = $3, rejection_reason = $4, updated_at = NOW() WHERE id = $1`,
		id, string(status), approvedAt, reason)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetPrinted stamps the first print.
func (r *PGRepository) SetPrinted(ctx context.Context, id int64, printedAt time.Time) error {
	tag, err := r.pool.Exec(ctx, `UPDATE purchase_orders
SET status = $2, printed_at = $3, updated_at = NOW() WHERE id = $1`,
		id, string(workflow.OrderPrinted), printedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetShipped marks dispatch.
func (r *PGRepository) SetShipped(ctx context.Context, id int64, notes *string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE purchase_orders
SET status = $2, delivery_notes = COALESCE($3, delivery_notes), updated_at = NOW() WHERE id = $1`,
		id, string(workflow.OrderShipped), notes)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// RecordDelivery persists per-item delivered quantities, the receipt fields
// and the derived status in one transaction.
func (r *PGRepository) RecordDelivery(ctx context.Context, o *PurchaseOrder) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		for _, item := range o.Items {
			tag, err := tx.Exec(ctx, `UPDATE purchase_order_items
SET delivered_quantity = $3 WHERE id = $1 AND order_id = $2`, item.ID, o.ID, item.DeliveredQuantity)
			if err != nil {
				return err
			}
			if tag.RowsAffected() == 0 {
				return fmt.Errorf("%w: item %d not on order", ErrValidation, item.ID)
			}
		}
		tag, err := tx.Exec(ctx, `UPDATE purchase_orders
SET status = $2, supplier_receipt_number = $3, delivery_notes = $4, updated_at = NOW() WHERE id = $1`,
			o.ID, string(o.Status), o.SupplierReceiptNumber, o.DeliveryNotes)
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
