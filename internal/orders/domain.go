// Package orders implements purchase orders: creation against approved
// material requests, general manager approval above the spending limit,
// printing, dispatch and delivery confirmation.
package orders

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/procureflow/procureflow/internal/workflow"
)

// PurchaseOrder is an order issued to a supplier against a material request.
// Ref is the stable identifier used by the approval trail.
type PurchaseOrder struct {
	ID                    int64           `json:"id"`
	Ref                   uuid.UUID       `json:"ref"`
	OrderNumber           string          `json:"order_number"`
	RequestID             int64           `json:"request_id"`
	RequestNumber         string          `json:"request_number,omitempty"`
	ProjectID             int64           `json:"project_id"`
	ProjectName           string          `json:"project_name,omitempty"`
	SupplierName          string          `json:"supplier_name"`
	Items                 []Item          `json:"items"`
	TotalAmount           float64         `json:"total_amount"`
	Notes                 string          `json:"notes,omitempty"`
	ManagerID             int64           `json:"manager_id"`
	Status                workflow.Status `json:"status"`
	PrintedAt             *time.Time      `json:"printed_at,omitempty"`
	ApprovedAt            *time.Time      `json:"approved_at,omitempty"`
	RejectionReason       *string         `json:"rejection_reason,omitempty"`
	SupplierReceiptNumber *string         `json:"supplier_receipt_number,omitempty"`
	DeliveryNotes         *string         `json:"delivery_notes,omitempty"`
	CreatedAt             time.Time       `json:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at"`
}

// Item is an ordered line. DeliveredQuantity accumulates across receipt
// confirmations and never exceeds Quantity.
type Item struct {
	ID                int64   `json:"id"`
	OrderID           int64   `json:"order_id"`
	RequestItemID     int64   `json:"request_item_id"`
	Name              string  `json:"name"`
	Quantity          float64 `json:"quantity"`
	Unit              string  `json:"unit"`
	UnitPrice         float64 `json:"unit_price"`
	TotalPrice        float64 `json:"total_price"`
	DeliveredQuantity float64 `json:"delivered_quantity"`
}

// Complete reports whether the line is fully delivered.
func (i Item) Complete() bool {
	return i.DeliveredQuantity >= i.Quantity
}

// DeliveryStatus derives the order delivery state from item completeness.
func (o PurchaseOrder) DeliveryStatus() workflow.Status {
	all := true
	any := false
	for _, item := range o.Items {
		if item.DeliveredQuantity > 0 {
			any = true
		}
		if !item.Complete() {
			all = false
		}
	}
	if all && len(o.Items) > 0 {
		return workflow.OrderDelivered
	}
	if any {
		return workflow.OrderPartiallyDelivered
	}
	return o.Status
}

// CreateOrderInput describes the creation payload.
type CreateOrderInput struct {
	RequestID    int64       `json:"request_id" validate:"required,gt=0"`
	SupplierName string      `json:"supplier_name" validate:"required"`
	Notes        string      `json:"notes"`
	Items        []ItemInput `json:"items" validate:"required,min=1,dive"`
}

// ItemInput orders a quantity of a request line at a unit price.
type ItemInput struct {
	RequestItemID int64   `json:"request_item_id" validate:"required,gt=0"`
	Quantity      float64 `json:"quantity" validate:"required,gt=0"`
	UnitPrice     float64 `json:"unit_price" validate:"gte=0"`
}

// RejectOrderInput carries the optional general manager rejection reason.
type RejectOrderInput struct {
	Reason string `json:"reason"`
}

// ShipInput carries the optional dispatch note.
type ShipInput struct {
	DeliveryNotes string `json:"delivery_notes"`
}

// ConfirmReceiptInput records delivered quantities against order lines. The
// supplier receipt number is mandatory.
type ConfirmReceiptInput struct {
	SupplierReceiptNumber string             `json:"supplier_receipt_number" validate:"required"`
	DeliveryNotes         string             `json:"delivery_notes"`
	Items                 []ReceiptItemInput `json:"items" validate:"required,min=1,dive"`
}

// ReceiptItemInput is the quantity received now for one order line.
type ReceiptItemInput struct {
	ItemID   int64   `json:"item_id" validate:"required,gt=0"`
	Quantity float64 `json:"quantity" validate:"required,gt=0"`
}

// ListFilters narrows order listings.
type ListFilters struct {
	Status    workflow.Status
	ProjectID int64
	Limit     int
	Offset    int
}

var (
	// ErrNotFound indicates the order does not exist.
	ErrNotFound = errors.New("orders: not found")
	// ErrInvalidState occurs when an action violates the status workflow.
	ErrInvalidState = errors.New("orders: invalid state transition")
	// ErrForbidden occurs when the actor may not touch the order.
	ErrForbidden = errors.New("orders: forbidden")
	// ErrValidation indicates invalid input.
	ErrValidation = errors.New("orders: invalid input")
)
