// Package requests implements material requests: creation by supervisors,
// engineer approval, and hand-off to procurement.
package requests

import (
	"errors"
	"time"

	"github.com/procureflow/procureflow/internal/workflow"
)

// Request is a material request raised by a supervisor for a project.
type Request struct {
	ID                   int64           `json:"id"`
	RequestNumber        string          `json:"request_number"`
	ProjectID            int64           `json:"project_id"`
	ProjectName          string          `json:"project_name,omitempty"`
	Reason               string          `json:"reason"`
	SupervisorID         int64           `json:"supervisor_id"`
	EngineerID           int64           `json:"engineer_id"`
	ExpectedDeliveryDate time.Time       `json:"expected_delivery_date"`
	Status               workflow.Status `json:"status"`
	RejectionReason      *string         `json:"rejection_reason,omitempty"`
	Items                []Item          `json:"items"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

// Item is a single requested line. OrderedQuantity tracks how much of the
// line has been covered by purchase orders; a request closes when every line
// is fully covered.
type Item struct {
	ID              int64    `json:"id"`
	RequestID       int64    `json:"request_id"`
	Name            string   `json:"name"`
	Quantity        float64  `json:"quantity"`
	Unit            string   `json:"unit"`
	EstimatedPrice  *float64 `json:"estimated_price,omitempty"`
	OrderedQuantity float64  `json:"ordered_quantity"`
}

// Remaining returns the quantity not yet covered by purchase orders.
func (i Item) Remaining() float64 {
	remaining := i.Quantity - i.OrderedQuantity
	if remaining < 0 {
		return 0
	}
	return remaining
}

// FullyOrdered reports whether the whole request is covered by orders.
func (r Request) FullyOrdered() bool {
	for _, item := range r.Items {
		if item.Remaining() > 0 {
			return false
		}
	}
	return len(r.Items) > 0
}

// CreateRequestInput describes the creation payload.
type CreateRequestInput struct {
	ProjectID            int64       `json:"project_id" validate:"required,gt=0"`
	Reason               string      `json:"reason" validate:"required"`
	EngineerID           int64       `json:"engineer_id" validate:"required,gt=0"`
	ExpectedDeliveryDate time.Time   `json:"expected_delivery_date" validate:"required"`
	Items                []ItemInput `json:"items" validate:"required,min=1,dive"`
}

// ItemInput describes a requested line.
type ItemInput struct {
	Name           string   `json:"name" validate:"required"`
	Quantity       float64  `json:"quantity" validate:"required,gt=0"`
	Unit           string   `json:"unit" validate:"required"`
	EstimatedPrice *float64 `json:"estimated_price,omitempty" validate:"omitempty,gte=0"`
}

// EditRequestInput replaces the editable fields of a pending request.
type EditRequestInput struct {
	ProjectID            int64       `json:"project_id" validate:"required,gt=0"`
	Reason               string      `json:"reason" validate:"required"`
	EngineerID           int64       `json:"engineer_id" validate:"required,gt=0"`
	ExpectedDeliveryDate time.Time   `json:"expected_delivery_date" validate:"required"`
	Items                []ItemInput `json:"items" validate:"required,min=1,dive"`
}

// RejectInput carries the mandatory rejection reason.
type RejectInput struct {
	Reason string `json:"reason" validate:"required"`
}

// ListFilters narrows request listings.
type ListFilters struct {
	Status    workflow.Status
	ProjectID int64
	Search    string
	Limit     int
	Offset    int
}

var (
	// ErrNotFound indicates record missing.
	ErrNotFound = errors.New("requests: not found")
	// ErrInvalidState occurs when an action violates the status workflow.
	ErrInvalidState = errors.New("requests: invalid state transition")
	// ErrForbidden occurs when the actor may not touch the request.
	ErrForbidden = errors.New("requests: forbidden")
	// ErrValidation indicates invalid input.
	ErrValidation = errors.New("requests: invalid input")
)
