// Package projects manages construction projects and their spending
// aggregates.
package projects

import (
	"errors"
	"time"
)

// Status of a project.
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusOnHold    Status = "on_hold"
)

// IsValid reports whether the status is known.
func (s Status) IsValid() bool {
	switch s {
	case StatusActive, StatusCompleted, StatusOnHold:
		return true
	default:
		return false
	}
}

// Project is a construction project. The aggregates are computed from live
// request and order data, never stored.
type Project struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	OwnerName   string    `json:"owner_name"`
	Location    string    `json:"location"`
	Description string    `json:"description"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	TotalRequests int     `json:"total_requests"`
	TotalOrders   int     `json:"total_orders"`
	TotalSpent    float64 `json:"total_spent"`
}

// CreateProjectInput describes the creation payload.
type CreateProjectInput struct {
	Name        string `json:"name" validate:"required"`
	OwnerName   string `json:"owner_name" validate:"required"`
	Location    string `json:"location"`
	Description string `json:"description"`
	Status      string `json:"status" validate:"omitempty,oneof=active completed on_hold"`
}

// UpdateProjectInput replaces the mutable fields.
type UpdateProjectInput struct {
	Name        string `json:"name" validate:"required"`
	OwnerName   string `json:"owner_name" validate:"required"`
	Location    string `json:"location"`
	Description string `json:"description"`
	Status      string `json:"status" validate:"required,oneof=active completed on_hold"`
}

var (
	// ErrNotFound indicates the project does not exist.
	ErrNotFound = errors.New("projects: not found")
	// ErrInUse occurs when deleting a project that has requests or orders.
	ErrInUse = errors.New("projects: project has requests or orders")
)
