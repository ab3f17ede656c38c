package auth

import (
	"time"

	"github.com/procureflow/procureflow/internal/workflow"
)

// Account represents a user row as seen by authentication.
type Account struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash string
	Role         workflow.Role
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
