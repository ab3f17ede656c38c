// Package users implements account administration: creating accounts,
// changing roles, password resets and deactivation.
package users

import (
	"errors"
	"time"

	"github.com/procureflow/procureflow/internal/workflow"
)

// User is an application account. The password hash never leaves the module.
// Assignment lists are only populated for supervisors.
type User struct {
	ID                  int64         `json:"id"`
	Name                string        `json:"name"`
	Email               string        `json:"email"`
	PasswordHash        string        `json:"-"`
	Role                workflow.Role `json:"role"`
	IsActive            bool          `json:"is_active"`
	AssignedProjectIDs  []int64       `json:"assigned_project_ids,omitempty"`
	AssignedEngineerIDs []int64       `json:"assigned_engineer_ids,omitempty"`
	CreatedAt           time.Time     `json:"created_at"`
	UpdatedAt           time.Time     `json:"updated_at"`
}

// Summary is the reduced shape used by assignment pickers.
type Summary struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// CreateUserInput describes the account creation payload.
type CreateUserInput struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Role     string `json:"role" validate:"required"`
}

// UpdateUserInput updates profile fields, the role and, for supervisors,
// the project and engineer assignments.
type UpdateUserInput struct {
	Name                string  `json:"name" validate:"required"`
	Email               string  `json:"email" validate:"required,email"`
	Role                string  `json:"role" validate:"required"`
	AssignedProjectIDs  []int64 `json:"assigned_project_ids"`
	AssignedEngineerIDs []int64 `json:"assigned_engineer_ids"`
}

// ResetPasswordInput carries the replacement password.
type ResetPasswordInput struct {
	Password string `json:"password" validate:"required,min=8"`
}

var (
	// ErrNotFound indicates the account does not exist.
	ErrNotFound = errors.New("users: not found")
	// ErrDuplicateEmail occurs when the email is already registered.
	ErrDuplicateEmail = errors.New("users: email already registered")
	// ErrValidation indicates invalid input.
	ErrValidation = errors.New("users: invalid input")
)
