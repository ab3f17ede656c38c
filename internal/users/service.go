package users

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/procureflow/procureflow/internal/shared"
	"github.com/procureflow/procureflow/internal/workflow"
)

// Service implements account administration rules.
type Service struct {
	repo   RepositoryPort
	tokens *shared.TokenManager
	audit  *shared.AuditLogger
	logger *slog.Logger
}

// NewService constructs a Service. tokens may be nil in contexts that never
// deactivate accounts.
func NewService(repo RepositoryPort, tokens *shared.TokenManager, audit *shared.AuditLogger, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, tokens: tokens, audit: audit, logger: logger}
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, userID int64) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "user",
		EntityID: strconv.FormatInt(userID, 10),
	})
	if err != nil {
		s.logger.Error("record audit", slog.Any("error", err))
	}
}

// Get returns a single account.
func (s *Service) Get(ctx context.Context, id int64) (*User, error) {
	return s.repo.Get(ctx, id)
}

// List returns all accounts.
func (s *Service) List(ctx context.Context) ([]User, error) {
	return s.repo.List(ctx)
}

// Engineers lists active engineer accounts for request assignment.
func (s *Service) Engineers(ctx context.Context) ([]Summary, error) {
	return s.repo.ListByRole(ctx, workflow.RoleEngineer)
}

// Create registers a new account with a hashed password.
func (s *Service) Create(ctx context.Context, actor shared.Principal, in CreateUserInput) (*User, error) {
	role := workflow.Role(strings.ToLower(in.Role))
	if !role.IsValid() {
		return nil, fmt.Errorf("%w: unknown role %q", ErrValidation, in.Role)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	u := &User{
		Name:         in.Name,
		Email:        strings.ToLower(in.Email),
		PasswordHash: string(hash),
		Role:         role,
		IsActive:     true,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}
	s.recordAudit(ctx, actor.UserID, "user.create", u.ID)
	return u, nil
}

// Update rewrites profile fields and the role. A role change takes effect on
// the next login; existing tokens are revoked so the stale role cannot act.
func (s *Service) Update(ctx context.Context, actor shared.Principal, id int64, in UpdateUserInput) (*User, error) {
	role := workflow.Role(strings.ToLower(in.Role))
	if !role.IsValid() {
		return nil, fmt.Errorf("%w: unknown role %q", ErrValidation, in.Role)
	}
	u, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	roleChanged := u.Role != role
	u.Name = in.Name
	u.Email = strings.ToLower(in.Email)
	u.Role = role
	if err := s.repo.Update(ctx, u); err != nil {
		return nil, err
	}
	if role == workflow.RoleSupervisor {
		if err := s.repo.SetAssignments(ctx, id, in.AssignedProjectIDs, in.AssignedEngineerIDs); err != nil {
			return nil, err
		}
	}
	if roleChanged {
		s.revokeTokens(ctx, id)
	}
	s.recordAudit(ctx, actor.UserID, "user.update", id)
	return s.repo.Get(ctx, id)
}

// ResetPassword replaces the password and revokes every open session.
func (s *Service) ResetPassword(ctx context.Context, actor shared.Principal, id int64, password string) error {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	if err := s.repo.UpdatePassword(ctx, id, string(hash)); err != nil {
		return err
	}
	s.revokeTokens(ctx, id)
	s.recordAudit(ctx, actor.UserID, "user.reset_password", id)
	return nil
}

// ToggleActive flips the active flag. Deactivation revokes open sessions so
// the account is locked out immediately.
func (s *Service) ToggleActive(ctx context.Context, actor shared.Principal, id int64) (*User, error) {
	if actor.UserID == id {
		return nil, fmt.Errorf("%w: you cannot deactivate your own account", ErrValidation)
	}
	u, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	next := !u.IsActive
	if err := s.repo.SetActive(ctx, id, next); err != nil {
		return nil, err
	}
	if !next {
		s.revokeTokens(ctx, id)
	}
	s.recordAudit(ctx, actor.UserID, "user.toggle_active", id)
	u.IsActive = next
	return u, nil
}

// Deactivate switches an account off. Accounts are never deleted; history
// keeps pointing at them.
func (s *Service) Deactivate(ctx context.Context, actor shared.Principal, id int64) error {
	if actor.UserID == id {
		return fmt.Errorf("%w: you cannot deactivate your own account", ErrValidation)
	}
	if _, err := s.repo.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.SetActive(ctx, id, false); err != nil {
		return err
	}
	s.revokeTokens(ctx, id)
	s.recordAudit(ctx, actor.UserID, "user.deactivate", id)
	return nil
}

func (s *Service) revokeTokens(ctx context.Context, userID int64) {
	if s.tokens == nil {
		return
	}
	if err := s.tokens.RevokeUser(ctx, userID); err != nil {
		s.logger.Error("revoke sessions", slog.Int64("user_id", userID), slog.Any("error", err))
	}
}
