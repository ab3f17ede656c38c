package auth

import (
	"context"

	"golang.org/x/crypto/bcrypt"

	"github.com/procureflow/procureflow/internal/shared"
)

// Service wraps authentication business rules.
type Service struct {
	repo   Repository
	tokens *shared.TokenManager
}

// NewService constructs a new Service.
func NewService(repo Repository, tokens *shared.TokenManager) *Service {
	return &Service{repo: repo, tokens: tokens}
}

// Authenticate validates email/password credentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*Account, error) {
	acc, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	if !acc.IsActive {
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	return acc, nil
}

// Login authenticates and issues a bearer token carrying the principal.
func (s *Service) Login(ctx context.Context, email, password string) (string, *shared.Principal, error) {
	acc, err := s.Authenticate(ctx, email, password)
	if err != nil {
		return "", nil, err
	}
	principal := shared.Principal{UserID: acc.ID, Name: acc.Name, Email: acc.Email, Role: acc.Role}
	token, err := s.tokens.Issue(ctx, principal)
	if err != nil {
		return "", nil, err
	}
	return token, &principal, nil
}

// Logout revokes the bearer token.
func (s *Service) Logout(ctx context.Context, token string) error {
	return s.tokens.Revoke(ctx, token)
}
