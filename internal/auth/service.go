package auth

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/lingvodoc/lingvodoc/internal/shared"
)

// Service wraps authentication business rules.
type Service struct {
	repo Repository
}

// NewService constructs a new Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Authenticate validates login/password credentials. Deactivated accounts may
// still sign in; authorization restricts them to viewing.
func (s *Service) Authenticate(ctx context.Context, login, password string) (*User, error) {
	user, err := s.repo.FindByLogin(ctx, login)
	if errors.Is(err, ErrUserNotFound) {
		return nil, shared.ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("auth: find user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	return user, nil
}

// Login authenticates and opens a new client for the user.
func (s *Service) Login(ctx context.Context, login, password string, browser bool) (SignIn, error) {
	user, err := s.Authenticate(ctx, login, password)
	if err != nil {
		return SignIn{}, err
	}
	clientID, err := s.repo.CreateClient(ctx, user.ID, browser)
	if err != nil {
		return SignIn{}, err
	}
	return SignIn{UserID: user.ID, ClientID: clientID}, nil
}
