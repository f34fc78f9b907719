package ports

import (
	"context"

	"github.com/diagnosphere/skincheck-api/internal/core/domain"
)

// AuthResult is returned by register and login.
type AuthResult struct {
	Token string
	User  domain.PublicUser
}

type AuthService interface {
	Register(ctx context.Context, name, email, password string) (*AuthResult, error)
	Login(ctx context.Context, email, password string) (*AuthResult, error)
	CurrentUser(ctx context.Context, userID string) (*domain.PublicUser, error)
	// Logout never fails; revocation problems are logged and dropped.
	Logout(ctx context.Context, rawToken string)
}
