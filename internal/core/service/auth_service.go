package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/diagnosphere/skincheck-api/internal/core/domain"
	"github.com/diagnosphere/skincheck-api/internal/core/ports"
	"github.com/diagnosphere/skincheck-api/internal/pkg/token"
)

// DefaultTokenTTL is the lifetime of an issued bearer token.
const DefaultTokenTTL = 7 * 24 * time.Hour

// maxPasswordBytes is the bcrypt input limit. It counts bytes, not characters.
const maxPasswordBytes = 72

// AuthService implements registration, login, current-user lookup and logout.
type AuthService struct {
	repo      ports.AuthRepository
	revoker   ports.TokenRevoker
	jwtSecret []byte
	tokenTTL  time.Duration
	log       zerolog.Logger
}

func NewAuthService(repo ports.AuthRepository, revoker ports.TokenRevoker, jwtSecret string, tokenTTL time.Duration, log zerolog.Logger) *AuthService {
	if tokenTTL <= 0 {
		tokenTTL = DefaultTokenTTL
	}
	return &AuthService{
		repo:      repo,
		revoker:   revoker,
		jwtSecret: []byte(jwtSecret),
		tokenTTL:  tokenTTL,
		log:       log,
	}
}

func (s *AuthService) Register(ctx context.Context, name, email, password string) (*ports.AuthResult, error) {
	name = strings.TrimSpace(name)
	email = normalizeEmail(email)
	if name == "" || email == "" || password == "" {
		return nil, domain.NewValidationError("all fields are required")
	}
	if len(password) > maxPasswordBytes {
		return nil, domain.NewValidationError(fmt.Sprintf("password must be at most %d bytes", maxPasswordBytes))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	created, err := s.repo.Create(ctx, &domain.User{
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}

	tok, err := token.Issue(created.ID, s.jwtSecret, s.tokenTTL)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}

	s.log.Info().Str("user_id", created.ID).Msg("user registered")
	return &ports.AuthResult{Token: tok, User: created.Public()}, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*ports.AuthResult, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, domain.NewValidationError("email and password are required")
	}

	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, domain.ErrInvalidCredentials
	}

	tok, err := token.Issue(user.ID, s.jwtSecret, s.tokenTTL)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}

	return &ports.AuthResult{Token: tok, User: user.Public()}, nil
}

func (s *AuthService) CurrentUser(ctx context.Context, userID string) (*domain.PublicUser, error) {
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}

	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	pub := user.Public()
	return &pub, nil
}

// Logout revokes rawToken until its natural expiry. The client discards its
// copy regardless, so every failure here is only logged.
func (s *AuthService) Logout(ctx context.Context, rawToken string) {
	if rawToken == "" || s.revoker == nil {
		return
	}

	claims, err := token.ParseForLogout(rawToken, s.jwtSecret)
	if err != nil {
		s.log.Debug().Err(err).Msg("logout with unparseable token")
		return
	}
	if claims.ID == "" || claims.ExpiresAt == nil || claims.ExpiresAt.Time.Before(time.Now()) {
		return
	}

	if err := s.revoker.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		s.log.Warn().Err(err).Str("user_id", claims.UserID).Msg("failed to revoke token on logout")
		return
	}
	s.log.Info().Str("user_id", claims.UserID).Msg("user logged out")
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

