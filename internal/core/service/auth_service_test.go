package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/diagnosphere/skincheck-api/internal/core/domain"
	"github.com/diagnosphere/skincheck-api/internal/pkg/token"
)

type stubAuthRepo struct {
	users  map[string]*domain.User // keyed by email
	nextID int
	err    error
}

func newStubAuthRepo() *stubAuthRepo {
	return &stubAuthRepo{users: make(map[string]*domain.User)}
}

func cloneUser(u *domain.User) *domain.User {
	if u == nil {
		return nil
	}
	clone := *u
	return &clone
}

func (r *stubAuthRepo) Create(_ context.Context, user *domain.User) (*domain.User, error) {
	if r.err != nil {
		return nil, r.err
	}
	if _, exists := r.users[user.Email]; exists {
		return nil, domain.ErrUserExists
	}
	r.nextID++
	copy := cloneUser(user)
	copy.ID = fmt.Sprintf("user-%d", r.nextID)
	r.users[copy.Email] = cloneUser(copy)
	return cloneUser(copy), nil
}

func (r *stubAuthRepo) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	if r.err != nil {
		return nil, r.err
	}
	if u, ok := r.users[email]; ok {
		return cloneUser(u), nil
	}
	return nil, domain.ErrUserNotFound
}

func (r *stubAuthRepo) FindByID(_ context.Context, id string) (*domain.User, error) {
	if r.err != nil {
		return nil, r.err
	}
	for _, u := range r.users {
		if u.ID == id {
			return cloneUser(u), nil
		}
	}
	return nil, domain.ErrUserNotFound
}

type stubRevoker struct {
	revoked map[string]time.Time
	err     error
}

func newStubRevoker() *stubRevoker {
	return &stubRevoker{revoked: make(map[string]time.Time)}
}

func (r *stubRevoker) Revoke(_ context.Context, tokenID string, until time.Time) error {
	if r.err != nil {
		return r.err
	}
	r.revoked[tokenID] = until
	return nil
}

func (r *stubRevoker) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	_, ok := r.revoked[tokenID]
	return ok, r.err
}

func newAuthSvc(repo *stubAuthRepo, revoker *stubRevoker) *AuthService {
	return NewAuthService(repo, revoker, "secret", time.Hour, zerolog.Nop())
}

func TestAuthService_Register_Success(t *testing.T) {
	repo := newStubAuthRepo()
	svc := newAuthSvc(repo, newStubRevoker())

	res, err := svc.Register(context.Background(), "Alice", "alice@example.com", "pw123456")
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if res.Token == "" {
		t.Fatal("expected token")
	}
	if res.User.ID == "" || res.User.Name != "Alice" || res.User.Email != "alice@example.com" {
		t.Fatalf("unexpected user: %+v", res.User)
	}

	stored := repo.users["alice@example.com"]
	if stored.PasswordHash == "pw123456" {
		t.Fatal("expected password to be hashed")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("pw123456")); err != nil {
		t.Fatalf("stored hash does not match password: %v", err)
	}

	claims, err := token.Parse(res.Token, []byte("secret"))
	if err != nil {
		t.Fatalf("token invalid: %v", err)
	}
	if claims.UserID != res.User.ID {
		t.Fatalf("token bound to %q, want %q", claims.UserID, res.User.ID)
	}
}

func TestAuthService_Register_NormalizesEmail(t *testing.T) {
	repo := newStubAuthRepo()
	svc := newAuthSvc(repo, newStubRevoker())

	res, err := svc.Register(context.Background(), "Alice", "  Alice@Example.COM ", "pw")
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if res.User.Email != "alice@example.com" {
		t.Fatalf("expected normalized email, got %q", res.User.Email)
	}
}

func TestAuthService_Register_Validation(t *testing.T) {
	svc := newAuthSvc(newStubAuthRepo(), newStubRevoker())

	cases := []struct{ name, email, password string }{
		{"", "a@example.com", "pw"},
		{"Alice", "", "pw"},
		{"Alice", "a@example.com", ""},
		{"   ", "a@example.com", "pw"},
	}
	for _, tc := range cases {
		if _, err := svc.Register(context.Background(), tc.name, tc.email, tc.password); !errors.Is(err, domain.ErrValidation) {
			t.Errorf("Register(%q, %q, %q): expected ErrValidation, got %v", tc.name, tc.email, tc.password, err)
		}
	}
}

func TestAuthService_Register_MultiBytePasswordTooLong(t *testing.T) {
	repo := newStubAuthRepo()
	svc := newAuthSvc(repo, newStubRevoker())

	// 72 characters, 144 bytes.
	password := strings.Repeat("é", 72)
	_, err := svc.Register(context.Background(), "Alice", "alice@example.com", password)

	var ve *domain.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if ve.Msg != "password must be at most 72 bytes" {
		t.Fatalf("unexpected message: %q", ve.Msg)
	}
	if len(repo.users) != 0 {
		t.Fatal("no user should be stored")
	}
}

func TestAuthService_Register_PasswordAtByteLimit(t *testing.T) {
	svc := newAuthSvc(newStubAuthRepo(), newStubRevoker())

	if _, err := svc.Register(context.Background(), "Alice", "alice@example.com", strings.Repeat("x", 72)); err != nil {
		t.Fatalf("72-byte password should be accepted, got %v", err)
	}
}

func TestAuthService_Register_Duplicate(t *testing.T) {
	svc := newAuthSvc(newStubAuthRepo(), newStubRevoker())

	if _, err := svc.Register(context.Background(), "Bob", "bob@example.com", "pass"); err != nil {
		t.Fatalf("first register failed: %v", err)
	}
	if _, err := svc.Register(context.Background(), "Bobby", "bob@example.com", "pass2"); !errors.Is(err, domain.ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
}

func TestAuthService_Register_StoreError(t *testing.T) {
	repo := newStubAuthRepo()
	repo.err = fmt.Errorf("insert user: %w", domain.ErrStore)
	svc := newAuthSvc(repo, newStubRevoker())

	if _, err := svc.Register(context.Background(), "Bob", "bob@example.com", "pass"); !errors.Is(err, domain.ErrStore) {
		t.Fatalf("expected ErrStore, got %v", err)
	}
}

func TestAuthService_Login_Success(t *testing.T) {
	svc := newAuthSvc(newStubAuthRepo(), newStubRevoker())

	reg, err := svc.Register(context.Background(), "Carol", "carol@example.com", "s3cret")
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}

	res, err := svc.Login(context.Background(), "carol@example.com", "s3cret")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if res.User.ID != reg.User.ID {
		t.Fatalf("unexpected user: %+v", res.User)
	}

	claims, err := token.Parse(res.Token, []byte("secret"))
	if err != nil {
		t.Fatalf("token invalid: %v", err)
	}
	if claims.UserID != reg.User.ID {
		t.Fatalf("expected token for %q, got %q", reg.User.ID, claims.UserID)
	}
	if ttl := time.Until(claims.ExpiresAt.Time); ttl > time.Hour || ttl < 59*time.Minute {
		t.Fatalf("unexpected token ttl %v", ttl)
	}
}

func TestAuthService_Login_InvalidPassword(t *testing.T) {
	svc := newAuthSvc(newStubAuthRepo(), newStubRevoker())

	_, _ = svc.Register(context.Background(), "Dave", "dave@example.com", "goodpass")
	if _, err := svc.Login(context.Background(), "dave@example.com", "badpass"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestAuthService_Login_UserNotFound(t *testing.T) {
	svc := newAuthSvc(newStubAuthRepo(), newStubRevoker())

	if _, err := svc.Login(context.Background(), "ghost@example.com", "pass"); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestAuthService_Login_MissingFields(t *testing.T) {
	svc := newAuthSvc(newStubAuthRepo(), newStubRevoker())

	if _, err := svc.Login(context.Background(), "", "pass"); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestAuthService_DefaultTTLIsSevenDays(t *testing.T) {
	svc := NewAuthService(newStubAuthRepo(), nil, "secret", 0, zerolog.Nop())

	res, err := svc.Register(context.Background(), "Erin", "erin@example.com", "pw")
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	claims, err := token.Parse(res.Token, []byte("secret"))
	if err != nil {
		t.Fatalf("token invalid: %v", err)
	}
	want := time.Now().Add(7 * 24 * time.Hour)
	if diff := claims.ExpiresAt.Time.Sub(want); diff > time.Minute || diff < -time.Minute {
		t.Fatalf("expected expiry near %v, got %v", want, claims.ExpiresAt.Time)
	}
}

func TestAuthService_CurrentUser(t *testing.T) {
	svc := newAuthSvc(newStubAuthRepo(), newStubRevoker())
	reg, _ := svc.Register(context.Background(), "Fay", "fay@example.com", "pw")

	u, err := svc.CurrentUser(context.Background(), reg.User.ID)
	if err != nil {
		t.Fatalf("CurrentUser failed: %v", err)
	}
	if *u != reg.User {
		t.Fatalf("expected %+v, got %+v", reg.User, *u)
	}
}

func TestAuthService_CurrentUser_Deleted(t *testing.T) {
	svc := newAuthSvc(newStubAuthRepo(), newStubRevoker())

	if _, err := svc.CurrentUser(context.Background(), "user-404"); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	if _, err := svc.CurrentUser(context.Background(), ""); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestAuthService_Logout_RevokesToken(t *testing.T) {
	revoker := newStubRevoker()
	svc := newAuthSvc(newStubAuthRepo(), revoker)
	reg, _ := svc.Register(context.Background(), "Gus", "gus@example.com", "pw")

	svc.Logout(context.Background(), reg.Token)

	claims, _ := token.Parse(reg.Token, []byte("secret"))
	until, ok := revoker.revoked[claims.ID]
	if !ok {
		t.Fatal("expected token to be revoked")
	}
	if !until.Equal(claims.ExpiresAt.Time) {
		t.Fatalf("expected revocation until %v, got %v", claims.ExpiresAt.Time, until)
	}
}

func TestAuthService_Logout_NeverFails(t *testing.T) {
	revoker := newStubRevoker()
	revoker.err = errors.New("redis down")
	svc := newAuthSvc(newStubAuthRepo(), revoker)
	reg, _ := svc.Register(context.Background(), "Hal", "hal@example.com", "pw")

	// None of these may panic or surface an error.
	svc.Logout(context.Background(), reg.Token)
	svc.Logout(context.Background(), "")
	svc.Logout(context.Background(), "garbage")

	if len(revoker.revoked) != 0 {
		t.Fatalf("nothing should have been recorded, got %d", len(revoker.revoked))
	}
}

func TestAuthService_Logout_SkipsExpiredToken(t *testing.T) {
	revoker := newStubRevoker()
	svc := newAuthSvc(newStubAuthRepo(), revoker)

	expired, err := token.Issue("user-1", []byte("secret"), -time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	svc.Logout(context.Background(), expired)

	if len(revoker.revoked) != 0 {
		t.Fatal("expired token must not be recorded")
	}
}
