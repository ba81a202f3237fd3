package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/emberfall/emberfall-api/internal/auth"
	"github.com/emberfall/emberfall-api/internal/config"
	"github.com/emberfall/emberfall-api/internal/domain"
	"github.com/emberfall/emberfall-api/internal/repository"
	apperrors "github.com/emberfall/emberfall-api/pkg/util"
)

// AuthService handles account registration and session lifecycle. It backs
// the identity resolution every other surface consumes.
type AuthService struct {
	users      repository.UserRepository
	sessions   auth.SessionStore
	tokens     *auth.TokenManager
	bcryptCost int
}

// AuthDependencies bundles collaborators for the auth service.
type AuthDependencies struct {
	UserRepo     repository.UserRepository
	SessionStore auth.SessionStore
	TokenManager *auth.TokenManager
}

// NewAuthService constructs the service.
func NewAuthService(cfg config.AuthConfig, deps AuthDependencies) *AuthService {
	return &AuthService{
		users:      deps.UserRepo,
		sessions:   deps.SessionStore,
		tokens:     deps.TokenManager,
		bcryptCost: cfg.BcryptCost,
	}
}

// Register creates a new player account and opens a session for it.
func (s *AuthService) Register(ctx context.Context, username, email, password string) (*domain.User, string, time.Time, error) {
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))
	if len(username) < 3 || len(username) > 32 {
		return nil, "", time.Time{}, apperrors.NewValidationError("username must be 3-32 characters", nil)
	}
	if !strings.Contains(email, "@") {
		return nil, "", time.Time{}, apperrors.NewValidationError("valid email required", nil)
	}
	if len(password) < 8 {
		return nil, "", time.Time{}, apperrors.NewValidationError("password must be at least 8 characters", nil)
	}

	if _, err := s.users.GetByUsername(ctx, username); err == nil {
		return nil, "", time.Time{}, apperrors.NewValidationError("username already taken", nil)
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, "", time.Time{}, apperrors.MapError(err)
	}
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, "", time.Time{}, apperrors.NewValidationError("email already registered", nil)
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, "", time.Time{}, apperrors.MapError(err)
	}

	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, "", time.Time{}, apperrors.MapError(err)
	}
	user := &domain.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         domain.RolePlayer,
	}
	if err := s.users.Create(ctx, user); err != nil {
		// a concurrent registration can win the race past the lookups above;
		// the unique constraint is the authority
		if isUniqueViolation(err) {
			return nil, "", time.Time{}, apperrors.NewValidationError("username or email already registered", nil)
		}
		return nil, "", time.Time{}, apperrors.MapError(err)
	}

	token, expiresAt, err := s.openSession(ctx, user)
	if err != nil {
		return nil, "", time.Time{}, err
	}
	return user, token, expiresAt, nil
}

// Login verifies credentials and opens a session.
func (s *AuthService) Login(ctx context.Context, username, password string) (*domain.User, string, time.Time, error) {
	user, err := s.users.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, "", time.Time{}, apperrors.NewUnauthenticated("invalid credentials")
		}
		return nil, "", time.Time{}, apperrors.MapError(err)
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, "", time.Time{}, apperrors.NewUnauthenticated("invalid credentials")
	}

	token, expiresAt, err := s.openSession(ctx, user)
	if err != nil {
		return nil, "", time.Time{}, err
	}
	return user, token, expiresAt, nil
}

// Logout revokes the session behind the credential. Unknown tokens succeed
// silently; the session is gone either way.
func (s *AuthService) Logout(ctx context.Context, credential string) error {
	claims, err := s.tokens.ParseToken(credential)
	if err != nil {
		return nil
	}
	if err := s.sessions.Delete(ctx, claims.SessionID); err != nil {
		return apperrors.MapError(err)
	}
	return nil
}

// isUniqueViolation reports a Postgres unique-constraint failure (23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (s *AuthService) openSession(ctx context.Context, user *domain.User) (string, time.Time, error) {
	sessionID := uuid.NewString()
	if err := s.sessions.Put(ctx, sessionID, user.ID, s.tokens.TTL()); err != nil {
		return "", time.Time{}, apperrors.MapError(err)
	}
	token, expiresAt, err := s.tokens.GenerateToken(user.ID, sessionID, user.Role)
	if err != nil {
		return "", time.Time{}, apperrors.MapError(err)
	}
	return token, expiresAt, nil
}
