package auth

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/emberfall/emberfall-api/internal/domain"
	"github.com/emberfall/emberfall-api/internal/repository"
	apperrors "github.com/emberfall/emberfall-api/pkg/util"
)

// IdentityResolver maps an opaque session credential to a caller identity.
// The HTTP middleware and the realtime hub share one resolver so both
// surfaces authenticate identically.
type IdentityResolver interface {
	Resolve(ctx context.Context, credential string) (*domain.Identity, error)
}

// Resolver validates the JWT, checks the session is still live and loads
// the current account row. The role on the token is never trusted on its
// own; a role change takes effect on the next resolve.
type Resolver struct {
	tokens   *TokenManager
	sessions SessionStore
	users    repository.UserRepository
}

// NewResolver constructs the resolver.
func NewResolver(tokens *TokenManager, sessions SessionStore, users repository.UserRepository) *Resolver {
	return &Resolver{tokens: tokens, sessions: sessions, users: users}
}

// Resolve implements IdentityResolver.
func (r *Resolver) Resolve(ctx context.Context, credential string) (*domain.Identity, error) {
	if credential == "" {
		return nil, apperrors.NewUnauthenticated("missing credential")
	}
	claims, err := r.tokens.ParseToken(credential)
	if err != nil {
		return nil, apperrors.NewUnauthenticated("invalid token")
	}

	userID, err := r.sessions.Get(ctx, claims.SessionID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil, apperrors.NewUnauthenticated("session expired")
		}
		return nil, apperrors.MapError(err)
	}
	if userID != claims.Subject {
		return nil, apperrors.NewUnauthenticated("session mismatch")
	}

	user, err := r.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewUnauthenticated("account not found")
		}
		return nil, apperrors.MapError(err)
	}

	identity := user.Identity()
	return &identity, nil
}
