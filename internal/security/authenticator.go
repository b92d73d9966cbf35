package security

import (
	"context"
	"errors"
	"fmt"

	"github.com/Rrens/livedesk/internal/domain"
)

// ErrInvalidCredential is returned for tokens that fail validation or map to
// no known user.
var ErrInvalidCredential = errors.New("invalid credential")

// Authenticator resolves a bearer credential to a Principal. The gateway and
// the REST middleware depend only on this interface; the identity system
// behind it is replaceable.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*domain.Principal, error)
}

// JWTAuthenticator authenticates agents via signed bearer tokens, confirming
// the subject against the user store so revoked accounts drop out at the
// next connect.
type JWTAuthenticator struct {
	jwtManager *JWTManager
	users      domain.UserRepository
}

// NewJWTAuthenticator creates a new JWT-backed authenticator
func NewJWTAuthenticator(jwtManager *JWTManager, users domain.UserRepository) *JWTAuthenticator {
	return &JWTAuthenticator{jwtManager: jwtManager, users: users}
}

// Authenticate validates the token and returns the agent principal
func (a *JWTAuthenticator) Authenticate(ctx context.Context, token string) (*domain.Principal, error) {
	claims, err := a.jwtManager.Validate(token)
	if err != nil {
		return nil, ErrInvalidCredential
	}

	user, err := a.users.GetByID(ctx, claims.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil {
		return nil, ErrInvalidCredential
	}

	return &domain.Principal{
		Kind:   domain.PrincipalAgent,
		UserID: user.ID,
		Name:   user.Name,
		Role:   user.Role,
	}, nil
}
