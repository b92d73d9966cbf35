package security

import (
	"context"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/Rrens/livedesk/internal/domain"
)

// AuthService handles staff login.
type AuthService struct {
	users      domain.UserRepository
	jwtManager *JWTManager
}

// NewAuthService creates a new auth service
func NewAuthService(users domain.UserRepository, jwtManager *JWTManager) *AuthService {
	return &AuthService{users: users, jwtManager: jwtManager}
}

// Login authenticates a staff member and issues a bearer token. Unknown
// email and wrong password are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, input domain.UserLogin) (*domain.AuthToken, error) {
	user, err := s.users.GetByEmail(ctx, input.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, ErrInvalidCredential
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		return nil, ErrInvalidCredential
	}

	token, err := s.jwtManager.Generate(user)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	return &domain.AuthToken{
		AccessToken: token,
		ExpiresIn:   int64(s.jwtManager.TokenTTL().Seconds()),
		User:        user,
	}, nil
}
