package security_test

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Rrens/livedesk/internal/domain"
	"github.com/Rrens/livedesk/internal/security"
)

func testUser() *domain.User {
	return &domain.User{
		ID:    uuid.New(),
		Email: "agent@example.com",
		Name:  "Budi",
		Role:  domain.RoleCS,
	}
}

func TestJWTManager_GenerateAndValidate(t *testing.T) {
	manager := security.NewJWTManager("test-secret-key-with-32-chars!!", 12*time.Hour)
	user := testUser()

	token, err := manager.Generate(user)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}
	if token == "" {
		t.Error("token is empty")
	}

	claims, err := manager.Validate(token)
	if err != nil {
		t.Fatalf("failed to validate token: %v", err)
	}

	if claims.UserID != user.ID {
		t.Errorf("user ID mismatch: got %v, want %v", claims.UserID, user.ID)
	}
	if claims.Email != user.Email {
		t.Errorf("email mismatch: got %v, want %v", claims.Email, user.Email)
	}
	if claims.Role != domain.RoleCS {
		t.Errorf("role mismatch: got %v, want %v", claims.Role, domain.RoleCS)
	}
}

func TestJWTManager_InvalidToken(t *testing.T) {
	manager := security.NewJWTManager("test-secret-key-with-32-chars!!", 12*time.Hour)

	// Invalid token format
	if _, err := manager.Validate("invalid-token"); err == nil {
		t.Error("expected error for invalid token, got nil")
	}

	// Empty token
	if _, err := manager.Validate(""); err == nil {
		t.Error("expected error for empty token, got nil")
	}

	// Token signed with different secret
	otherManager := security.NewJWTManager("different-secret-key-32-chars!!", 12*time.Hour)
	token, _ := otherManager.Generate(testUser())

	if _, err := manager.Validate(token); err == nil {
		t.Error("expected error for token signed with different secret, got nil")
	}
}

func TestJWTManager_TokenTTL(t *testing.T) {
	ttl := 30 * time.Minute
	manager := security.NewJWTManager("test-secret-key-with-32-chars!!", ttl)

	if manager.TokenTTL() != ttl {
		t.Errorf("token TTL mismatch: got %v, want %v", manager.TokenTTL(), ttl)
	}
}

func TestNewCustomerToken(t *testing.T) {
	a, err := security.NewCustomerToken()
	if err != nil {
		t.Fatalf("failed to generate customer token: %v", err)
	}
	b, err := security.NewCustomerToken()
	if err != nil {
		t.Fatalf("failed to generate customer token: %v", err)
	}

	if len(a) != 64 {
		t.Errorf("token length mismatch: got %d, want 64", len(a))
	}
	if a == b {
		t.Error("two tokens must not collide")
	}
}
