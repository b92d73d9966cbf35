package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Role distinguishes the two staff roles
type Role string

const (
	RoleCS    Role = "cs"
	RoleAdmin Role = "admin"
)

// User represents an authenticated staff member
type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	MaxChats     int       `json:"max_chats"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// UserLogin represents login credentials
type UserLogin struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AuthToken is the bearer token handed to a logged-in agent
type AuthToken struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	User        *User  `json:"user"`
}

// UserRepository defines the interface for user storage
type UserRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
}
