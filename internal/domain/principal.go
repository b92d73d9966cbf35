package domain

import "github.com/google/uuid"

// PrincipalKind tags the two connection identities
type PrincipalKind string

const (
	PrincipalCustomer PrincipalKind = "customer"
	PrincipalAgent    PrincipalKind = "agent"
)

// Principal is the identity bound to a connection for its lifetime. A
// customer principal may start latent: SessionID is nil until start_chat.
type Principal struct {
	Kind PrincipalKind

	// Customer fields
	SessionID     *uuid.UUID
	CustomerToken string

	// Agent fields
	UserID uuid.UUID
	Name   string
	Role   Role
}

// IsAdmin reports whether the principal is an admin agent.
func (p Principal) IsAdmin() bool {
	return p.Kind == PrincipalAgent && p.Role == RoleAdmin
}

// Owns reports whether the principal's customer session matches id.
func (p Principal) Owns(id uuid.UUID) bool {
	return p.Kind == PrincipalCustomer && p.SessionID != nil && *p.SessionID == id
}
