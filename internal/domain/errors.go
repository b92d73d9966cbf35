package domain

import "errors"

// Sentinel errors shared by the store implementations and the chat engine.
// The wire-level code mapping lives in the chat package.
var (
	ErrNotFound         = errors.New("not found")
	ErrAlreadyAssigned  = errors.New("session already assigned")
	ErrAtCapacity       = errors.New("agent at capacity")
	ErrNotOnline        = errors.New("agent not online")
	ErrNotAssigned      = errors.New("agent not assigned to session")
	ErrTargetNotOnline  = errors.New("transfer target not online")
	ErrTargetAtCapacity = errors.New("transfer target at capacity")
	ErrSessionClosed    = errors.New("session is closed")
)
