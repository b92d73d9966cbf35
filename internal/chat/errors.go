package chat

import (
	"errors"

	"github.com/Rrens/livedesk/internal/domain"
)

// Error is a client-visible failure with a stable code. Codes travel in
// system:error frames and in REST error bodies.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Code + ": " + e.Message
}

var (
	ErrUnauthorized     = &Error{"UNAUTHORIZED", "missing or invalid credential"}
	ErrInvalidSession   = &Error{"INVALID_SESSION", "session does not belong to this connection"}
	ErrSessionNotFound  = &Error{"SESSION_NOT_FOUND", "session not found"}
	ErrEmptyMessage     = &Error{"EMPTY_MESSAGE", "message content is empty"}
	ErrAlreadyAssigned  = &Error{"ALREADY_ASSIGNED", "chat was already accepted by another agent"}
	ErrAtCapacity       = &Error{"AT_CAPACITY", "agent has reached the maximum number of chats"}
	ErrNotOnline        = &Error{"NOT_ONLINE", "agent is not online"}
	ErrNotAssigned      = &Error{"NOT_ASSIGNED", "agent is not assigned to this chat"}
	ErrTargetNotOnline  = &Error{"TARGET_NOT_ONLINE", "transfer target is not online"}
	ErrTargetAtCapacity = &Error{"TARGET_AT_CAPACITY", "transfer target has no free capacity"}
	ErrInvalidRating    = &Error{"INVALID_RATING", "rating must be between 1 and 5"}
	ErrSessionClosed    = &Error{"SESSION_CLOSED", "session is already closed"}

	ErrInitFailed     = &Error{"INIT_FAILED", "failed to start chat"}
	ErrSendFailed     = &Error{"SEND_FAILED", "failed to send message"}
	ErrResolveFailed  = &Error{"RESOLVE_FAILED", "failed to resolve chat"}
	ErrTransferFailed = &Error{"TRANSFER_FAILED", "failed to transfer chat"}
	ErrRatingFailed   = &Error{"RATING_FAILED", "failed to record rating"}
	ErrServerError    = &Error{"SERVER_ERROR", "internal error"}
)

// WireError maps any error to its client-visible form. Store sentinels keep
// their codes; everything unclassified collapses to SERVER_ERROR so internal
// detail never leaks onto the wire.
func WireError(err error) *Error {
	var coded *Error
	if errors.As(err, &coded) {
		return coded
	}

	switch {
	case errors.Is(err, domain.ErrNotFound):
		return ErrSessionNotFound
	case errors.Is(err, domain.ErrAlreadyAssigned):
		return ErrAlreadyAssigned
	case errors.Is(err, domain.ErrAtCapacity):
		return ErrAtCapacity
	case errors.Is(err, domain.ErrNotOnline):
		return ErrNotOnline
	case errors.Is(err, domain.ErrNotAssigned):
		return ErrNotAssigned
	case errors.Is(err, domain.ErrTargetNotOnline):
		return ErrTargetNotOnline
	case errors.Is(err, domain.ErrTargetAtCapacity):
		return ErrTargetAtCapacity
	case errors.Is(err, domain.ErrSessionClosed):
		return ErrSessionClosed
	}
	return ErrServerError
}
