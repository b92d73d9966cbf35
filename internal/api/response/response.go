package response

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Rrens/livedesk/internal/chat"
	"github.com/Rrens/livedesk/internal/domain"
)

// Response represents a standard API response
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   any    `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
}

// JSON sends a JSON response
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := Response{
		Success: status >= 200 && status < 300,
		Data:    data,
	}

	json.NewEncoder(w).Encode(resp)
}

// Error sends an error response
func Error(w http.ResponseWriter, status int, message any) {
	ErrorCode(w, status, message, "")
}

// ErrorCode sends an error response carrying a stable error code.
func ErrorCode(w http.ResponseWriter, status int, message any, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := Response{
		Success: false,
		Error:   message,
		Code:    code,
	}

	json.NewEncoder(w).Encode(resp)
}

// Wire maps an engine error to its HTTP status and coded body. The codes are
// the same ones the websocket surface emits in system:error frames.
func Wire(w http.ResponseWriter, err error) {
	wire := chat.WireError(err)
	ErrorCode(w, statusFor(err, wire), wire.Message, wire.Code)
}

func statusFor(err error, wire *chat.Error) int {
	switch wire {
	case chat.ErrSessionNotFound:
		return http.StatusNotFound
	case chat.ErrUnauthorized, chat.ErrInvalidSession:
		return http.StatusUnauthorized
	case chat.ErrAlreadyAssigned, chat.ErrAtCapacity, chat.ErrNotOnline,
		chat.ErrNotAssigned, chat.ErrTargetNotOnline, chat.ErrTargetAtCapacity,
		chat.ErrSessionClosed:
		return http.StatusConflict
	case chat.ErrEmptyMessage, chat.ErrInvalidRating:
		return http.StatusBadRequest
	}
	if errors.Is(err, domain.ErrNotFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// NoContent sends a 204 No Content response
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// Created sends a 201 Created response with data
func Created(w http.ResponseWriter, data any) {
	JSON(w, http.StatusCreated, data)
}

// OK sends a 200 OK response with data
func OK(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, data)
}

// BadRequest sends a 400 Bad Request response
func BadRequest(w http.ResponseWriter, message any) {
	Error(w, http.StatusBadRequest, message)
}

// Unauthorized sends a 401 Unauthorized response
func Unauthorized(w http.ResponseWriter, message any) {
	Error(w, http.StatusUnauthorized, message)
}

// Forbidden sends a 403 Forbidden response
func Forbidden(w http.ResponseWriter, message any) {
	Error(w, http.StatusForbidden, message)
}

// NotFound sends a 404 Not Found response
func NotFound(w http.ResponseWriter, message any) {
	Error(w, http.StatusNotFound, message)
}

// InternalError sends a 500 Internal Server Error response
func InternalError(w http.ResponseWriter, message any) {
	Error(w, http.StatusInternalServerError, message)
}
