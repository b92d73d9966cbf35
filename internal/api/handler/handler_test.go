package handler_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rrens/livedesk/internal/api/handler"
	"github.com/Rrens/livedesk/internal/api/response"
	"github.com/Rrens/livedesk/internal/chat"
	"github.com/Rrens/livedesk/internal/domain"
	"github.com/Rrens/livedesk/internal/security"
)

func TestHealthCheck(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()

	handler.HealthCheck(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, true, resp["success"])

	data, ok := resp["data"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "ok", data["status"])
}

func TestWireErrorStatuses(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"not found", chat.ErrSessionNotFound, http.StatusNotFound, "SESSION_NOT_FOUND"},
		{"conflict", chat.ErrAlreadyAssigned, http.StatusConflict, "ALREADY_ASSIGNED"},
		{"capacity", chat.ErrAtCapacity, http.StatusConflict, "AT_CAPACITY"},
		{"bad rating", chat.ErrInvalidRating, http.StatusBadRequest, "INVALID_RATING"},
		{"closed", chat.ErrSessionClosed, http.StatusConflict, "SESSION_CLOSED"},
		{"opaque", assertableErr{}, http.StatusInternalServerError, "SERVER_ERROR"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			response.Wire(rec, tc.err)

			assert.Equal(t, tc.status, rec.Code)

			var resp map[string]any
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
			assert.Equal(t, false, resp["success"])
			assert.Equal(t, tc.code, resp["code"])
		})
	}
}

type assertableErr struct{}

func (assertableErr) Error() string { return "boom" }

func TestChatHandler_InitValidation(t *testing.T) {
	h := handler.NewChatHandler(nil)

	t.Run("malformed body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/chat/init", bytes.NewBufferString("{"))
		rec := httptest.NewRecorder()
		h.Init(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("invalid email", func(t *testing.T) {
		req := makeJSONRequest(http.MethodPost, "/api/chat/init", map[string]string{
			"customerName":  "Alice",
			"customerEmail": "not-an-email",
		})
		rec := httptest.NewRecorder()
		h.Init(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

var benchUser = &domain.User{
	ID:    uuid.New(),
	Email: "bench@example.com",
	Name:  "Bench",
	Role:  domain.RoleCS,
}

// BenchmarkJWTGeneration benchmarks token generation
func BenchmarkJWTGeneration(b *testing.B) {
	manager := security.NewJWTManager("benchmark-secret-key-32-chars!!", 12*time.Hour)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = manager.Generate(benchUser)
	}
}

// Helper to make JSON request
func makeJSONRequest(method, path string, body any) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}
