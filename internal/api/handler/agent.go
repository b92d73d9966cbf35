package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Rrens/livedesk/internal/api/middleware"
	"github.com/Rrens/livedesk/internal/api/response"
	"github.com/Rrens/livedesk/internal/chat"
	"github.com/Rrens/livedesk/internal/domain"
)

// AgentHandler serves the dashboard's read endpoints. Mutations go through
// the websocket so their events fan out; REST only reads.
type AgentHandler struct {
	svc      *chat.Service
	sessions domain.SessionRepository
	canned   domain.CannedResponseRepository
}

// NewAgentHandler creates a new agent handler
func NewAgentHandler(svc *chat.Service, sessions domain.SessionRepository, canned domain.CannedResponseRepository) *AgentHandler {
	return &AgentHandler{svc: svc, sessions: sessions, canned: canned}
}

// ActiveChats lists the agent's current active sessions.
func (h *AgentHandler) ActiveChats(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.GetPrincipal(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	sessions, err := h.svc.ActiveChats(r.Context(), p.UserID)
	if err != nil {
		response.Wire(w, err)
		return
	}
	response.OK(w, sessions)
}

// History pages through the agent's resolved sessions.
func (h *AgentHandler) History(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.GetPrincipal(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	limit := queryInt(r, "limit", 20)
	if limit > 100 {
		limit = 100
	}
	offset := queryInt(r, "offset", 0)

	sessions, err := h.sessions.ListResolvedByAgent(r.Context(), p.UserID, limit, offset)
	if err != nil {
		response.Wire(w, err)
		return
	}
	response.OK(w, sessions)
}

// Queue returns the waiting queue in FIFO order.
func (h *AgentHandler) Queue(w http.ResponseWriter, r *http.Request) {
	waiting, err := h.svc.WaitingQueue(r.Context())
	if err != nil {
		response.Wire(w, err)
		return
	}
	response.OK(w, waiting)
}

// Transcript returns the ordered message list of one session.
func (h *AgentHandler) Transcript(w http.ResponseWriter, r *http.Request) {
	sessionID, err := uuid.Parse(chi.URLParam(r, "sessionID"))
	if err != nil {
		response.BadRequest(w, "invalid session ID")
		return
	}

	messages, err := h.svc.Transcript(r.Context(), sessionID)
	if err != nil {
		response.Wire(w, err)
		return
	}
	response.OK(w, messages)
}

// CannedResponses lists the prewritten replies.
func (h *AgentHandler) CannedResponses(w http.ResponseWriter, r *http.Request) {
	responses, err := h.canned.List(r.Context())
	if err != nil {
		response.Wire(w, err)
		return
	}
	response.OK(w, responses)
}

func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def
	}
	return n
}
