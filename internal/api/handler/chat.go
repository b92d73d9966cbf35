package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Rrens/livedesk/internal/api/response"
	"github.com/Rrens/livedesk/internal/chat"
	"github.com/Rrens/livedesk/internal/domain"
)

// ChatHandler is the REST side of the customer widget: session bootstrap for
// clients that cannot open the socket first, restore, and ratings.
type ChatHandler struct {
	svc *chat.Service
}

// NewChatHandler creates a new chat handler
func NewChatHandler(svc *chat.Service) *ChatHandler {
	return &ChatHandler{svc: svc}
}

// Init creates a session over plain HTTP. The widget connects the websocket
// afterwards with the returned customer token.
func (h *ChatHandler) Init(w http.ResponseWriter, r *http.Request) {
	var input domain.ChatInitRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if err := validate.Struct(input); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	res, err := h.svc.StartChat(r.Context(), input)
	if err != nil {
		response.Wire(w, err)
		return
	}

	response.Created(w, res)
}

// Session returns the session state and full transcript for a customer
// token. Powers page-reload recovery when the socket is not up yet.
func (h *ChatHandler) Session(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "customerToken")
	if token == "" {
		response.BadRequest(w, "missing customer token")
		return
	}

	session, restored, err := h.svc.RestoreSession(r.Context(), token)
	if err != nil {
		response.Wire(w, err)
		return
	}

	response.OK(w, map[string]any{
		"session":  session,
		"restored": restored,
	})
}

// Rating records the post-chat rating.
func (h *ChatHandler) Rating(w http.ResponseWriter, r *http.Request) {
	var input domain.RatingRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if err := validate.Struct(input); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	if err := h.svc.SetRating(r.Context(), input.CustomerToken, input.Rating, input.Feedback); err != nil {
		response.Wire(w, err)
		return
	}

	response.OK(w, map[string]string{"message": "rating recorded"})
}
