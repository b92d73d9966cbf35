package handler

import (
	"net/http"

	"github.com/Rrens/livedesk/internal/api/response"
	"github.com/Rrens/livedesk/internal/chat"
	"github.com/Rrens/livedesk/internal/repository/redis"
)

// AdminHandler serves the monitoring dashboard.
type AdminHandler struct {
	svc    *chat.Service
	mirror *redis.PresenceMirror
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(svc *chat.Service, mirror *redis.PresenceMirror) *AdminHandler {
	return &AdminHandler{svc: svc, mirror: mirror}
}

// Stats returns the dashboard snapshot. The cached copy is served when it is
// fresh; otherwise the snapshot is computed live.
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	if h.mirror != nil {
		if cached, err := h.mirror.GetStats(r.Context()); err == nil && cached != nil {
			response.OK(w, cached)
			return
		}
	}

	stats := h.svc.Stats(r.Context())
	if h.mirror != nil {
		h.mirror.SetStats(r.Context(), stats)
	}
	response.OK(w, stats)
}
