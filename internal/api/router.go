package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/Rrens/livedesk/internal/api/handler"
	customMiddleware "github.com/Rrens/livedesk/internal/api/middleware"
	"github.com/Rrens/livedesk/internal/chat"
	"github.com/Rrens/livedesk/internal/config"
	"github.com/Rrens/livedesk/internal/domain"
	"github.com/Rrens/livedesk/internal/repository/postgres"
	"github.com/Rrens/livedesk/internal/repository/redis"
	"github.com/Rrens/livedesk/internal/security"
	"github.com/Rrens/livedesk/internal/ws"
)

// Deps carries the long-lived components the router mounts. The engine and
// gateway are built by the caller because the background loops share them.
type Deps struct {
	Config      *config.Config
	DB          *postgres.DB
	Service     *chat.Service
	Gateway     *ws.Gateway
	Auth        security.Authenticator
	AuthService *security.AuthService
	Sessions    domain.SessionRepository
	Canned      domain.CannedResponseRepository
	Mirror      *redis.PresenceMirror
	RateLimiter *redis.RateLimiter
}

// NewRouter creates and configures the HTTP router
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(customMiddleware.Logger)
	r.Use(middleware.Recoverer)

	// CORS: the widget embeds on customer sites, so origins stay open.
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	authHandler := handler.NewAuthHandler(d.AuthService)
	chatHandler := handler.NewChatHandler(d.Service)
	agentHandler := handler.NewAgentHandler(d.Service, d.Sessions, d.Canned)
	adminHandler := handler.NewAdminHandler(d.Service, d.Mirror)

	authMiddleware := customMiddleware.NewAuthMiddleware(d.Auth)
	rateLimitMiddleware := customMiddleware.NewRateLimitMiddleware(d.RateLimiter)

	// Websocket endpoints sit outside the REST middleware chain; the gateway
	// runs its own authentication.
	r.Get("/ws/customer", d.Gateway.HandleCustomer)
	r.Get("/ws/cs", d.Gateway.HandleAgent)
	r.Get("/ws/admin", d.Gateway.HandleAdmin)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", handler.HealthCheck)
		r.Get("/ready", handler.ReadyCheck(d.DB))

		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", authHandler.Login)
			r.Group(func(r chi.Router) {
				r.Use(authMiddleware.Authenticate)
				r.Get("/me", authHandler.Me)
			})
		})

		// Customer endpoints: anonymous, rate limited.
		r.Route("/chat", func(r chi.Router) {
			r.Use(rateLimitMiddleware.Limit)
			r.Post("/init", chatHandler.Init)
			r.Get("/session/{customerToken}", chatHandler.Session)
			r.Post("/rating", chatHandler.Rating)
		})

		// Dashboard endpoints.
		r.Route("/agent", func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)
			r.Get("/chats/active", agentHandler.ActiveChats)
			r.Get("/chats/history", agentHandler.History)
			r.Get("/chats/{sessionID}/messages", agentHandler.Transcript)
			r.Get("/queue", agentHandler.Queue)
			r.Get("/canned-responses", agentHandler.CannedResponses)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)
			r.Use(customMiddleware.RequireAdmin)
			r.Get("/stats", adminHandler.Stats)
		})
	})

	return r
}
