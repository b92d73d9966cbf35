package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/Rrens/livedesk/internal/api"
	"github.com/Rrens/livedesk/internal/broker"
	"github.com/Rrens/livedesk/internal/chat"
	"github.com/Rrens/livedesk/internal/config"
	"github.com/Rrens/livedesk/internal/logging"
	"github.com/Rrens/livedesk/internal/presence"
	"github.com/Rrens/livedesk/internal/repository/mongo"
	"github.com/Rrens/livedesk/internal/repository/postgres"
	"github.com/Rrens/livedesk/internal/repository/redis"
	"github.com/Rrens/livedesk/internal/security"
	"github.com/Rrens/livedesk/internal/ws"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if err := logging.Setup(cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "failed to set up logging: %v\n", err)
		os.Exit(1)
	}

	log.Info().
		Str("host", cfg.Server.Host).
		Int("port", cfg.Server.Port).
		Msg("Starting livedesk server")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Storage.
	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	redisClient, err := redis.NewClient(cfg.Redis)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer redisClient.Close()

	sessionRepo := postgres.NewSessionRepository(db.Pool)
	messageRepo := postgres.NewMessageRepository(db.Pool)
	presenceRepo := postgres.NewPresenceRepository(db.Pool)
	userRepo := postgres.NewUserRepository(db.Pool)
	cannedRepo := postgres.NewCannedResponseRepository(db.Pool)
	txStore := postgres.NewTxStore(db.Pool)

	mirror := redis.NewPresenceMirror(redisClient)
	rateLimiter := redis.NewRateLimiter(redisClient, 30, 10)

	// Presence registry rehydrates from the store so a restart keeps
	// capacity counters honest.
	registry := presence.NewRegistry()
	if snapshot, err := presenceRepo.Snapshot(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to rehydrate presence registry")
	} else {
		registry.Rehydrate(snapshot)
	}

	// Engine.
	b := broker.New()
	svc := chat.NewService(cfg.Chat, sessionRepo, messageRepo, presenceRepo, txStore, userRepo, registry, b)
	svc.SetMirror(mirror)

	if cfg.Mongo.URI != "" {
		activity, err := mongo.NewActivityRepository(ctx, cfg.Mongo)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to connect activity sink, auditing disabled")
		} else {
			defer activity.Close(context.Background())
			svc.SetActivitySink(activity)
		}
	}

	dispatcher := chat.NewDispatcher(svc)
	reaper := chat.NewReaper(svc)

	// Auth and surfaces.
	jwtManager := security.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	authenticator := security.NewJWTAuthenticator(jwtManager, userRepo)
	authService := security.NewAuthService(userRepo, jwtManager)
	gateway := ws.NewGateway(svc, b, authenticator, cfg.Chat.HandlerTimeout)

	router := api.NewRouter(api.Deps{
		Config:      cfg,
		DB:          db,
		Service:     svc,
		Gateway:     gateway,
		Auth:        authenticator,
		AuthService: authService,
		Sessions:    sessionRepo,
		Canned:      cannedRepo,
		Mirror:      mirror,
		RateLimiter: rateLimiter,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Msgf("Server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error { return ignoreCancel(dispatcher.Run(gctx)) })
	g.Go(func() error { return ignoreCancel(reaper.Run(gctx)) })
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server forced to shutdown")
		}

		// Nobody is reachable anymore; reflect that in the stores.
		if err := presenceRepo.SetAllOffline(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("Failed to mark agents offline")
		}
		if err := mirror.Flush(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("Failed to flush presence mirror")
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Fatal().Err(err).Msg("Server failed")
	}
	log.Info().Msg("Server stopped")
}

func ignoreCancel(err error) error {
	if err == context.Canceled {
		return nil
	}
	return err
}
