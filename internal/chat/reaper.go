package chat

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Reaper abandons sessions whose last message is older than the idle
// timeout. It runs on a fixed interval; precision is not a goal, a session
// lives at most interval+timeout.
type Reaper struct {
	svc      *Service
	timeout  time.Duration
	interval time.Duration
}

// NewReaper creates a reaper using the service's chat config
func NewReaper(svc *Service) *Reaper {
	return &Reaper{
		svc:      svc,
		timeout:  svc.cfg.IdleTimeout,
		interval: svc.cfg.ReaperInterval,
	}
}

// Run sweeps until the context is cancelled.
func (r *Reaper) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.sweep(ctx)
		}
	}
}

func (r *Reaper) sweep(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-r.timeout)
	idle, err := r.svc.sessions.ListIdleSince(ctx, cutoff)
	if err != nil {
		log.Error().Err(err).Msg("reaper failed to list idle sessions")
		return
	}

	for _, session := range idle {
		if err := r.svc.AbandonIdle(ctx, session.ID); err != nil {
			// Losing to a concurrent resolve is fine.
			log.Debug().Err(err).Str("session", session.ID.String()).Msg("skipping idle session")
			continue
		}
		log.Info().Str("session", session.ID.String()).Msg("abandoned idle session")
	}
}
