package chat

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Dispatcher drains the waiting queue onto available agents. It wakes on an
// explicit kick (new chat, agent online, chat resolved) and on a slow tick
// as a safety net. Kicks coalesce: one buffered slot is enough because a
// single drain pass consumes the whole backlog.
type Dispatcher struct {
	svc  *Service
	kick chan struct{}
	tick time.Duration
}

// NewDispatcher creates a dispatcher over the given service
func NewDispatcher(svc *Service) *Dispatcher {
	d := &Dispatcher{
		svc:  svc,
		kick: make(chan struct{}, 1),
		tick: 15 * time.Second,
	}
	svc.SetDispatcher(d)
	return d
}

// Kick schedules a drain pass. Never blocks.
func (d *Dispatcher) Kick() {
	select {
	case d.kick <- struct{}{}:
	default:
	}
}

// Run drains the queue until the context is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-d.kick:
		case <-ticker.C:
		}
		d.drain(ctx)
	}
}

// drain assigns as many waiting sessions as current capacity allows, oldest
// first. A session that loses its race (accepted manually mid-pass) is
// skipped, not retried.
func (d *Dispatcher) drain(ctx context.Context) {
	waiting, err := d.svc.sessions.ListWaiting(ctx)
	if err != nil {
		log.Error().Err(err).Msg("dispatcher failed to list waiting sessions")
		return
	}
	if len(waiting) == 0 {
		return
	}

	assigned := 0
	for _, session := range waiting {
		if _, _, ok := d.svc.tryAssign(ctx, session.ID); !ok {
			if _, avail := d.svc.registry.PickAvailable(); !avail {
				break
			}
			continue
		}
		assigned++
	}

	if assigned > 0 {
		log.Info().Int("assigned", assigned).Int("waiting", len(waiting)-assigned).
			Msg("dispatcher drained queue")
		d.svc.refreshQueue(ctx)
	}
}
