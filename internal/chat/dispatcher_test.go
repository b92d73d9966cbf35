package chat

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/Rrens/livedesk/internal/domain"
)

func TestDispatcher_Drain(t *testing.T) {
	ctx := context.Background()

	t.Run("assigns oldest-first to the least-loaded agent", func(t *testing.T) {
		f := newFixture(testConfig())
		d := NewDispatcher(f.svc)

		busy := f.onlineAgent("Budi", 2, 3)
		idleAgent := f.onlineAgent("Sari", 0, 3)

		first := *waitingSession(uuid.New())
		second := *waitingSession(uuid.New())
		f.sessions.On("ListWaiting", ctx).Return([]domain.ChatSession{first, second}, nil)

		// Least-loaded first, then the next chat lands on whoever has room.
		f.store.On("Assign", ctx, first.ID, idleAgent, "Sari").
			Return(activeSession(first.ID, idleAgent), sysMsg(first.ID), nil)
		f.store.On("Assign", ctx, second.ID, idleAgent, "Sari").
			Return(activeSession(second.ID, idleAgent), sysMsg(second.ID), nil)

		d.drain(ctx)

		p, _ := f.registry.Get(idleAgent)
		assert.Equal(t, 2, p.CurrentChats)
		b, _ := f.registry.Get(busy)
		assert.Equal(t, 2, b.CurrentChats)
		f.store.AssertExpectations(t)
	})

	t.Run("stops when capacity runs out", func(t *testing.T) {
		f := newFixture(testConfig())
		d := NewDispatcher(f.svc)

		agent := f.onlineAgent("Budi", 2, 3)

		first := *waitingSession(uuid.New())
		second := *waitingSession(uuid.New())
		f.sessions.On("ListWaiting", ctx).Return([]domain.ChatSession{first, second}, nil)
		f.store.On("Assign", ctx, first.ID, agent, "Budi").
			Return(activeSession(first.ID, agent), sysMsg(first.ID), nil)

		d.drain(ctx)

		f.store.AssertNumberOfCalls(t, "Assign", 1)
	})

	t.Run("skips a session lost to a manual accept", func(t *testing.T) {
		f := newFixture(testConfig())
		d := NewDispatcher(f.svc)

		agent := f.onlineAgent("Budi", 0, 3)

		stolen := *waitingSession(uuid.New())
		next := *waitingSession(uuid.New())
		f.sessions.On("ListWaiting", ctx).Return([]domain.ChatSession{stolen, next}, nil)
		f.store.On("Assign", ctx, stolen.ID, agent, "Budi").
			Return(nil, nil, domain.ErrAlreadyAssigned)
		f.store.On("Assign", ctx, next.ID, agent, "Budi").
			Return(activeSession(next.ID, agent), sysMsg(next.ID), nil)

		d.drain(ctx)

		p, _ := f.registry.Get(agent)
		assert.Equal(t, 1, p.CurrentChats)
	})

	t.Run("no-op with an empty queue", func(t *testing.T) {
		f := newFixture(testConfig())
		d := NewDispatcher(f.svc)
		f.onlineAgent("Budi", 0, 3)
		f.sessions.On("ListWaiting", ctx).Return([]domain.ChatSession{}, nil)

		d.drain(ctx)
		f.store.AssertNotCalled(t, "Assign", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestDispatcher_KickCoalesces(t *testing.T) {
	f := newFixture(testConfig())
	d := NewDispatcher(f.svc)

	for i := 0; i < 10; i++ {
		d.Kick()
	}
	assert.Len(t, d.kick, 1)
}

func TestReaper_Sweep(t *testing.T) {
	ctx := context.Background()

	t.Run("abandons idle sessions and releases agents", func(t *testing.T) {
		f := newFixture(testConfig())
		r := NewReaper(f.svc)

		agentID := f.onlineAgent("Budi", 1, 3)
		idle := *activeSession(uuid.New(), agentID)

		f.sessions.On("ListIdleSince", ctx, mock.AnythingOfType("time.Time")).
			Return([]domain.ChatSession{idle}, nil)
		abandoned := *activeSession(idle.ID, agentID)
		abandoned.Status = domain.StatusAbandoned
		f.store.On("Abandon", ctx, idle.ID, "Chat closed due to inactivity", mock.AnythingOfType("time.Time")).
			Return(&abandoned, sysMsg(idle.ID), &agentID, nil)
		f.sessions.On("ListWaiting", ctx).Return([]domain.ChatSession{}, nil)

		r.sweep(ctx)

		p, _ := f.registry.Get(agentID)
		assert.Equal(t, 0, p.CurrentChats)
	})

	t.Run("a session resolved mid-sweep is skipped", func(t *testing.T) {
		f := newFixture(testConfig())
		r := NewReaper(f.svc)

		gone := *waitingSession(uuid.New())
		f.sessions.On("ListIdleSince", ctx, mock.AnythingOfType("time.Time")).
			Return([]domain.ChatSession{gone}, nil)
		f.store.On("Abandon", ctx, gone.ID, "Chat closed due to inactivity", mock.AnythingOfType("time.Time")).
			Return(nil, nil, nil, domain.ErrSessionClosed)

		r.sweep(ctx)
		f.store.AssertExpectations(t)
	})
}
