package presence

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rrens/livedesk/internal/domain"
)

func agent(state domain.AgentState, current, max int, lastActive time.Time) domain.AgentPresence {
	return domain.AgentPresence{
		UserID:       uuid.New(),
		State:        state,
		CurrentChats: current,
		MaxChats:     max,
		LastActiveAt: lastActive,
	}
}

func TestRegistry_ReserveRelease(t *testing.T) {
	r := NewRegistry()
	a := agent(domain.AgentOnline, 0, 2, time.Now())
	r.Upsert(a)

	require.NoError(t, r.Reserve(a.UserID))
	require.NoError(t, r.Reserve(a.UserID))
	assert.Equal(t, domain.ErrAtCapacity, r.Reserve(a.UserID))

	r.Release(a.UserID)
	assert.NoError(t, r.Reserve(a.UserID))
}

func TestRegistry_ReserveStates(t *testing.T) {
	r := NewRegistry()

	busy := agent(domain.AgentBusy, 0, 5, time.Now())
	r.Upsert(busy)
	assert.Equal(t, domain.ErrNotOnline, r.Reserve(busy.UserID))

	assert.Equal(t, domain.ErrNotOnline, r.Reserve(uuid.New()))
}

func TestRegistry_ReleaseNeverGoesNegative(t *testing.T) {
	r := NewRegistry()
	a := agent(domain.AgentOnline, 0, 5, time.Now())
	r.Upsert(a)

	r.Release(a.UserID)
	got, ok := r.Get(a.UserID)
	require.True(t, ok)
	assert.Equal(t, 0, got.CurrentChats)
}

func TestRegistry_UpsertKeepsLiveCounter(t *testing.T) {
	r := NewRegistry()
	a := agent(domain.AgentOnline, 0, 5, time.Now())
	r.Upsert(a)
	require.NoError(t, r.Reserve(a.UserID))

	// A reconnect re-upserts the record; the counter must survive.
	a.CurrentChats = 0
	r.Upsert(a)

	got, _ := r.Get(a.UserID)
	assert.Equal(t, 1, got.CurrentChats)
}

func TestRegistry_PickAvailable(t *testing.T) {
	t.Run("lowest load wins", func(t *testing.T) {
		r := NewRegistry()
		loaded := agent(domain.AgentOnline, 3, 5, time.Now())
		idle := agent(domain.AgentOnline, 1, 5, time.Now())
		r.Upsert(loaded)
		r.Upsert(idle)

		got, ok := r.PickAvailable()
		require.True(t, ok)
		assert.Equal(t, idle.UserID, got.UserID)
	})

	t.Run("ties break to the longest-idle agent", func(t *testing.T) {
		r := NewRegistry()
		recent := agent(domain.AgentOnline, 1, 5, time.Now())
		stale := agent(domain.AgentOnline, 1, 5, time.Now().Add(-time.Hour))
		r.Upsert(recent)
		r.Upsert(stale)

		got, ok := r.PickAvailable()
		require.True(t, ok)
		assert.Equal(t, stale.UserID, got.UserID)
	})

	t.Run("busy, offline and full agents are skipped", func(t *testing.T) {
		r := NewRegistry()
		r.Upsert(agent(domain.AgentBusy, 0, 5, time.Now()))
		r.Upsert(agent(domain.AgentOffline, 0, 5, time.Now()))
		r.Upsert(agent(domain.AgentOnline, 5, 5, time.Now()))

		_, ok := r.PickAvailable()
		assert.False(t, ok)
	})
}

func TestRegistry_Rehydrate(t *testing.T) {
	r := NewRegistry()
	r.Upsert(agent(domain.AgentOnline, 0, 5, time.Now()))

	fresh := agent(domain.AgentOnline, 2, 5, time.Now())
	r.Rehydrate([]domain.AgentPresence{fresh})

	all := r.Snapshot()
	require.Len(t, all, 1)
	assert.Equal(t, fresh.UserID, all[0].UserID)
	assert.Equal(t, 2, all[0].CurrentChats)
}

func TestRegistry_SubscribeSeesMutations(t *testing.T) {
	r := NewRegistry()

	var mu sync.Mutex
	var events []domain.AgentPresence
	r.Subscribe(func(p domain.AgentPresence) {
		mu.Lock()
		events = append(events, p)
		mu.Unlock()
	})

	a := agent(domain.AgentOnline, 0, 5, time.Now())
	r.Upsert(a)
	require.NoError(t, r.Reserve(a.UserID))
	r.Release(a.UserID)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, events, 3)
	assert.Equal(t, 1, events[1].CurrentChats)
	assert.Equal(t, 0, events[2].CurrentChats)
}

func TestRegistry_ConcurrentReserve(t *testing.T) {
	r := NewRegistry()
	a := agent(domain.AgentOnline, 0, 10, time.Now())
	r.Upsert(a)

	var wg sync.WaitGroup
	granted := make(chan struct{}, 100)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if r.Reserve(a.UserID) == nil {
				granted <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(granted)

	count := 0
	for range granted {
		count++
	}
	assert.Equal(t, 10, count)

	got, _ := r.Get(a.UserID)
	assert.Equal(t, 10, got.CurrentChats)
}
