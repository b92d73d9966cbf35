package presence

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Rrens/livedesk/internal/domain"
)

// ChangeFunc receives a copy of the presence record after every mutation.
type ChangeFunc func(domain.AgentPresence)

// Registry is the in-process view of agent availability. It is a cache over
// the persisted presence rows: Reserve/Release keep the counters in step
// with the transactional updates, and Resync re-reads the truth whenever the
// two disagree.
type Registry struct {
	mu       sync.RWMutex
	agents   map[uuid.UUID]*domain.AgentPresence
	watchers []ChangeFunc
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{agents: make(map[uuid.UUID]*domain.AgentPresence)}
}

// Rehydrate replaces the registry contents with a store snapshot.
func (r *Registry) Rehydrate(snapshot []domain.AgentPresence) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents = make(map[uuid.UUID]*domain.AgentPresence, len(snapshot))
	for i := range snapshot {
		p := snapshot[i]
		r.agents[p.UserID] = &p
	}
}

// Upsert registers or updates an agent record.
func (r *Registry) Upsert(p domain.AgentPresence) {
	r.mu.Lock()
	existing, ok := r.agents[p.UserID]
	if ok {
		// Keep the live counter; callers only know state and limits.
		p.CurrentChats = existing.CurrentChats
	}
	r.agents[p.UserID] = &p
	snapshot := p
	r.mu.Unlock()
	r.notify(snapshot)
}

// SetState changes an agent's availability state.
func (r *Registry) SetState(userID uuid.UUID, state domain.AgentState) (domain.AgentPresence, bool) {
	r.mu.Lock()
	p, ok := r.agents[userID]
	if !ok {
		r.mu.Unlock()
		return domain.AgentPresence{}, false
	}
	p.State = state
	p.LastActiveAt = time.Now()
	snapshot := *p
	r.mu.Unlock()
	r.notify(snapshot)
	return snapshot, true
}

// Reserve atomically takes one slot of capacity iff the agent is available.
func (r *Registry) Reserve(userID uuid.UUID) error {
	r.mu.Lock()
	p, ok := r.agents[userID]
	if !ok || p.State != domain.AgentOnline {
		r.mu.Unlock()
		return domain.ErrNotOnline
	}
	if p.CurrentChats >= p.MaxChats {
		r.mu.Unlock()
		return domain.ErrAtCapacity
	}
	p.CurrentChats++
	p.LastActiveAt = time.Now()
	snapshot := *p
	r.mu.Unlock()
	r.notify(snapshot)
	return nil
}

// Release returns one slot of capacity, never dropping below zero.
func (r *Registry) Release(userID uuid.UUID) {
	r.mu.Lock()
	p, ok := r.agents[userID]
	if !ok {
		r.mu.Unlock()
		return
	}
	if p.CurrentChats > 0 {
		p.CurrentChats--
	}
	snapshot := *p
	r.mu.Unlock()
	r.notify(snapshot)
}

// Touch refreshes last_active_at without changing capacity.
func (r *Registry) Touch(userID uuid.UUID) {
	r.mu.Lock()
	if p, ok := r.agents[userID]; ok {
		p.LastActiveAt = time.Now()
	}
	r.mu.Unlock()
}

// Get returns a copy of one agent's record.
func (r *Registry) Get(userID uuid.UUID) (domain.AgentPresence, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.agents[userID]
	if !ok {
		return domain.AgentPresence{}, false
	}
	return *p, true
}

// Snapshot returns copies of every record, ordered by user id for stable
// output.
func (r *Registry) Snapshot() []domain.AgentPresence {
	r.mu.RLock()
	all := make([]domain.AgentPresence, 0, len(r.agents))
	for _, p := range r.agents {
		all = append(all, *p)
	}
	r.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		return all[i].UserID.String() < all[j].UserID.String()
	})
	return all
}

// PickAvailable selects the available agent with the lowest load, breaking
// ties by earliest last_active_at so recently idle agents are not starved.
func (r *Registry) PickAvailable() (domain.AgentPresence, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var best *domain.AgentPresence
	for _, p := range r.agents {
		if !p.Available() {
			continue
		}
		if best == nil ||
			p.CurrentChats < best.CurrentChats ||
			(p.CurrentChats == best.CurrentChats && p.LastActiveAt.Before(best.LastActiveAt)) {
			best = p
		}
	}
	if best == nil {
		return domain.AgentPresence{}, false
	}
	return *best, true
}

// Subscribe registers a callback invoked after every mutation. Callbacks run
// outside the registry lock and must not block.
func (r *Registry) Subscribe(fn ChangeFunc) {
	r.mu.Lock()
	r.watchers = append(r.watchers, fn)
	r.mu.Unlock()
}

func (r *Registry) notify(p domain.AgentPresence) {
	r.mu.RLock()
	watchers := make([]ChangeFunc, len(r.watchers))
	copy(watchers, r.watchers)
	r.mu.RUnlock()

	for _, fn := range watchers {
		fn(p)
	}
}
