package subscription

import "sync"

// Registry hands out a stable per-(slot, client) Manager so that a
// client's Connect stream and its UpdateSubscriptions calls operate on
// the same subscription set (spec §4.7 UpdateSubscriptions, §4.8
// Connect). Entries are never evicted automatically; callers that track
// client lifetime (e.g. a Connect stream ending) should call Drop.
type Registry struct {
	mu       sync.Mutex
	byClient map[key]*Manager
}

type key struct {
	slot   uint32
	client string
}

func NewRegistry() *Registry {
	return &Registry{byClient: map[key]*Manager{}}
}

// For returns the Manager for (slot, client), creating one on first use.
func (r *Registry) For(slot uint32, client string) *Manager {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := key{slot: slot, client: client}
	m, ok := r.byClient[k]
	if !ok {
		m = New()
		r.byClient[k] = m
	}
	return m
}

// Drop removes a client's subscription state, e.g. once its Connect
// stream ends.
func (r *Registry) Drop(slot uint32, client string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byClient, key{slot: slot, client: client})
}
