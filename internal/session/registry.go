package session

import "sync"

// Registry is the process-wide table of live session controllers keyed
// by tenant id. It is the single source of truth for whether a tenant
// currently has a controller; all creation and destruction goes through
// it so at most one controller per tenant ever exists.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Controller
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Controller)}
}

func (r *Registry) Get(tenantID string) (*Controller, bool) {
	r.mu.RLock()
	c, ok := r.sessions[tenantID]
	r.mu.RUnlock()
	return c, ok
}

// Put inserts or replaces the controller for a tenant.
func (r *Registry) Put(tenantID string, c *Controller) {
	r.mu.Lock()
	r.sessions[tenantID] = c
	r.mu.Unlock()
}

// Remove is idempotent; removing an absent tenant is a no-op.
func (r *Registry) Remove(tenantID string) {
	r.mu.Lock()
	delete(r.sessions, tenantID)
	r.mu.Unlock()
}

func (r *Registry) Len() int {
	r.mu.RLock()
	n := len(r.sessions)
	r.mu.RUnlock()
	return n
}

// ForEach calls fn for every registered controller. The registry lock
// is released before fn runs on the snapshot.
func (r *Registry) ForEach(fn func(*Controller)) {
	r.mu.RLock()
	snapshot := make([]*Controller, 0, len(r.sessions))
	for _, c := range r.sessions {
		snapshot = append(snapshot, c)
	}
	r.mu.RUnlock()

	for _, c := range snapshot {
		fn(c)
	}
}
