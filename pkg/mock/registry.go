package mock

import (
	"sort"
	"sync"

	"github.com/funnyzak/pagemock/pkg/request"
)

// Registry keeps entries ordered by descending priority. Among equal
// priorities the most recently added entry comes first.
type Registry struct {
	mu      sync.RWMutex
	entries []*Entry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Add inserts an entry ahead of every entry with the same or lower priority.
func (r *Registry) Add(e *Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := sort.Search(len(r.entries), func(i int) bool {
		return r.entries[i].Priority() <= e.Priority()
	})
	r.entries = append(r.entries, nil)
	copy(r.entries[idx+1:], r.entries[idx:])
	r.entries[idx] = e
}

// Remove deletes the entry with the given id. Unknown ids are ignored.
func (r *Registry) Remove(id string) (*Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, e := range r.entries {
		if e.ID() == id {
			r.removeAt(i)
			return e, true
		}
	}
	return nil, false
}

// FindMatch returns the first entry that accepts req without claiming it.
func (r *Registry) FindMatch(req *request.Request) (*Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, e := range r.entries {
		if e.Matches(req) {
			return e, true
		}
	}
	return nil, false
}

// Claim finds the first entry that accepts req and resolves it in the same
// critical section. Entries that use up their budget are dropped.
func (r *Registry) Claim(req *request.Request) (*Entry, Response, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, e := range r.entries {
		if !e.Matches(req) {
			continue
		}
		resp, ok := e.Resolve()
		if !ok {
			continue
		}
		if e.Exhausted() {
			r.removeAt(i)
		}
		return e, resp, true
	}
	return nil, Response{}, false
}

// Entries returns a snapshot in lookup order.
func (r *Registry) Entries() []*Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Len returns the number of entries.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Clear removes every entry.
func (r *Registry) Clear() {
	r.mu.Lock()
	r.entries = nil
	r.mu.Unlock()
}

func (r *Registry) removeAt(i int) {
	copy(r.entries[i:], r.entries[i+1:])
	r.entries[len(r.entries)-1] = nil
	r.entries = r.entries[:len(r.entries)-1]
}
