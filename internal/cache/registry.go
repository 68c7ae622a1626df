package cache

import (
	"sync"
	"time"
)

type fetchEntry struct {
	FetchedAt time.Time
	Partial   bool
	// Count is the number of rows the fetch returned
	Count int
}

// fetchRegistry remembers when each cache key was last fetched from origin.
// It is process-local; entries older than retention are dropped on write.
type fetchRegistry struct {
	mu        sync.Mutex
	entries   map[string]fetchEntry
	retention time.Duration
}

func newFetchRegistry(retention time.Duration) *fetchRegistry {
	return &fetchRegistry{
		entries:   make(map[string]fetchEntry),
		retention: retention,
	}
}

func (r *fetchRegistry) get(key string) (fetchEntry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[key]
	return e, ok
}

func (r *fetchRegistry) set(key string, entry fetchEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries[key] = entry
	if r.retention <= 0 {
		return
	}
	for k, e := range r.entries {
		if entry.FetchedAt.Sub(e.FetchedAt) > r.retention {
			delete(r.entries, k)
		}
	}
}

func (r *fetchRegistry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
