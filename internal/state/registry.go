package state

import (
	"sync"

	"reader_sync/internal/domain"
)

// Registry is the ordered set of subscribed feeds, unique by id. Clear
// starts a new generation; writes stamped with an older one are discarded.
type Registry struct {
	mu         sync.RWMutex
	generation uint64
	feeds      []domain.Feed
	index      map[string]int

	observers observers
}

func NewRegistry() *Registry {
	return &Registry{index: make(map[string]int)}
}

// Subscribe registers fn to run after every mutation. The returned func
// unregisters it.
func (r *Registry) Subscribe(fn func()) func() {
	return r.observers.subscribe(fn)
}

func (r *Registry) Generation() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.generation
}

// Merge updates known feeds in place, keeping their unread counts, and
// appends unknown ones in arrival order. It returns the number appended, or
// false without changes when gen is stale.
func (r *Registry) Merge(gen uint64, feeds []domain.Feed) (int, bool) {
	r.mu.Lock()
	if gen != r.generation {
		r.mu.Unlock()
		return 0, false
	}
	added := 0
	for _, f := range feeds {
		if f.ID == "" {
			continue
		}
		if i, ok := r.index[f.ID]; ok {
			r.feeds[i].Title = f.Title
			r.feeds[i].IconURL = f.IconURL
			continue
		}
		f.UnreadCount = 0
		r.index[f.ID] = len(r.feeds)
		r.feeds = append(r.feeds, f)
		added++
	}
	r.mu.Unlock()

	r.observers.notify()
	return added, true
}

// ApplyUnreadCounts sets counts for the listed feeds only; feeds missing from
// counts keep their last known value. Negative counts are clamped to zero.
func (r *Registry) ApplyUnreadCounts(gen uint64, counts []domain.UnreadCount) (int, bool) {
	r.mu.Lock()
	if gen != r.generation {
		r.mu.Unlock()
		return 0, false
	}
	applied := 0
	for _, c := range counts {
		i, ok := r.index[c.FeedID]
		if !ok {
			continue
		}
		n := c.Count
		if n < 0 {
			n = 0
		}
		r.feeds[i].UnreadCount = n
		applied++
	}
	r.mu.Unlock()

	r.observers.notify()
	return applied, true
}

// Clear empties the registry and starts a new generation.
func (r *Registry) Clear() {
	r.mu.Lock()
	r.generation++
	r.feeds = nil
	r.index = make(map[string]int)
	r.mu.Unlock()

	r.observers.notify()
}

func (r *Registry) Get(id string) (domain.Feed, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i, ok := r.index[id]
	if !ok {
		return domain.Feed{}, false
	}
	return r.feeds[i], true
}

// Feeds returns a copy of the feeds in registry order.
func (r *Registry) Feeds() []domain.Feed {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Feed, len(r.feeds))
	copy(out, r.feeds)
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.feeds)
}
