package state

import (
	"sync"

	"reader_sync/internal/domain"
)

// Articles is the article collection for the selected feed. Order is the
// order ids were added and never changes for a given generation. Every
// Reset starts a new generation; writes stamped with an older generation are
// discarded.
type Articles struct {
	mu         sync.RWMutex
	generation uint64
	feedID     string
	items      []domain.Article
	index      map[string]int
	reserved   map[string]struct{}

	observers observers
}

func NewArticles() *Articles {
	return &Articles{
		index:    make(map[string]int),
		reserved: make(map[string]struct{}),
	}
}

// Subscribe registers fn to run after every mutation. The returned func
// unregisters it.
func (a *Articles) Subscribe(fn func()) func() {
	return a.observers.subscribe(fn)
}

// Reset empties the collection for feedID and returns the new generation.
func (a *Articles) Reset(feedID string) uint64 {
	a.mu.Lock()
	a.generation++
	gen := a.generation
	a.feedID = feedID
	a.items = nil
	a.index = make(map[string]int)
	a.reserved = make(map[string]struct{})
	a.mu.Unlock()

	a.observers.notify()
	return gen
}

// Generation returns the current generation and its feed id.
func (a *Articles) Generation() (uint64, string) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.generation, a.feedID
}

// AddStubs appends id-only articles, skipping ids already present. It
// reports false without changes when gen is stale.
func (a *Articles) AddStubs(gen uint64, ids []string) (int, bool) {
	a.mu.Lock()
	if gen != a.generation {
		a.mu.Unlock()
		return 0, false
	}
	added := 0
	for _, id := range ids {
		if _, ok := a.index[id]; ok || id == "" {
			continue
		}
		a.index[id] = len(a.items)
		a.items = append(a.items, domain.Article{ID: id})
		added++
	}
	a.mu.Unlock()

	a.observers.notify()
	return added, true
}

// ReserveBatch picks up to limit unfetched, unreserved stubs in collection
// order and reserves them until Release.
func (a *Articles) ReserveBatch(limit int) (uint64, []string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.generation, a.reserveLocked(limit)
}

// ReserveBatchFor is ReserveBatch pinned to gen. It reports false without
// reserving anything when gen is stale.
func (a *Articles) ReserveBatchFor(gen uint64, limit int) ([]string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if gen != a.generation {
		return nil, false
	}
	return a.reserveLocked(limit), true
}

func (a *Articles) reserveLocked(limit int) []string {
	var ids []string
	for _, item := range a.items {
		if len(ids) >= limit {
			break
		}
		if item.IsFetched {
			continue
		}
		if _, busy := a.reserved[item.ID]; busy {
			continue
		}
		a.reserved[item.ID] = struct{}{}
		ids = append(ids, item.ID)
	}
	return ids
}

// Release drops reservations taken by ReserveBatch.
func (a *Articles) Release(gen uint64, ids []string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if gen != a.generation {
		return
	}
	for _, id := range ids {
		delete(a.reserved, id)
	}
}

// Materialize fills stubs in place from content records. Records without a
// matching article are counted as dropped. ok is false when gen is stale.
func (a *Articles) Materialize(gen uint64, contents []domain.ArticleContent) (applied, dropped int, ok bool) {
	a.mu.Lock()
	if gen != a.generation {
		a.mu.Unlock()
		return 0, len(contents), false
	}
	for _, c := range contents {
		i, found := a.index[c.ID]
		if !found {
			dropped++
			continue
		}
		item := &a.items[i]
		item.Title = c.Title
		item.Content = c.Content
		item.Author = c.Author
		item.URL = c.URL
		if !c.PublishedAt.IsZero() {
			published := c.PublishedAt
			item.PublishedAt = &published
		}
		item.IsFetched = true
		applied++
	}
	a.mu.Unlock()

	a.observers.notify()
	return applied, dropped, true
}

// SetRead updates the read flag; it reports false if id is not present.
func (a *Articles) SetRead(id string, read bool) bool {
	a.mu.Lock()
	i, ok := a.index[id]
	if ok {
		a.items[i].IsRead = read
	}
	a.mu.Unlock()

	if ok {
		a.observers.notify()
	}
	return ok
}

func (a *Articles) Get(id string) (domain.Article, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	i, ok := a.index[id]
	if !ok {
		return domain.Article{}, false
	}
	return a.items[i], true
}

// Articles returns a copy of the collection in order.
func (a *Articles) Articles() []domain.Article {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]domain.Article, len(a.items))
	copy(out, a.items)
	return out
}

// Counts returns total, fetched and unread article counts.
func (a *Articles) Counts() (total, fetched, unread int) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	for _, item := range a.items {
		if item.IsFetched {
			fetched++
		}
		if !item.IsRead {
			unread++
		}
	}
	return len(a.items), fetched, unread
}
