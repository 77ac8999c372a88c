package state

import (
	"sort"
	"sync"
)

// Markers is a set of ids with an operation in flight.
type Markers struct {
	mu  sync.Mutex
	ids map[string]struct{}

	observers observers
}

func NewMarkers() *Markers {
	return &Markers{ids: make(map[string]struct{})}
}

func (m *Markers) Subscribe(fn func()) func() {
	return m.observers.subscribe(fn)
}

// Add marks id and reports false if it was already marked.
func (m *Markers) Add(id string) bool {
	m.mu.Lock()
	if _, ok := m.ids[id]; ok {
		m.mu.Unlock()
		return false
	}
	m.ids[id] = struct{}{}
	m.mu.Unlock()

	m.observers.notify()
	return true
}

func (m *Markers) Remove(id string) {
	m.mu.Lock()
	_, ok := m.ids[id]
	delete(m.ids, id)
	m.mu.Unlock()

	if ok {
		m.observers.notify()
	}
}

func (m *Markers) Has(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.ids[id]
	return ok
}

// IDs returns the marked ids sorted.
func (m *Markers) IDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, 0, len(m.ids))
	for id := range m.ids {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (m *Markers) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.ids)
}
