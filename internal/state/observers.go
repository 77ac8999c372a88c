// Package state holds the observable in-memory collections the engine
// mutates and the UI reads.
package state

import "sync"

// observers is a set of change callbacks. Callbacks run synchronously on the
// mutating goroutine after the mutation's lock is released.
type observers struct {
	mu     sync.Mutex
	nextID int
	fns    map[int]func()
}

func (o *observers) subscribe(fn func()) func() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.fns == nil {
		o.fns = make(map[int]func())
	}
	id := o.nextID
	o.nextID++
	o.fns[id] = fn

	return func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		delete(o.fns, id)
	}
}

func (o *observers) notify() {
	o.mu.Lock()
	fns := make([]func(), 0, len(o.fns))
	for i := 0; i < o.nextID; i++ {
		if fn, ok := o.fns[i]; ok {
			fns = append(fns, fn)
		}
	}
	o.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}
