package state

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMarkers_AddRejectsDuplicate(t *testing.T) {
	m := NewMarkers()

	assert.True(t, m.Add("1"))
	assert.False(t, m.Add("1"))
	assert.True(t, m.Add("2"))
	assert.Equal(t, []string{"1", "2"}, m.IDs())

	m.Remove("1")
	assert.False(t, m.Has("1"))
	assert.True(t, m.Add("1"))
}

func TestMarkers_ConcurrentDistinctIDs(t *testing.T) {
	m := NewMarkers()
	var wg sync.WaitGroup
	for _, id := range []string{"a", "b", "c", "d"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			assert.True(t, m.Add(id))
		}(id)
	}
	wg.Wait()
	assert.Equal(t, 4, m.Len())
}

func TestMarkers_NotifiesOnChangeOnly(t *testing.T) {
	m := NewMarkers()
	calls := 0
	m.Subscribe(func() { calls++ })

	m.Add("1")
	m.Add("1")
	m.Remove("1")
	m.Remove("1")
	assert.Equal(t, 2, calls)
}
