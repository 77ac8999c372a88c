package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reader_sync/internal/domain"
)

func TestRegistry_MergeAppendsInArrivalOrder(t *testing.T) {
	r := NewRegistry()

	added, ok := r.Merge(r.Generation(), []domain.Feed{
		{ID: "a", Title: "Feed A"},
		{ID: "b", Title: "Feed B"},
		{ID: "a", Title: "Feed A again"},
	})

	require.True(t, ok)
	assert.Equal(t, 2, added)
	feeds := r.Feeds()
	require.Len(t, feeds, 2)
	assert.Equal(t, "a", feeds[0].ID)
	assert.Equal(t, "Feed A again", feeds[0].Title)
	assert.Equal(t, "b", feeds[1].ID)
}

func TestRegistry_MergeKeepsCountsAndNeverDuplicates(t *testing.T) {
	r := NewRegistry()
	gen := r.Generation()
	r.Merge(gen, []domain.Feed{{ID: "a", Title: "A"}, {ID: "b", Title: "B"}})
	r.ApplyUnreadCounts(gen, []domain.UnreadCount{{FeedID: "a", Count: 3}, {FeedID: "b", Count: 9}})

	for i := 0; i < 3; i++ {
		r.Merge(gen, []domain.Feed{{ID: "b", Title: "B"}, {ID: "c", Title: "C"}, {ID: "a", Title: "A"}})
	}

	feeds := r.Feeds()
	require.Len(t, feeds, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{feeds[0].ID, feeds[1].ID, feeds[2].ID})
	assert.Equal(t, 3, feeds[0].UnreadCount)
	assert.Equal(t, 9, feeds[1].UnreadCount)
	assert.Equal(t, 0, feeds[2].UnreadCount)
}

func TestRegistry_MissingCountIsNoUpdate(t *testing.T) {
	r := NewRegistry()
	gen := r.Generation()
	r.Merge(gen, []domain.Feed{{ID: "a"}, {ID: "b"}})
	r.ApplyUnreadCounts(gen, []domain.UnreadCount{{FeedID: "a", Count: 3}, {FeedID: "b", Count: 4}})

	applied, ok := r.ApplyUnreadCounts(gen, []domain.UnreadCount{{FeedID: "a", Count: 1}, {FeedID: "zzz", Count: 5}})

	require.True(t, ok)
	assert.Equal(t, 1, applied)
	a, _ := r.Get("a")
	b, _ := r.Get("b")
	assert.Equal(t, 1, a.UnreadCount)
	assert.Equal(t, 4, b.UnreadCount)
}

func TestRegistry_StaleGenerationAfterClear(t *testing.T) {
	r := NewRegistry()
	gen := r.Generation()
	r.Clear()

	_, ok := r.Merge(gen, []domain.Feed{{ID: "a"}})
	assert.False(t, ok)
	_, ok = r.ApplyUnreadCounts(gen, []domain.UnreadCount{{FeedID: "a", Count: 1}})
	assert.False(t, ok)
	assert.Equal(t, 0, r.Len())
}

func TestRegistry_ClearAndObservers(t *testing.T) {
	r := NewRegistry()
	calls := 0
	unsubscribe := r.Subscribe(func() { calls++ })

	r.Merge(r.Generation(), []domain.Feed{{ID: "a"}})
	r.Clear()
	assert.Equal(t, 2, calls)
	assert.Equal(t, 0, r.Len())

	unsubscribe()
	r.Merge(r.Generation(), []domain.Feed{{ID: "b"}})
	assert.Equal(t, 2, calls)
}

func TestRegistry_ObserverCanReadDuringNotify(t *testing.T) {
	r := NewRegistry()
	var seen int
	r.Subscribe(func() { seen = r.Len() })

	r.Merge(r.Generation(), []domain.Feed{{ID: "a"}, {ID: "b"}})
	assert.Equal(t, 2, seen)
}
