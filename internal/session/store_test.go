package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reader_sync/internal/storage/sqlstore"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	db, err := sqlstore.Open(sqlstore.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	kv, err := sqlstore.New(context.Background(), db)
	require.NoError(t, err)
	return NewStore(kv)
}

func TestStore_LoadAbsent(t *testing.T) {
	s := newStore(t)

	token, ok, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, token)
}

func TestStore_SaveLoadClear(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	require.NoError(t, s.Save(ctx, "tok-1"))

	token, ok, err := s.Load(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "tok-1", token)

	savedAt, ok, err := s.SavedAt(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, fixed.Equal(savedAt))

	require.NoError(t, s.Save(ctx, "tok-2"))
	token, _, _ = s.Load(ctx)
	assert.Equal(t, "tok-2", token)

	require.NoError(t, s.Clear(ctx))
	_, ok, err = s.Load(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_DeviceIsStable(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	first, err := s.Device(ctx)
	require.NoError(t, err)
	assert.Len(t, first.ID, deviceIDLength)

	second, err := s.Device(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	require.NoError(t, s.SetDeviceName(ctx, "Kitchen tablet"))
	third, err := s.Device(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.ID, third.ID)
	assert.Equal(t, "Kitchen tablet", third.Name)
}

func TestStore_DeviceSurvivesLogout(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	device, err := s.Device(ctx)
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, "tok"))
	require.NoError(t, s.Clear(ctx))

	again, err := s.Device(ctx)
	require.NoError(t, err)
	assert.Equal(t, device.ID, again.ID)
}
