package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liamcoop/healthpro/health"
)

func day(n int) time.Time {
	return time.Date(2024, 3, n, 0, 0, 0, 0, time.UTC)
}

func TestMemoryEntryStore(t *testing.T) {
	ctx := context.Background()
	var store EntryStore = NewMemoryEntryStore()

	entries := []health.DailyEntry{
		{UserID: "bob", Date: day(3), SleepHours: 7},
		{UserID: "alice", Date: day(2), SleepHours: 6},
		{UserID: "bob", Date: day(1), SleepHours: 5},
		{UserID: "bob", Date: day(3), SleepHours: 8},
	}
	for i := range entries {
		require.NoError(t, store.Add(ctx, &entries[i]))
		assert.NotEmpty(t, entries[i].ID, "Add() should assign an ID")
	}

	got, err := store.ListByUser(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []float64{5, 7, 8}, []float64{got[0].SleepHours, got[1].SleepHours, got[2].SleepHours})

	users, err := store.ListUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, users)

	none, err := store.ListByUser(ctx, "carol")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestMemoryEntryStoreKeepsID(t *testing.T) {
	store := NewMemoryEntryStore()
	e := health.DailyEntry{ID: "fixed", UserID: "u", Date: day(1)}

	require.NoError(t, store.Add(context.Background(), &e))
	got, _ := store.ListByUser(context.Background(), "u")
	assert.Equal(t, "fixed", got[0].ID)
}

func TestMemoryFollowStore(t *testing.T) {
	ctx := context.Background()
	var store FollowStore = NewMemoryFollowStore()

	require.NoError(t, store.Follow(ctx, "alice", "carol"))
	require.NoError(t, store.Follow(ctx, "alice", "bob"))
	assert.ErrorIs(t, store.Follow(ctx, "alice", "bob"), ErrAlreadyExists)

	ok, err := store.IsFollowing(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.IsFollowing(ctx, "bob", "alice")
	require.NoError(t, err)
	assert.False(t, ok, "following is one-way")

	followed, err := store.ListFollowed(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"bob", "carol"}, followed)

	require.NoError(t, store.Unfollow(ctx, "alice", "bob"))
	assert.ErrorIs(t, store.Unfollow(ctx, "alice", "bob"), ErrNotFound)

	followed, _ = store.ListFollowed(ctx, "alice")
	assert.Equal(t, []string{"carol"}, followed)
}
