//go:build integration

package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liamcoop/healthpro/health"
	"github.com/liamcoop/healthpro/internal/dbtest"
)

func TestPostgresEntryStore(t *testing.T) {
	ctx := context.Background()
	store := NewPostgresEntryStore(dbtest.Postgres(t))

	entries := []health.DailyEntry{
		{UserID: "bob", Date: day(3), SleepHours: 7, Meals: 3, Vision: "Normal"},
		{UserID: "alice", Date: day(2), SleepHours: 6},
		{UserID: "bob", Date: day(1), SleepHours: 5, TUGSeconds: 11.5},
		{UserID: "bob", Date: day(3), SleepHours: 8, Hearing: "Impaired"},
	}
	for i := range entries {
		require.NoError(t, store.Add(ctx, &entries[i]))
	}

	got, err := store.ListByUser(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, 5.0, got[0].SleepHours)
	assert.Equal(t, 11.5, got[0].TUGSeconds)
	assert.Equal(t, 7.0, got[1].SleepHours, "same-date entries keep insertion order")
	assert.Equal(t, "Normal", got[1].Vision)
	assert.Equal(t, "Impaired", got[2].Hearing)
	assert.True(t, got[0].Date.Equal(day(1)))

	users, err := store.ListUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, users)
}

func TestPostgresEntryStoreKeepsCalendarDay(t *testing.T) {
	ctx := context.Background()
	store := NewPostgresEntryStore(dbtest.Postgres(t))

	evening := time.Date(2024, 3, 2, 23, 30, 0, 0, time.FixedZone("EST", -5*3600))
	e := health.DailyEntry{UserID: "carol", Date: evening, Sex: "female", Age: 40}
	require.NoError(t, store.Add(ctx, &e))

	got, err := store.ListByUser(ctx, "carol")
	require.NoError(t, err)
	require.Len(t, got, 1)
	y, m, d := got[0].Date.Date()
	assert.Equal(t, []int{2024, 3, 2}, []int{y, int(m), d}, "the entry's own calendar day is stored")
	assert.Equal(t, "female", got[0].Sex)
	assert.Equal(t, 40, got[0].Age)
}

func TestPostgresFollowStore(t *testing.T) {
	ctx := context.Background()
	store := NewPostgresFollowStore(dbtest.Postgres(t))

	require.NoError(t, store.Follow(ctx, "alice", "bob"))
	assert.ErrorIs(t, store.Follow(ctx, "alice", "bob"), ErrAlreadyExists)

	ok, err := store.IsFollowing(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.True(t, ok)

	followed, err := store.ListFollowed(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, followed)

	require.NoError(t, store.Unfollow(ctx, "alice", "bob"))
	assert.ErrorIs(t, store.Unfollow(ctx, "alice", "bob"), ErrNotFound)
}
