package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/liamcoop/healthpro/health"
)

// MemoryEntryStore is an EntryStore backed by a map. Safe for concurrent use.
type MemoryEntryStore struct {
	entries map[string][]health.DailyEntry
	mu      sync.RWMutex
}

// NewMemoryEntryStore creates an empty store
func NewMemoryEntryStore() *MemoryEntryStore {
	return &MemoryEntryStore{entries: make(map[string][]health.DailyEntry)}
}

// Add appends a copy of entry
func (s *MemoryEntryStore) Add(ctx context.Context, entry *health.DailyEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[entry.UserID] = append(s.entries[entry.UserID], *entry)
	return nil
}

// ListByUser returns a copy sorted by date; the stable sort keeps insertion order within a date
func (s *MemoryEntryStore) ListByUser(ctx context.Context, userID string) ([]health.DailyEntry, error) {
	s.mu.RLock()
	out := append([]health.DailyEntry(nil), s.entries[userID]...)
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// ListUsers returns users with entries
func (s *MemoryEntryStore) ListUsers(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]string, 0, len(s.entries))
	for user, entries := range s.entries {
		if len(entries) > 0 {
			users = append(users, user)
		}
	}
	sort.Strings(users)
	return users, nil
}

type followKey struct{ follower, followed string }

// MemoryFollowStore is a FollowStore backed by a set. Safe for concurrent use.
type MemoryFollowStore struct {
	follows map[followKey]struct{}
	mu      sync.RWMutex
}

// NewMemoryFollowStore creates an empty store
func NewMemoryFollowStore() *MemoryFollowStore {
	return &MemoryFollowStore{follows: make(map[followKey]struct{})}
}

// Follow records the relation or returns ErrAlreadyExists
func (s *MemoryFollowStore) Follow(ctx context.Context, followerID, followedID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := followKey{followerID, followedID}
	if _, ok := s.follows[key]; ok {
		return ErrAlreadyExists
	}
	s.follows[key] = struct{}{}
	return nil
}

// Unfollow removes the relation or returns ErrNotFound
func (s *MemoryFollowStore) Unfollow(ctx context.Context, followerID, followedID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := followKey{followerID, followedID}
	if _, ok := s.follows[key]; !ok {
		return ErrNotFound
	}
	delete(s.follows, key)
	return nil
}

// IsFollowing reports whether the relation exists
func (s *MemoryFollowStore) IsFollowing(ctx context.Context, followerID, followedID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.follows[followKey{followerID, followedID}]
	return ok, nil
}

// ListFollowed returns the users followerID follows
func (s *MemoryFollowStore) ListFollowed(ctx context.Context, followerID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []string
	for key := range s.follows {
		if key.follower == followerID {
			out = append(out, key.followed)
		}
	}
	sort.Strings(out)
	return out, nil
}
