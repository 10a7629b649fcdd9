// Package storage persists daily entries and follow relations.
package storage

import (
	"context"
	"errors"

	"github.com/liamcoop/healthpro/health"
)

// ErrNotFound is returned when a follow relation does not exist.
var ErrNotFound = errors.New("not found")

// ErrAlreadyExists is returned when a follow relation is stored twice.
var ErrAlreadyExists = errors.New("already exists")

// EntryStore persists daily entries.
type EntryStore interface {
	// Add stores the entry, assigning an ID when it has none
	Add(ctx context.Context, entry *health.DailyEntry) error

	// ListByUser returns a user's entries by ascending date, insertion order within a date
	ListByUser(ctx context.Context, userID string) ([]health.DailyEntry, error)

	// ListUsers returns every user with at least one entry, sorted
	ListUsers(ctx context.Context) ([]string, error)
}

// FollowStore persists who follows whom.
type FollowStore interface {
	Follow(ctx context.Context, followerID, followedID string) error
	Unfollow(ctx context.Context, followerID, followedID string) error
	IsFollowing(ctx context.Context, followerID, followedID string) (bool, error)

	// ListFollowed returns the users followerID follows, sorted
	ListFollowed(ctx context.Context, followerID string) ([]string, error)
}
