// Package social manages follow relations and compares a user's latest
// statistics with a followed peer's.
package social

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/liamcoop/healthpro/health"
	"github.com/liamcoop/healthpro/storage"
)

var (
	// ErrSelfFollow is returned when a user tries to follow themselves.
	ErrSelfFollow = errors.New("users cannot follow themselves")

	// ErrAlreadyFollowing is returned when the follow relation already exists.
	ErrAlreadyFollowing = errors.New("already following this user")

	// ErrNotFollowing is returned when an operation needs a follow relation that does not exist.
	ErrNotFollowing = errors.New("not following this user")

	// ErrInvalidUser is returned for blank user IDs.
	ErrInvalidUser = errors.New("user id is required")
)

// Service implements following and peer comparison.
type Service struct {
	entries storage.EntryStore
	follows storage.FollowStore
}

// NewService creates a social service over the given stores
func NewService(entries storage.EntryStore, follows storage.FollowStore) *Service {
	return &Service{entries: entries, follows: follows}
}

func checkPair(userID, peerID string) error {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(peerID) == "" {
		return ErrInvalidUser
	}
	if userID == peerID {
		return ErrSelfFollow
	}
	return nil
}

// Follow makes userID follow peerID.
func (s *Service) Follow(ctx context.Context, userID, peerID string) error {
	if err := checkPair(userID, peerID); err != nil {
		return err
	}
	err := s.follows.Follow(ctx, userID, peerID)
	if errors.Is(err, storage.ErrAlreadyExists) {
		return ErrAlreadyFollowing
	}
	return err
}

// Unfollow removes the relation.
func (s *Service) Unfollow(ctx context.Context, userID, peerID string) error {
	if err := checkPair(userID, peerID); err != nil {
		return err
	}
	err := s.follows.Unfollow(ctx, userID, peerID)
	if errors.Is(err, storage.ErrNotFound) {
		return ErrNotFollowing
	}
	return err
}

// Following lists the users userID follows.
func (s *Service) Following(ctx context.Context, userID string) ([]string, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrInvalidUser
	}
	return s.follows.ListFollowed(ctx, userID)
}

// Comparison holds both users' latest-entry metrics and user minus peer for
// every metric both have.
type Comparison struct {
	UserID   string                   `json:"user_id"`
	PeerID   string                   `json:"peer_id"`
	UserDate time.Time                `json:"user_date"`
	PeerDate time.Time                `json:"peer_date"`
	User     health.AggregatedMetrics `json:"user"`
	Peer     health.AggregatedMetrics `json:"peer"`
	Deltas   map[string]float64       `json:"deltas"`
}

// Compare builds a Comparison of userID against a peer they follow.
// A user without entries yields health.ErrEmptyHistory wrapped with their ID.
func (s *Service) Compare(ctx context.Context, userID, peerID string) (*Comparison, error) {
	if err := checkPair(userID, peerID); err != nil {
		return nil, err
	}

	following, err := s.follows.IsFollowing(ctx, userID, peerID)
	if err != nil {
		return nil, err
	}
	if !following {
		return nil, ErrNotFollowing
	}

	userMetrics, userDate, err := s.latest(ctx, userID)
	if err != nil {
		return nil, err
	}
	peerMetrics, peerDate, err := s.latest(ctx, peerID)
	if err != nil {
		return nil, err
	}

	deltas := make(map[string]float64, len(userMetrics))
	for name, v := range userMetrics {
		if pv, ok := peerMetrics[name]; ok {
			deltas[name] = v - pv
		}
	}

	return &Comparison{
		UserID:   userID,
		PeerID:   peerID,
		UserDate: userDate,
		PeerDate: peerDate,
		User:     userMetrics,
		Peer:     peerMetrics,
		Deltas:   deltas,
	}, nil
}

func (s *Service) latest(ctx context.Context, userID string) (health.AggregatedMetrics, time.Time, error) {
	entries, err := s.entries.ListByUser(ctx, userID)
	if err != nil {
		return nil, time.Time{}, err
	}
	metrics, err := health.Snapshot(entries)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("user %s: %w", userID, err)
	}
	var date time.Time
	for _, e := range entries {
		if !e.Date.Before(date) {
			date = e.Date
		}
	}
	return metrics, date, nil
}
