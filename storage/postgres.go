package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/liamcoop/healthpro/health"
)

// uniqueViolation is Postgres error code 23505.
const uniqueViolation = "23505"

// PostgresEntryStore implements EntryStore over the daily_entries table
type PostgresEntryStore struct {
	db *sql.DB
}

// NewPostgresEntryStore creates a new PostgreSQL-backed EntryStore
func NewPostgresEntryStore(db *sql.DB) *PostgresEntryStore {
	return &PostgresEntryStore{db: db}
}

// Add inserts the entry
func (s *PostgresEntryStore) Add(ctx context.Context, e *health.DailyEntry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO daily_entries (id, user_id, entry_date, sleep_hours, water_liters,
			activity_count, activity_minutes, sedentary_minutes, meals, calories,
			sex, age, height_cm, weight_kg, bmi, tug_seconds, vision, hearing)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`, e.ID, e.UserID, e.Date.Format(time.DateOnly), e.SleepHours, e.WaterLiters,
		e.ActivityCount, e.ActivityMinutes, e.SedentaryMinutes, e.Meals, e.Calories,
		e.Sex, e.Age, e.HeightCm, e.WeightKg, e.BMI, e.TUGSeconds, e.Vision, e.Hearing)
	if err != nil {
		return fmt.Errorf("failed to insert entry: %w", err)
	}
	return nil
}

// ListByUser returns the user's entries in date order
func (s *PostgresEntryStore) ListByUser(ctx context.Context, userID string) ([]health.DailyEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, entry_date, sleep_hours, water_liters,
			activity_count, activity_minutes, sedentary_minutes, meals, calories,
			sex, age, height_cm, weight_kg, bmi, tug_seconds, vision, hearing
		FROM daily_entries
		WHERE user_id = $1
		ORDER BY entry_date ASC, seq ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}
	defer rows.Close()

	var out []health.DailyEntry
	for rows.Next() {
		var e health.DailyEntry
		err := rows.Scan(&e.ID, &e.UserID, &e.Date, &e.SleepHours, &e.WaterLiters,
			&e.ActivityCount, &e.ActivityMinutes, &e.SedentaryMinutes, &e.Meals, &e.Calories,
			&e.Sex, &e.Age, &e.HeightCm, &e.WeightKg, &e.BMI, &e.TUGSeconds, &e.Vision, &e.Hearing)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating entries: %w", err)
	}
	return out, nil
}

// ListUsers returns every user with entries
func (s *PostgresEntryStore) ListUsers(ctx context.Context) ([]string, error) {
	return queryStrings(ctx, s.db, `SELECT DISTINCT user_id FROM daily_entries ORDER BY user_id`)
}

// PostgresFollowStore implements FollowStore over the follows table
type PostgresFollowStore struct {
	db *sql.DB
}

// NewPostgresFollowStore creates a new PostgreSQL-backed FollowStore
func NewPostgresFollowStore(db *sql.DB) *PostgresFollowStore {
	return &PostgresFollowStore{db: db}
}

// Follow inserts the relation
func (s *PostgresFollowStore) Follow(ctx context.Context, followerID, followedID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO follows (follower_id, followed_id) VALUES ($1, $2)
	`, followerID, followedID)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("failed to follow: %w", err)
	}
	return nil
}

// Unfollow deletes the relation
func (s *PostgresFollowStore) Unfollow(ctx context.Context, followerID, followedID string) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM follows WHERE follower_id = $1 AND followed_id = $2
	`, followerID, followedID)
	if err != nil {
		return fmt.Errorf("failed to unfollow: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// IsFollowing reports whether the relation exists
func (s *PostgresFollowStore) IsFollowing(ctx context.Context, followerID, followedID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM follows WHERE follower_id = $1 AND followed_id = $2)
	`, followerID, followedID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check follow: %w", err)
	}
	return exists, nil
}

// ListFollowed returns the users followerID follows
func (s *PostgresFollowStore) ListFollowed(ctx context.Context, followerID string) ([]string, error) {
	return queryStrings(ctx, s.db, `
		SELECT followed_id FROM follows WHERE follower_id = $1 ORDER BY followed_id
	`, followerID)
}

func queryStrings(ctx context.Context, db *sql.DB, q string, args ...any) ([]string, error) {
	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return out, nil
}
