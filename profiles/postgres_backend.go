package profiles

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/liamcoop/healthpro/rules"
)

// PostgresBackend stores profiles in the profiles and schemas tables and rules
// in the rules table.
type PostgresBackend struct {
	db *sql.DB
}

// NewPostgresBackend creates a backend over db
func NewPostgresBackend(db *sql.DB) *PostgresBackend {
	return &PostgresBackend{db: db}
}

// ListProfiles joins every profile with its active schema
func (b *PostgresBackend) ListProfiles(ctx context.Context) ([]Profile, error) {
	rows, err := b.db.QueryContext(ctx, `
		SELECT p.id, p.name, p.moderate_threshold, p.high_threshold, s.version, s.definition
		FROM profiles p
		JOIN schemas s ON s.profile_id = p.id
		WHERE s.active = true
		ORDER BY p.id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch profiles: %w", err)
	}
	defer rows.Close()

	var out []Profile
	for rows.Next() {
		var p Profile
		var schemaJSON []byte
		if err := rows.Scan(&p.ID, &p.Name, &p.Thresholds.Moderate, &p.Thresholds.High, &p.SchemaVersion, &schemaJSON); err != nil {
			return nil, fmt.Errorf("failed to scan profile row: %w", err)
		}
		if err := json.Unmarshal(schemaJSON, &p.Schema); err != nil {
			return nil, fmt.Errorf("invalid schema for profile %s: %w", p.ID, err)
		}
		out = append(out, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating profile rows: %w", err)
	}
	return out, nil
}

// SaveProfile upserts the profile row, deactivates older schemas and inserts
// the next schema version in one transaction.
func (b *PostgresBackend) SaveProfile(ctx context.Context, p Profile) (int, error) {
	schemaJSON, err := json.Marshal(p.Schema)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal schema: %w", err)
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO profiles (id, name, moderate_threshold, high_threshold)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name,
			moderate_threshold = EXCLUDED.moderate_threshold,
			high_threshold = EXCLUDED.high_threshold
	`, p.ID, p.Name, p.Thresholds.Moderate, p.Thresholds.High)
	if err != nil {
		return 0, fmt.Errorf("failed to save profile: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE schemas
		SET active = false
		WHERE profile_id = $1
	`, p.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to deactivate old schemas: %w", err)
	}

	var version int
	err = tx.QueryRowContext(ctx, `
		INSERT INTO schemas (profile_id, version, definition, active, created_at)
		SELECT $1, COALESCE(MAX(version), 0) + 1, $2, true, NOW()
		FROM schemas
		WHERE profile_id = $1
		RETURNING version
	`, p.ID, schemaJSON).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to save new schema: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit profile: %w", err)
	}
	return version, nil
}

// DeleteProfile removes the profile; schemas and rules cascade
func (b *PostgresBackend) DeleteProfile(ctx context.Context, id string) error {
	result, err := b.db.ExecContext(ctx, `DELETE FROM profiles WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete profile: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return ErrProfileNotFound
	}
	return nil
}

// RuleStore returns a Postgres rule store scoped to profileID
func (b *PostgresBackend) RuleStore(profileID string) rules.RuleStore {
	return rules.NewPostgresRuleStore(b.db, profileID)
}
