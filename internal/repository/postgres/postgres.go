package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fleetview/backend/internal/domain"
)

// Schema creates the trail table if it does not exist
const Schema = `
	CREATE TABLE IF NOT EXISTS vehicle_trails (
		trail_key  TEXT PRIMARY KEY,
		points     JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)
`

// PostgresRepository implements domain.TrailStore
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Migrate applies Schema
func (r *PostgresRepository) Migrate(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("postgres: failed to migrate: %w", err)
	}
	return nil
}

// Load retrieves a trail from PostgreSQL
func (r *PostgresRepository) Load(ctx context.Context, key string) (domain.Trail, error) {
	query := `SELECT points FROM vehicle_trails WHERE trail_key = $1`

	var raw []byte
	err := r.pool.QueryRow(ctx, query, key).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrTrailNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to query trail: %w", err)
	}

	var trail domain.Trail
	if err := json.Unmarshal(raw, &trail); err != nil {
		return nil, fmt.Errorf("postgres: failed to decode trail: %w", err)
	}
	return trail, nil
}

// Save persists a trail to PostgreSQL, replacing any previous one
func (r *PostgresRepository) Save(ctx context.Context, key string, trail domain.Trail) error {
	query := `
		INSERT INTO vehicle_trails (trail_key, points, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (trail_key) DO UPDATE
		SET points = EXCLUDED.points, updated_at = EXCLUDED.updated_at
	`

	raw, err := json.Marshal(trail)
	if err != nil {
		return fmt.Errorf("postgres: failed to encode trail: %w", err)
	}

	if _, err := r.pool.Exec(ctx, query, key, raw, time.Now()); err != nil {
		return fmt.Errorf("postgres: failed to save trail: %w", err)
	}
	return nil
}

// Delete removes a trail from PostgreSQL
func (r *PostgresRepository) Delete(ctx context.Context, key string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM vehicle_trails WHERE trail_key = $1`, key); err != nil {
		return fmt.Errorf("postgres: failed to delete trail: %w", err)
	}
	return nil
}

// Health checks database connectivity
func (r *PostgresRepository) Health(ctx context.Context) error {
	if err := r.pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres: health check failed: %w", err)
	}
	return nil
}
