package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/harsha-e/unipass-api/internal/models"
)

// RateLimitRepository keeps sliding-window counters in Postgres using a
// read-then-conditionally-write sequence. Concurrent calls from the
// same actor can race the increment; the resulting over-admission is
// bounded by in-flight parallelism and accepted (the limiter is
// advisory, authorization is enforced separately).
type RateLimitRepository struct {
	db *sqlx.DB
}

// NewRateLimitRepository constructs the repository.
func NewRateLimitRepository(db *sqlx.DB) *RateLimitRepository {
	return &RateLimitRepository{db: db}
}

// Take admits or denies one action for the actor within the window.
// First call or expired window resets the counter to 1. At or over the
// ceiling the counter is left unchanged and the call is denied.
func (r *RateLimitRepository) Take(ctx context.Context, actorID, action string, window time.Duration, ceiling int) (bool, error) {
	key := models.RateLimitKey(actorID, action)
	now := time.Now().UTC()

	var counter models.RateLimitCounter
	err := r.db.GetContext(ctx, &counter, `SELECT key, count, window_start, updated_at FROM rate_limits WHERE key = $1 LIMIT 1`, key)
	if err != nil && err != sql.ErrNoRows {
		return false, fmt.Errorf("read rate limit counter: %w", err)
	}

	if err == sql.ErrNoRows || now.Sub(counter.WindowStart) > window {
		const upsert = `INSERT INTO rate_limits (key, count, window_start, updated_at) VALUES ($1, 1, $2, $2)
ON CONFLICT (key) DO UPDATE SET count = 1, window_start = EXCLUDED.window_start, updated_at = EXCLUDED.updated_at`
		if _, err := r.db.ExecContext(ctx, upsert, key, now); err != nil {
			return false, fmt.Errorf("reset rate limit counter: %w", err)
		}
		return true, nil
	}

	if counter.Count >= ceiling {
		return false, nil
	}

	if _, err := r.db.ExecContext(ctx, `UPDATE rate_limits SET count = count + 1, updated_at = $2 WHERE key = $1`, key, now); err != nil {
		return false, fmt.Errorf("increment rate limit counter: %w", err)
	}
	return true, nil
}
