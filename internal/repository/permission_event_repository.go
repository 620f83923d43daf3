package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/harsha-e/unipass-api/internal/models"
)

// PermissionEventRepository reads the append-only event stream. Writes
// happen inside workflow transactions (see PermissionRepository); this
// type only offers the insert used by system-side emitters plus ordered
// replay for timeline reconstruction. No update or delete exists.
type PermissionEventRepository struct {
	db *sqlx.DB
}

// NewPermissionEventRepository constructs the repository.
func NewPermissionEventRepository(db *sqlx.DB) *PermissionEventRepository {
	return &PermissionEventRepository{db: db}
}

// Append inserts one event.
func (r *PermissionEventRepository) Append(ctx context.Context, event *models.PermissionEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO permission_events (id, permission_id, type, actor_role, actor_id, actor_email, created_at)
VALUES (:id, :permission_id, :type, :actor_role, :actor_id, :actor_email, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, event); err != nil {
		return fmt.Errorf("append permission event: %w", err)
	}
	return nil
}

// Timeline returns all events for a permission in creation order.
func (r *PermissionEventRepository) Timeline(ctx context.Context, permissionID string) ([]models.PermissionEvent, error) {
	const query = `SELECT id, permission_id, type, actor_role, actor_id, actor_email, created_at
FROM permission_events WHERE permission_id = $1 ORDER BY created_at ASC, id ASC`
	var events []models.PermissionEvent
	if err := r.db.SelectContext(ctx, &events, query, permissionID); err != nil {
		return nil, fmt.Errorf("permission timeline: %w", err)
	}
	return events, nil
}
