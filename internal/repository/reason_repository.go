package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/harsha-e/unipass-api/internal/models"
)

// ReasonRepository reads the configured reasons table backing the rule
// resolver.
type ReasonRepository struct {
	db *sqlx.DB
}

// NewReasonRepository constructs the repository.
func NewReasonRepository(db *sqlx.DB) *ReasonRepository {
	return &ReasonRepository{db: db}
}

// FindByID resolves a reason id to its policy descriptor.
func (r *ReasonRepository) FindByID(ctx context.Context, id string) (*models.PermissionReason, error) {
	const query = `SELECT id, label, is_custom, approval_type FROM permission_reasons WHERE id = $1 LIMIT 1`
	var reason models.PermissionReason
	if err := r.db.GetContext(ctx, &reason, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find reason: %w", err)
	}
	return &reason, nil
}

// List returns every configured reason for the request form.
func (r *ReasonRepository) List(ctx context.Context) ([]models.PermissionReason, error) {
	const query = `SELECT id, label, is_custom, approval_type FROM permission_reasons ORDER BY label ASC`
	var reasons []models.PermissionReason
	if err := r.db.SelectContext(ctx, &reasons, query); err != nil {
		return nil, fmt.Errorf("list reasons: %w", err)
	}
	return reasons, nil
}
