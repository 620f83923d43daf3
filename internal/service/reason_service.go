package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/harsha-e/unipass-api/internal/models"
	appErrors "github.com/harsha-e/unipass-api/pkg/errors"
)

type reasonRepository interface {
	FindByID(ctx context.Context, id string) (*models.PermissionReason, error)
	List(ctx context.Context) ([]models.PermissionReason, error)
}

// ReasonService resolves a requested reason to its approval-policy
// descriptor. An unknown id is a hard failure, never defaulted.
type ReasonService struct {
	repo   reasonRepository
	logger *zap.Logger
}

// NewReasonService constructs the service.
func NewReasonService(repo reasonRepository, logger *zap.Logger) *ReasonService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReasonService{repo: repo, logger: logger}
}

// Resolve returns the policy descriptor for a reason id.
func (s *ReasonService) Resolve(ctx context.Context, reasonID string) (*models.PermissionReason, error) {
	if reasonID == "" {
		return nil, appErrors.ErrInvalidReason
	}
	reason, err := s.repo.FindByID(ctx, reasonID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrInvalidReason
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve reason")
	}
	return reason, nil
}

// List returns all configured reasons.
func (s *ReasonService) List(ctx context.Context) ([]models.PermissionReason, error) {
	reasons, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list reasons")
	}
	return reasons, nil
}
