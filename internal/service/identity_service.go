package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/harsha-e/unipass-api/internal/models"
	appErrors "github.com/harsha-e/unipass-api/pkg/errors"
)

type identityUserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// IdentityService is the identity gate: it resolves the acting user's
// verified profile before any workflow action is evaluated. A missing
// profile behind an authenticated principal is corrupted state, not
// absence, and is distinct from the valid pending-approval role.
type IdentityService struct {
	repo   identityUserRepository
	logger *zap.Logger
}

// NewIdentityService constructs the service.
func NewIdentityService(repo identityUserRepository, logger *zap.Logger) *IdentityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IdentityService{repo: repo, logger: logger}
}

// ResolveActor maps the session principal to an actor profile. Fails
// fast with ACCOUNT_BLOCKED before any transition logic runs.
func (s *IdentityService) ResolveActor(ctx context.Context, uid string) (*models.Actor, error) {
	if uid == "" {
		return nil, appErrors.ErrSessionExpired
	}

	user, err := s.repo.FindByID(ctx, uid)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("profile missing for authenticated principal", zap.String("uid", uid))
			return nil, appErrors.ErrProfileMissing
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load actor profile")
	}

	actor := &models.Actor{
		UID:         user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		Role:        user.Role,
		RollNumber:  user.RollNumber,
		Department:  user.Department,
		Blocked:     user.Blocked,
	}
	if actor.DisplayName == "" {
		actor.DisplayName = "Staff Member"
	}

	if actor.Blocked {
		return nil, appErrors.ErrBlocked
	}
	return actor, nil
}
