package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/harsha-e/unipass-api/pkg/config"
)

// RateLimitStore admits or denies one action within a sliding window.
type RateLimitStore interface {
	Take(ctx context.Context, actorID, action string, window time.Duration, ceiling int) (bool, error)
}

// RateLimitService guards workflow-mutating calls with per-(actor,
// action) admission control. This is advisory only; RBAC is enforced
// independently on every route.
type RateLimitService struct {
	store   RateLimitStore
	window  time.Duration
	ceiling int
	logger  *zap.Logger
}

// NewRateLimitService constructs the service from injected config.
func NewRateLimitService(store RateLimitStore, cfg config.RateLimitConfig, logger *zap.Logger) *RateLimitService {
	if logger == nil {
		logger = zap.NewNop()
	}
	window := cfg.Window
	if window <= 0 {
		window = time.Minute
	}
	ceiling := cfg.Ceiling
	if ceiling <= 0 {
		ceiling = 10
	}
	return &RateLimitService{store: store, window: window, ceiling: ceiling, logger: logger}
}

// Allow reports whether the actor may perform the action now. Store
// failures deny: a broken limiter should not silently admit bursts.
func (s *RateLimitService) Allow(ctx context.Context, actorID, action string) (bool, error) {
	ok, err := s.store.Take(ctx, actorID, action, s.window, s.ceiling)
	if err != nil {
		s.logger.Error("rate limit store failure", zap.String("actor", actorID), zap.String("action", action), zap.Error(err))
		return false, err
	}
	if !ok {
		s.logger.Info("rate limit exceeded", zap.String("actor", actorID), zap.String("action", action))
	}
	return ok, nil
}
