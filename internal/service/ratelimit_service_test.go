package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/harsha-e/unipass-api/pkg/config"
)

type rateLimitStoreStub struct {
	counts  map[string]int
	ceiling int
	err     error
}

func (s *rateLimitStoreStub) Take(_ context.Context, actorID, action string, _ time.Duration, ceiling int) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	key := actorID + "_" + action
	if s.counts[key] >= ceiling {
		return false, nil
	}
	s.counts[key]++
	return true, nil
}

func TestRateLimitServiceAllow(t *testing.T) {
	store := &rateLimitStoreStub{counts: map[string]int{}}
	svc := NewRateLimitService(store, config.RateLimitConfig{Window: time.Minute, Ceiling: 3}, nil)

	for i := 0; i < 3; i++ {
		ok, err := svc.Allow(context.Background(), "student-1", "create_permission")
		require.NoError(t, err)
		require.True(t, ok)
	}

	ok, err := svc.Allow(context.Background(), "student-1", "create_permission")
	require.NoError(t, err)
	require.False(t, ok)

	// Windows are scoped per (actor, action) pair.
	ok, err = svc.Allow(context.Background(), "student-1", "teacher_decision")
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = svc.Allow(context.Background(), "student-2", "create_permission")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestRateLimitServiceStoreFailureDenies(t *testing.T) {
	store := &rateLimitStoreStub{counts: map[string]int{}, err: errors.New("connection refused")}
	svc := NewRateLimitService(store, config.RateLimitConfig{}, nil)

	ok, err := svc.Allow(context.Background(), "student-1", "create_permission")
	require.Error(t, err)
	require.False(t, ok)
}
