package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// OTPRepository keeps short-lived sign-in codes in Redis. Codes are
// deleted on first successful verification.
type OTPRepository struct {
	client *redis.Client
}

// NewOTPRepository constructs the repository.
func NewOTPRepository(client *redis.Client) *OTPRepository {
	return &OTPRepository{client: client}
}

func otpKey(email string) string {
	return "otp:" + email
}

// Store saves a code under the email with the given TTL.
func (r *OTPRepository) Store(ctx context.Context, email, code string, ttl time.Duration) error {
	if err := r.client.Set(ctx, otpKey(email), code, ttl).Err(); err != nil {
		return fmt.Errorf("store otp: %w", err)
	}
	return nil
}

// Consume validates the code and removes it so it cannot be replayed.
func (r *OTPRepository) Consume(ctx context.Context, email, code string) (bool, error) {
	stored, err := r.client.Get(ctx, otpKey(email)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read otp: %w", err)
	}
	if stored != code {
		return false, nil
	}
	if err := r.client.Del(ctx, otpKey(email)).Err(); err != nil {
		return false, fmt.Errorf("consume otp: %w", err)
	}
	return true, nil
}
