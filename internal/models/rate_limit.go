package models

import "time"

// RateLimitCounter is a per-(actor, action) sliding-window counter.
// Reset when now exceeds window_start by the window length; otherwise
// incremented and compared against the ceiling.
type RateLimitCounter struct {
	Key         string    `db:"key" json:"key"`
	Count       int       `db:"count" json:"count"`
	WindowStart time.Time `db:"window_start" json:"window_start"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// RateLimitKey builds the composite counter key.
func RateLimitKey(actorID, action string) string {
	return actorID + "_" + action
}
