package idempotency

import (
	"encoding/json"
	"time"
)

const (
	StateInProgress = "in_progress"
	StateCompleted  = "completed"
)

type Record struct {
	Key         string          `json:"key"`
	Token       string          `json:"token"`
	Fingerprint string          `json:"fingerprint"`
	State       string          `json:"state"`
	Response    json.RawMessage `json:"response,omitempty"`
	LockedAt    time.Time       `json:"locked_at"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	ExpiresAt   time.Time       `json:"expires_at"`
}

func (r *Record) Completed() bool {
	return r.State == StateCompleted
}

// Stale reports whether an in-progress reservation outlived its lock.
func (r *Record) Stale(now time.Time, lockTTL time.Duration) bool {
	return r.State == StateInProgress && lockTTL > 0 && now.Sub(r.LockedAt) > lockTTL
}

func (r *Record) Expired(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && now.After(r.ExpiresAt)
}
