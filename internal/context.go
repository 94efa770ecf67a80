package internal

import (
	"context"
	"time"
)

type ctxKey string

const ContextMerchantKey ctxKey = "merchantID"

// MerchantIDFromContext returns the authenticated merchant, or "" when the
// request was not authenticated.
func MerchantIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if merchantID, ok := ctx.Value(ContextMerchantKey).(string); ok {
		return merchantID
	}
	return ""
}

func ContextWithMerchantID(ctx context.Context, merchantID string) context.Context {
	return context.WithValue(ctx, ContextMerchantKey, merchantID)
}

// WithTimeout returns a context with timeout, defaulting to 5 seconds if duration is zero or negative.
func WithTimeout(ctx context.Context, duration time.Duration) (context.Context, context.CancelFunc) {
	if duration <= 0 {
		duration = 5 * time.Second
	}
	return context.WithTimeout(ctx, duration)
}
