package postgres

import (
	"context"
	"time"
)

// withTimeout bounds a single store call. A non-positive timeout leaves ctx
// untouched.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}
