// Package revocation tracks claim tokens that were invalidated before their
// own expiry.
package revocation

import (
	"context"
	"time"
)

type Cache interface {
	// Add records token as revoked until expiresAt. Tokens that are already
	// expired are ignored.
	Add(ctx context.Context, token string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, token string) (bool, error)
	PurgeExpired(ctx context.Context) (int, error)
	Len() int
}
