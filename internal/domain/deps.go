package domain

import (
	"context"
	"time"
)

// TokenVerifier validates a client-supplied auth token and returns the user
// id it is bound to. Implementations must return ErrUnauthorized (possibly
// wrapped) for invalid or expired tokens.
type TokenVerifier interface {
	Decode(ctx context.Context, token string) (userID string, err error)
}

// SnapshotMirror receives a copy of every snapshot update so sibling
// processes can read last prices without a connection to this service.
type SnapshotMirror interface {
	SetSnapshot(ctx context.Context, snap PriceSnapshot) error
	RemoveSnapshot(ctx context.Context, symbol string) error
}

// RateLimiter provides distributed rate limiting for the HTTP edge.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
