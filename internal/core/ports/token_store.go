package ports

import (
	"context"
	"time"
)

// TokenRevoker keeps the list of bearer tokens invalidated by logout.
type TokenRevoker interface {
	Revoke(ctx context.Context, tokenID string, until time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}
