package port

import "context"

type IdempotencyStore interface {
	// SetIdempotency claims key, returns false if it was already claimed
	SetIdempotency(ctx context.Context, key string) (bool, error)

	// ReleaseIdempotency frees a key so a failed request can be retried
	ReleaseIdempotency(ctx context.Context, key string) error
}
