package retry

import (
	"context"
	"time"
)

/* Queue is the durable retry store. Implementations back it with Redis
 * or PostgreSQL; correctness in a scaled deployment rests on ClaimDue
 * being an atomic compare-and-swap on the item state.
 */
type Queue interface {
	// Enqueue adds a queued item scheduled at item.NextRetryAt
	Enqueue(ctx context.Context, item Item) error

	/* ClaimDue atomically claims up to limit queued items whose
	 * NextRetryAt is not after now, transitioning them to in_flight.
	 * Items stuck in_flight longer than staleAfter are reclaimed too,
	 * so a crashed worker never strands its claims.
	 */
	ClaimDue(ctx context.Context, now time.Time, limit int, staleAfter time.Duration) ([]Item, error)

	// Resolve removes a delivered item from the queue
	Resolve(ctx context.Context, id string) error

	// Release returns a claimed item to the queue for another attempt
	Release(ctx context.Context, id string, attemptCount int, nextRetryAt time.Time, lastError string) error

	// MarkDead moves a claimed item to the dead-letter state (terminal,
	// manual operator action required)
	MarkDead(ctx context.Context, id string, lastError string) error

	// ListDead returns dead-letter items for operator inspection
	ListDead(ctx context.Context, limit int) ([]Item, error)

	// Requeue resets a dead-letter item back to queued with a fresh
	// attempt budget; the operator escape hatch
	Requeue(ctx context.Context, id string, nextRetryAt time.Time) error
}
