package webhook

import (
	"context"
	"time"
)

/* Small, focused interfaces; behavior over things. The same storage
 * implementation (Redis or PostgreSQL) satisfies both this Repository
 * and retry.Queue, so log records and retry items share one store.
 */

// Reader provides read access to the webhook audit log
type Reader interface {
	// Context is always the first parameter in functions that do I/O
	GetLog(ctx context.Context, id string) (LogRecord, error)
}

// Writer provides the state transitions of the webhook audit log.
// Implementations enforce the forward-only status invariant with a
// conditional update; a regressing transition is a silent no-op so
// replays stay idempotent.
type Writer interface {
	// CreateLog persists a new record and returns its ID
	CreateLog(ctx context.Context, rec LogRecord) (string, error)
	// MarkProcessing moves pending -> processing
	MarkProcessing(ctx context.Context, id string) error
	// MarkCompleted records the delivery outcome and terminal status
	MarkCompleted(ctx context.Context, id string, statusCode int, responseTime time.Duration) error
	// MarkFailed records a failure along with the rejection reason
	MarkFailed(ctx context.Context, id string, statusCode int, reason string) error
	// IncrementRetry bumps the retry counter of the record
	IncrementRetry(ctx context.Context, id string) error
	/* SetLogTTL sets an expiration on a terminal record so delivered
	 * and dead audit entries age out of hot storage
	 */
	SetLogTTL(ctx context.Context, id string, ttl time.Duration) error
}

// Repository combines audit-log access with lifecycle management
type Repository interface {
	Reader
	Writer
	Close(ctx context.Context) error
}
