package webhook

import "time"

/* LogRecord is the append-only audit record of a received webhook.
 * Uses value semantics as it represents data, not behavior.
 * One record per inbound request that reached signature verification;
 * state transitions only move forward (see Status.CanTransition).
 */
type LogRecord struct {
	ID             string
	Provider       string
	EventType      string
	Payload        []byte
	SignatureValid bool
	StatusCode     int
	ResponseTimeMs int64
	Status         Status
	RetryCount     int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
