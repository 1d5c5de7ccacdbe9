package retry

import (
	"fmt"
	"time"

	"github.com/restaurant-platform/webhook-gateway/order"
)

/* State represents where a retry item sits in its lifecycle.
 * queued -> in_flight -> queued (released for another attempt)
 *                     -> dead_letter (attempts exhausted, terminal)
 * The queued->in_flight transition is the claim: an atomic conditional
 * update at the storage layer, so two processors never hold the same item.
 */
type State int

const (
	Queued State = iota + 1
	InFlight
	DeadLetter
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case Queued:
		return "queued"
	case InFlight:
		return "in_flight"
	case DeadLetter:
		return "dead_letter"
	default:
		return "unknown"
	}
}

// NewState creates a State from a string
func NewState(str string) State {
	switch str {
	case "queued":
		return Queued
	case "in_flight":
		return InFlight
	case "dead_letter":
		return DeadLetter
	default:
		return Queued
	}
}

// Validate checks if the state is valid
func (s State) Validate() error {
	if s < Queued || s > DeadLetter {
		return fmt.Errorf("invalid retry state: %d", s)
	}
	return nil
}

/* Item is the durable record of a forward attempt that failed with a
 * transient error. Uses value semantics as it represents data.
 * Mutated only by the retry processor once enqueued.
 */
type Item struct {
	ID           string
	WebhookLogID string
	Order        order.CanonicalOrder
	AttemptCount int
	NextRetryAt  time.Time
	LastError    string
	State        State
	ClaimedAt    time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
