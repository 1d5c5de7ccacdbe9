package webhook

import (
	"errors"
	"fmt"
)

/* Error taxonomy for the ingestion pipeline. Authentication, validation
 * and rate-limit errors are resolved entirely in the request path and
 * never reach the retry subsystem; only DeliveryError crosses over.
 */

// ErrRateLimited rejects a request that exceeded the provider's window
var ErrRateLimited = errors.New("rate limit exceeded")

// ErrInvalidSignature rejects a request whose HMAC did not verify.
// Logged, never forwarded, never retried.
var ErrInvalidSignature = errors.New("invalid webhook signature")

// ErrAddrNotAllowed rejects a request from outside the provider's IP
// allow-list
var ErrAddrNotAllowed = errors.New("remote address not allowed")

// DeliveryError wraps a transient backend failure (timeout, 5xx, circuit
// open). The order was parsed successfully and has been queued for
// asynchronous retry.
type DeliveryError struct {
	LogID string
	Err   error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery failed, queued for retry: %v", e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}
