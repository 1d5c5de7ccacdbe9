package providers

import (
	"errors"
	"fmt"

	"github.com/restaurant-platform/webhook-gateway/order"
	"github.com/restaurant-platform/webhook-gateway/webhook/signature"
)

// ErrUnsupportedProvider is returned by the registry when no adapter is
// registered for the requested provider identifier.
var ErrUnsupportedProvider = errors.New("unsupported provider")

/* Adapter translates one delivery platform's native webhook payload into
 * the canonical order schema. One implementation per provider; all wire
 * conventions (signature header name, digest encoding) live here so the
 * ingestion pipeline stays provider-agnostic.
 */
type Adapter interface {
	// Name returns the provider identifier used in the webhook URL path
	Name() string
	// SignatureHeader returns the HTTP header carrying the HMAC digest
	SignatureHeader() string
	// SignatureEncoding returns how the provider encodes the digest
	SignatureEncoding() signature.Encoding
	// EventType extracts the provider's event label from the raw body,
	// best effort; empty when absent or unreadable
	EventType(raw []byte) string
	/* Parse maps the provider's raw JSON body to a CanonicalOrder.
	 * Missing required fields (external id, customer name, items, total)
	 * yield a *ParseError naming the field; unrecognized optional fields
	 * are ignored.
	 */
	Parse(raw []byte) (order.CanonicalOrder, error)
}

// ParseError reports a payload that could not be normalized, with a
// field-level reason. Never retried: the same bytes will always fail.
type ParseError struct {
	Provider string
	Field    string
	Reason   string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s payload invalid: field %q: %s", e.Provider, e.Field, e.Reason)
}

func parseErr(provider, field, reason string) *ParseError {
	return &ParseError{Provider: provider, Field: field, Reason: reason}
}
