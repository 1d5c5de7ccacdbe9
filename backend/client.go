package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/restaurant-platform/webhook-gateway/order"
)

/* Client forwards canonical orders to the internal order backend over
 * HTTP, guarded by the circuit breaker. The backend is an external
 * collaborator; the gateway only needs its ingest endpoint.
 */

// StatusError reports a non-2xx response from the backend
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend returned status %d", e.Code)
}

// Retryable reports whether the status is worth retrying. Client errors
// other than 429 mean the payload itself was rejected.
func (e *StatusError) Retryable() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

type Client struct {
	httpClient *http.Client
	ingestURL  string
	breaker    *Breaker
}

// NewClient creates a backend client posting orders to ingestURL.
// The http.Client timeout is left to the breaker's call timeout.
func NewClient(ingestURL string, breaker *Breaker) *Client {
	return &Client{
		httpClient: &http.Client{},
		ingestURL:  ingestURL,
		breaker:    breaker,
	}
}

/* Forward delivers the order through the circuit breaker. Returns the
 * backend HTTP status (0 when no response was obtained) and an error for
 * any outcome that is not a 2xx response: ErrCircuitOpen, a transport or
 * timeout failure, or a *StatusError.
 */
func (c *Client) Forward(ctx context.Context, o order.CanonicalOrder) (int, error) {
	body, err := json.Marshal(o)
	if err != nil {
		return 0, fmt.Errorf("marshaling order: %w", err)
	}

	statusCode := 0
	err = c.breaker.Execute(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.ingestURL, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("building backend request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Order-Provider", o.Provider)
		req.Header.Set("X-Order-External-Id", o.ExternalID)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("posting order to backend: %w", err)
		}
		defer resp.Body.Close()
		// Drain so the connection can be reused
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

		statusCode = resp.StatusCode
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return &StatusError{Code: resp.StatusCode}
		}
		return nil
	})

	return statusCode, err
}

// Breaker exposes the guarding breaker, mainly for metrics
func (c *Client) Breaker() *Breaker {
	return c.breaker
}

// WithHTTPClient overrides the transport, used by tests
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}
