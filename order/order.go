package order

import "encoding/json"

/* CanonicalOrder is the provider-agnostic representation of an order event.
 * Uses value semantics as it represents data, not behavior.
 * Immutable after the adapter produces it; the pipeline hands it to the
 * backend client as-is.
 */
type CanonicalOrder struct {
	ExternalID  string          `json:"external_id"`
	Provider    string          `json:"provider"`
	Customer    Customer        `json:"customer"`
	Items       []Item          `json:"items"`
	TotalAmount float64         `json:"total_amount"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
}

// Customer holds the normalized customer details of an order
type Customer struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

// Item is a single normalized order line
type Item struct {
	Name  string  `json:"name"`
	Qty   int     `json:"qty"`
	Price float64 `json:"price"`
}
