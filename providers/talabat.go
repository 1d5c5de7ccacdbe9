package providers

import (
	"encoding/json"

	"github.com/restaurant-platform/webhook-gateway/order"
	"github.com/restaurant-platform/webhook-gateway/webhook/signature"
)

/* Talabat uses flat customer fields and a base64-encoded digest in
 * x-talabat-signature.
 */

type talabatPayload struct {
	Reference     string `json:"reference"`
	Event         string `json:"event"`
	CustomerName  string `json:"customer_name"`
	CustomerPhone string `json:"customer_phone"`
	Address       string `json:"address"`
	OrderItems    []struct {
		Title string  `json:"title"`
		Count int     `json:"count"`
		Price float64 `json:"price"`
	} `json:"order_items"`
	Total *float64 `json:"total"`
}

type Talabat struct{}

// NewTalabat creates the Talabat adapter
func NewTalabat() *Talabat { return &Talabat{} }

func (t *Talabat) Name() string { return "talabat" }

func (t *Talabat) SignatureHeader() string { return "x-talabat-signature" }

func (t *Talabat) SignatureEncoding() signature.Encoding { return signature.Base64 }

func (t *Talabat) EventType(raw []byte) string {
	var probe struct {
		Event string `json:"event"`
	}
	json.Unmarshal(raw, &probe)
	return probe.Event
}

// Parse maps a Talabat order webhook to the canonical schema
func (t *Talabat) Parse(raw []byte) (order.CanonicalOrder, error) {
	var p talabatPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return order.CanonicalOrder{}, parseErr(t.Name(), "body", "not valid JSON: "+err.Error())
	}

	if p.Reference == "" {
		return order.CanonicalOrder{}, parseErr(t.Name(), "reference", "required")
	}
	if p.CustomerName == "" {
		return order.CanonicalOrder{}, parseErr(t.Name(), "customer_name", "required")
	}
	if len(p.OrderItems) == 0 {
		return order.CanonicalOrder{}, parseErr(t.Name(), "order_items", "at least one item required")
	}
	if p.Total == nil {
		return order.CanonicalOrder{}, parseErr(t.Name(), "total", "required")
	}

	items := make([]order.Item, 0, len(p.OrderItems))
	for _, it := range p.OrderItems {
		if it.Title == "" {
			return order.CanonicalOrder{}, parseErr(t.Name(), "order_items.title", "required")
		}
		if it.Count <= 0 {
			return order.CanonicalOrder{}, parseErr(t.Name(), "order_items.count", "must be positive")
		}
		items = append(items, order.Item{
			Name:  it.Title,
			Qty:   it.Count,
			Price: it.Price,
		})
	}

	return order.CanonicalOrder{
		ExternalID: p.Reference,
		Provider:   t.Name(),
		Customer: order.Customer{
			Name:    p.CustomerName,
			Phone:   p.CustomerPhone,
			Address: p.Address,
		},
		Items:       items,
		TotalAmount: *p.Total,
		Metadata:    json.RawMessage(raw),
	}, nil
}
