package providers

import (
	"encoding/json"

	"github.com/restaurant-platform/webhook-gateway/order"
	"github.com/restaurant-platform/webhook-gateway/webhook/signature"
)

/* Careem Now sends a flat order document signed with a hex-encoded digest
 * in x-careem-signature.
 */

type careemPayload struct {
	OrderID   string `json:"order_id"`
	EventType string `json:"event_type"`
	Customer  struct {
		Name            string `json:"name"`
		PhoneNumber     string `json:"phone_number"`
		DeliveryAddress string `json:"delivery_address"`
	} `json:"customer"`
	Items []struct {
		Name      string  `json:"name"`
		Quantity  int     `json:"quantity"`
		UnitPrice float64 `json:"unit_price"`
	} `json:"items"`
	TotalAmount *float64 `json:"total_amount"`
}

type Careem struct{}

// NewCareem creates the Careem adapter
func NewCareem() *Careem { return &Careem{} }

func (c *Careem) Name() string { return "careem" }

func (c *Careem) SignatureHeader() string { return "x-careem-signature" }

func (c *Careem) SignatureEncoding() signature.Encoding { return signature.Hex }

func (c *Careem) EventType(raw []byte) string {
	var probe struct {
		EventType string `json:"event_type"`
	}
	json.Unmarshal(raw, &probe)
	return probe.EventType
}

// Parse maps a Careem order webhook to the canonical schema
func (c *Careem) Parse(raw []byte) (order.CanonicalOrder, error) {
	var p careemPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return order.CanonicalOrder{}, parseErr(c.Name(), "body", "not valid JSON: "+err.Error())
	}

	if p.OrderID == "" {
		return order.CanonicalOrder{}, parseErr(c.Name(), "order_id", "required")
	}
	if p.Customer.Name == "" {
		return order.CanonicalOrder{}, parseErr(c.Name(), "customer.name", "required")
	}
	if len(p.Items) == 0 {
		return order.CanonicalOrder{}, parseErr(c.Name(), "items", "at least one item required")
	}
	if p.TotalAmount == nil {
		return order.CanonicalOrder{}, parseErr(c.Name(), "total_amount", "required")
	}

	items := make([]order.Item, 0, len(p.Items))
	for _, it := range p.Items {
		if it.Name == "" {
			return order.CanonicalOrder{}, parseErr(c.Name(), "items.name", "required")
		}
		if it.Quantity <= 0 {
			return order.CanonicalOrder{}, parseErr(c.Name(), "items.quantity", "must be positive")
		}
		items = append(items, order.Item{
			Name:  it.Name,
			Qty:   it.Quantity,
			Price: it.UnitPrice,
		})
	}

	return order.CanonicalOrder{
		ExternalID: p.OrderID,
		Provider:   c.Name(),
		Customer: order.Customer{
			Name:    p.Customer.Name,
			Phone:   p.Customer.PhoneNumber,
			Address: p.Customer.DeliveryAddress,
		},
		Items:       items,
		TotalAmount: *p.TotalAmount,
		Metadata:    json.RawMessage(raw),
	}, nil
}
