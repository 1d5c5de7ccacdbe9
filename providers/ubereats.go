package providers

import (
	"encoding/json"

	"github.com/restaurant-platform/webhook-gateway/order"
	"github.com/restaurant-platform/webhook-gateway/webhook/signature"
)

/* Uber Eats delivers a deeply nested cart document with amounts in cents
 * and a lowercase hex digest in x-uber-signature.
 */

type uberEatsPayload struct {
	EventType string `json:"event_type"`
	Order     struct {
		DisplayID string `json:"display_id"`
		Eater     struct {
			FirstName string `json:"first_name"`
			Phone     string `json:"phone"`
		} `json:"eater"`
		Delivery struct {
			Location struct {
				StreetAddress string `json:"street_address"`
			} `json:"location"`
		} `json:"delivery"`
		Cart struct {
			Items []struct {
				Title    string `json:"title"`
				Quantity int    `json:"quantity"`
				Price    struct {
					UnitPrice struct {
						Amount *int64 `json:"amount"`
					} `json:"unit_price"`
				} `json:"price"`
			} `json:"items"`
		} `json:"cart"`
		Payment struct {
			Charges struct {
				Total struct {
					Amount *int64 `json:"amount"`
				} `json:"total"`
			} `json:"charges"`
		} `json:"payment"`
	} `json:"order"`
}

type UberEats struct{}

// NewUberEats creates the Uber Eats adapter
func NewUberEats() *UberEats { return &UberEats{} }

func (u *UberEats) Name() string { return "ubereats" }

func (u *UberEats) SignatureHeader() string { return "x-uber-signature" }

func (u *UberEats) SignatureEncoding() signature.Encoding { return signature.Hex }

func (u *UberEats) EventType(raw []byte) string {
	var probe struct {
		EventType string `json:"event_type"`
	}
	json.Unmarshal(raw, &probe)
	return probe.EventType
}

// Parse maps an Uber Eats order webhook to the canonical schema
func (u *UberEats) Parse(raw []byte) (order.CanonicalOrder, error) {
	var p uberEatsPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return order.CanonicalOrder{}, parseErr(u.Name(), "body", "not valid JSON: "+err.Error())
	}

	o := p.Order
	if o.DisplayID == "" {
		return order.CanonicalOrder{}, parseErr(u.Name(), "order.display_id", "required")
	}
	if o.Eater.FirstName == "" {
		return order.CanonicalOrder{}, parseErr(u.Name(), "order.eater.first_name", "required")
	}
	if len(o.Cart.Items) == 0 {
		return order.CanonicalOrder{}, parseErr(u.Name(), "order.cart.items", "at least one item required")
	}
	if o.Payment.Charges.Total.Amount == nil {
		return order.CanonicalOrder{}, parseErr(u.Name(), "order.payment.charges.total.amount", "required")
	}

	items := make([]order.Item, 0, len(o.Cart.Items))
	for _, it := range o.Cart.Items {
		if it.Title == "" {
			return order.CanonicalOrder{}, parseErr(u.Name(), "order.cart.items.title", "required")
		}
		if it.Quantity <= 0 {
			return order.CanonicalOrder{}, parseErr(u.Name(), "order.cart.items.quantity", "must be positive")
		}
		var price float64
		if it.Price.UnitPrice.Amount != nil {
			price = float64(*it.Price.UnitPrice.Amount) / 100
		}
		items = append(items, order.Item{
			Name:  it.Title,
			Qty:   it.Quantity,
			Price: price,
		})
	}

	return order.CanonicalOrder{
		ExternalID: o.DisplayID,
		Provider:   u.Name(),
		Customer: order.Customer{
			Name:    o.Eater.FirstName,
			Phone:   o.Eater.Phone,
			Address: o.Delivery.Location.StreetAddress,
		},
		Items:       items,
		TotalAmount: float64(*o.Payment.Charges.Total.Amount) / 100,
		Metadata:    json.RawMessage(raw),
	}, nil
}
