package providers

import (
	"encoding/json"
	"strings"

	"github.com/restaurant-platform/webhook-gateway/order"
	"github.com/restaurant-platform/webhook-gateway/webhook/signature"
)

/* Deliveroo nests the order under an event wrapper and expresses money in
 * fractional units (pence/fils). Hex digest in x-deliveroo-hmac-sha256.
 */

type deliverooPayload struct {
	Event string `json:"event"`
	Order struct {
		ID       string `json:"id"`
		Customer struct {
			FirstName   string `json:"first_name"`
			LastName    string `json:"last_name"`
			PhoneNumber string `json:"phone_number"`
			Address     struct {
				Line1 string `json:"line1"`
				City  string `json:"city"`
			} `json:"address"`
		} `json:"customer"`
		Items []struct {
			Name      string `json:"name"`
			Quantity  int    `json:"quantity"`
			UnitPrice struct {
				Fractional *int64 `json:"fractional"`
			} `json:"unit_price"`
		} `json:"items"`
		TotalPrice struct {
			Fractional *int64 `json:"fractional"`
		} `json:"total_price"`
	} `json:"order"`
}

type Deliveroo struct{}

// NewDeliveroo creates the Deliveroo adapter
func NewDeliveroo() *Deliveroo { return &Deliveroo{} }

func (d *Deliveroo) Name() string { return "deliveroo" }

func (d *Deliveroo) SignatureHeader() string { return "x-deliveroo-hmac-sha256" }

func (d *Deliveroo) SignatureEncoding() signature.Encoding { return signature.Hex }

func (d *Deliveroo) EventType(raw []byte) string {
	var probe struct {
		Event string `json:"event"`
	}
	json.Unmarshal(raw, &probe)
	return probe.Event
}

// Parse maps a Deliveroo order webhook to the canonical schema
func (d *Deliveroo) Parse(raw []byte) (order.CanonicalOrder, error) {
	var p deliverooPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return order.CanonicalOrder{}, parseErr(d.Name(), "body", "not valid JSON: "+err.Error())
	}

	o := p.Order
	if o.ID == "" {
		return order.CanonicalOrder{}, parseErr(d.Name(), "order.id", "required")
	}

	name := strings.TrimSpace(o.Customer.FirstName + " " + o.Customer.LastName)
	if name == "" {
		return order.CanonicalOrder{}, parseErr(d.Name(), "order.customer.first_name", "required")
	}
	if len(o.Items) == 0 {
		return order.CanonicalOrder{}, parseErr(d.Name(), "order.items", "at least one item required")
	}
	if o.TotalPrice.Fractional == nil {
		return order.CanonicalOrder{}, parseErr(d.Name(), "order.total_price.fractional", "required")
	}

	items := make([]order.Item, 0, len(o.Items))
	for _, it := range o.Items {
		if it.Name == "" {
			return order.CanonicalOrder{}, parseErr(d.Name(), "order.items.name", "required")
		}
		if it.Quantity <= 0 {
			return order.CanonicalOrder{}, parseErr(d.Name(), "order.items.quantity", "must be positive")
		}
		var price float64
		if it.UnitPrice.Fractional != nil {
			price = float64(*it.UnitPrice.Fractional) / 100
		}
		items = append(items, order.Item{
			Name:  it.Name,
			Qty:   it.Quantity,
			Price: price,
		})
	}

	address := o.Customer.Address.Line1
	if o.Customer.Address.City != "" {
		if address != "" {
			address += ", "
		}
		address += o.Customer.Address.City
	}

	return order.CanonicalOrder{
		ExternalID: o.ID,
		Provider:   d.Name(),
		Customer: order.Customer{
			Name:    name,
			Phone:   o.Customer.PhoneNumber,
			Address: address,
		},
		Items:       items,
		TotalAmount: float64(*o.TotalPrice.Fractional) / 100,
		Metadata:    json.RawMessage(raw),
	}, nil
}
