package providers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/restaurant-platform/webhook-gateway/webhook/signature"
)

const careemOrder = `{
	"order_id": "TEST123",
	"event_type": "order_created",
	"customer": {"name": "Amal Hassan", "phone_number": "+971501234567", "delivery_address": "Villa 12, Al Wasl Rd"},
	"items": [{"name": "Burger", "quantity": 2, "unit_price": 5.99}],
	"total_amount": 11.98,
	"some_future_field": {"ignored": true}
}`

const talabatOrder = `{
	"reference": "TLB-889",
	"event": "order.placed",
	"customer_name": "Omar K",
	"customer_phone": "+96550001111",
	"address": "Block 4, Salmiya",
	"order_items": [
		{"title": "Shawarma", "count": 3, "price": 2.5},
		{"title": "Fries", "count": 1, "price": 1.25}
	],
	"total": 8.75
}`

const deliverooOrder = `{
	"event": "order.created",
	"order": {
		"id": "dlv-42",
		"customer": {
			"first_name": "Jane",
			"last_name": "Doe",
			"phone_number": "+447700900123",
			"address": {"line1": "1 High Street", "city": "London"}
		},
		"items": [{"name": "Pad Thai", "quantity": 1, "unit_price": {"fractional": 1250}}],
		"total_price": {"fractional": 1250}
	}
}`

const uberEatsOrder = `{
	"event_type": "orders.notification",
	"order": {
		"display_id": "UE-7F2K",
		"eater": {"first_name": "Sam", "phone": "+15550001234"},
		"delivery": {"location": {"street_address": "500 Market St"}},
		"cart": {"items": [{"title": "Poke Bowl", "quantity": 2, "price": {"unit_price": {"amount": 1499}}}]},
		"payment": {"charges": {"total": {"amount": 2998}}}
	}
}`

func TestCareemParse(t *testing.T) {
	adapter := NewCareem()

	t.Run("success - maps full order", func(t *testing.T) {
		o, err := adapter.Parse([]byte(careemOrder))
		require.NoError(t, err)

		assert.Equal(t, "TEST123", o.ExternalID)
		assert.Equal(t, "careem", o.Provider)
		assert.Equal(t, "Amal Hassan", o.Customer.Name)
		assert.Equal(t, "+971501234567", o.Customer.Phone)
		require.Len(t, o.Items, 1)
		assert.Equal(t, "Burger", o.Items[0].Name)
		assert.Equal(t, 2, o.Items[0].Qty)
		assert.InDelta(t, 5.99, o.Items[0].Price, 0.0001)
		assert.InDelta(t, 11.98, o.TotalAmount, 0.0001)
	})

	t.Run("success - parsing twice is idempotent", func(t *testing.T) {
		first, err := adapter.Parse([]byte(careemOrder))
		require.NoError(t, err)
		second, err := adapter.Parse([]byte(careemOrder))
		require.NoError(t, err)
		assert.Equal(t, first.ExternalID, second.ExternalID)
		assert.Equal(t, first.TotalAmount, second.TotalAmount)
		assert.Equal(t, first.Items, second.Items)
	})

	t.Run("error - missing order_id", func(t *testing.T) {
		_, err := adapter.Parse([]byte(`{"customer":{"name":"x"},"items":[{"name":"a","quantity":1}],"total_amount":1}`))
		var pe *ParseError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, "order_id", pe.Field)
	})

	t.Run("error - missing customer name", func(t *testing.T) {
		_, err := adapter.Parse([]byte(`{"order_id":"x","items":[{"name":"a","quantity":1}],"total_amount":1}`))
		var pe *ParseError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, "customer.name", pe.Field)
	})

	t.Run("error - empty items", func(t *testing.T) {
		_, err := adapter.Parse([]byte(`{"order_id":"x","customer":{"name":"y"},"items":[],"total_amount":1}`))
		var pe *ParseError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, "items", pe.Field)
	})

	t.Run("error - missing total", func(t *testing.T) {
		_, err := adapter.Parse([]byte(`{"order_id":"x","customer":{"name":"y"},"items":[{"name":"a","quantity":1}]}`))
		var pe *ParseError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, "total_amount", pe.Field)
	})

	t.Run("error - malformed JSON", func(t *testing.T) {
		_, err := adapter.Parse([]byte(`{not json`))
		var pe *ParseError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, "body", pe.Field)
	})

	t.Run("wire conventions", func(t *testing.T) {
		assert.Equal(t, "x-careem-signature", adapter.SignatureHeader())
		assert.Equal(t, signature.Hex, adapter.SignatureEncoding())
	})
}

func TestTalabatParse(t *testing.T) {
	adapter := NewTalabat()

	t.Run("success - maps full order", func(t *testing.T) {
		o, err := adapter.Parse([]byte(talabatOrder))
		require.NoError(t, err)

		assert.Equal(t, "TLB-889", o.ExternalID)
		assert.Equal(t, "talabat", o.Provider)
		assert.Equal(t, "Omar K", o.Customer.Name)
		require.Len(t, o.Items, 2)
		assert.Equal(t, "Shawarma", o.Items[0].Name)
		assert.Equal(t, 3, o.Items[0].Qty)
		assert.InDelta(t, 8.75, o.TotalAmount, 0.0001)
	})

	t.Run("error - missing reference", func(t *testing.T) {
		_, err := adapter.Parse([]byte(`{"customer_name":"x","order_items":[{"title":"a","count":1}],"total":1}`))
		var pe *ParseError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, "reference", pe.Field)
	})

	t.Run("error - non-positive item count", func(t *testing.T) {
		_, err := adapter.Parse([]byte(`{"reference":"r","customer_name":"x","order_items":[{"title":"a","count":0}],"total":1}`))
		var pe *ParseError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, "order_items.count", pe.Field)
	})

	t.Run("wire conventions", func(t *testing.T) {
		assert.Equal(t, "x-talabat-signature", adapter.SignatureHeader())
		assert.Equal(t, signature.Base64, adapter.SignatureEncoding())
	})
}

func TestDeliverooParse(t *testing.T) {
	adapter := NewDeliveroo()

	t.Run("success - converts fractional prices", func(t *testing.T) {
		o, err := adapter.Parse([]byte(deliverooOrder))
		require.NoError(t, err)

		assert.Equal(t, "dlv-42", o.ExternalID)
		assert.Equal(t, "Jane Doe", o.Customer.Name)
		assert.Equal(t, "1 High Street, London", o.Customer.Address)
		require.Len(t, o.Items, 1)
		assert.InDelta(t, 12.50, o.Items[0].Price, 0.0001)
		assert.InDelta(t, 12.50, o.TotalAmount, 0.0001)
	})

	t.Run("error - missing total_price", func(t *testing.T) {
		_, err := adapter.Parse([]byte(`{"order":{"id":"x","customer":{"first_name":"a"},"items":[{"name":"n","quantity":1}]}}`))
		var pe *ParseError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, "order.total_price.fractional", pe.Field)
	})

	t.Run("wire conventions", func(t *testing.T) {
		assert.Equal(t, "x-deliveroo-hmac-sha256", adapter.SignatureHeader())
		assert.Equal(t, signature.Hex, adapter.SignatureEncoding())
	})
}

func TestUberEatsParse(t *testing.T) {
	adapter := NewUberEats()

	t.Run("success - converts cent amounts", func(t *testing.T) {
		o, err := adapter.Parse([]byte(uberEatsOrder))
		require.NoError(t, err)

		assert.Equal(t, "UE-7F2K", o.ExternalID)
		assert.Equal(t, "Sam", o.Customer.Name)
		assert.Equal(t, "500 Market St", o.Customer.Address)
		require.Len(t, o.Items, 1)
		assert.Equal(t, 2, o.Items[0].Qty)
		assert.InDelta(t, 14.99, o.Items[0].Price, 0.0001)
		assert.InDelta(t, 29.98, o.TotalAmount, 0.0001)
	})

	t.Run("error - missing display_id", func(t *testing.T) {
		_, err := adapter.Parse([]byte(`{"order":{"eater":{"first_name":"a"}}}`))
		var pe *ParseError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, "order.display_id", pe.Field)
	})

	t.Run("wire conventions", func(t *testing.T) {
		assert.Equal(t, "x-uber-signature", adapter.SignatureHeader())
		assert.Equal(t, signature.Hex, adapter.SignatureEncoding())
	})
}
