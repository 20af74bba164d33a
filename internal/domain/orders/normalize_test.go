package orders

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fullOrder = `{
	"id": 4501,
	"name": "#1001",
	"created_at": "2024-03-02T10:15:00+01:00",
	"updated_at": "2024-03-03T08:00:00+01:00",
	"customer": {"id": 77, "email": "ada@example.com", "first_name": "Ada"},
	"billing_address": {
		"address1": "1 rue de la Paix",
		"address2": null,
		"city": "Paris",
		"country_code": "FR",
		"first_name": "Ada",
		"last_name": "Lovelace",
		"zip": "75002",
		"phone": "+33 1 23 45 67 89",
		"company": null,
		"latitude": 48.8698,
		"longitude": 2.3316,
		"province": "IDF"
	},
	"discount_codes": [{"code": "WELCOME", "amount": "5.00", "type": "fixed_amount"}],
	"line_items": [
		{"id": 1, "title": "Mug", "quantity": 2, "price": "10.00", "sku": "MUG-1", "variant_title": "Blue",
		 "tax_lines": [{"rate": 0.2, "price": "3.33"}], "discount_allocations": [{"amount": "5.00"}]},
		{"id": 2, "title": "Card", "quantity": 1, "price": 3.5, "sku": null, "variant_title": null,
		 "tax_lines": [], "discount_allocations": []}
	],
	"shipping_lines": [{"title": "Colissimo", "price": "4.90", "tax_lines": [{"rate": 0.2, "price": "0.82"}]}],
	"subtotal_price": "18.50",
	"total_price": "23.40",
	"total_tax": "4.15",
	"total_discounts": "5.00",
	"payment_gateway_names": ["shopify_payments", "gift_card"]
}`

func TestNormalize_FullOrder(t *testing.T) {
	row, err := Normalize(RawOrder(fullOrder))
	require.NoError(t, err)

	assert.Equal(t, int64(4501), row.ID)
	assert.Equal(t, "#1001", row.Name)
	assert.Equal(t, "23.40", row.TotalPrice.String())

	require.NotNil(t, row.Customer)
	assert.Equal(t, int64(77), *row.Customer.ID)
	assert.Equal(t, "ada@example.com", *row.Customer.Email)

	require.NotNil(t, row.Billing)
	assert.Equal(t, "Paris", *row.Billing.City)
	assert.Nil(t, row.Billing.Address2)
	assert.InDelta(t, 48.8698, *row.Billing.Latitude, 1e-9)

	require.NotNil(t, row.Discount.Code)
	assert.Equal(t, "WELCOME", *row.Discount.Code)
	assert.Equal(t, "5.00", row.Discount.Amount.String())

	require.Len(t, row.LineItems, 2)
	assert.Equal(t, "Mug", row.LineItems[0].Title)
	assert.Equal(t, "MUG-1", *row.LineItems[0].SKU)
	assert.Equal(t, "Card", row.LineItems[1].Title)
	assert.Equal(t, "3.5", row.LineItems[1].Price.String())
	assert.Nil(t, row.LineItems[1].SKU)

	assert.Equal(t, []string{"shopify_payments", "gift_card"}, row.PaymentGatewayNames)
	require.Len(t, row.ShippingLines, 1)
	require.Len(t, row.ShippingLines[0].TaxLines, 1)
	assert.Equal(t, "0.82", row.ShippingLines[0].TaxLines[0].Price.String())
}

func TestNormalize_ProjectsEveryLineItemInOrder(t *testing.T) {
	items := make([]map[string]any, 0, 5)
	for i := 0; i < 5; i++ {
		items = append(items, map[string]any{"title": string(rune('A' + i)), "quantity": i + 1, "price": "1.00"})
	}
	raw, err := json.Marshal(map[string]any{"id": 1, "name": "#1", "line_items": items})
	require.NoError(t, err)

	row, err := Normalize(raw)
	require.NoError(t, err)

	require.Len(t, row.LineItems, 5)
	for i, item := range row.LineItems {
		assert.Equal(t, string(rune('A'+i)), item.Title)
		assert.Equal(t, i+1, item.Quantity)
	}
}

func TestNormalize_EmptyDiscountList(t *testing.T) {
	row, err := Normalize(RawOrder(`{"id": 2, "name": "#2", "discount_codes": [], "line_items": []}`))
	require.NoError(t, err)

	assert.Nil(t, row.Discount.Code)
	assert.Nil(t, row.Discount.Amount)

	code, ok := row.Value(ColDiscountCode)
	assert.True(t, ok, "discount columns exist even without a discount")
	assert.Nil(t, code)

	amount, ok := row.Value(ColDiscountAmount)
	assert.True(t, ok)
	assert.Nil(t, amount)
}

func TestNormalize_MissingCustomerAndBilling(t *testing.T) {
	row, err := Normalize(RawOrder(`{"id": 3, "name": "#3", "customer": null, "line_items": []}`))
	require.NoError(t, err)

	assert.Nil(t, row.Customer)
	assert.Nil(t, row.Billing)

	for _, col := range []string{ColEmail, ColCustomerID, ColCity, ColZip, ColCountryCode} {
		_, ok := row.Value(col)
		assert.False(t, ok, "column %s should be absent", col)
	}

	name, ok := row.Value(ColName)
	assert.True(t, ok)
	assert.Equal(t, "#3", name)
}

func TestNormalize_Failures(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		wantID int64
	}{
		{name: "not json", raw: `{"id": 9, "line_items": [`, wantID: 0},
		{name: "wrong type", raw: `{"id": 9, "line_items": "nope"}`, wantID: 9},
		{name: "line items missing", raw: `{"id": 9, "name": "#9"}`, wantID: 9},
		{name: "line items null", raw: `{"id": 9, "name": "#9", "line_items": null}`, wantID: 9},
		{name: "null line item", raw: `{"id": 9, "name": "#9", "line_items": [{"title": "ok"}, null]}`, wantID: 9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalize(RawOrder(tt.raw))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedOrder))

			var nerr *NormalizeError
			require.True(t, errors.As(err, &nerr))
			assert.Equal(t, tt.wantID, nerr.ID)
		})
	}
}

func TestNormalizeError_Message(t *testing.T) {
	err := &NormalizeError{ID: 9, Name: "#9", Err: errors.New("line_items missing")}
	assert.Equal(t, "order #9 (id 9): line_items missing", err.Error())

	err = &NormalizeError{ID: 9, Err: errors.New("decode")}
	assert.Equal(t, "order id 9: decode", err.Error())
}

func TestAmount(t *testing.T) {
	var payload struct {
		A Amount `json:"a"`
		B Amount `json:"b"`
		C Amount `json:"c"`
		D Amount `json:"d"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a": "12.50", "b": 7, "c": null, "d": ""}`), &payload))

	f, err := payload.A.Float()
	require.NoError(t, err)
	assert.Equal(t, 12.5, f)

	f, err = payload.B.Float()
	require.NoError(t, err)
	assert.Equal(t, 7.0, f)

	assert.False(t, payload.C.IsSet())
	_, err = payload.C.Float()
	assert.ErrorIs(t, err, ErrEmptyAmount)

	assert.True(t, payload.D.IsSet())
	_, err = payload.D.Float()
	assert.ErrorIs(t, err, ErrEmptyAmount)

	_, err = NewAmount("abc").Float()
	assert.Error(t, err)

	out, err := json.Marshal(payload.C)
	require.NoError(t, err)
	assert.Equal(t, "null", string(out))
}
