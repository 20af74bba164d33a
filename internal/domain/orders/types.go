// Package orders holds the store's order schema and the row normalizer that
// flattens one raw order into the allow-listed fields the accounting export
// needs.
//
// Raw orders stay as json.RawMessage until Normalize decodes them, so one
// malformed record fails on its own instead of poisoning its whole page.
package orders

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// RawOrder is one order exactly as the API returned it.
type RawOrder = json.RawMessage

// ErrEmptyAmount is returned when a monetary field is null or blank.
var ErrEmptyAmount = errors.New("empty amount")

// Amount is a monetary value as sent by the API. The store sends money as
// JSON strings ("10.00") but numbers and null are accepted too. The raw text
// is kept so the export can show exactly what the store reported.
type Amount struct {
	raw   string
	valid bool
}

// NewAmount builds an Amount from its text form.
func NewAmount(raw string) Amount {
	return Amount{raw: raw, valid: true}
}

// UnmarshalJSON accepts "1.23", 1.23 and null.
func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*a = Amount{}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = Amount{raw: s, valid: true}
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("amount must be a string or number: %w", err)
	}
	*a = Amount{raw: n.String(), valid: true}
	return nil
}

// MarshalJSON writes the amount back as a string, or null.
func (a Amount) MarshalJSON() ([]byte, error) {
	if !a.valid {
		return []byte("null"), nil
	}
	return json.Marshal(a.raw)
}

// IsSet reports whether the field was present and non-null.
func (a Amount) IsSet() bool { return a.valid }

// String returns the raw text, "" when unset.
func (a Amount) String() string { return a.raw }

// Float parses the amount. Null or blank values return ErrEmptyAmount.
func (a Amount) Float() (float64, error) {
	s := strings.TrimSpace(a.raw)
	if !a.valid || s == "" {
		return 0, ErrEmptyAmount
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", a.raw, err)
	}
	return f, nil
}

// Order is the subset of the store's order resource the export reads.
type Order struct {
	ID                  int64          `json:"id"`
	Name                *string        `json:"name"`
	CreatedAt           string         `json:"created_at"`
	UpdatedAt           string         `json:"updated_at"`
	Customer            *Customer      `json:"customer"`
	BillingAddress      *Address       `json:"billing_address"`
	DiscountCodes       []DiscountCode `json:"discount_codes"`
	LineItems           []*LineItem    `json:"line_items"`
	ShippingLines       []ShippingLine `json:"shipping_lines"`
	SubtotalPrice       Amount         `json:"subtotal_price"`
	TotalPrice          Amount         `json:"total_price"`
	TotalTax            Amount         `json:"total_tax"`
	TotalDiscounts      Amount         `json:"total_discounts"`
	PaymentGatewayNames []string       `json:"payment_gateway_names"`
}

// Customer is the nested customer object.
type Customer struct {
	ID    *int64  `json:"id"`
	Email *string `json:"email"`
}

// Address is the nested billing address object.
type Address struct {
	Address1    *string  `json:"address1"`
	Address2    *string  `json:"address2"`
	City        *string  `json:"city"`
	CountryCode *string  `json:"country_code"`
	FirstName   *string  `json:"first_name"`
	LastName    *string  `json:"last_name"`
	Zip         *string  `json:"zip"`
	Phone       *string  `json:"phone"`
	Company     *string  `json:"company"`
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
}

// DiscountCode is one entry of discount_codes.
type DiscountCode struct {
	Code   string `json:"code"`
	Amount Amount `json:"amount"`
}

// LineItem is one product entry of an order.
type LineItem struct {
	Title               string               `json:"title"`
	Quantity            int                  `json:"quantity"`
	Price               Amount               `json:"price"`
	SKU                 *string              `json:"sku"`
	VariantTitle        *string              `json:"variant_title"`
	TaxLines            []TaxLine            `json:"tax_lines"`
	DiscountAllocations []DiscountAllocation `json:"discount_allocations"`
}

// TaxLine is one tax applied to a line item or shipping line.
type TaxLine struct {
	Rate  float64 `json:"rate"`
	Price Amount  `json:"price"`
}

// DiscountAllocation is the share of a discount applied to a line item.
type DiscountAllocation struct {
	Amount Amount `json:"amount"`
}

// ShippingLine is one shipping method charged on the order. Only its taxes
// are read; the shipping amount is total minus subtotal.
type ShippingLine struct {
	TaxLines []TaxLine `json:"tax_lines"`
}

// ParseTimestamp parses the API's RFC 3339 timestamps.
func ParseTimestamp(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}
