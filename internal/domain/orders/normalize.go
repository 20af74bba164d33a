package orders

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformedOrder is wrapped by every NormalizeError.
var ErrMalformedOrder = errors.New("malformed order")

// NormalizeError identifies the record that could not be normalized.
// ID and Name are zero when the record was too broken to read them.
type NormalizeError struct {
	ID   int64
	Name string
	Err  error
}

func (e *NormalizeError) Error() string {
	switch {
	case e.Name != "":
		return fmt.Sprintf("order %s (id %d): %v", e.Name, e.ID, e.Err)
	case e.ID != 0:
		return fmt.Sprintf("order id %d: %v", e.ID, e.Err)
	default:
		return fmt.Sprintf("order: %v", e.Err)
	}
}

func (e *NormalizeError) Unwrap() []error {
	return []error{ErrMalformedOrder, e.Err}
}

// Normalize decodes one raw order and flattens it into a Row.
//
// It fails when the record does not decode, when line_items is missing or
// null, or when a line item is null. Missing customer or billing objects
// are not failures: those columns are simply absent from the row.
func Normalize(raw RawOrder) (Row, error) {
	var order Order
	if err := json.Unmarshal(raw, &order); err != nil {
		return Row{}, &NormalizeError{ID: peekID(raw), Err: fmt.Errorf("decode: %w", err)}
	}

	name := ""
	if order.Name != nil {
		name = *order.Name
	}

	if order.LineItems == nil {
		return Row{}, &NormalizeError{ID: order.ID, Name: name, Err: errors.New("line_items missing")}
	}

	row := Row{
		ID:                  order.ID,
		Name:                name,
		CreatedAt:           order.CreatedAt,
		UpdatedAt:           order.UpdatedAt,
		SubtotalPrice:       order.SubtotalPrice,
		TotalPrice:          order.TotalPrice,
		TotalTax:            order.TotalTax,
		TotalDiscounts:      order.TotalDiscounts,
		ShippingLines:       order.ShippingLines,
		PaymentGatewayNames: order.PaymentGatewayNames,
	}

	if c := order.Customer; c != nil {
		row.Customer = &CustomerFields{ID: c.ID, Email: c.Email}
	}

	if a := order.BillingAddress; a != nil {
		row.Billing = &AddressFields{
			Address1:    a.Address1,
			Address2:    a.Address2,
			City:        a.City,
			CountryCode: a.CountryCode,
			FirstName:   a.FirstName,
			LastName:    a.LastName,
			Zip:         a.Zip,
			Phone:       a.Phone,
			Company:     a.Company,
			Latitude:    a.Latitude,
			Longitude:   a.Longitude,
		}
	}

	if len(order.DiscountCodes) > 0 {
		first := order.DiscountCodes[0]
		code := first.Code
		amount := first.Amount
		row.Discount = DiscountFields{Code: &code, Amount: &amount}
	}

	row.LineItems = make([]Item, 0, len(order.LineItems))
	for i, li := range order.LineItems {
		if li == nil {
			return Row{}, &NormalizeError{ID: order.ID, Name: name, Err: fmt.Errorf("line item %d is null", i)}
		}
		row.LineItems = append(row.LineItems, Item{
			Title:               li.Title,
			Quantity:            li.Quantity,
			Price:               li.Price,
			SKU:                 li.SKU,
			VariantTitle:        li.VariantTitle,
			TaxLines:            li.TaxLines,
			DiscountAllocations: li.DiscountAllocations,
		})
	}

	return row, nil
}

// peekID pulls the id out of a record that failed full decoding, so the
// error can still point at it.
func peekID(raw RawOrder) int64 {
	var probe struct {
		ID int64 `json:"id"`
	}
	_ = json.Unmarshal(raw, &probe)
	return probe.ID
}
