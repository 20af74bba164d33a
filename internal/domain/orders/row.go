package orders

// Column names shared by the normalizer, the deriver and the table assembler.
const (
	ColName           = "name"
	ColCreatedAt      = "created_at"
	ColUpdatedAt      = "updated_at"
	ColSubtotalPrice  = "subtotal_price"
	ColTotalPrice     = "total_price"
	ColTotalTax       = "total_tax"
	ColTotalDiscounts = "total_discounts"

	ColCustomerID = "customer_id"
	ColEmail      = "email"

	ColAddress1    = "address1"
	ColAddress2    = "address2"
	ColCity        = "city"
	ColCountryCode = "country_code"
	ColFirstName   = "first_name"
	ColLastName    = "last_name"
	ColZip         = "zip"
	ColPhone       = "phone"
	ColCompany     = "company"
	ColLatitude    = "latitude"
	ColLongitude   = "longitude"

	ColDiscountCode   = "code"
	ColDiscountAmount = "amount"
)

// Row is one order flattened to the allow-listed fields.
//
// Customer and Billing are nil when the order had no such object; their
// columns are then absent for this row. Discount is always present, with nil
// members when the order carried no discount code.
type Row struct {
	ID             int64
	Name           string
	CreatedAt      string
	UpdatedAt      string
	SubtotalPrice  Amount
	TotalPrice     Amount
	TotalTax       Amount
	TotalDiscounts Amount

	Customer *CustomerFields
	Billing  *AddressFields
	Discount DiscountFields

	LineItems           []Item
	ShippingLines       []ShippingLine
	PaymentGatewayNames []string
}

// CustomerFields are the customer columns kept in the export.
type CustomerFields struct {
	ID    *int64
	Email *string
}

// AddressFields are the billing address columns kept in the export.
type AddressFields struct {
	Address1    *string
	Address2    *string
	City        *string
	CountryCode *string
	FirstName   *string
	LastName    *string
	Zip         *string
	Phone       *string
	Company     *string
	Latitude    *float64
	Longitude   *float64
}

// DiscountFields hold the first discount code of the order.
type DiscountFields struct {
	Code   *string
	Amount *Amount
}

// Item is the projection of one line item.
type Item struct {
	Title               string
	Quantity            int
	Price               Amount
	SKU                 *string
	VariantTitle        *string
	TaxLines            []TaxLine
	DiscountAllocations []DiscountAllocation
}

// Value returns the cell for a base column. The boolean is false when the
// column does not exist on this row (absent nested object). A present column
// may still hold nil, e.g. the discount code of an order without discounts.
func (r *Row) Value(column string) (any, bool) {
	switch column {
	case ColName:
		return r.Name, true
	case ColCreatedAt:
		return r.CreatedAt, true
	case ColUpdatedAt:
		return r.UpdatedAt, true
	case ColSubtotalPrice:
		return amountCell(r.SubtotalPrice), true
	case ColTotalPrice:
		return amountCell(r.TotalPrice), true
	case ColTotalTax:
		return amountCell(r.TotalTax), true
	case ColTotalDiscounts:
		return amountCell(r.TotalDiscounts), true
	case ColDiscountCode:
		return stringCell(r.Discount.Code), true
	case ColDiscountAmount:
		if r.Discount.Amount == nil {
			return nil, true
		}
		return amountCell(*r.Discount.Amount), true
	}

	if r.Customer != nil {
		switch column {
		case ColCustomerID:
			if r.Customer.ID == nil {
				return nil, true
			}
			return *r.Customer.ID, true
		case ColEmail:
			return stringCell(r.Customer.Email), true
		}
	}

	if r.Billing != nil {
		b := r.Billing
		switch column {
		case ColAddress1:
			return stringCell(b.Address1), true
		case ColAddress2:
			return stringCell(b.Address2), true
		case ColCity:
			return stringCell(b.City), true
		case ColCountryCode:
			return stringCell(b.CountryCode), true
		case ColFirstName:
			return stringCell(b.FirstName), true
		case ColLastName:
			return stringCell(b.LastName), true
		case ColZip:
			return stringCell(b.Zip), true
		case ColPhone:
			return stringCell(b.Phone), true
		case ColCompany:
			return stringCell(b.Company), true
		case ColLatitude:
			return floatCell(b.Latitude), true
		case ColLongitude:
			return floatCell(b.Longitude), true
		}
	}

	return nil, false
}

func stringCell(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func floatCell(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

func amountCell(a Amount) any {
	if !a.IsSet() {
		return nil
	}
	return a.String()
}
