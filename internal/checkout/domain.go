// Package checkout validates payment and submits the ticket as one atomic
// sale against the store backend.
package checkout

import "time"

// PaymentCash is the only payment method the terminal takes today.
const PaymentCash = "cash"

// Item is one sale line as the backend expects it.
type Item struct {
	ProductID int64   `json:"product_id" validate:"required,gt=0"`
	Quantity  int     `json:"quantity" validate:"required,gte=1"`
	UnitPrice float64 `json:"unit_price" validate:"gte=0"`
}

// SaleRequest is the single atomic submission. There is no partial or
// line-by-line variant.
type SaleRequest struct {
	Items         []Item  `json:"items" validate:"required,min=1,dive"`
	PaymentMethod string  `json:"payment_method" validate:"required,oneof=cash"`
	AmountPaid    float64 `json:"amount_paid" validate:"gte=0"`
	Discount      float64 `json:"discount" validate:"gte=0"`
}

// Receipt is the server-authoritative settlement record rendered after
// acceptance.
type Receipt struct {
	SaleID          int64     `json:"id"`
	TotalAmount     float64   `json:"total_amount"`
	PaymentReceived float64   `json:"payment_received"`
	ChangeGiven     float64   `json:"change_given"`
	SettledAt       time.Time `json:"settled_at"`
}
