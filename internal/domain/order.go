package domain

import "time"

// OrderStatus enumerates the order states the upstream systems send us.
// Only completed orders count toward RFM metrics; everything else is
// carried for reporting but excluded from the feature window.
type OrderStatus string

const (
	OrderCompleted OrderStatus = "completed"
	OrderCancelled OrderStatus = "cancelled"
	OrderRefunded  OrderStatus = "refunded"
	OrderPending   OrderStatus = "pending"
)

// Order represents a single purchase event. Amount is the order total in the
// order's own currency; no conversion is performed anywhere in this service.
// Negative amounts (refund lines) are valid input.
type Order struct {
	ID         string      `json:"id" db:"id"`
	OrderID    string      `json:"order_id" db:"order_id"`
	CustomerID string      `json:"customer_id" db:"customer_id"`
	OrderDate  time.Time   `json:"order_date" db:"order_date"`
	Amount     float64     `json:"order_amount" db:"order_amount"`
	Currency   string      `json:"currency" db:"currency"`
	Status     OrderStatus `json:"status" db:"status"`
	IngestedAt time.Time   `json:"ingested_at" db:"ingested_at"`
}

// CountsTowardRFM reports whether the order qualifies for the RFM window
// ending at calcDate with the given lookback. The window is half-open:
// inclusive of calcDate itself, exclusive of dates windowDays or more in
// the past.
func (o Order) CountsTowardRFM(calcDate time.Time, windowDays int) bool {
	if o.Status != OrderCompleted {
		return false
	}
	if o.OrderDate.After(calcDate) {
		return false
	}
	windowStart := calcDate.AddDate(0, 0, -windowDays)
	return o.OrderDate.After(windowStart)
}
