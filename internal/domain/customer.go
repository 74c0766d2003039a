package domain

import "time"

// Customer represents a single customer known to the analytics store.
// CustomerID is the business key supplied by the upstream commerce system;
// ID is our own surrogate row identifier.
type Customer struct {
	ID         string     `json:"id" db:"id"`
	CustomerID string     `json:"customer_id" db:"customer_id"`
	Email      string     `json:"email,omitempty" db:"email"`
	Country    string     `json:"country,omitempty" db:"country"`
	CreatedAt  *time.Time `json:"created_at,omitempty" db:"created_at"`
	IngestedAt time.Time  `json:"ingested_at" db:"ingested_at"`
}
