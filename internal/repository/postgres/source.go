// Package postgres implements the segmentation data access layer
// against PostgreSQL using database/sql and lib/pq.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ignite/rfm-segmentation/internal/domain"
)

// SourceRepo loads customers and orders for pipeline runs.
type SourceRepo struct{ db *sql.DB }

// NewSourceRepo creates a Postgres-backed pipeline source.
func NewSourceRepo(db *sql.DB) *SourceRepo { return &SourceRepo{db: db} }

func (r *SourceRepo) Customers(ctx context.Context) ([]domain.Customer, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, customer_id, COALESCE(email, ''), COALESCE(country, ''), created_at, ingested_at
		FROM customers
		ORDER BY customer_id
	`)
	if err != nil {
		return nil, fmt.Errorf("query customers: %w", err)
	}
	defer rows.Close()

	var out []domain.Customer
	for rows.Next() {
		var c domain.Customer
		if err := rows.Scan(&c.ID, &c.CustomerID, &c.Email, &c.Country, &c.CreatedAt, &c.IngestedAt); err != nil {
			return nil, fmt.Errorf("scan customer: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Orders returns all orders with order_date on or before until. Window
// filtering happens in the pipeline, not here, so one query serves any
// window_days.
func (r *SourceRepo) Orders(ctx context.Context, until time.Time) ([]domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, order_id, customer_id, order_date, amount, currency, status
		FROM orders
		WHERE order_date <= $1
		ORDER BY order_date
	`, until)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var out []domain.Order
	for rows.Next() {
		var o domain.Order
		var status string
		if err := rows.Scan(&o.ID, &o.OrderID, &o.CustomerID, &o.OrderDate, &o.Amount, &o.Currency, &status); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		o.Status = domain.OrderStatus(status)
		out = append(out, o)
	}
	return out, rows.Err()
}
