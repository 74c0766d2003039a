package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/ignite/rfm-segmentation/internal/domain"
)

// IngestRepo upserts ingested source records. Upserts key on the business
// identifiers (customer_id, order_id) so re-ingesting the same file is a
// no-op overwrite, not a duplicate.
type IngestRepo struct{ db *sql.DB }

// NewIngestRepo creates a Postgres-backed ingestion sink.
func NewIngestRepo(db *sql.DB) *IngestRepo { return &IngestRepo{db: db} }

func (r *IngestRepo) UpsertCustomers(ctx context.Context, customers []domain.Customer) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin customer upsert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO customers (id, customer_id, email, country, created_at)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), $5)
		ON CONFLICT (customer_id) DO UPDATE SET
			email = COALESCE(NULLIF($3, ''), customers.email),
			country = COALESCE(NULLIF($4, ''), customers.country)
	`)
	if err != nil {
		return 0, fmt.Errorf("prepare customer upsert: %w", err)
	}
	defer stmt.Close()

	for _, c := range customers {
		id := c.ID
		if id == "" {
			id = uuid.New().String()
		}
		var createdAt sql.NullTime
		if c.CreatedAt != nil {
			createdAt = sql.NullTime{Time: *c.CreatedAt, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, id, c.CustomerID, c.Email, c.Country, createdAt); err != nil {
			return 0, fmt.Errorf("upsert customer %s: %w", c.CustomerID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit customer upsert: %w", err)
	}
	return len(customers), nil
}

func (r *IngestRepo) UpsertOrders(ctx context.Context, orders []domain.Order) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin order upsert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO orders (id, order_id, customer_id, order_date, amount, currency, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (order_id) DO UPDATE SET
			order_date = $4, amount = $5, currency = $6, status = $7
	`)
	if err != nil {
		return 0, fmt.Errorf("prepare order upsert: %w", err)
	}
	defer stmt.Close()

	for _, o := range orders {
		id := o.ID
		if id == "" {
			id = uuid.New().String()
		}
		if _, err := stmt.ExecContext(ctx, id, o.OrderID, o.CustomerID, o.OrderDate, o.Amount, o.Currency, string(o.Status)); err != nil {
			return 0, fmt.Errorf("upsert order %s: %w", o.OrderID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit order upsert: %w", err)
	}
	return len(orders), nil
}
