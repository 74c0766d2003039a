package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ignite/rfm-segmentation/internal/domain"
)

// ErrNotFound is returned when a lookup matches nothing.
var ErrNotFound = errors.New("not found")

// SegmentRepo serves the read side: segment stats, segment membership,
// and per-customer lookups over the latest (or a given) pipeline run.
type SegmentRepo struct{ db *sql.DB }

// NewSegmentRepo creates a Postgres-backed segment reader.
func NewSegmentRepo(db *sql.DB) *SegmentRepo { return &SegmentRepo{db: db} }

// LatestCalcDate returns the most recent calc_date with stored results.
func (r *SegmentRepo) LatestCalcDate(ctx context.Context) (time.Time, error) {
	var day sql.NullTime
	err := r.db.QueryRowContext(ctx,
		`SELECT MAX(calc_date) FROM customer_clusters`,
	).Scan(&day)
	if err != nil {
		return time.Time{}, fmt.Errorf("latest calc_date: %w", err)
	}
	if !day.Valid {
		return time.Time{}, ErrNotFound
	}
	return day.Time, nil
}

// SegmentStats aggregates every segment for one calc_date, largest first.
func (r *SegmentRepo) SegmentStats(ctx context.Context, calcDate time.Time) ([]domain.SegmentStats, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT segment_name, MIN(cluster_id), COUNT(*),
		       AVG(recency_days), AVG(frequency), AVG(monetary)
		FROM customer_clusters
		WHERE calc_date = $1
		GROUP BY segment_name
		ORDER BY COUNT(*) DESC, segment_name
	`, calcDate.UTC().Format("2006-01-02"))
	if err != nil {
		return nil, fmt.Errorf("segment stats: %w", err)
	}
	defer rows.Close()

	var out []domain.SegmentStats
	for rows.Next() {
		var s domain.SegmentStats
		var name string
		if err := rows.Scan(&name, &s.ClusterID, &s.CustomerCount, &s.AvgRecencyDays, &s.AvgFrequency, &s.AvgMonetary); err != nil {
			return nil, fmt.Errorf("scan segment stats: %w", err)
		}
		s.SegmentName = domain.Segment(name)
		out = append(out, s)
	}
	return out, rows.Err()
}

// SegmentCustomers lists assignments in one segment for one calc_date,
// ordered by distance to centroid so the most typical members come first.
func (r *SegmentRepo) SegmentCustomers(ctx context.Context, calcDate time.Time, segment domain.Segment, limit, offset int) ([]domain.ClusterAssignment, int, error) {
	day := calcDate.UTC().Format("2006-01-02")

	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM customer_clusters WHERE calc_date = $1 AND segment_name = $2`,
		day, string(segment),
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count segment customers: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT customer_id, calc_date, cluster_id, segment_name, recency_days, frequency, monetary, distance
		FROM customer_clusters
		WHERE calc_date = $1 AND segment_name = $2
		ORDER BY distance, customer_id
		LIMIT $3 OFFSET $4
	`, day, string(segment), limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list segment customers: %w", err)
	}
	defer rows.Close()

	out, err := scanAssignments(rows)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// SegmentAssignments lists every assignment in one segment for one
// calc_date, unpaginated, for exports.
func (r *SegmentRepo) SegmentAssignments(ctx context.Context, calcDate time.Time, segment domain.Segment) ([]domain.ClusterAssignment, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT customer_id, calc_date, cluster_id, segment_name, recency_days, frequency, monetary, distance
		FROM customer_clusters
		WHERE calc_date = $1 AND segment_name = $2
		ORDER BY customer_id
	`, calcDate.UTC().Format("2006-01-02"), string(segment))
	if err != nil {
		return nil, fmt.Errorf("segment assignments: %w", err)
	}
	defer rows.Close()

	return scanAssignments(rows)
}

// CustomerHistory returns a customer's assignments across every stored
// run, newest first. ErrNotFound when the customer has no assignments.
func (r *SegmentRepo) CustomerHistory(ctx context.Context, customerID string) ([]domain.ClusterAssignment, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT customer_id, calc_date, cluster_id, segment_name, recency_days, frequency, monetary, distance
		FROM customer_clusters
		WHERE customer_id = $1
		ORDER BY calc_date DESC
	`, customerID)
	if err != nil {
		return nil, fmt.Errorf("customer history: %w", err)
	}
	defer rows.Close()

	out, err := scanAssignments(rows)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return out, nil
}

// Customer fetches one customer record by business key.
func (r *SegmentRepo) Customer(ctx context.Context, customerID string) (*domain.Customer, error) {
	var c domain.Customer
	err := r.db.QueryRowContext(ctx, `
		SELECT id, customer_id, COALESCE(email, ''), COALESCE(country, ''), created_at, ingested_at
		FROM customers
		WHERE customer_id = $1
	`, customerID).Scan(&c.ID, &c.CustomerID, &c.Email, &c.Country, &c.CreatedAt, &c.IngestedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get customer: %w", err)
	}
	return &c, nil
}

func scanAssignments(rows *sql.Rows) ([]domain.ClusterAssignment, error) {
	var out []domain.ClusterAssignment
	for rows.Next() {
		var a domain.ClusterAssignment
		var name string
		var recency, frequency float64
		if err := rows.Scan(&a.CustomerID, &a.CalcDate, &a.ClusterID, &name,
			&recency, &frequency, &a.Score.Monetary, &a.Score.Distance); err != nil {
			return nil, fmt.Errorf("scan assignment: %w", err)
		}
		a.SegmentName = domain.Segment(name)
		a.Score.RecencyDays = int(recency)
		a.Score.Frequency = int(frequency)
		out = append(out, a)
	}
	return out, rows.Err()
}
