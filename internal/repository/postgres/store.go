package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ignite/rfm-segmentation/internal/domain"
)

// StoreRepo persists pipeline results. Commit is all-or-nothing: one
// transaction deletes any previous run for the calc_date and inserts the
// new features and assignments, so readers never observe a half-written
// run and a rerun never duplicates rows.
type StoreRepo struct{ db *sql.DB }

// NewStoreRepo creates a Postgres-backed pipeline result store.
func NewStoreRepo(db *sql.DB) *StoreRepo { return &StoreRepo{db: db} }

func (r *StoreRepo) Commit(ctx context.Context, calcDate time.Time, vectors []domain.RFMVector, assignments []domain.ClusterAssignment) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin run commit: %w", err)
	}
	defer tx.Rollback()

	day := calcDate.UTC().Format("2006-01-02")

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM rfm_features WHERE calc_date = $1`, day,
	); err != nil {
		return fmt.Errorf("clear features for %s: %w", day, err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM customer_clusters WHERE calc_date = $1`, day,
	); err != nil {
		return fmt.Errorf("clear clusters for %s: %w", day, err)
	}

	featStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO rfm_features (id, customer_id, calc_date, recency_days, frequency, monetary)
		VALUES ($1, $2, $3, $4, $5, $6)
	`)
	if err != nil {
		return fmt.Errorf("prepare feature insert: %w", err)
	}
	defer featStmt.Close()

	for _, v := range vectors {
		if _, err := featStmt.ExecContext(ctx,
			uuid.New().String(), v.CustomerID, day, v.RecencyDays, v.Frequency, v.Monetary,
		); err != nil {
			return fmt.Errorf("insert feature %s: %w", v.CustomerID, err)
		}
	}

	clusterStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO customer_clusters (id, customer_id, calc_date, cluster_id, segment_name, recency_days, frequency, monetary, distance)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`)
	if err != nil {
		return fmt.Errorf("prepare cluster insert: %w", err)
	}
	defer clusterStmt.Close()

	for _, a := range assignments {
		if _, err := clusterStmt.ExecContext(ctx,
			uuid.New().String(), a.CustomerID, day, a.ClusterID, string(a.SegmentName),
			a.Score.RecencyDays, a.Score.Frequency, a.Score.Monetary, a.Score.Distance,
		); err != nil {
			return fmt.Errorf("insert assignment %s: %w", a.CustomerID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run for %s: %w", day, err)
	}
	return nil
}
