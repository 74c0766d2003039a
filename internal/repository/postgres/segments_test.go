package postgres

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/rfm-segmentation/internal/domain"
)

func TestSegmentStats(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"segment_name", "min", "count", "avg_r", "avg_f", "avg_m"}).
		AddRow("Champions", 0, 40, 8.5, 6.2, 940.0).
		AddRow("Lost", 3, 25, 310.0, 0.4, 12.0)
	mock.ExpectQuery(`SELECT segment_name, MIN\(cluster_id\), COUNT\(\*\)`).
		WithArgs("2024-01-31").
		WillReturnRows(rows)

	repo := NewSegmentRepo(db)
	stats, err := repo.SegmentStats(context.Background(), calcDate)
	require.NoError(t, err)
	require.Len(t, stats, 2)
	assert.Equal(t, domain.SegmentChampions, stats[0].SegmentName)
	assert.Equal(t, 40, stats[0].CustomerCount)
	assert.Equal(t, 8.5, stats[0].AvgRecencyDays)
	assert.Equal(t, domain.SegmentLost, stats[1].SegmentName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSegmentCustomers(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM customer_clusters`).
		WithArgs("2024-01-31", "Champions").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	rows := sqlmock.NewRows([]string{"customer_id", "calc_date", "cluster_id", "segment_name", "recency_days", "frequency", "monetary", "distance"}).
		AddRow("C001", calcDate, 0, "Champions", 5.0, 2.0, 250.0, 0.1).
		AddRow("C003", calcDate, 0, "Champions", 9.0, 4.0, 800.0, 0.3)
	mock.ExpectQuery(`SELECT customer_id, calc_date, cluster_id, segment_name`).
		WithArgs("2024-01-31", "Champions", 20, 0).
		WillReturnRows(rows)

	repo := NewSegmentRepo(db)
	out, total, err := repo.SegmentCustomers(context.Background(), calcDate, domain.SegmentChampions, 20, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, out, 2)
	assert.Equal(t, "C001", out[0].CustomerID)
	assert.Equal(t, 5, out[0].Score.RecencyDays)
	assert.Equal(t, 250.0, out[0].Score.Monetary)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCustomerHistoryNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT customer_id, calc_date`).
		WithArgs("C404").
		WillReturnRows(sqlmock.NewRows([]string{"customer_id", "calc_date", "cluster_id", "segment_name", "recency_days", "frequency", "monetary", "distance"}))

	repo := NewSegmentRepo(db)
	_, err = repo.CustomerHistory(context.Background(), "C404")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLatestCalcDate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT MAX\(calc_date\)`).
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(calcDate))

	repo := NewSegmentRepo(db)
	day, err := repo.LatestCalcDate(context.Background())
	require.NoError(t, err)
	assert.True(t, day.Equal(calcDate))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLatestCalcDateEmpty(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT MAX\(calc_date\)`).
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(nil))

	repo := NewSegmentRepo(db)
	_, err = repo.LatestCalcDate(context.Background())
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
