package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/rfm-segmentation/internal/domain"
)

var calcDate = time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)

func testRunData() ([]domain.RFMVector, []domain.ClusterAssignment) {
	vectors := []domain.RFMVector{
		{CustomerID: "C001", CalcDate: calcDate, RecencyDays: 5, Frequency: 2, Monetary: 250},
		{CustomerID: "C002", CalcDate: calcDate, RecencyDays: 366, Frequency: 0, Monetary: 0},
	}
	assignments := []domain.ClusterAssignment{
		{CustomerID: "C001", CalcDate: calcDate, ClusterID: 0, SegmentName: domain.SegmentChampions,
			Score: domain.ClusterScore{RecencyDays: 5, Frequency: 2, Monetary: 250, Distance: 0.1}},
		{CustomerID: "C002", CalcDate: calcDate, ClusterID: 1, SegmentName: domain.SegmentLost,
			Score: domain.ClusterScore{RecencyDays: 366, Frequency: 0, Monetary: 0, Distance: 0.2}},
	}
	return vectors, assignments
}

func TestStoreCommit(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	vectors, assignments := testRunData()

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM rfm_features`).
		WithArgs("2024-01-31").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`DELETE FROM customer_clusters`).
		WithArgs("2024-01-31").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectPrepare(`INSERT INTO rfm_features`)
	mock.ExpectExec(`INSERT INTO rfm_features`).
		WithArgs(sqlmock.AnyArg(), "C001", "2024-01-31", 5, 2, 250.0).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO rfm_features`).
		WithArgs(sqlmock.AnyArg(), "C002", "2024-01-31", 366, 0, 0.0).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectPrepare(`INSERT INTO customer_clusters`)
	mock.ExpectExec(`INSERT INTO customer_clusters`).
		WithArgs(sqlmock.AnyArg(), "C001", "2024-01-31", 0, "Champions", 5, 2, 250.0, 0.1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO customer_clusters`).
		WithArgs(sqlmock.AnyArg(), "C002", "2024-01-31", 1, "Lost", 366, 0, 0.0, 0.2).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	repo := NewStoreRepo(db)
	err = repo.Commit(context.Background(), calcDate, vectors, assignments)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreCommitRollsBackOnInsertError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	vectors, assignments := testRunData()

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM rfm_features`).
		WithArgs("2024-01-31").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`DELETE FROM customer_clusters`).
		WithArgs("2024-01-31").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectPrepare(`INSERT INTO rfm_features`)
	mock.ExpectExec(`INSERT INTO rfm_features`).
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	repo := NewStoreRepo(db)
	err = repo.Commit(context.Background(), calcDate, vectors, assignments)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert feature C001")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreCommitDeleteBeforeInsert(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	// A rerun with no customers still clears the previous run atomically.
	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM rfm_features`).
		WithArgs("2024-01-31").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`DELETE FROM customer_clusters`).
		WithArgs("2024-01-31").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectPrepare(`INSERT INTO rfm_features`)
	mock.ExpectPrepare(`INSERT INTO customer_clusters`)
	mock.ExpectCommit()

	repo := NewStoreRepo(db)
	err = repo.Commit(context.Background(), calcDate, nil, nil)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
