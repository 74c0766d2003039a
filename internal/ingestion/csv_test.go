package ingestion

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/rfm-segmentation/internal/domain"
)

type memSink struct {
	customers []domain.Customer
	orders    []domain.Order
}

func (m *memSink) UpsertCustomers(_ context.Context, cs []domain.Customer) (int, error) {
	m.customers = append(m.customers, cs...)
	return len(cs), nil
}

func (m *memSink) UpsertOrders(_ context.Context, orders []domain.Order) (int, error) {
	m.orders = append(m.orders, orders...)
	return len(orders), nil
}

func TestParseCustomersCSV(t *testing.T) {
	in := strings.NewReader(`customer_id,email,country,created_at
C001,alice@example.com,DE,2023-04-01
C002,,FR,
,missing@example.com,ES,2023-01-01
`)

	customers, skipped, err := ParseCustomersCSV(in)
	require.NoError(t, err)
	assert.Equal(t, 1, skipped)
	require.Len(t, customers, 2)

	assert.Equal(t, "C001", customers[0].CustomerID)
	assert.Equal(t, "alice@example.com", customers[0].Email)
	assert.Equal(t, "DE", customers[0].Country)
	require.NotNil(t, customers[0].CreatedAt)
	assert.Equal(t, time.Date(2023, 4, 1, 0, 0, 0, 0, time.UTC), *customers[0].CreatedAt)

	assert.Equal(t, "C002", customers[1].CustomerID)
	assert.Nil(t, customers[1].CreatedAt)
}

func TestParseCustomersCSVMissingIDColumn(t *testing.T) {
	_, _, err := ParseCustomersCSV(strings.NewReader("email,country\na@b.c,DE\n"))
	assert.ErrorContains(t, err, "customer_id")
}

func TestParseOrdersCSV(t *testing.T) {
	in := strings.NewReader(`order_id,customer_id,order_date,amount,currency,status
O1,C001,2024-01-26,100.00,EUR,completed
O2,C001,2024-01-29 10:30:00,150.00,,
O3,C002,2024-01-15,-20.00,EUR,refunded
O4,C002,not-a-date,10.00,EUR,completed
O5,C002,2024-01-15,not-a-number,EUR,completed
`)

	orders, skipped, err := ParseOrdersCSV(in)
	require.NoError(t, err)
	assert.Equal(t, 2, skipped)
	require.Len(t, orders, 3)

	assert.Equal(t, "O1", orders[0].OrderID)
	assert.Equal(t, 100.0, orders[0].Amount)
	assert.Equal(t, domain.OrderCompleted, orders[0].Status)

	// Defaults fill in missing currency and status.
	assert.Equal(t, "EUR", orders[1].Currency)
	assert.Equal(t, domain.OrderCompleted, orders[1].Status)
	assert.Equal(t, time.Date(2024, 1, 29, 10, 30, 0, 0, time.UTC), orders[1].OrderDate)

	// Negative refund amounts pass through; the pipeline clamps later.
	assert.Equal(t, -20.0, orders[2].Amount)
	assert.Equal(t, domain.OrderRefunded, orders[2].Status)
}

func TestParseOrdersCSVDateFormats(t *testing.T) {
	in := strings.NewReader(`order_id,customer_id,order_date,amount
O1,C1,2024-01-26T15:04:05Z,10
O2,C1,2024-01-26 15:04:05,10
O3,C1,2024-01-26,10
O4,C1,26/01/2024,10
`)

	orders, skipped, err := ParseOrdersCSV(in)
	require.NoError(t, err)
	assert.Equal(t, 0, skipped)
	require.Len(t, orders, 4)
	for _, o := range orders {
		assert.Equal(t, 2024, o.OrderDate.Year())
		assert.Equal(t, time.January, o.OrderDate.Month())
		assert.Equal(t, 26, o.OrderDate.Day())
	}
}

func TestIngestDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "customers.csv"),
		[]byte("customer_id,email\nC001,a@b.c\nC002,\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "orders.csv"),
		[]byte("order_id,customer_id,order_date,amount\nO1,C001,2024-01-26,99.50\n"), 0644))

	sink := &memSink{}
	svc := NewService(sink)

	res, err := svc.IngestDir(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Customers)
	assert.Equal(t, 1, res.Orders)
	assert.Equal(t, 0, res.Skipped)
	assert.Len(t, sink.customers, 2)
	assert.Len(t, sink.orders, 1)
}

func TestIngestDirEmpty(t *testing.T) {
	sink := &memSink{}
	svc := NewService(sink)

	_, err := svc.IngestDir(context.Background(), t.TempDir())
	assert.ErrorContains(t, err, "no customers.csv or orders.csv")
}
