// Package ingestion loads customers and orders from CSV files or a
// Snowflake warehouse into the local store. Ingestion is idempotent:
// rows are upserted by business key, so replaying a file is safe.
package ingestion

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ignite/rfm-segmentation/internal/domain"
	"github.com/ignite/rfm-segmentation/internal/pkg/logger"
)

// Sink receives parsed records. Implemented by the Postgres ingest repo.
type Sink interface {
	UpsertCustomers(ctx context.Context, customers []domain.Customer) (int, error)
	UpsertOrders(ctx context.Context, orders []domain.Order) (int, error)
}

// Result reports what one ingestion pass loaded.
type Result struct {
	Customers int `json:"customers"`
	Orders    int `json:"orders"`
	Skipped   int `json:"skipped"`
}

// Service drives CSV ingestion from a data directory.
type Service struct {
	sink Sink
}

// NewService creates an ingestion service writing to sink.
func NewService(sink Sink) *Service { return &Service{sink: sink} }

// Date layouts accepted in order files. Tried in order; first match wins.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02/01/2006",
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// IngestDir loads customers.csv and orders.csv from dir. Either file may
// be absent; a directory with neither is an error.
func (s *Service) IngestDir(ctx context.Context, dir string) (*Result, error) {
	res := &Result{}
	found := false

	custPath := filepath.Join(dir, "customers.csv")
	if f, err := os.Open(custPath); err == nil {
		found = true
		n, skipped, err := s.ingestCustomers(ctx, f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("ingest %s: %w", custPath, err)
		}
		res.Customers = n
		res.Skipped += skipped
	}

	orderPath := filepath.Join(dir, "orders.csv")
	if f, err := os.Open(orderPath); err == nil {
		found = true
		n, skipped, err := s.ingestOrders(ctx, f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("ingest %s: %w", orderPath, err)
		}
		res.Orders = n
		res.Skipped += skipped
	}

	if !found {
		return nil, fmt.Errorf("no customers.csv or orders.csv in %s", dir)
	}

	logger.Info("Ingestion complete",
		"dir", dir,
		"customers", res.Customers,
		"orders", res.Orders,
		"skipped", res.Skipped)
	return res, nil
}

// IngestCustomers parses and stores a customers CSV stream.
func (s *Service) IngestCustomers(ctx context.Context, r io.Reader) (int, error) {
	n, _, err := s.ingestCustomers(ctx, r)
	return n, err
}

// IngestOrders parses and stores an orders CSV stream.
func (s *Service) IngestOrders(ctx context.Context, r io.Reader) (int, error) {
	n, _, err := s.ingestOrders(ctx, r)
	return n, err
}

func (s *Service) ingestCustomers(ctx context.Context, r io.Reader) (int, int, error) {
	customers, skipped, err := ParseCustomersCSV(r)
	if err != nil {
		return 0, 0, err
	}
	n, err := s.sink.UpsertCustomers(ctx, customers)
	return n, skipped, err
}

func (s *Service) ingestOrders(ctx context.Context, r io.Reader) (int, int, error) {
	orders, skipped, err := ParseOrdersCSV(r)
	if err != nil {
		return 0, 0, err
	}
	n, err := s.sink.UpsertOrders(ctx, orders)
	return n, skipped, err
}

// ParseCustomersCSV reads customer rows. Expected header:
// customer_id,email,country,created_at (only customer_id is required).
// Returns parsed customers and the count of skipped malformed rows.
func ParseCustomersCSV(r io.Reader) ([]domain.Customer, int, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, 0, fmt.Errorf("read header: %w", err)
	}
	col := indexColumns(header)
	if _, ok := col["customer_id"]; !ok {
		return nil, 0, fmt.Errorf("missing customer_id column")
	}

	var out []domain.Customer
	skipped := 0
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			skipped++
			continue
		}

		id := field(rec, col, "customer_id")
		if id == "" {
			skipped++
			continue
		}
		c := domain.Customer{
			CustomerID: id,
			Email:      field(rec, col, "email"),
			Country:    field(rec, col, "country"),
		}
		if raw := field(rec, col, "created_at"); raw != "" {
			if t, err := parseDate(raw); err == nil {
				c.CreatedAt = &t
			}
		}
		out = append(out, c)
	}
	return out, skipped, nil
}

// ParseOrdersCSV reads order rows. Expected header:
// order_id,customer_id,order_date,amount,currency,status. Missing
// currency defaults to EUR and missing status to completed. Rows without
// order_id, customer_id, a parseable date, or a numeric amount are
// skipped, not fatal.
func ParseOrdersCSV(r io.Reader) ([]domain.Order, int, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, 0, fmt.Errorf("read header: %w", err)
	}
	col := indexColumns(header)
	for _, required := range []string{"order_id", "customer_id", "order_date", "amount"} {
		if _, ok := col[required]; !ok {
			return nil, 0, fmt.Errorf("missing %s column", required)
		}
	}

	var out []domain.Order
	skipped := 0
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			skipped++
			continue
		}

		o := domain.Order{
			OrderID:    field(rec, col, "order_id"),
			CustomerID: field(rec, col, "customer_id"),
			Currency:   field(rec, col, "currency"),
			Status:     domain.OrderStatus(strings.ToLower(field(rec, col, "status"))),
		}
		if o.OrderID == "" || o.CustomerID == "" {
			skipped++
			continue
		}
		if o.Currency == "" {
			o.Currency = "EUR"
		}
		if o.Status == "" {
			o.Status = domain.OrderCompleted
		}

		date, err := parseDate(field(rec, col, "order_date"))
		if err != nil {
			skipped++
			continue
		}
		o.OrderDate = date

		amount, err := strconv.ParseFloat(strings.TrimSpace(field(rec, col, "amount")), 64)
		if err != nil {
			skipped++
			continue
		}
		o.Amount = amount

		out = append(out, o)
	}
	return out, skipped, nil
}

func indexColumns(header []string) map[string]int {
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	return col
}

func field(rec []string, col map[string]int, name string) string {
	i, ok := col[name]
	if !ok || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}
