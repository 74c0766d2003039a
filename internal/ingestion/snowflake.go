package ingestion

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/snowflakedb/gosnowflake" // Snowflake driver

	"github.com/ignite/rfm-segmentation/internal/config"
	"github.com/ignite/rfm-segmentation/internal/domain"
	"github.com/ignite/rfm-segmentation/internal/pkg/logger"
)

// SnowflakeSource pulls orders straight from the warehouse, for deployments
// where the order feed lives in Snowflake instead of CSV drops.
type SnowflakeSource struct {
	cfg   config.SnowflakeConfig
	db    *sql.DB
	table string
}

// NewSnowflakeSource opens a pooled connection to the configured warehouse.
func NewSnowflakeSource(cfg config.SnowflakeConfig) (*SnowflakeSource, error) {
	dsn := fmt.Sprintf("%s:%s@%s/%s/%s",
		cfg.User,
		cfg.Password,
		cfg.Account,
		cfg.Database,
		cfg.Schema,
	)
	if cfg.Warehouse != "" {
		dsn += "?warehouse=" + cfg.Warehouse
	}

	db, err := sql.Open("snowflake", dsn)
	if err != nil {
		return nil, fmt.Errorf("open snowflake connection: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	table := cfg.Table
	if table == "" {
		table = "ORDERS"
	}

	return &SnowflakeSource{cfg: cfg, db: db, table: table}, nil
}

// Close closes the warehouse connection.
func (s *SnowflakeSource) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ping tests the warehouse connection.
func (s *SnowflakeSource) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// FetchOrders reads order rows changed since the given time. A zero since
// fetches everything.
func (s *SnowflakeSource) FetchOrders(ctx context.Context, since time.Time) ([]domain.Order, error) {
	query := fmt.Sprintf(`
		SELECT ORDER_ID, CUSTOMER_ID, ORDER_DATE, AMOUNT, CURRENCY, STATUS
		FROM %s
		WHERE ORDER_DATE >= ?
		ORDER BY ORDER_DATE
	`, s.table)

	rows, err := s.db.QueryContext(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("query warehouse orders: %w", err)
	}
	defer rows.Close()

	var out []domain.Order
	for rows.Next() {
		var o domain.Order
		var status string
		if err := rows.Scan(&o.OrderID, &o.CustomerID, &o.OrderDate, &o.Amount, &o.Currency, &status); err != nil {
			return nil, fmt.Errorf("scan warehouse order: %w", err)
		}
		o.Status = domain.OrderStatus(status)
		out = append(out, o)
	}
	return out, rows.Err()
}

// Sync pulls warehouse orders into the sink.
func (s *SnowflakeSource) Sync(ctx context.Context, sink Sink, since time.Time) (int, error) {
	orders, err := s.FetchOrders(ctx, since)
	if err != nil {
		return 0, err
	}
	if len(orders) == 0 {
		return 0, nil
	}
	n, err := sink.UpsertOrders(ctx, orders)
	if err != nil {
		return 0, fmt.Errorf("store warehouse orders: %w", err)
	}
	logger.Info("Warehouse sync complete", "orders", n, "since", since.Format("2006-01-02"))
	return n, nil
}
