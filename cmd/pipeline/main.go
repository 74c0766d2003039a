// Command pipeline runs one segmentation pass from the command line, for
// cron jobs and backfills. It can optionally ingest CSVs or sync the
// warehouse first.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/redis/go-redis/v9"

	"github.com/ignite/rfm-segmentation/internal/config"
	"github.com/ignite/rfm-segmentation/internal/domain"
	"github.com/ignite/rfm-segmentation/internal/ingestion"
	"github.com/ignite/rfm-segmentation/internal/pkg/distlock"
	"github.com/ignite/rfm-segmentation/internal/repository/postgres"
	"github.com/ignite/rfm-segmentation/internal/rfm"
)

func main() {
	var (
		configPath = flag.String("config", "config/config.yaml", "path to config file")
		calcDateS  = flag.String("calc-date", "", "calculation date YYYY-MM-DD (default today UTC)")
		windowDays = flag.Int("window-days", 0, "lookback window in days (default from config)")
		k          = flag.Int("k", 0, "number of clusters (default from config)")
		doIngest   = flag.Bool("ingest", false, "ingest CSVs from the data directory before running")
		doSync     = flag.Bool("sync-warehouse", false, "sync orders from Snowflake before running")
	)
	flag.Parse()

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Database.URL == "" {
		log.Fatal("DATABASE_URL (or database.url in config) is required")
	}

	calcDate := time.Now().UTC().Truncate(24 * time.Hour)
	if *calcDateS != "" {
		calcDate, err = time.Parse("2006-01-02", *calcDateS)
		if err != nil {
			log.Fatalf("Invalid --calc-date %q: must be YYYY-MM-DD", *calcDateS)
		}
	}

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	ctx := context.Background()

	if *doIngest {
		svc := ingestion.NewService(postgres.NewIngestRepo(db))
		res, err := svc.IngestDir(ctx, cfg.Ingestion.DataDir)
		if err != nil {
			log.Fatalf("Ingestion failed: %v", err)
		}
		log.Printf("Ingested %d customers, %d orders (%d rows skipped)", res.Customers, res.Orders, res.Skipped)
	}

	if *doSync {
		if !cfg.Snowflake.Enabled {
			log.Fatal("--sync-warehouse requires snowflake.enabled in config")
		}
		src, err := ingestion.NewSnowflakeSource(cfg.Snowflake)
		if err != nil {
			log.Fatalf("Warehouse connection failed: %v", err)
		}
		defer src.Close()
		n, err := src.Sync(ctx, postgres.NewIngestRepo(db), time.Time{})
		if err != nil {
			log.Fatalf("Warehouse sync failed: %v", err)
		}
		log.Printf("Synced %d warehouse orders", n)
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled && cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Printf("Redis unavailable, using Postgres advisory lock: %v", err)
			redisClient = nil
		}
	}

	lock := distlock.NewLock(redisClient, db, distlock.RunKey(calcDate), cfg.RFM.LockTTL())
	acquired, err := lock.Acquire(ctx)
	if err != nil {
		log.Fatalf("Lock acquire failed: %v", err)
	}
	if !acquired {
		log.Fatalf("A run for %s is already in progress", calcDate.Format("2006-01-02"))
	}
	defer lock.Release(ctx)

	params := rfm.Params{
		CalcDate:   calcDate,
		WindowDays: *windowDays,
		K:          *k,
	}
	if params.WindowDays == 0 {
		params.WindowDays = cfg.RFM.WindowDays
	}
	if params.K == 0 {
		params.K = cfg.RFM.DefaultK
	}

	pipeline := rfm.NewPipeline(postgres.NewSourceRepo(db), postgres.NewStoreRepo(db), rfm.Options{
		Seed:           cfg.RFM.Seed,
		MaxIterations:  cfg.RFM.MaxIterations,
		Epsilon:        cfg.RFM.Epsilon,
		FeatureWorkers: cfg.RFM.FeatureWorkers,
	})

	start := time.Now()
	result, err := pipeline.Run(ctx, params)
	if err != nil {
		log.Fatalf("Pipeline run failed: %v", err)
	}

	s := result.Summary
	log.Printf("Run complete for %s in %s: %d customers, k=%d, %d iterations (converged=%v)",
		s.CalcDate.Format("2006-01-02"), time.Since(start).Round(time.Millisecond),
		s.Customers, s.K, s.Iterations, s.Converged)
	if s.Degenerate {
		log.Println("WARNING: all customers share one RFM vector; clustering is degenerate")
	}
	for _, seg := range orderedSegments(s) {
		fmt.Printf("  %-20s %d\n", seg.name, seg.count)
	}
	os.Exit(0)
}

type segCount struct {
	name  string
	count int
}

func orderedSegments(s rfm.Summary) []segCount {
	out := make([]segCount, 0, len(s.SegmentCounts))
	for _, name := range domain.Segments() {
		if n, ok := s.SegmentCounts[name]; ok {
			out = append(out, segCount{name: string(name), count: n})
		}
	}
	return out
}
