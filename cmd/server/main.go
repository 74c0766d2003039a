package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/redis/go-redis/v9"

	"github.com/ignite/rfm-segmentation/internal/api"
	"github.com/ignite/rfm-segmentation/internal/config"
	"github.com/ignite/rfm-segmentation/internal/export"
	"github.com/ignite/rfm-segmentation/internal/ingestion"
	"github.com/ignite/rfm-segmentation/internal/pkg/distlock"
	"github.com/ignite/rfm-segmentation/internal/repository/postgres"
	"github.com/ignite/rfm-segmentation/internal/rfm"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}
	cfg, err := config.LoadFromEnv(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Database.URL == "" {
		log.Fatal("DATABASE_URL (or database.url in config) is required")
	}

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.Lifetime())

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	log.Println("Connected to database")

	var redisClient *redis.Client
	if cfg.Redis.Enabled && cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			log.Printf("Redis unavailable, run lock falls back to Postgres advisory locks: %v", err)
			redisClient = nil
		} else {
			log.Println("Connected to Redis")
		}
		cancel()
	}

	source := postgres.NewSourceRepo(db)
	store := postgres.NewStoreRepo(db)
	segments := postgres.NewSegmentRepo(db)
	ingest := ingestion.NewService(postgres.NewIngestRepo(db))

	pipeline := rfm.NewPipeline(source, store, rfm.Options{
		Seed:           cfg.RFM.Seed,
		MaxIterations:  cfg.RFM.MaxIterations,
		Epsilon:        cfg.RFM.Epsilon,
		FeatureWorkers: cfg.RFM.FeatureWorkers,
	})

	locks := func(calcDate time.Time) distlock.RunLock {
		return distlock.NewLock(redisClient, db, distlock.RunKey(calcDate), cfg.RFM.LockTTL())
	}

	handlers := api.NewHandlers(pipeline, locks, segments, ingest,
		api.RunDefaults{WindowDays: cfg.RFM.WindowDays, K: cfg.RFM.DefaultK},
		cfg.Ingestion.DataDir)
	handlers.SetHealthChecker(api.NewHealthChecker(db, redisClient))

	if cfg.Export.Enabled && cfg.Export.S3Bucket != "" {
		uploader, err := export.NewS3Uploader(context.Background(),
			cfg.Export.S3Bucket, cfg.Export.S3Prefix, cfg.Export.AWSRegion, cfg.Export.GetAWSProfile())
		if err != nil {
			log.Printf("S3 export disabled: %v", err)
		} else {
			handlers.SetUploader(uploader)
			log.Printf("S3 export enabled (bucket %s)", cfg.Export.S3Bucket)
		}
	}

	server := api.NewServer(cfg.Server, handlers)
	addr := fmt.Sprintf("%s:%d", cfg.Server.GetHost(), cfg.Server.Port)

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Server listening on %s", addr)
		if err := server.ListenAndServe(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-done
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
	log.Println("Server stopped")
}
