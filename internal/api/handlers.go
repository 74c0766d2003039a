package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/ignite/rfm-segmentation/internal/domain"
	"github.com/ignite/rfm-segmentation/internal/ingestion"
	"github.com/ignite/rfm-segmentation/internal/pkg/distlock"
	"github.com/ignite/rfm-segmentation/internal/repository/postgres"
	"github.com/ignite/rfm-segmentation/internal/rfm"
)

// SegmentReader serves the read endpoints. Implemented by the Postgres
// segment repo.
type SegmentReader interface {
	LatestCalcDate(ctx context.Context) (time.Time, error)
	SegmentStats(ctx context.Context, calcDate time.Time) ([]domain.SegmentStats, error)
	SegmentCustomers(ctx context.Context, calcDate time.Time, segment domain.Segment, limit, offset int) ([]domain.ClusterAssignment, int, error)
	SegmentAssignments(ctx context.Context, calcDate time.Time, segment domain.Segment) ([]domain.ClusterAssignment, error)
	CustomerHistory(ctx context.Context, customerID string) ([]domain.ClusterAssignment, error)
	Customer(ctx context.Context, customerID string) (*domain.Customer, error)
}

// Runner executes one segmentation run. Implemented by rfm.Pipeline.
type Runner interface {
	Run(ctx context.Context, params rfm.Params) (*rfm.Result, error)
}

// LockFactory returns the run lock guarding one calc_date.
type LockFactory func(calcDate time.Time) distlock.RunLock

// Uploader ships a segment export to object storage. Implemented by
// export.S3Uploader; nil when exports are local-only.
type Uploader interface {
	UploadSegment(ctx context.Context, calcDate time.Time, segment domain.Segment, assignments []domain.ClusterAssignment) (string, error)
}

// Handlers bundles the dependencies behind the HTTP endpoints.
type Handlers struct {
	runner   Runner
	locks    LockFactory
	segments SegmentReader
	ingest   *ingestion.Service
	uploader Uploader
	defaults RunDefaults
	dataDir  string
	Health   *HealthChecker
}

// RunDefaults supplies parameter defaults for pipeline runs that omit them.
type RunDefaults struct {
	WindowDays int
	K          int
}

// NewHandlers creates the handler set.
func NewHandlers(runner Runner, locks LockFactory, segments SegmentReader, ingest *ingestion.Service, defaults RunDefaults, dataDir string) *Handlers {
	return &Handlers{
		runner:   runner,
		locks:    locks,
		segments: segments,
		ingest:   ingest,
		defaults: defaults,
		dataDir:  dataDir,
		Health:   NewHealthChecker(nil, nil),
	}
}

// SetUploader wires the optional S3 export uploader.
func (h *Handlers) SetUploader(u Uploader) { h.uploader = u }

// SetHealthChecker replaces the default (dependency-free) health checker.
func (h *Handlers) SetHealthChecker(hc *HealthChecker) { h.Health = hc }

// Response helpers

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// resolveCalcDate reads the calc_date query param as YYYY-MM-DD, falling
// back to the latest stored run when absent. On failure it writes the
// error response and returns ok=false.
func (h *Handlers) resolveCalcDate(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	raw := r.URL.Query().Get("calc_date")
	if raw == "" {
		day, err := h.segments.LatestCalcDate(r.Context())
		if errors.Is(err, postgres.ErrNotFound) {
			respondError(w, http.StatusNotFound, "no segmentation runs stored yet")
			return time.Time{}, false
		}
		if err != nil {
			respondError(w, http.StatusInternalServerError, "failed to resolve latest run")
			return time.Time{}, false
		}
		return day, true
	}

	day, err := time.Parse("2006-01-02", raw)
	if err != nil {
		respondError(w, http.StatusBadRequest, "calc_date must be YYYY-MM-DD")
		return time.Time{}, false
	}
	return day, true
}
