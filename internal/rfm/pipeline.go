package rfm

import (
	"context"
	"fmt"
	"time"

	"github.com/ignite/rfm-segmentation/internal/domain"
)

// Source supplies the customer and order sets for a run. Implementations
// must return all customers and all orders up to the calculation date; the
// pipeline does its own window filtering.
type Source interface {
	Customers(ctx context.Context) ([]domain.Customer, error)
	Orders(ctx context.Context, until time.Time) ([]domain.Order, error)
}

// Store persists the output of one run. Commit must atomically replace the
// vector and assignment sets for calcDate: a rerun overwrites, never
// duplicates, and a failed commit leaves no partial rows behind. The
// implementation owns the transaction boundary.
type Store interface {
	Commit(ctx context.Context, calcDate time.Time, vectors []domain.RFMVector, assignments []domain.ClusterAssignment) error
}

// Params are the caller-supplied inputs for one run.
type Params struct {
	CalcDate   time.Time `json:"calc_date"`
	WindowDays int       `json:"window_days"`
	K          int       `json:"k"`
}

// Options tune the deterministic internals of a run. Zero values fall back
// to the package defaults.
type Options struct {
	Seed           int64
	MaxIterations  int
	Epsilon        float64
	FeatureWorkers int
}

// Cluster describes one cluster of a finished run: its centroid in
// standardized space, the same centroid back-transformed into original RFM
// units (the labeling input), its segment name, and its member customers.
// Clusters exist only within a run result; they are never persisted.
type Cluster struct {
	ID               int            `json:"cluster_id"`
	Centroid         [3]float64     `json:"centroid"`
	CentroidOriginal [3]float64     `json:"centroid_original"`
	SegmentName      domain.Segment `json:"segment_name"`
	Members          []string       `json:"members"`
}

// Summary is the caller-facing digest of a run.
type Summary struct {
	CalcDate      time.Time              `json:"calc_date"`
	WindowDays    int                    `json:"window_days"`
	K             int                    `json:"k"`
	Customers     int                    `json:"customers"`
	SegmentCounts map[domain.Segment]int `json:"segment_counts"`
	Iterations    int                    `json:"iterations"`
	Converged     bool                   `json:"converged"`

	// Degenerate flags a run where every customer collapsed to the same
	// RFM vector (zero variance in all three dimensions). The run still
	// commits, but the clustering is meaningless and callers should not
	// act on it silently.
	Degenerate bool `json:"degenerate"`
}

// Result is the full output of one pipeline run.
type Result struct {
	Vectors     []domain.RFMVector
	Assignments []domain.ClusterAssignment
	Clusters    []Cluster
	Thresholds  Thresholds
	Summary     Summary
}

// Pipeline orchestrates feature calculation, standardization, clustering,
// and labeling into one deterministic, idempotent run per calc_date.
type Pipeline struct {
	source Source
	store  Store
	opts   Options
}

// NewPipeline wires a pipeline to its data source and result store.
func NewPipeline(source Source, store Store, opts Options) *Pipeline {
	if opts.Seed == 0 {
		opts.Seed = DefaultSeed
	}
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = DefaultMaxIterations
	}
	if opts.Epsilon <= 0 {
		opts.Epsilon = DefaultEpsilon
	}
	return &Pipeline{source: source, store: store, opts: opts}
}

// Run executes one segmentation run. It fails with a typed *Error before
// clustering when the parameters are invalid or no data is available, and
// persists nothing unless every step succeeds.
func (p *Pipeline) Run(ctx context.Context, params Params) (*Result, error) {
	if params.WindowDays <= 0 {
		return nil, invalidParamErr("window_days must be positive, got %d", params.WindowDays)
	}
	if params.K < 1 {
		return nil, invalidParamErr("k must be at least 1, got %d", params.K)
	}

	customers, err := p.source.Customers(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch customers: %w", err)
	}
	if len(customers) == 0 {
		return nil, noDataErr("no customers available for %s", params.CalcDate.Format("2006-01-02"))
	}
	if params.K > len(customers) {
		return nil, invalidParamErr("k=%d exceeds the %d distinct customers", params.K, len(customers))
	}

	orders, err := p.source.Orders(ctx, params.CalcDate)
	if err != nil {
		return nil, fmt.Errorf("fetch orders: %w", err)
	}
	if len(orders) == 0 {
		return nil, noDataErr("no orders available up to %s", params.CalcDate.Format("2006-01-02"))
	}

	calc := Calculator{Workers: p.opts.FeatureWorkers}
	vectors := calc.Calculate(customers, orders, params.CalcDate, params.WindowDays)

	features := make([][3]float64, len(vectors))
	for i, v := range vectors {
		features[i] = v.Features()
	}

	var scaler Scaler
	scaler.Fit(features)
	degenerate := scaler.Std[0] == 0 && scaler.Std[1] == 0 && scaler.Std[2] == 0
	standardized := scaler.Transform(features)

	km := KMeans{
		K:             params.K,
		Seed:          p.opts.Seed,
		MaxIterations: p.opts.MaxIterations,
		Epsilon:       p.opts.Epsilon,
	}
	clustered := km.Run(standardized)

	thresholds := MedianThresholds(vectors)

	clusters := make([]Cluster, params.K)
	for c := 0; c < params.K; c++ {
		orig := scaler.InverseTransform(clustered.Centroids[c])
		clusters[c] = Cluster{
			ID:               c,
			Centroid:         clustered.Centroids[c],
			CentroidOriginal: orig,
			SegmentName:      LabelCentroid(orig, thresholds),
		}
	}

	assignments := make([]domain.ClusterAssignment, len(vectors))
	counts := make(map[domain.Segment]int, params.K)
	for i, v := range vectors {
		c := clustered.Labels[i]
		clusters[c].Members = append(clusters[c].Members, v.CustomerID)
		assignments[i] = domain.ClusterAssignment{
			CustomerID:  v.CustomerID,
			CalcDate:    params.CalcDate,
			ClusterID:   c,
			SegmentName: clusters[c].SegmentName,
			Score: domain.ClusterScore{
				RecencyDays: v.RecencyDays,
				Frequency:   v.Frequency,
				Monetary:    v.Monetary,
				Distance:    clustered.Distance(standardized[i], c),
			},
		}
		counts[clusters[c].SegmentName]++
	}

	if err := p.store.Commit(ctx, params.CalcDate, vectors, assignments); err != nil {
		return nil, fmt.Errorf("commit run for %s: %w", params.CalcDate.Format("2006-01-02"), err)
	}

	return &Result{
		Vectors:     vectors,
		Assignments: assignments,
		Clusters:    clusters,
		Thresholds:  thresholds,
		Summary: Summary{
			CalcDate:      params.CalcDate,
			WindowDays:    params.WindowDays,
			K:             params.K,
			Customers:     len(vectors),
			SegmentCounts: counts,
			Iterations:    clustered.Iterations,
			Converged:     clustered.Converged,
			Degenerate:    degenerate,
		},
	}, nil
}
