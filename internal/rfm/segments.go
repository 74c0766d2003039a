package rfm

import (
	"sort"

	"github.com/ignite/rfm-segmentation/internal/domain"
)

// Thresholds are the population-wide low/high cut points used by the
// labeling rules: the median recency, frequency, and monetary across all
// customers in the run. They are recomputed per run, never hard-coded.
type Thresholds struct {
	MedianRecency   float64
	MedianFrequency float64
	MedianMonetary  float64
}

// MedianThresholds computes the per-dimension medians over a batch of
// original-unit RFM vectors.
func MedianThresholds(vectors []domain.RFMVector) Thresholds {
	rec := make([]float64, len(vectors))
	freq := make([]float64, len(vectors))
	mon := make([]float64, len(vectors))
	for i, v := range vectors {
		rec[i] = float64(v.RecencyDays)
		freq[i] = float64(v.Frequency)
		mon[i] = v.Monetary
	}
	return Thresholds{
		MedianRecency:   median(rec),
		MedianFrequency: median(freq),
		MedianMonetary:  median(mon),
	}
}

func median(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sort.Float64s(xs)
	mid := len(xs) / 2
	if len(xs)%2 == 0 {
		return (xs[mid-1] + xs[mid]) / 2
	}
	return xs[mid]
}

// segmentRule is one predicate/label pair in the labeling decision table.
type segmentRule struct {
	name  domain.Segment
	match func(r, f, m float64, t Thresholds) bool
}

// segmentRules is evaluated top-down; the first matching rule wins, so the
// order of this slice is itself part of the contract. The final rule always
// matches.
var segmentRules = []segmentRule{
	{domain.SegmentChampions, func(r, f, m float64, t Thresholds) bool {
		return r <= t.MedianRecency && f >= t.MedianFrequency && m >= t.MedianMonetary
	}},
	{domain.SegmentLoyalCustomers, func(r, f, m float64, t Thresholds) bool {
		return r <= t.MedianRecency && f >= t.MedianFrequency
	}},
	{domain.SegmentBigSpenders, func(r, f, m float64, t Thresholds) bool {
		return r <= t.MedianRecency && m >= t.MedianMonetary
	}},
	{domain.SegmentPotentialLoyalists, func(r, f, m float64, t Thresholds) bool {
		return r <= t.MedianRecency && f > 0
	}},
	{domain.SegmentAtRisk, func(r, f, m float64, t Thresholds) bool {
		return r > t.MedianRecency && f < t.MedianFrequency
	}},
	{domain.SegmentLost, func(r, f, m float64, t Thresholds) bool {
		return r > t.MedianRecency
	}},
	{domain.SegmentHibernating, func(r, f, m float64, t Thresholds) bool {
		return f < t.MedianFrequency && m < t.MedianMonetary
	}},
	{domain.SegmentNeedAttention, func(r, f, m float64, t Thresholds) bool {
		return true
	}},
}

// LabelCentroid maps a cluster centroid in original RFM units to a segment
// name by evaluating the rule table top-down.
func LabelCentroid(centroid [3]float64, t Thresholds) domain.Segment {
	r, f, m := centroid[0], centroid[1], centroid[2]
	for _, rule := range segmentRules {
		if rule.match(r, f, m, t) {
			return rule.name
		}
	}
	// unreachable: the default rule always matches
	return domain.SegmentNeedAttention
}
