package domain

import "time"

// Segment enumerates the human-readable segment names assigned to clusters.
type Segment string

const (
	SegmentChampions          Segment = "Champions"
	SegmentLoyalCustomers     Segment = "Loyal Customers"
	SegmentBigSpenders        Segment = "Big Spenders"
	SegmentPotentialLoyalists Segment = "Potential Loyalists"
	SegmentAtRisk             Segment = "At Risk"
	SegmentLost               Segment = "Lost"
	SegmentHibernating        Segment = "Hibernating"
	SegmentNeedAttention      Segment = "Need Attention"
)

// Segments lists every segment name in rule-evaluation order.
func Segments() []Segment {
	return []Segment{
		SegmentChampions,
		SegmentLoyalCustomers,
		SegmentBigSpenders,
		SegmentPotentialLoyalists,
		SegmentAtRisk,
		SegmentLost,
		SegmentHibernating,
		SegmentNeedAttention,
	}
}

// RFMVector holds the recency/frequency/monetary metrics for one customer at
// one calculation date. Exactly one vector exists per (customer_id, calc_date);
// values are a pure function of the order set and the run parameters.
//
// A customer with no qualifying orders gets the no-activity sentinel:
// RecencyDays = windowDays+1, Frequency = 0, Monetary = 0. Monetary is
// clamped at zero after summing refunds; the clamp is policy, not a
// data-cleaning side effect.
type RFMVector struct {
	CustomerID  string    `json:"customer_id" db:"customer_id"`
	CalcDate    time.Time `json:"calc_date" db:"calc_date"`
	RecencyDays int       `json:"recency_days" db:"recency_days"`
	Frequency   int       `json:"frequency" db:"frequency"`
	Monetary    float64   `json:"monetary" db:"monetary"`
}

// Features returns the vector as the [recency, frequency, monetary] float
// triple used by the standardizer and the clustering engine.
func (v RFMVector) Features() [3]float64 {
	return [3]float64{float64(v.RecencyDays), float64(v.Frequency), v.Monetary}
}

// ClusterScore is the explainability payload stored with each assignment:
// the customer's own original-unit RFM values plus the Euclidean distance
// (in standardized space) to the assigned cluster centroid.
type ClusterScore struct {
	RecencyDays int     `json:"recency_days"`
	Frequency   int     `json:"frequency"`
	Monetary    float64 `json:"monetary"`
	Distance    float64 `json:"distance"`
}

// ClusterAssignment maps one customer to a cluster and its segment name for
// one calculation date. Exactly one assignment exists per
// (customer_id, calc_date); a rerun replaces, never duplicates.
type ClusterAssignment struct {
	CustomerID  string       `json:"customer_id" db:"customer_id"`
	CalcDate    time.Time    `json:"calc_date" db:"calc_date"`
	ClusterID   int          `json:"cluster_id" db:"cluster_id"`
	SegmentName Segment      `json:"segment_name" db:"segment_name"`
	Score       ClusterScore `json:"cluster_score" db:"cluster_score"`
}

// SegmentStats aggregates a single segment for one calculation date.
type SegmentStats struct {
	SegmentName    Segment `json:"segment_name"`
	ClusterID      int     `json:"cluster_id"`
	CustomerCount  int     `json:"customer_count"`
	AvgRecencyDays float64 `json:"avg_recency_days"`
	AvgFrequency   float64 `json:"avg_frequency"`
	AvgMonetary    float64 `json:"avg_monetary"`
}
