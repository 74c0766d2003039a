// Package rfm implements the customer segmentation core: RFM feature
// calculation, feature standardization, k-means clustering, rule-based
// segment labeling, and the pipeline that ties them into one deterministic
// run per calculation date.
//
// The package is pure computation. It performs no logging, no retries, and
// no I/O of its own; customers and orders come in through the Source
// interface and results leave through a single Store.Commit call, so the
// storage layer owns the transaction boundary. Callers that need mutual
// exclusion per calc_date (concurrent runs for the same date must be
// serialized) hold a lock around Run; see internal/pkg/distlock.
package rfm
