package rfm

import "math"

// Scaler rescales a batch of RFM feature triples to zero mean and unit
// variance per dimension, so recency (days), frequency (counts), and
// monetary (currency) contribute comparably to Euclidean distance.
//
// Standardization parameters are scoped to one Fit call and never reused
// across calculation dates.
type Scaler struct {
	Mean [3]float64
	Std  [3]float64
}

// Fit computes the per-dimension mean and population standard deviation of
// the batch.
func (s *Scaler) Fit(features [][3]float64) {
	n := float64(len(features))
	if n == 0 {
		s.Mean = [3]float64{}
		s.Std = [3]float64{}
		return
	}

	var sum [3]float64
	for _, f := range features {
		for d := 0; d < 3; d++ {
			sum[d] += f[d]
		}
	}
	for d := 0; d < 3; d++ {
		s.Mean[d] = sum[d] / n
	}

	var sq [3]float64
	for _, f := range features {
		for d := 0; d < 3; d++ {
			diff := f[d] - s.Mean[d]
			sq[d] += diff * diff
		}
	}
	for d := 0; d < 3; d++ {
		s.Std[d] = math.Sqrt(sq[d] / n)
	}
}

// Transform standardizes every triple. A dimension with zero variance maps
// to exactly 0 for all rows instead of dividing by zero.
func (s *Scaler) Transform(features [][3]float64) [][3]float64 {
	out := make([][3]float64, len(features))
	for i, f := range features {
		for d := 0; d < 3; d++ {
			if s.Std[d] == 0 {
				out[i][d] = 0
				continue
			}
			out[i][d] = (f[d] - s.Mean[d]) / s.Std[d]
		}
	}
	return out
}

// InverseTransform maps a standardized triple back to original units
// (x*std + mean). Zero-variance dimensions map back to the mean, which is
// the only value the dimension ever held.
func (s *Scaler) InverseTransform(f [3]float64) [3]float64 {
	var out [3]float64
	for d := 0; d < 3; d++ {
		out[d] = f[d]*s.Std[d] + s.Mean[d]
	}
	return out
}
