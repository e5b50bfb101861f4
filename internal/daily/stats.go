package daily

import "math"

// ComponentStats is a Welford accumulator for one HSL component. Mean and M2
// are sufficient to recover the running mean and population variance without
// keeping individual samples.
type ComponentStats struct {
	Mean float64 `json:"mean"`
	M2   float64 `json:"m2"`
}

// Add folds a new sample in, where n is the sample count including x.
func (s *ComponentStats) Add(x float64, n int) {
	delta := x - s.Mean
	s.Mean += delta / float64(n)
	delta2 := x - s.Mean
	s.M2 += delta * delta2
}

// StdDev is the population standard deviation over n samples.
func (s ComponentStats) StdDev(n int) float64 {
	if n <= 0 {
		return 0
	}
	return math.Sqrt(s.M2 / float64(n))
}
