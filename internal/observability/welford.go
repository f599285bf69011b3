package observability

import "math"

// WelfordState holds running statistics using Welford's online algorithm,
// so mean and standard deviation are updated in O(1) without storing samples.
type WelfordState struct {
	Count int     // number of observations
	Mean  float64 // running mean
	M2    float64 // sum of squared differences from the mean
}

// Update adds a new observation
func (w *WelfordState) Update(newValue float64) {
	w.Count++
	delta := newValue - w.Mean
	w.Mean += delta / float64(w.Count)
	delta2 := newValue - w.Mean
	w.M2 += delta * delta2
}

// StdDev returns the population standard deviation, or 0 with fewer than
// 2 observations.
func (w *WelfordState) StdDev() float64 {
	if w.Count < 2 {
		return 0
	}
	return math.Sqrt(w.M2 / float64(w.Count))
}
