package charts

import "math"

// RollingMean returns the trailing mean over window samples. The first
// window-1 positions have no full window and are NaN; nothing before the
// start of values is borrowed to fill them.
func RollingMean(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	if window <= 0 {
		window = 1
	}
	for i := range values {
		if i < window-1 {
			out[i] = math.NaN()
			continue
		}
		var sum float64
		for _, v := range values[i-window+1 : i+1] {
			sum += v
		}
		out[i] = sum / float64(window)
	}
	return out
}
