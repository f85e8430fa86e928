package indicators

import "fmt"

// SMA computes a simple moving average. The first window-1 entries are
// invalid. Pure and deterministic: identical input yields identical output.
func SMA(values []float64, window int) (Series, error) {
	if window < 2 {
		return Series{}, fmt.Errorf("sma: window must be at least 2, got %d", window)
	}
	if len(values) < window {
		return Series{}, fmt.Errorf("sma window %d: %w", window, ErrInsufficientHistory)
	}

	out := newSeries(len(values))
	sum := 0.0
	for i, v := range values {
		sum += v
		if i >= window {
			sum -= values[i-window]
		}
		if i >= window-1 {
			out.Values[i] = sum / float64(window)
			out.Valid[i] = true
		}
	}
	return out, nil
}

// EMA computes an exponential moving average seeded with the SMA of the
// first window values. The first window-1 entries are invalid.
func EMA(values []float64, window int) (Series, error) {
	if window < 2 {
		return Series{}, fmt.Errorf("ema: window must be at least 2, got %d", window)
	}
	if len(values) < window {
		return Series{}, fmt.Errorf("ema window %d: %w", window, ErrInsufficientHistory)
	}

	out := newSeries(len(values))
	seed := 0.0
	for i := 0; i < window; i++ {
		seed += values[i]
	}
	prev := seed / float64(window)
	out.Values[window-1] = prev
	out.Valid[window-1] = true

	alpha := 2.0 / float64(window+1)
	for i := window; i < len(values); i++ {
		prev = alpha*values[i] + (1-alpha)*prev
		out.Values[i] = prev
		out.Valid[i] = true
	}
	return out, nil
}
