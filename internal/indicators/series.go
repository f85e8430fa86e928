package indicators

import "errors"

// ErrInsufficientHistory is returned when a candle sequence is shorter than
// an indicator's minimum lookback. Callers skip the tick and retry on the
// next cadence.
var ErrInsufficientHistory = errors.New("insufficient candle history")

// Series is an indicator output aligned index-for-index with its input
// candles. Warm-up entries are marked invalid rather than carrying zero, so
// absence is distinguishable from a genuine zero value.
type Series struct {
	Values []float64
	Valid  []bool
}

func newSeries(n int) Series {
	return Series{Values: make([]float64, n), Valid: make([]bool, n)}
}

// At returns the value at index i and whether it is inside the valid region.
func (s Series) At(i int) (float64, bool) {
	if i < 0 || i >= len(s.Values) || !s.Valid[i] {
		return 0, false
	}
	return s.Values[i], true
}

// Last returns the final value of the series.
func (s Series) Last() (float64, bool) {
	return s.At(len(s.Values) - 1)
}

// Prev returns the second-to-last value of the series.
func (s Series) Prev() (float64, bool) {
	return s.At(len(s.Values) - 2)
}

// Len returns the series length.
func (s Series) Len() int { return len(s.Values) }
