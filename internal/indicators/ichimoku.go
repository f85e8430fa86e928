package indicators

import "fmt"

// IchimokuSpec configures the Ichimoku periods. Fast drives the conversion
// line (tenkan), Slow the base line (kijun) and the forward displacement,
// Signal the slow leading span (senkou B).
type IchimokuSpec struct {
	Fast   int
	Slow   int
	Signal int
}

// Lookback returns the minimum candle count needed before every Ichimoku
// line has a value on the latest candle.
func (s IchimokuSpec) Lookback() int {
	slowest := s.Slow
	if s.Signal > slowest {
		slowest = s.Signal
	}
	// Leading spans are displaced forward by Slow candles.
	return slowest + s.Slow
}

// Ichimoku bundles the computed cloud lines, each aligned to the input.
type Ichimoku struct {
	Tenkan  Series
	Kijun   Series
	SenkouA Series
	SenkouB Series
}

// ComputeIchimoku calculates the conversion line, base line and both leading
// spans. Leading spans are displaced forward by Slow candles, so their value
// at index i was computed from data ending at i-Slow.
func ComputeIchimoku(highs, lows []float64, spec IchimokuSpec) (Ichimoku, error) {
	if spec.Fast < 2 || spec.Slow < 2 || spec.Signal < 2 {
		return Ichimoku{}, fmt.Errorf("ichimoku: periods must be at least 2, got %+v", spec)
	}
	if len(highs) != len(lows) {
		return Ichimoku{}, fmt.Errorf("ichimoku: high/low length mismatch (%d vs %d)", len(highs), len(lows))
	}
	if len(highs) < spec.Lookback() {
		return Ichimoku{}, fmt.Errorf("ichimoku lookback %d: %w", spec.Lookback(), ErrInsufficientHistory)
	}

	n := len(highs)
	ich := Ichimoku{
		Tenkan:  midline(highs, lows, spec.Fast),
		Kijun:   midline(highs, lows, spec.Slow),
		SenkouA: newSeries(n),
		SenkouB: newSeries(n),
	}

	senkouB := midline(highs, lows, spec.Signal)
	for i := spec.Slow; i < n; i++ {
		src := i - spec.Slow
		if t, ok := ich.Tenkan.At(src); ok {
			if k, kok := ich.Kijun.At(src); kok {
				ich.SenkouA.Values[i] = (t + k) / 2
				ich.SenkouA.Valid[i] = true
			}
		}
		if b, ok := senkouB.At(src); ok {
			ich.SenkouB.Values[i] = b
			ich.SenkouB.Valid[i] = true
		}
	}
	return ich, nil
}

// midline is the (highest high + lowest low) / 2 rolling midpoint used by
// every Ichimoku line.
func midline(highs, lows []float64, window int) Series {
	out := newSeries(len(highs))
	for i := window - 1; i < len(highs); i++ {
		hi := highs[i]
		lo := lows[i]
		for j := i - window + 1; j < i; j++ {
			if highs[j] > hi {
				hi = highs[j]
			}
			if lows[j] < lo {
				lo = lows[j]
			}
		}
		out.Values[i] = (hi + lo) / 2
		out.Valid[i] = true
	}
	return out
}
