package indicators

import "fmt"

// RSI computes the Relative Strength Index with Wilder smoothing. The first
// period entries are invalid (warm-up); the seed average uses the first
// period price changes and subsequent values are smoothed with
// avg = (prev*(period-1) + change) / period.
func RSI(values []float64, period int) (Series, error) {
	if period < 2 {
		return Series{}, fmt.Errorf("rsi: period must be at least 2, got %d", period)
	}
	if len(values) < period+1 {
		return Series{}, fmt.Errorf("rsi period %d: %w", period, ErrInsufficientHistory)
	}

	out := newSeries(len(values))

	avgGain := 0.0
	avgLoss := 0.0
	for i := 1; i <= period; i++ {
		change := values[i] - values[i-1]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss -= change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	out.Values[period] = rsiValue(avgGain, avgLoss)
	out.Valid[period] = true

	for i := period + 1; i < len(values); i++ {
		change := values[i] - values[i-1]
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		out.Values[i] = rsiValue(avgGain, avgLoss)
		out.Valid[i] = true
	}
	return out, nil
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}
