package market

import (
	"context"
	"time"
)

// Candle is one OHLCV bar. Sequences are ordered by OpenTime and append-only
// within a session.
type Candle struct {
	OpenTime time.Time
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
}

// Feed supplies candle history and trailing 24h quote volume per symbol.
// Implementations may poll REST endpoints or serve cached stream data.
type Feed interface {
	Candles(ctx context.Context, symbol, timeframe string, limit int) ([]Candle, error)
	Volume24hUSD(ctx context.Context, symbol string) (float64, error)
}

// PriceStream delivers intra-candle prices. The stop monitor consumes it so
// protective exits fire even when no evaluation tick is due.
type PriceStream interface {
	Subscribe(ctx context.Context, symbol string) (<-chan float64, func(), error)
}

// Closes extracts the close column from a candle series.
func Closes(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}
