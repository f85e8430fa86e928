package market

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MockFeed serves scripted candles and volumes. It is deterministic, which
// the dry-run parity tests rely on.
type MockFeed struct {
	mu      sync.RWMutex
	candles map[string][]Candle
	volumes map[string]float64
}

func NewMockFeed() *MockFeed {
	return &MockFeed{
		candles: make(map[string][]Candle),
		volumes: make(map[string]float64),
	}
}

// SetCandles replaces the series for a symbol.
func (f *MockFeed) SetCandles(symbol string, candles []Candle) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.candles[symbol] = append([]Candle(nil), candles...)
}

// Append adds one candle to the end of a symbol's series.
func (f *MockFeed) Append(symbol string, c Candle) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.candles[symbol] = append(f.candles[symbol], c)
}

func (f *MockFeed) SetVolume(symbol string, usd float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.volumes[symbol] = usd
}

func (f *MockFeed) Candles(_ context.Context, symbol, _ string, limit int) ([]Candle, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	series, ok := f.candles[symbol]
	if !ok {
		return nil, fmt.Errorf("mock feed: no candles for %s", symbol)
	}
	if limit > 0 && len(series) > limit {
		series = series[len(series)-limit:]
	}
	return append([]Candle(nil), series...), nil
}

func (f *MockFeed) Volume24hUSD(_ context.Context, symbol string) (float64, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.volumes[symbol], nil
}

// FlatCandles builds a series of n candles with a constant price, spaced one
// minute apart. Handy for tests that only care about the latest bars.
func FlatCandles(n int, price float64, start time.Time) []Candle {
	out := make([]Candle, n)
	for i := range out {
		out[i] = Candle{
			OpenTime: start.Add(time.Duration(i) * time.Minute),
			Open:     price, High: price, Low: price, Close: price,
			Volume: 1,
		}
	}
	return out
}
