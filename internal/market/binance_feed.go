package market

import (
	"context"
	"fmt"

	"cryptobot/pkg/market/binance"
)

// BinanceFeed adapts the Binance market data client to the Feed and
// PriceStream interfaces.
type BinanceFeed struct {
	client *binance.Client
}

func NewBinanceFeed() *BinanceFeed {
	return &BinanceFeed{client: binance.NewClient()}
}

func (f *BinanceFeed) Candles(ctx context.Context, symbol, timeframe string, limit int) ([]Candle, error) {
	klines, err := f.client.GetKlines(ctx, symbol, timeframe, limit)
	if err != nil {
		return nil, fmt.Errorf("feed: %s %s candles: %w", symbol, timeframe, err)
	}

	candles := make([]Candle, len(klines))
	for i, k := range klines {
		candles[i] = Candle{
			OpenTime: k.OpenTime,
			Open:     k.Open,
			High:     k.High,
			Low:      k.Low,
			Close:    k.Close,
			Volume:   k.Volume,
		}
	}
	return candles, nil
}

func (f *BinanceFeed) Volume24hUSD(ctx context.Context, symbol string) (float64, error) {
	return f.client.Volume24h(ctx, symbol)
}

func (f *BinanceFeed) Subscribe(ctx context.Context, symbol string) (<-chan float64, func(), error) {
	return f.client.SubscribeTrades(ctx, symbol)
}
