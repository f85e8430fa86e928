package strategy

import (
	"time"

	"cryptobot/internal/market"
)

// Direction classifies a trade signal.
type Direction string

const (
	LongEntry  Direction = "long_entry"
	LongExit   Direction = "long_exit"
	ShortEntry Direction = "short_entry"
	ShortExit  Direction = "short_exit"
)

// IsEntry reports whether the direction opens exposure.
func (d Direction) IsEntry() bool {
	return d == LongEntry || d == ShortEntry
}

// Signal is a decision emitted by a strategy. Immutable once emitted; at most
// one per symbol per evaluation tick.
type Signal struct {
	StrategyID string
	Symbol     string
	Direction  Direction
	Strength   float64 // 0..1, relative confidence
	Time       time.Time
	Note       string
}

// EvalContext carries the inputs for one evaluation tick of one symbol.
type EvalContext struct {
	Symbol      string
	Candles     []market.Candle // closed candles, oldest first
	HasPosition bool            // open position for this (strategy, symbol)
}

// Strategy is the capability every variant implements. New strategies are
// added by implementing it, never by embedding another strategy.
type Strategy interface {
	ID() string
	Symbols() []string
	Timeframe() string
	CheckInterval() time.Duration
	// Lookback is the minimum number of closed candles Evaluate needs.
	Lookback() int
	// History is the number of closed candles to fetch per evaluation:
	// days_back worth of bars, never less than Lookback.
	History() int
	// Evaluate inspects the candle series and returns zero or one signal.
	// It must be pure with respect to external state.
	Evaluate(ec EvalContext) (*Signal, error)
}

// barsPerDay maps a timeframe to its daily closed-bar count.
func barsPerDay(timeframe string) int {
	switch timeframe {
	case "1m":
		return 1440
	case "5m":
		return 288
	case "15m":
		return 96
	case "4h":
		return 6
	case "1d":
		return 1
	default:
		return 24 // 1h
	}
}

// historyBars converts a days_back warm-up depth into a candle count, floored
// at the strategy's lookback and capped at the venue's kline fetch limit.
func historyBars(timeframe string, daysBack, lookback int) int {
	const maxKlineFetch = 1000
	n := daysBack * barsPerDay(timeframe)
	if n < lookback {
		n = lookback
	}
	if n > maxKlineFetch {
		n = maxKlineFetch
	}
	return n
}
