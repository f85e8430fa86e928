package strategy

import (
	"fmt"
	"time"

	"cryptobot/internal/indicators"
	"cryptobot/internal/market"
	"cryptobot/pkg/config"
)

// RSI signals a long entry when the index dips below the oversold threshold
// and crosses back above it on the next closed candle (two-bar confirmation,
// which filters single-bar threshold touches), and a long exit when the
// index crosses above the overbought threshold.
type RSI struct {
	id         string
	symbols    []string
	timeframe  string
	interval   time.Duration
	daysBack   int
	period     int
	oversold   float64
	overbought float64
}

func NewRSI(id string, symbols []string, p config.RSIParams) (*RSI, error) {
	if p.Period < 2 {
		return nil, fmt.Errorf("rsi %s: period must be at least 2, got %d", id, p.Period)
	}
	if p.Oversold >= p.Overbought {
		return nil, fmt.Errorf("rsi %s: oversold (%.1f) must be below overbought (%.1f)", id, p.Oversold, p.Overbought)
	}
	return &RSI{
		id:         id,
		symbols:    symbols,
		timeframe:  p.Timeframe,
		interval:   p.CheckInterval,
		daysBack:   p.DaysBack,
		period:     p.Period,
		oversold:   p.Oversold,
		overbought: p.Overbought,
	}, nil
}

func (s *RSI) ID() string                   { return s.id }
func (s *RSI) Symbols() []string            { return s.symbols }
func (s *RSI) Timeframe() string            { return s.timeframe }
func (s *RSI) CheckInterval() time.Duration { return s.interval }

func (s *RSI) Lookback() int {
	// period+1 candles for the first RSI value, one more for the previous bar.
	return s.period + 2
}

func (s *RSI) History() int {
	return historyBars(s.timeframe, s.daysBack, s.Lookback())
}

func (s *RSI) Evaluate(ec EvalContext) (*Signal, error) {
	if len(ec.Candles) < s.Lookback() {
		return nil, fmt.Errorf("rsi %s %s: %w", s.id, ec.Symbol, indicators.ErrInsufficientHistory)
	}

	series, err := indicators.RSI(market.Closes(ec.Candles), s.period)
	if err != nil {
		return nil, err
	}
	cur, ok1 := series.Last()
	prev, ok2 := series.Prev()
	if !ok1 || !ok2 {
		return nil, fmt.Errorf("rsi %s %s: %w", s.id, ec.Symbol, indicators.ErrInsufficientHistory)
	}

	latest := ec.Candles[len(ec.Candles)-1]

	// Oversold recovery: was below the floor, closed back above it.
	if prev < s.oversold && cur > s.oversold {
		return &Signal{
			StrategyID: s.id,
			Symbol:     ec.Symbol,
			Direction:  LongEntry,
			Strength:   thresholdStrength(cur, s.oversold, s.overbought),
			Time:       latest.OpenTime,
			Note:       fmt.Sprintf("rsi recovered %.2f -> %.2f through %.1f", prev, cur, s.oversold),
		}, nil
	}

	// Overbought cross closes an open long.
	if prev <= s.overbought && cur > s.overbought && ec.HasPosition {
		return &Signal{
			StrategyID: s.id,
			Symbol:     ec.Symbol,
			Direction:  LongExit,
			Strength:   1,
			Time:       latest.OpenTime,
			Note:       fmt.Sprintf("rsi overbought %.2f > %.1f", cur, s.overbought),
		}, nil
	}

	return nil, nil
}

// thresholdStrength scores how far the recovery carried into the neutral
// band, clamped to (0, 1].
func thresholdStrength(value, floor, ceil float64) float64 {
	if ceil <= floor {
		return 1
	}
	v := (value - floor) / (ceil - floor)
	if v <= 0 {
		v = 0.01
	}
	if v > 1 {
		v = 1
	}
	return v
}
