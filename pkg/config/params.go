package config

import (
	"fmt"
	"time"
)

// Params is the raw parameters map of a strategy entry. Typed accessors
// apply documented defaults when a key is absent.
type Params map[string]any

func (p Params) Float(key string, def float64) float64 {
	v, ok := p[key]
	if !ok {
		return def
	}
	switch t := v.(type) {
	case float64:
		return t
	case int:
		return float64(t)
	case int64:
		return float64(t)
	default:
		return def
	}
}

func (p Params) Int(key string, def int) int {
	v, ok := p[key]
	if !ok {
		return def
	}
	switch t := v.(type) {
	case int:
		return t
	case int64:
		return int(t)
	case float64:
		return int(t)
	default:
		return def
	}
}

func (p Params) Bool(key string, def bool) bool {
	if v, ok := p[key].(bool); ok {
		return v
	}
	return def
}

func (p Params) String(key, def string) string {
	if v, ok := p[key].(string); ok && v != "" {
		return v
	}
	return def
}

// Timeframes accepted for candle series.
var validTimeframes = map[string]bool{
	"1m": true, "5m": true, "15m": true, "1h": true, "4h": true, "1d": true,
}

// CommonParams are the parameters shared by every strategy: cadence, sizing
// and the risk limits the RiskManager enforces.
type CommonParams struct {
	Timeframe            string
	CheckInterval        time.Duration
	DaysBack             int
	PositionSize         float64
	MaxPositions         int
	StopLossPct          float64
	TakeProfitPct        float64
	TrailingStop         bool
	TrailingStopDistance float64
	MinVolumeUSD         float64
	MaxTradesPerDay      int
}

// MACrossParams configures the moving-average crossover strategy.
type MACrossParams struct {
	CommonParams
	ShortWindow    int
	LongWindow     int
	UseIchimoku    bool
	IchimokuFast   int
	IchimokuSlow   int
	IchimokuSignal int
}

// RSIParams configures the RSI reversal strategy.
type RSIParams struct {
	CommonParams
	Period     int
	Oversold   float64
	Overbought float64
}

// Common extracts and validates the shared parameters of a strategy entry.
func (s Strategy) Common() (CommonParams, error) {
	p := s.Parameters
	c := CommonParams{
		Timeframe:            p.String("timeframe", "1h"),
		CheckInterval:        time.Duration(p.Int("check_interval", 60)) * time.Second,
		DaysBack:             p.Int("days_back", 30),
		PositionSize:         p.Float("position_size", 0.1),
		MaxPositions:         p.Int("max_positions", 3),
		StopLossPct:          p.Float("stop_loss_pct", 3.0),
		TakeProfitPct:        p.Float("take_profit_pct", 5.0),
		TrailingStop:         p.Bool("trailing_stop", false),
		TrailingStopDistance: p.Float("trailing_stop_distance", 2.0),
		MinVolumeUSD:         p.Float("min_volume_usd", 1_000_000),
		MaxTradesPerDay:      p.Int("max_trades_per_day", 3),
	}

	if len(s.Symbols) == 0 {
		return c, fmt.Errorf("no symbols configured")
	}
	if !validTimeframes[c.Timeframe] {
		return c, fmt.Errorf("invalid timeframe %q", c.Timeframe)
	}
	if c.CheckInterval <= 0 {
		return c, fmt.Errorf("check_interval must be positive")
	}
	if c.PositionSize <= 0 || c.PositionSize > 1 {
		return c, fmt.Errorf("position_size must be in (0, 1], got %v", c.PositionSize)
	}
	if c.MaxPositions < 1 {
		return c, fmt.Errorf("max_positions must be at least 1")
	}
	if c.StopLossPct <= 0 {
		return c, fmt.Errorf("stop_loss_pct must be positive")
	}
	if c.TrailingStop && c.TrailingStopDistance <= 0 {
		return c, fmt.Errorf("trailing_stop_distance must be positive when trailing_stop is set")
	}
	return c, nil
}

// MACross extracts and validates ma_cross parameters.
func (s Strategy) MACross() (MACrossParams, error) {
	common, err := s.Common()
	if err != nil {
		return MACrossParams{}, err
	}
	p := s.Parameters
	m := MACrossParams{
		CommonParams:   common,
		ShortWindow:    p.Int("short_window", 5),
		LongWindow:     p.Int("long_window", 20),
		UseIchimoku:    p.Bool("use_ichimoku", false),
		IchimokuFast:   p.Int("ichimoku_fast", 9),
		IchimokuSlow:   p.Int("ichimoku_slow", 26),
		IchimokuSignal: p.Int("ichimoku_signal", 52),
	}
	if m.ShortWindow < 2 {
		return m, fmt.Errorf("short_window must be at least 2, got %d", m.ShortWindow)
	}
	if m.ShortWindow >= m.LongWindow {
		return m, fmt.Errorf("short_window (%d) must be smaller than long_window (%d)", m.ShortWindow, m.LongWindow)
	}
	if m.UseIchimoku && (m.IchimokuFast < 2 || m.IchimokuSlow < 2 || m.IchimokuSignal < 2) {
		return m, fmt.Errorf("ichimoku periods must be at least 2")
	}
	return m, nil
}

// RSI extracts and validates rsi parameters.
func (s Strategy) RSI() (RSIParams, error) {
	common, err := s.Common()
	if err != nil {
		return RSIParams{}, err
	}
	p := s.Parameters
	r := RSIParams{
		CommonParams: common,
		Period:       p.Int("rsi_period", 14),
		Oversold:     p.Float("rsi_oversold", 30),
		Overbought:   p.Float("rsi_overbought", 70),
	}
	if r.Period < 2 {
		return r, fmt.Errorf("rsi_period must be at least 2, got %d", r.Period)
	}
	if r.Oversold <= 0 || r.Overbought >= 100 || r.Oversold >= r.Overbought {
		return r, fmt.Errorf("rsi thresholds must satisfy 0 < oversold < overbought < 100")
	}
	return r, nil
}
