package strategy

import (
	"fmt"
	"time"

	"cryptobot/internal/indicators"
	"cryptobot/internal/market"
	"cryptobot/pkg/config"
)

// MACross signals a long entry when the short moving average crosses above
// the long one on the latest two closed candles, and a long exit on the
// reverse crossover. With use_ichimoku enabled, entries are additionally
// gated on price closing above the cloud; the gate never suppresses exits so
// positions stay closeable regardless of cloud state.
type MACross struct {
	id          string
	symbols     []string
	timeframe   string
	interval    time.Duration
	daysBack    int
	shortWindow int
	longWindow  int
	useIchimoku bool
	ichimoku    indicators.IchimokuSpec
}

func NewMACross(id string, symbols []string, p config.MACrossParams) (*MACross, error) {
	if p.ShortWindow >= p.LongWindow {
		return nil, fmt.Errorf("ma_cross %s: short_window (%d) must be smaller than long_window (%d)",
			id, p.ShortWindow, p.LongWindow)
	}
	return &MACross{
		id:          id,
		symbols:     symbols,
		timeframe:   p.Timeframe,
		interval:    p.CheckInterval,
		daysBack:    p.DaysBack,
		shortWindow: p.ShortWindow,
		longWindow:  p.LongWindow,
		useIchimoku: p.UseIchimoku,
		ichimoku: indicators.IchimokuSpec{
			Fast:   p.IchimokuFast,
			Slow:   p.IchimokuSlow,
			Signal: p.IchimokuSignal,
		},
	}, nil
}

func (s *MACross) ID() string                  { return s.id }
func (s *MACross) Symbols() []string           { return s.symbols }
func (s *MACross) Timeframe() string           { return s.timeframe }
func (s *MACross) CheckInterval() time.Duration { return s.interval }

func (s *MACross) Lookback() int {
	// One extra candle so both the previous and current MA values exist.
	lookback := s.longWindow + 1
	if s.useIchimoku && s.ichimoku.Lookback() > lookback {
		lookback = s.ichimoku.Lookback()
	}
	return lookback
}

func (s *MACross) History() int {
	return historyBars(s.timeframe, s.daysBack, s.Lookback())
}

func (s *MACross) Evaluate(ec EvalContext) (*Signal, error) {
	if len(ec.Candles) < s.Lookback() {
		return nil, fmt.Errorf("ma_cross %s %s: %w", s.id, ec.Symbol, indicators.ErrInsufficientHistory)
	}

	closes := market.Closes(ec.Candles)
	short, err := indicators.SMA(closes, s.shortWindow)
	if err != nil {
		return nil, err
	}
	long, err := indicators.SMA(closes, s.longWindow)
	if err != nil {
		return nil, err
	}

	curShort, ok1 := short.Last()
	prevShort, ok2 := short.Prev()
	curLong, ok3 := long.Last()
	prevLong, ok4 := long.Prev()
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return nil, fmt.Errorf("ma_cross %s %s: %w", s.id, ec.Symbol, indicators.ErrInsufficientHistory)
	}

	latest := ec.Candles[len(ec.Candles)-1]

	// Golden cross.
	if prevShort <= prevLong && curShort > curLong {
		if s.useIchimoku {
			above, err := s.aboveCloud(ec.Candles)
			if err != nil {
				return nil, err
			}
			if !above {
				return nil, nil
			}
		}
		return &Signal{
			StrategyID: s.id,
			Symbol:     ec.Symbol,
			Direction:  LongEntry,
			Strength:   crossStrength(curShort, curLong),
			Time:       latest.OpenTime,
			Note:       fmt.Sprintf("golden cross MA%d(%.4f) > MA%d(%.4f)", s.shortWindow, curShort, s.longWindow, curLong),
		}, nil
	}

	// Death cross closes an open long. Never gated.
	if prevShort >= prevLong && curShort < curLong && ec.HasPosition {
		return &Signal{
			StrategyID: s.id,
			Symbol:     ec.Symbol,
			Direction:  LongExit,
			Strength:   crossStrength(curLong, curShort),
			Time:       latest.OpenTime,
			Note:       fmt.Sprintf("death cross MA%d(%.4f) < MA%d(%.4f)", s.shortWindow, curShort, s.longWindow, curLong),
		}, nil
	}

	return nil, nil
}

// aboveCloud reports whether the latest close sits above both leading spans.
func (s *MACross) aboveCloud(candles []market.Candle) (bool, error) {
	highs := make([]float64, len(candles))
	lows := make([]float64, len(candles))
	for i, c := range candles {
		highs[i] = c.High
		lows[i] = c.Low
	}
	ich, err := indicators.ComputeIchimoku(highs, lows, s.ichimoku)
	if err != nil {
		return false, err
	}
	a, okA := ich.SenkouA.Last()
	b, okB := ich.SenkouB.Last()
	if !okA || !okB {
		return false, fmt.Errorf("ichimoku cloud: %w", indicators.ErrInsufficientHistory)
	}
	px := candles[len(candles)-1].Close
	return px > a && px > b, nil
}

// crossStrength maps the relative MA separation into (0, 1].
func crossStrength(fast, slow float64) float64 {
	if slow == 0 {
		return 1
	}
	sep := (fast - slow) / slow
	if sep < 0 {
		sep = -sep
	}
	if sep > 1 {
		sep = 1
	}
	return sep
}
