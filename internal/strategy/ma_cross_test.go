package strategy

import (
	"testing"
	"time"

	"cryptobot/internal/market"
	"cryptobot/pkg/config"
)

func candlesFromCloses(closes []float64) []market.Candle {
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	out := make([]market.Candle, len(closes))
	for i, c := range closes {
		out[i] = market.Candle{
			OpenTime: start.Add(time.Duration(i) * time.Hour),
			Open:     c, High: c, Low: c, Close: c,
			Volume: 1,
		}
	}
	return out
}

func newTestMACross(t *testing.T, p config.MACrossParams) *MACross {
	t.Helper()
	st, err := NewMACross("ma", []string{"BTC/USDT"}, p)
	if err != nil {
		t.Fatalf("NewMACross: %v", err)
	}
	return st
}

func TestMACrossSignals(t *testing.T) {
	st := newTestMACross(t, config.MACrossParams{ShortWindow: 2, LongWindow: 3})

	tests := []struct {
		name        string
		closes      []float64
		hasPosition bool
		want        Direction // "" means no signal
	}{
		{"golden cross enters", []float64{10, 10, 10, 13}, false, LongEntry},
		{"golden cross with position does not re-enter direction", []float64{10, 10, 10, 13}, true, LongEntry},
		{"death cross exits open position", []float64{10, 10, 10, 7}, true, LongExit},
		{"death cross without position is silent", []float64{10, 10, 10, 7}, false, ""},
		{"flat series is silent", []float64{10, 10, 10, 10}, false, ""},
		{"already crossed is silent", []float64{10, 13, 14, 15}, false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig, err := st.Evaluate(EvalContext{
				Symbol:      "BTC/USDT",
				Candles:     candlesFromCloses(tt.closes),
				HasPosition: tt.hasPosition,
			})
			if err != nil {
				t.Fatalf("Evaluate: %v", err)
			}
			if tt.want == "" {
				if sig != nil {
					t.Fatalf("expected no signal, got %+v", sig)
				}
				return
			}
			if sig == nil {
				t.Fatalf("expected %s signal, got none", tt.want)
			}
			if sig.Direction != tt.want {
				t.Errorf("direction: got %s, want %s", sig.Direction, tt.want)
			}
			if sig.StrategyID != "ma" || sig.Symbol != "BTC/USDT" {
				t.Errorf("attribution: got %s/%s", sig.StrategyID, sig.Symbol)
			}
			if sig.Strength <= 0 || sig.Strength > 1 {
				t.Errorf("strength out of range: %v", sig.Strength)
			}
		})
	}
}

func TestHistoryDepth(t *testing.T) {
	tests := []struct {
		name      string
		timeframe string
		daysBack  int
		want      int
	}{
		{"30 days of hourly bars", "1h", 30, 720},
		{"30 days of daily bars", "1d", 30, 30},
		{"minute bars capped at the fetch limit", "1m", 30, 1000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := newTestMACross(t, config.MACrossParams{
				CommonParams: config.CommonParams{Timeframe: tt.timeframe, DaysBack: tt.daysBack},
				ShortWindow:  2,
				LongWindow:   3,
			})
			if got := st.History(); got != tt.want {
				t.Errorf("history: got %d, want %d", got, tt.want)
			}
		})
	}

	t.Run("never below lookback", func(t *testing.T) {
		st := newTestMACross(t, config.MACrossParams{ShortWindow: 2, LongWindow: 3})
		if got := st.History(); got != st.Lookback() {
			t.Errorf("history without days_back: got %d, want lookback %d", got, st.Lookback())
		}
	})

	t.Run("daily bars floored at lookback", func(t *testing.T) {
		st, err := NewRSI("rsi", []string{"BTC/USDT"}, config.RSIParams{
			CommonParams: config.CommonParams{Timeframe: "1d", DaysBack: 5},
			Period:       14,
			Oversold:     30,
			Overbought:   70,
		})
		if err != nil {
			t.Fatalf("NewRSI: %v", err)
		}
		if got := st.History(); got != st.Lookback() {
			t.Errorf("history below lookback: got %d, want %d", got, st.Lookback())
		}
	})
}

func TestMACrossInsufficientHistory(t *testing.T) {
	st := newTestMACross(t, config.MACrossParams{ShortWindow: 2, LongWindow: 3})
	_, err := st.Evaluate(EvalContext{
		Symbol:  "BTC/USDT",
		Candles: candlesFromCloses([]float64{10, 11}),
	})
	if err == nil {
		t.Fatal("expected error for short candle series")
	}
}

func TestMACrossIchimokuGate(t *testing.T) {
	st := newTestMACross(t, config.MACrossParams{
		ShortWindow:    2,
		LongWindow:     3,
		UseIchimoku:    true,
		IchimokuFast:   2,
		IchimokuSlow:   3,
		IchimokuSignal: 4,
	})

	// Closes produce a golden cross on the last two bars; highs/lows pin the
	// cloud either above or below the latest close.
	closes := []float64{10, 10, 10, 10, 10, 10, 13}

	build := func(high, low float64) []market.Candle {
		candles := candlesFromCloses(closes)
		for i := range candles {
			candles[i].High = high
			candles[i].Low = low
		}
		return candles
	}

	t.Run("below cloud suppresses entry", func(t *testing.T) {
		sig, err := st.Evaluate(EvalContext{Symbol: "BTC/USDT", Candles: build(20, 18)})
		if err != nil {
			t.Fatalf("Evaluate: %v", err)
		}
		if sig != nil {
			t.Fatalf("expected gated entry, got %+v", sig)
		}
	})

	t.Run("above cloud allows entry", func(t *testing.T) {
		sig, err := st.Evaluate(EvalContext{Symbol: "BTC/USDT", Candles: build(6, 4)})
		if err != nil {
			t.Fatalf("Evaluate: %v", err)
		}
		if sig == nil || sig.Direction != LongEntry {
			t.Fatalf("expected long entry, got %+v", sig)
		}
	})

	t.Run("exit is never gated", func(t *testing.T) {
		candles := candlesFromCloses([]float64{10, 10, 10, 10, 10, 10, 7})
		for i := range candles {
			candles[i].High = 20
			candles[i].Low = 18
		}
		sig, err := st.Evaluate(EvalContext{Symbol: "BTC/USDT", Candles: candles, HasPosition: true})
		if err != nil {
			t.Fatalf("Evaluate: %v", err)
		}
		if sig == nil || sig.Direction != LongExit {
			t.Fatalf("expected long exit despite cloud, got %+v", sig)
		}
	})
}
