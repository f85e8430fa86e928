package risk

import (
	"fmt"
	"time"

	"cryptobot/pkg/config"
)

// Reason identifies which authorization check refused a signal.
type Reason string

const (
	ReasonMaxPositions    Reason = "max_positions"
	ReasonMaxTradesPerDay Reason = "max_trades_per_day"
	ReasonMinVolumeUSD    Reason = "min_volume_usd"
	ReasonMinOrderAmount  Reason = "min_order_amount"
)

// Rejection is an expected, reportable refusal. It is logged and counted,
// never escalated, and always attributable to a (strategy, symbol) pair.
type Rejection struct {
	StrategyID string
	Symbol     string
	Reason     Reason
	Detail     string
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("risk rejection %s/%s: %s (%s)", r.StrategyID, r.Symbol, r.Reason, r.Detail)
}

// Side denotes the direction of an order intent.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Intent is a sized, risk-approved order derived from a signal. It may still
// fail at the gateway; it is immutable once created.
type Intent struct {
	ID         string
	StrategyID string
	Symbol     string
	Side       Side
	Quantity   float64
	Price      float64 // reference price used for sizing
	Notional   float64 // Quantity * Price, quote currency
	Exit       bool
	Reason     string // entry note or exit trigger
	CreatedAt  time.Time
}

// Position is one open long. Owned by the coordinator's book; mutated only
// through risk-approved transitions (open, trailing ratchet, close).
type Position struct {
	StrategyID       string
	Symbol           string
	EntryPrice       float64
	Quantity         float64
	OpenedAt         time.Time
	StopLoss         float64
	TakeProfit       float64 // zero when take_profit_pct is unset
	Trailing         bool
	TrailingDistance float64 // percent below the high-water mark
	HighWaterMark    float64
}

// AccountState is the snapshot Authorize evaluates a signal against.
type AccountState struct {
	Equity        float64 // available equity in quote currency
	OpenPositions int     // open positions for the signal's strategy
	Volume24hUSD  float64 // trailing 24h quote volume for the signal's symbol
}

// Limits are the per-strategy risk parameters.
type Limits struct {
	PositionSize         float64
	MaxPositions         int
	MaxTradesPerDay      int
	MinVolumeUSD         float64
	StopLossPct          float64
	TakeProfitPct        float64
	TrailingStop         bool
	TrailingStopDistance float64
}

// LimitsFromConfig maps the shared strategy parameters onto risk limits.
func LimitsFromConfig(c config.CommonParams) Limits {
	return Limits{
		PositionSize:         c.PositionSize,
		MaxPositions:         c.MaxPositions,
		MaxTradesPerDay:      c.MaxTradesPerDay,
		MinVolumeUSD:         c.MinVolumeUSD,
		StopLossPct:          c.StopLossPct,
		TakeProfitPct:        c.TakeProfitPct,
		TrailingStop:         c.TrailingStop,
		TrailingStopDistance: c.TrailingStopDistance,
	}
}
