package risk

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"cryptobot/internal/strategy"
)

// Manager authorizes signals against per-strategy limits and attaches
// protective levels to new positions. Checks run in a fixed order and
// short-circuit on the first failure; every failure is a reported Rejection,
// not an error escalation.
type Manager struct {
	mu             sync.RWMutex
	limits         map[string]Limits
	days           *DayCounter
	minOrderAmount float64
	now            func() time.Time
}

func NewManager(minOrderAmount float64) *Manager {
	return &Manager{
		limits:         make(map[string]Limits),
		days:           NewDayCounter(),
		minOrderAmount: minOrderAmount,
		now:            time.Now,
	}
}

// SetClock overrides the time source for the manager and its day counter.
func (m *Manager) SetClock(now func() time.Time) {
	m.mu.Lock()
	m.now = now
	m.mu.Unlock()
	m.days.SetClock(now)
}

// SetLimits registers the limits for a strategy. Called once at startup.
func (m *Manager) SetLimits(strategyID string, l Limits) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.limits[strategyID] = l
}

// Limits returns the registered limits for a strategy.
func (m *Manager) Limits(strategyID string) (Limits, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.limits[strategyID]
	return l, ok
}

// DailyTrades returns today's entry count for a strategy.
func (m *Manager) DailyTrades(strategyID string) int {
	return m.days.Count(strategyID)
}

// Authorize runs the entry checks for a signal and sizes the resulting
// intent. On success the daily trade counter is incremented atomically with
// the decision. Exit signals bypass the entry checks entirely: a position
// must always be closeable.
func (m *Manager) Authorize(sig strategy.Signal, price float64, acct AccountState) (Intent, error) {
	m.mu.RLock()
	limits, ok := m.limits[sig.StrategyID]
	now := m.now
	m.mu.RUnlock()
	if !ok {
		return Intent{}, fmt.Errorf("risk: no limits registered for strategy %s", sig.StrategyID)
	}
	if price <= 0 {
		return Intent{}, fmt.Errorf("risk: non-positive reference price %v for %s", price, sig.Symbol)
	}

	if !sig.Direction.IsEntry() {
		return Intent{}, fmt.Errorf("risk: Authorize called with exit signal for %s/%s", sig.StrategyID, sig.Symbol)
	}

	// 1. Concurrent position cap.
	if acct.OpenPositions >= limits.MaxPositions {
		return Intent{}, &Rejection{
			StrategyID: sig.StrategyID, Symbol: sig.Symbol, Reason: ReasonMaxPositions,
			Detail: fmt.Sprintf("%d open >= limit %d", acct.OpenPositions, limits.MaxPositions),
		}
	}

	// 2. Daily trade cap.
	if trades := m.days.Count(sig.StrategyID); trades >= limits.MaxTradesPerDay {
		return Intent{}, &Rejection{
			StrategyID: sig.StrategyID, Symbol: sig.Symbol, Reason: ReasonMaxTradesPerDay,
			Detail: fmt.Sprintf("%d trades today >= limit %d", trades, limits.MaxTradesPerDay),
		}
	}

	// 3. Liquidity floor.
	if limits.MinVolumeUSD > 0 && acct.Volume24hUSD < limits.MinVolumeUSD {
		return Intent{}, &Rejection{
			StrategyID: sig.StrategyID, Symbol: sig.Symbol, Reason: ReasonMinVolumeUSD,
			Detail: fmt.Sprintf("24h volume %.2f below %.2f", acct.Volume24hUSD, limits.MinVolumeUSD),
		}
	}

	// 4. Sizing. No partial orders below the floor.
	notional := limits.PositionSize * acct.Equity
	if notional < m.minOrderAmount {
		return Intent{}, &Rejection{
			StrategyID: sig.StrategyID, Symbol: sig.Symbol, Reason: ReasonMinOrderAmount,
			Detail: fmt.Sprintf("notional %.2f below min_order_amount %.2f", notional, m.minOrderAmount),
		}
	}

	intent := Intent{
		ID:         uuid.NewString(),
		StrategyID: sig.StrategyID,
		Symbol:     sig.Symbol,
		Side:       SideBuy,
		Quantity:   notional / price,
		Price:      price,
		Notional:   notional,
		Reason:     sig.Note,
		CreatedAt:  now(),
	}

	m.days.Increment(sig.StrategyID)
	log.Printf("risk: approved %s %s qty=%.6f notional=%.2f", sig.StrategyID, sig.Symbol, intent.Quantity, notional)
	return intent, nil
}

// ExitIntent sizes a close for an open position. Exits always pass.
func (m *Manager) ExitIntent(pos Position, price float64, reason string) Intent {
	m.mu.RLock()
	now := m.now
	m.mu.RUnlock()
	return Intent{
		ID:         uuid.NewString(),
		StrategyID: pos.StrategyID,
		Symbol:     pos.Symbol,
		Side:       SideSell,
		Quantity:   pos.Quantity,
		Price:      price,
		Notional:   pos.Quantity * price,
		Exit:       true,
		Reason:     reason,
		CreatedAt:  now(),
	}
}

// NewPosition builds the position record for a filled entry, attaching the
// stop-loss (always), take-profit (when configured) and trailing state.
func (m *Manager) NewPosition(intent Intent, fillPrice float64, filledQty float64) Position {
	m.mu.RLock()
	limits := m.limits[intent.StrategyID]
	now := m.now
	m.mu.RUnlock()

	if fillPrice <= 0 {
		fillPrice = intent.Price
	}
	if filledQty <= 0 {
		filledQty = intent.Quantity
	}

	pos := Position{
		StrategyID:    intent.StrategyID,
		Symbol:        intent.Symbol,
		EntryPrice:    fillPrice,
		Quantity:      filledQty,
		OpenedAt:      now(),
		StopLoss:      fillPrice * (1 - limits.StopLossPct/100),
		HighWaterMark: fillPrice,
	}
	if limits.TakeProfitPct > 0 {
		pos.TakeProfit = fillPrice * (1 + limits.TakeProfitPct/100)
	}
	if limits.TrailingStop {
		pos.Trailing = true
		pos.TrailingDistance = limits.TrailingStopDistance
	}
	return pos
}
