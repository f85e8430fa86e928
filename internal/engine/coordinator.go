// Package engine schedules strategy evaluation and owns the execution state
// machine for each (strategy, symbol) pair.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"cryptobot/internal/events"
	"cryptobot/internal/market"
	"cryptobot/internal/order"
	"cryptobot/internal/risk"
	"cryptobot/internal/strategy"
	"cryptobot/pkg/journal"
)

// Pair states. A pair advances Idle -> Evaluating -> Executing and back to
// Idle; a signal arriving while the pair is busy is dropped, never queued.
const (
	pairIdle int32 = iota
	pairEvaluating
	pairExecuting
)

type pair struct {
	state atomic.Int32
}

// TradeRecorder persists completed round trips. Satisfied by *journal.Store.
type TradeRecorder interface {
	RecordTrade(rec journal.TradeRecord) error
}

// Coordinator runs one evaluation loop per (strategy, symbol) pair and a
// price monitor per symbol. It is the only writer of the position book.
type Coordinator struct {
	feed    market.Feed
	stream  market.PriceStream // nil disables the intra-candle stop monitor
	riskMgr *risk.Manager
	exec    *order.Executor
	bus     *events.Bus
	book    *Book
	locks   *KeyedMutex
	trades  TradeRecorder // optional

	mu    sync.Mutex
	pairs map[string]*pair

	wg sync.WaitGroup
}

func NewCoordinator(feed market.Feed, stream market.PriceStream, riskMgr *risk.Manager, exec *order.Executor, bus *events.Bus, trades TradeRecorder) *Coordinator {
	return &Coordinator{
		feed:    feed,
		stream:  stream,
		riskMgr: riskMgr,
		exec:    exec,
		bus:     bus,
		book:    NewBook(),
		locks:   NewKeyedMutex(),
		trades:  trades,
		pairs:   make(map[string]*pair),
	}
}

// Positions returns a snapshot of the open position book.
func (c *Coordinator) Positions() []risk.Position {
	return c.book.Snapshot()
}

// Run starts the evaluation loops and blocks until ctx is canceled and all
// loops have drained.
func (c *Coordinator) Run(ctx context.Context, strategies []strategy.Strategy) {
	symbols := make(map[string]struct{})
	for _, st := range strategies {
		for _, symbol := range st.Symbols() {
			symbols[symbol] = struct{}{}
			c.wg.Add(1)
			go func(st strategy.Strategy, symbol string) {
				defer c.wg.Done()
				c.runPair(ctx, st, symbol)
			}(st, symbol)
		}
	}

	if c.stream != nil {
		for symbol := range symbols {
			c.wg.Add(1)
			go func(symbol string) {
				defer c.wg.Done()
				c.monitorSymbol(ctx, symbol)
			}(symbol)
		}
	}

	c.wg.Wait()
}

func (c *Coordinator) pair(strategyID, symbol string) *pair {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := pairKey(strategyID, symbol)
	p, ok := c.pairs[key]
	if !ok {
		p = &pair{}
		c.pairs[key] = p
	}
	return p
}

func (c *Coordinator) runPair(ctx context.Context, st strategy.Strategy, symbol string) {
	log.Printf("engine: %s/%s loop started (interval %s)", st.ID(), symbol, st.CheckInterval())
	ticker := time.NewTicker(st.CheckInterval())
	defer ticker.Stop()

	for {
		c.tick(ctx, st, symbol)
		select {
		case <-ctx.Done():
			log.Printf("engine: %s/%s loop stopped", st.ID(), symbol)
			return
		case <-ticker.C:
		}
	}
}

// tick runs one evaluation for the pair. If the pair is still busy with a
// previous signal the tick is dropped outright.
func (c *Coordinator) tick(ctx context.Context, st strategy.Strategy, symbol string) {
	p := c.pair(st.ID(), symbol)
	if !p.state.CompareAndSwap(pairIdle, pairEvaluating) {
		log.Printf("engine: %s/%s busy, dropping tick", st.ID(), symbol)
		return
	}
	defer p.state.Store(pairIdle)

	pos, hasPos := c.book.Get(st.ID(), symbol)

	// Liquidity gate ahead of any indicator work: an illiquid symbol is not
	// worth evaluating. With an open position the gate is skipped so exit
	// signals are never starved.
	var volume float64
	if !hasPos {
		v, err := c.feed.Volume24hUSD(ctx, symbol)
		if err != nil {
			log.Printf("engine: %s/%s 24h volume: %v", st.ID(), symbol, err)
			return
		}
		volume = v
		if limits, ok := c.riskMgr.Limits(st.ID()); ok && limits.MinVolumeUSD > 0 && volume < limits.MinVolumeUSD {
			rej := risk.Rejection{
				StrategyID: st.ID(), Symbol: symbol, Reason: risk.ReasonMinVolumeUSD,
				Detail: fmt.Sprintf("24h volume %.2f below %.2f", volume, limits.MinVolumeUSD),
			}
			log.Printf("engine: %v", &rej)
			c.bus.Publish(events.EventIntentRejected, rej)
			return
		}
	}

	candles, err := c.feed.Candles(ctx, symbol, st.Timeframe(), st.History())
	if err != nil {
		log.Printf("engine: %s/%s candles: %v", st.ID(), symbol, err)
		return
	}
	if len(candles) == 0 {
		return
	}
	lastClose := candles[len(candles)-1].Close

	if hasPos {
		if d := risk.CheckStops(&pos, lastClose); d != nil {
			p.state.Store(pairExecuting)
			c.closePosition(ctx, pos, d.Reason, d.Price)
			return
		}
		c.book.Update(pos) // persist any trailing ratchet
	}

	sig, err := st.Evaluate(strategy.EvalContext{Symbol: symbol, Candles: candles, HasPosition: hasPos})
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			log.Printf("engine: %s/%s evaluate: %v", st.ID(), symbol, err)
		}
		return
	}
	if sig == nil {
		return
	}
	c.bus.Publish(events.EventSignal, *sig)

	switch {
	case sig.Direction == strategy.LongExit && hasPos:
		p.state.Store(pairExecuting)
		c.closePosition(ctx, pos, risk.ExitSignal, lastClose)
	case sig.Direction.IsEntry() && !hasPos:
		c.enter(ctx, p, *sig, lastClose, volume)
	}
}

// enter authorizes and executes an entry signal. Equity is fetched before
// the strategy lock so nothing blocks under it; the position slot is reserved
// inside the lock, so authorization and commitment are atomic against the
// strategy's max_positions aggregate even while the order is in flight.
func (c *Coordinator) enter(ctx context.Context, p *pair, sig strategy.Signal, price, volume float64) {
	equity, err := c.exec.Gateway.Equity(ctx)
	if err != nil {
		log.Printf("engine: %s/%s equity: %v", sig.StrategyID, sig.Symbol, err)
		return
	}

	unlock := c.locks.Lock(sig.StrategyID)
	intent, err := c.riskMgr.Authorize(sig, price, risk.AccountState{
		Equity:        equity,
		OpenPositions: c.book.CountForStrategy(sig.StrategyID),
		Volume24hUSD:  volume,
	})
	if err == nil {
		c.book.Reserve(sig.StrategyID, sig.Symbol)
	}
	unlock()

	if err != nil {
		var rej *risk.Rejection
		if errors.As(err, &rej) {
			log.Printf("engine: %v", rej)
			c.bus.Publish(events.EventIntentRejected, *rej)
		} else {
			log.Printf("engine: %s/%s authorize: %v", sig.StrategyID, sig.Symbol, err)
		}
		return
	}
	c.bus.Publish(events.EventIntentAuthorized, intent)

	p.state.Store(pairExecuting)
	fill, err := c.exec.Execute(ctx, intent)
	if err != nil {
		log.Printf("engine: %s/%s entry execution: %v", sig.StrategyID, sig.Symbol, err)
		if fill.Quantity <= 0 {
			c.book.Release(sig.StrategyID, sig.Symbol)
			return
		}
		// Children that filled before the failure still opened exposure.
	}

	pos := c.riskMgr.NewPosition(intent, fill.AvgPrice, fill.Quantity)
	c.book.Open(pos)
	c.bus.Publish(events.EventPositionOpened, pos)
	log.Printf("engine: opened %s/%s qty=%.6f entry=%.4f stop=%.4f", pos.StrategyID, pos.Symbol, pos.Quantity, pos.EntryPrice, pos.StopLoss)
}

// closePosition sells out the position. On a partial exit fill the book keeps
// the remainder and the next tick or price update retries.
func (c *Coordinator) closePosition(ctx context.Context, pos risk.Position, reason string, price float64) {
	intent := c.riskMgr.ExitIntent(pos, price, reason)
	fill, err := c.exec.Execute(ctx, intent)
	if err != nil {
		log.Printf("engine: %s/%s exit execution (%s): %v", pos.StrategyID, pos.Symbol, reason, err)
		if fill.Quantity > 0 && fill.Quantity < pos.Quantity {
			pos.Quantity -= fill.Quantity
			c.book.Update(pos)
		}
		return
	}

	c.book.Close(pos.StrategyID, pos.Symbol)

	exitPrice := fill.AvgPrice
	if exitPrice <= 0 {
		exitPrice = price
	}
	trade := journal.TradeRecord{
		StrategyID: pos.StrategyID,
		Symbol:     pos.Symbol,
		EntryPrice: pos.EntryPrice,
		ExitPrice:  exitPrice,
		Quantity:   pos.Quantity,
		ProfitPct:  (exitPrice - pos.EntryPrice) / pos.EntryPrice * 100,
		ExitReason: reason,
		OpenedAt:   pos.OpenedAt,
		ClosedAt:   time.Now(),
	}
	c.bus.Publish(events.EventPositionClosed, trade)
	if c.trades != nil {
		if err := c.trades.RecordTrade(trade); err != nil {
			log.Printf("engine: journal trade: %v", err)
		}
	}
	log.Printf("engine: closed %s/%s (%s) entry=%.4f exit=%.4f pnl=%.2f%%",
		pos.StrategyID, pos.Symbol, reason, pos.EntryPrice, exitPrice, trade.ProfitPct)
}

// monitorSymbol watches the live price and fires protective exits between
// evaluation ticks. A pair already evaluating or executing is left alone; the
// breach is caught again on the next update.
func (c *Coordinator) monitorSymbol(ctx context.Context, symbol string) {
	prices, unsub, err := c.stream.Subscribe(ctx, symbol)
	if err != nil {
		log.Printf("engine: %s price stream: %v", symbol, err)
		return
	}
	defer unsub()

	for {
		select {
		case <-ctx.Done():
			return
		case price, ok := <-prices:
			if !ok {
				return
			}
			c.bus.Publish(events.EventPriceTick, price)
			c.checkStops(ctx, symbol, price)
		}
	}
}

func (c *Coordinator) checkStops(ctx context.Context, symbol string, price float64) {
	for _, pos := range c.book.Snapshot() {
		if pos.Symbol != symbol {
			continue
		}
		d := risk.CheckStops(&pos, price)
		c.book.Update(pos) // ratchet survives even when no exit fires
		if d == nil {
			continue
		}

		p := c.pair(pos.StrategyID, pos.Symbol)
		if !p.state.CompareAndSwap(pairIdle, pairExecuting) {
			continue
		}
		c.closePosition(ctx, pos, d.Reason, d.Price)
		p.state.Store(pairIdle)
	}
}
