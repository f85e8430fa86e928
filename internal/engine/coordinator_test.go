package engine

import (
	"context"
	"sync"
	"testing"

	"cryptobot/internal/events"
	"cryptobot/internal/market"
	"cryptobot/internal/order"
	"cryptobot/internal/risk"
	"cryptobot/internal/strategy"
	"cryptobot/pkg/config"
	"cryptobot/pkg/exchanges/common"
	"cryptobot/pkg/exchanges/paper"
)

const testSymbol = "BTC/USDT"

type fixture struct {
	coord *Coordinator
	feed  *market.MockFeed
	gw    *paper.Gateway
	bus   *events.Bus
	st    strategy.Strategy
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	st, err := strategy.NewMACross("ma", []string{testSymbol}, config.MACrossParams{
		ShortWindow: 2,
		LongWindow:  3,
	})
	if err != nil {
		t.Fatalf("NewMACross: %v", err)
	}

	feed := market.NewMockFeed()
	feed.SetVolume(testSymbol, 5_000_000)

	gw := paper.New(10_000, nil)
	bus := events.NewBus()

	riskMgr := risk.NewManager(10)
	riskMgr.SetLimits("ma", risk.Limits{
		PositionSize:    0.1,
		MaxPositions:    3,
		MaxTradesPerDay: 5,
		MinVolumeUSD:    1_000_000,
		StopLossPct:     3,
		TakeProfitPct:   5,
	})

	exec := order.NewExecutor(gw, bus, nil, 5_000, 10)
	coord := NewCoordinator(feed, nil, riskMgr, exec, bus, nil)

	return &fixture{coord: coord, feed: feed, gw: gw, bus: bus, st: st}
}

func closesSeries(closes ...float64) []market.Candle {
	out := make([]market.Candle, len(closes))
	for i, c := range closes {
		out[i] = market.Candle{Open: c, High: c, Low: c, Close: c, Volume: 1}
	}
	return out
}

func (f *fixture) tick(t *testing.T) {
	t.Helper()
	f.coord.tick(context.Background(), f.st, testSymbol)
}

func TestTickOpensPositionOnEntrySignal(t *testing.T) {
	f := newFixture(t)
	f.feed.SetCandles(testSymbol, closesSeries(10, 10, 10, 13)) // golden cross at 13
	f.tick(t)

	orders := f.gw.Orders()
	if len(orders) != 1 {
		t.Fatalf("orders: got %d, want 1", len(orders))
	}
	if orders[0].Side != common.SideBuy || orders[0].Symbol != testSymbol {
		t.Fatalf("unexpected order: %+v", orders[0])
	}

	pos, ok := f.coord.book.Get("ma", testSymbol)
	if !ok {
		t.Fatal("expected an open position")
	}
	if pos.EntryPrice != 13 {
		t.Errorf("entry price: got %v, want 13", pos.EntryPrice)
	}
	if want := 13 * 0.97; pos.StopLoss != want {
		t.Errorf("stop loss: got %v, want %v", pos.StopLoss, want)
	}
	// 10% of 10k equity at price 13.
	if want := 1000.0 / 13; pos.Quantity != want {
		t.Errorf("quantity: got %v, want %v", pos.Quantity, want)
	}
}

func TestTickIsIdempotentWithoutSignal(t *testing.T) {
	f := newFixture(t)
	f.feed.SetCandles(testSymbol, closesSeries(10, 10, 10, 10))
	f.tick(t)
	f.tick(t)

	if got := len(f.gw.Orders()); got != 0 {
		t.Fatalf("orders on flat series: got %d, want 0", got)
	}
	if f.coord.book.Len() != 0 {
		t.Fatal("no position should be open")
	}
}

func TestTickDroppedWhileBusy(t *testing.T) {
	f := newFixture(t)
	f.feed.SetCandles(testSymbol, closesSeries(10, 10, 10, 13))

	p := f.coord.pair("ma", testSymbol)
	p.state.Store(pairExecuting)
	f.tick(t)

	if got := len(f.gw.Orders()); got != 0 {
		t.Fatalf("busy pair must drop the tick, orders=%d", got)
	}

	// Back to idle: the next tick proceeds normally.
	p.state.Store(pairIdle)
	f.tick(t)
	if got := len(f.gw.Orders()); got != 1 {
		t.Fatalf("orders after idle: got %d, want 1", got)
	}
}

func TestTickClosesOnExitSignal(t *testing.T) {
	f := newFixture(t)
	f.feed.SetCandles(testSymbol, closesSeries(10, 10, 10, 13))
	f.tick(t) // open at 13

	// Gentle death cross that stays above the 12.61 stop.
	f.feed.SetCandles(testSymbol, closesSeries(13, 13, 13, 12.7))
	f.tick(t)

	orders := f.gw.Orders()
	if len(orders) != 2 {
		t.Fatalf("orders: got %d, want entry+exit", len(orders))
	}
	if orders[1].Side != common.SideSell {
		t.Fatalf("exit side: got %s, want SELL", orders[1].Side)
	}
	if f.coord.book.Len() != 0 {
		t.Fatal("position must be closed after the exit fill")
	}
}

func TestTickClosesOnStopLossBreach(t *testing.T) {
	f := newFixture(t)
	f.feed.SetCandles(testSymbol, closesSeries(10, 10, 10, 13))
	f.tick(t) // open at 13, stop 12.61

	f.feed.SetCandles(testSymbol, closesSeries(10, 10, 13, 12.5))
	f.tick(t)

	orders := f.gw.Orders()
	if len(orders) != 2 {
		t.Fatalf("orders: got %d, want entry+stop exit", len(orders))
	}
	if orders[1].Side != common.SideSell {
		t.Fatalf("stop exit side: got %s, want SELL", orders[1].Side)
	}
	if _, ok := f.coord.book.Get("ma", testSymbol); ok {
		t.Fatal("position must be closed after the stop")
	}
}

func TestEntrySuppressedWhilePositionOpen(t *testing.T) {
	f := newFixture(t)
	f.feed.SetCandles(testSymbol, closesSeries(10, 10, 10, 13))
	f.tick(t)

	// Same golden-cross shape again while the position is still open, with
	// the price inside the stop/take-profit band so no protective exit fires.
	f.feed.SetCandles(testSymbol, closesSeries(13, 13, 13, 13.4))
	f.tick(t)

	if got := len(f.gw.Orders()); got != 1 {
		t.Fatalf("re-entry while long must be suppressed, orders=%d", got)
	}
	if f.coord.book.Len() != 1 {
		t.Fatalf("book: got %d positions, want 1", f.coord.book.Len())
	}
}

func TestCheckStopsFiresFromPriceStream(t *testing.T) {
	f := newFixture(t)
	f.feed.SetCandles(testSymbol, closesSeries(10, 10, 10, 13))
	f.tick(t) // open at 13, stop 12.61

	f.coord.checkStops(context.Background(), testSymbol, 12.0)

	if _, ok := f.coord.book.Get("ma", testSymbol); ok {
		t.Fatal("intra-candle breach must close the position")
	}
	orders := f.gw.Orders()
	if len(orders) != 2 || orders[1].Side != common.SideSell {
		t.Fatalf("expected a stop exit order, got %+v", orders)
	}
}

func TestCheckStopsSkipsBusyPair(t *testing.T) {
	f := newFixture(t)
	f.feed.SetCandles(testSymbol, closesSeries(10, 10, 10, 13))
	f.tick(t)

	p := f.coord.pair("ma", testSymbol)
	p.state.Store(pairEvaluating)
	f.coord.checkStops(context.Background(), testSymbol, 12.0)

	if _, ok := f.coord.book.Get("ma", testSymbol); !ok {
		t.Fatal("busy pair must not be closed by the monitor")
	}
	if got := len(f.gw.Orders()); got != 1 {
		t.Fatalf("no exit order expected while busy, orders=%d", got)
	}
}

func TestVolumeGateRunsBeforeEvaluation(t *testing.T) {
	f := newFixture(t)
	f.feed.SetVolume(testSymbol, 100) // far below the 1M floor
	f.feed.SetCandles(testSymbol, closesSeries(10, 10, 10, 13))

	signals, unsubSignals := f.bus.Subscribe(events.EventSignal, 4)
	rejections, unsubRejections := f.bus.Subscribe(events.EventIntentRejected, 4)
	defer unsubSignals()
	defer unsubRejections()

	f.tick(t)

	// The illiquid symbol is skipped before any indicator work: no signal is
	// ever evaluated or published.
	select {
	case sig := <-signals:
		t.Fatalf("signal emitted for illiquid symbol: %+v", sig)
	default:
	}

	select {
	case v := <-rejections:
		rej, ok := v.(risk.Rejection)
		if !ok || rej.Reason != risk.ReasonMinVolumeUSD {
			t.Fatalf("rejection: %+v", v)
		}
	default:
		t.Fatal("expected a min_volume_usd rejection")
	}

	if got := len(f.gw.Orders()); got != 0 {
		t.Fatalf("orders for illiquid symbol: %d", got)
	}
}

func TestVolumeGateSkippedWithOpenPosition(t *testing.T) {
	f := newFixture(t)
	f.feed.SetCandles(testSymbol, closesSeries(10, 10, 10, 13))
	f.tick(t) // open at 13

	// Liquidity collapses after entry: the exit path must still run.
	f.feed.SetVolume(testSymbol, 0)
	f.feed.SetCandles(testSymbol, closesSeries(13, 13, 13, 12.7))
	f.tick(t)

	orders := f.gw.Orders()
	if len(orders) != 2 || orders[1].Side != common.SideSell {
		t.Fatalf("exit must not be starved by the volume gate, orders=%+v", orders)
	}
	if f.coord.book.Len() != 0 {
		t.Fatal("position must be closed")
	}
}

// stallGateway parks every PlaceOrder until released, so entries can be held
// in flight while another pair ticks.
type stallGateway struct {
	started chan string
	release chan struct{}
	mu      sync.Mutex
	placed  []common.OrderRequest
}

func newStallGateway() *stallGateway {
	return &stallGateway{
		started: make(chan string, 4),
		release: make(chan struct{}),
	}
}

func (g *stallGateway) PlaceOrder(_ context.Context, req common.OrderRequest) (common.OrderResult, error) {
	g.started <- req.Symbol
	<-g.release
	g.mu.Lock()
	g.placed = append(g.placed, req)
	g.mu.Unlock()
	return common.OrderResult{
		OrderID:   "stall-" + req.Symbol,
		Status:    common.StatusFilled,
		FilledQty: req.Quantity,
		AvgPrice:  req.Price,
	}, nil
}

func (g *stallGateway) CancelOrder(context.Context, string, string) error { return nil }
func (g *stallGateway) Volume24hUSD(context.Context, string) (float64, error) {
	return 0, nil
}
func (g *stallGateway) Equity(context.Context) (float64, error) { return 10_000, nil }

func (g *stallGateway) orderCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.placed)
}

func TestMaxPositionsCoversInFlightEntries(t *testing.T) {
	st, err := strategy.NewMACross("ma", []string{"AAA/USDT", "BBB/USDT"}, config.MACrossParams{
		ShortWindow: 2,
		LongWindow:  3,
	})
	if err != nil {
		t.Fatalf("NewMACross: %v", err)
	}

	feed := market.NewMockFeed()
	for _, symbol := range st.Symbols() {
		feed.SetCandles(symbol, closesSeries(10, 10, 10, 13))
		feed.SetVolume(symbol, 5_000_000)
	}

	gw := newStallGateway()
	bus := events.NewBus()
	riskMgr := risk.NewManager(10)
	riskMgr.SetLimits("ma", risk.Limits{
		PositionSize:    0.1,
		MaxPositions:    1,
		MaxTradesPerDay: 5,
		MinVolumeUSD:    1_000_000,
		StopLossPct:     3,
	})
	exec := order.NewExecutor(gw, bus, nil, 5_000, 10)
	coord := NewCoordinator(feed, nil, riskMgr, exec, bus, nil)

	// First pair authorizes and its order parks at the gateway.
	done := make(chan struct{})
	go func() {
		defer close(done)
		coord.tick(context.Background(), st, "AAA/USDT")
	}()
	<-gw.started

	// Second pair ticks while the first entry is still in flight. The slot
	// is reserved, so max_positions=1 must reject it.
	coord.tick(context.Background(), st, "BBB/USDT")

	close(gw.release)
	<-done

	if got := coord.book.CountForStrategy("ma"); got != 1 {
		t.Fatalf("positions for strategy: got %d, want 1", got)
	}
	if got := gw.orderCount(); got != 1 {
		t.Fatalf("orders placed: got %d, want 1", got)
	}
	if _, ok := coord.book.Get("ma", "BBB/USDT"); ok {
		t.Fatal("second pair must not have opened")
	}
}

func TestDryRunParity(t *testing.T) {
	// Two identical runs through the full pipeline produce identical order
	// streams: the paper gateway is swapped in at the boundary, nothing else
	// differs.
	run := func() []common.OrderRequest {
		f := newFixture(t)
		f.feed.SetCandles(testSymbol, closesSeries(10, 10, 10, 13))
		f.tick(t)
		f.feed.SetCandles(testSymbol, closesSeries(13, 13, 13, 12.7))
		f.tick(t)
		return f.gw.Orders()
	}

	a, b := run(), run()
	if len(a) != len(b) {
		t.Fatalf("order counts differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i].Symbol != b[i].Symbol || a[i].Side != b[i].Side || a[i].Quantity != b[i].Quantity || a[i].Price != b[i].Price {
			t.Errorf("order %d differs: %+v vs %+v", i, a[i], b[i])
		}
	}
}
