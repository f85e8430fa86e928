package order

import (
	"context"
	"fmt"
	"log"
	"time"

	"cryptobot/internal/events"
	"cryptobot/internal/risk"
	"cryptobot/pkg/exchanges/common"
	"cryptobot/pkg/journal"
)

// Recorder persists order submissions. Satisfied by *journal.Store; nil-able
// through a no-op implementation when journaling is disabled.
type Recorder interface {
	RecordOrder(rec journal.OrderRecord) error
}

// GatewayError reports a child order that failed after all retries. Children
// before it filled; children after it were never sent.
type GatewayError struct {
	Intent risk.Intent
	Child  ChildOrder
	Err    error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("order %s child %d/%s: %v", e.Intent.ID, e.Child.Seq, e.Intent.Symbol, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// Fill is the aggregate result of executing an intent.
type Fill struct {
	Quantity float64
	AvgPrice float64
	Children int
}

// Executor submits sliced intents through the gateway one child at a time.
type Executor struct {
	Gateway      common.Gateway
	Bus          *events.Bus
	Journal      Recorder
	MaxRetries   int           // attempts per child beyond the first
	RetryBackoff time.Duration // initial backoff, doubled per retry
	CallTimeout  time.Duration // per gateway call

	icebergThreshold float64
	minOrderAmount   float64
}

func NewExecutor(gw common.Gateway, bus *events.Bus, rec Recorder, icebergThreshold, minOrderAmount float64) *Executor {
	return &Executor{
		Gateway:          gw,
		Bus:              bus,
		Journal:          rec,
		MaxRetries:       2,
		RetryBackoff:     500 * time.Millisecond,
		CallTimeout:      10 * time.Second,
		icebergThreshold: icebergThreshold,
		minOrderAmount:   minOrderAmount,
	}
}

// Execute slices the intent and submits the children strictly in sequence.
// Cancellation is checked between children, never mid-flight: a child already
// sent is always awaited. On a child failing past its retry budget the
// remaining children are abandoned and a *GatewayError is returned alongside
// whatever partial fill accumulated.
func (e *Executor) Execute(ctx context.Context, intent risk.Intent) (Fill, error) {
	children := Slice(intent, e.icebergThreshold, e.minOrderAmount)
	if len(children) > 1 {
		log.Printf("executor: intent %s notional %.2f sliced into %d children", intent.ID, intent.Notional, len(children))
	}

	side := common.Side(intent.Side)
	var fill Fill
	var notional float64

	for _, ch := range children {
		if err := ctx.Err(); err != nil {
			return fill, fmt.Errorf("executor: intent %s canceled before child %d: %w", intent.ID, ch.Seq, err)
		}

		req := common.OrderRequest{
			Symbol:   intent.Symbol,
			Side:     side,
			Kind:     common.KindMarket,
			Quantity: ch.Quantity,
			Price:    intent.Price,
			ClientID: ch.ID,
		}
		e.Bus.Publish(events.EventOrderSubmitted, ch)

		res, err := e.submit(ctx, req)
		e.record(intent, ch, res, err)
		if err != nil {
			e.Bus.Publish(events.EventOrderFailed, ch)
			return fill, &GatewayError{Intent: intent, Child: ch, Err: err}
		}
		e.Bus.Publish(events.EventOrderFilled, res)

		fill.Quantity += res.FilledQty
		fill.Children++
		notional += res.FilledQty * res.AvgPrice
	}

	if fill.Quantity > 0 {
		fill.AvgPrice = notional / fill.Quantity
	}
	return fill, nil
}

// submit performs one gateway call with bounded retries and doubling backoff.
func (e *Executor) submit(ctx context.Context, req common.OrderRequest) (common.OrderResult, error) {
	backoff := e.RetryBackoff
	var lastErr error

	for attempt := 0; attempt <= e.MaxRetries; attempt++ {
		if attempt > 0 {
			log.Printf("executor: retrying %s %s (attempt %d/%d): %v", req.Side, req.Symbol, attempt, e.MaxRetries, lastErr)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return common.OrderResult{}, ctx.Err()
			}
			backoff *= 2
		}

		callCtx, cancel := context.WithTimeout(ctx, e.CallTimeout)
		res, err := e.Gateway.PlaceOrder(callCtx, req)
		cancel()
		if err == nil {
			if res.Status == common.StatusRejected {
				return res, fmt.Errorf("exchange rejected order %s", res.OrderID)
			}
			return res, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return common.OrderResult{}, ctx.Err()
		}
	}
	return common.OrderResult{}, lastErr
}

func (e *Executor) record(intent risk.Intent, ch ChildOrder, res common.OrderResult, callErr error) {
	if e.Journal == nil {
		return
	}
	rec := journal.OrderRecord{
		OrderID:    res.OrderID,
		ParentID:   intent.ID,
		StrategyID: intent.StrategyID,
		Symbol:     intent.Symbol,
		Side:       string(intent.Side),
		Quantity:   ch.Quantity,
		Price:      intent.Price,
		Status:     string(res.Status),
		CreatedAt:  time.Now(),
	}
	if callErr != nil {
		rec.Status = "FAILED"
	}
	if err := e.Journal.RecordOrder(rec); err != nil {
		log.Printf("executor: journal write failed: %v", err)
	}
}
