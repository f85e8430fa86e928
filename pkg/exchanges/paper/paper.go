// Package paper implements an in-process gateway that fills every order
// instantly without remote effect. The engine routes through every stage
// identically in dry-run; only this boundary differs from live trading.
package paper

import (
	"context"
	"fmt"
	"log"
	"sync"

	"cryptobot/pkg/exchanges/common"
)

// PriceFunc resolves the current reference price for a symbol.
type PriceFunc func(symbol string) float64

// Gateway simulates fills deterministically: same requests in, same results
// out, which the dry-run parity tests depend on.
type Gateway struct {
	mu      sync.Mutex
	equity  float64
	volumes map[string]float64
	price   PriceFunc
	orders  []common.OrderRequest
	seq     int
}

func New(initialEquity float64, price PriceFunc) *Gateway {
	return &Gateway{
		equity:  initialEquity,
		volumes: make(map[string]float64),
		price:   price,
	}
}

// SetVolume sets the simulated 24h quote volume for a symbol.
func (g *Gateway) SetVolume(symbol string, usd float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.volumes[symbol] = usd
}

func (g *Gateway) PlaceOrder(_ context.Context, req common.OrderRequest) (common.OrderResult, error) {
	if req.Quantity <= 0 {
		return common.OrderResult{}, fmt.Errorf("paper: non-positive quantity %v", req.Quantity)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	fill := req.Price
	if g.price != nil {
		if p := g.price(req.Symbol); p > 0 {
			fill = p
		}
	}
	if fill <= 0 {
		return common.OrderResult{}, fmt.Errorf("paper: no reference price for %s", req.Symbol)
	}

	g.seq++
	g.orders = append(g.orders, req)
	log.Printf("paper: filled %s %s qty=%.6f price=%.4f", req.Side, req.Symbol, req.Quantity, fill)

	return common.OrderResult{
		OrderID:   fmt.Sprintf("paper-%d", g.seq),
		Status:    common.StatusFilled,
		FilledQty: req.Quantity,
		AvgPrice:  fill,
	}, nil
}

func (g *Gateway) CancelOrder(_ context.Context, _, _ string) error {
	// Paper fills are instantaneous; there is never an order to cancel.
	return nil
}

func (g *Gateway) Volume24hUSD(_ context.Context, symbol string) (float64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.volumes[symbol], nil
}

func (g *Gateway) Equity(_ context.Context) (float64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.equity, nil
}

// Orders returns a copy of every request placed, in submission order.
func (g *Gateway) Orders() []common.OrderRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]common.OrderRequest(nil), g.orders...)
}
