package common

import "context"

// Gateway abstracts a trading venue. This is the entire surface the engine
// consumes; dry-run swaps the implementation at exactly this boundary.
type Gateway interface {
	PlaceOrder(ctx context.Context, req OrderRequest) (OrderResult, error)
	CancelOrder(ctx context.Context, symbol, orderID string) error
	Volume24hUSD(ctx context.Context, symbol string) (float64, error)
	Equity(ctx context.Context) (float64, error)
}
