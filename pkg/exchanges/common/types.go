package common

// Side denotes order side.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// OrderKind denotes the order types the engine places.
type OrderKind string

const (
	KindMarket OrderKind = "MARKET"
	KindLimit  OrderKind = "LIMIT"
)

// OrderStatus normalizes exchange status into a small set.
type OrderStatus string

const (
	StatusNew      OrderStatus = "NEW"
	StatusFilled   OrderStatus = "FILLED"
	StatusCanceled OrderStatus = "CANCELED"
	StatusRejected OrderStatus = "REJECTED"
)

// OrderRequest captures one order to be sent to an exchange.
type OrderRequest struct {
	Symbol   string
	Side     Side
	Kind     OrderKind
	Quantity float64
	Price    float64 // required for KindLimit
	ClientID string  // optional client order id
}

// OrderResult is the exchange acknowledgement.
type OrderResult struct {
	OrderID   string
	Status    OrderStatus
	FilledQty float64
	AvgPrice  float64
}
