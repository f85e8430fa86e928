// Package order turns authorized intents into exchange orders, slicing large
// intents into child orders and submitting them sequentially.
package order

import (
	"fmt"
	"math"

	"cryptobot/internal/risk"
)

// ChildOrder is one slice of a parent intent.
type ChildOrder struct {
	ID       string
	ParentID string
	Seq      int // 1-based position within the parent
	Quantity float64
	Notional float64
}

// Slice splits an intent into child orders. Intents at or under the iceberg
// threshold pass through as a single child. Larger intents split into
// ceil(notional/threshold) near-equal slices whose quantities sum exactly to
// the parent quantity. A trailing slice that would fall under the minimum
// order amount is merged into its predecessor.
func Slice(intent risk.Intent, icebergThreshold, minOrderAmount float64) []ChildOrder {
	if icebergThreshold <= 0 || intent.Notional <= icebergThreshold {
		return []ChildOrder{child(intent, 1, intent.Quantity)}
	}

	n := int(math.Ceil(intent.Notional / icebergThreshold))
	base := intent.Quantity / float64(n)

	children := make([]ChildOrder, 0, n)
	allocated := 0.0
	for i := 1; i < n; i++ {
		children = append(children, child(intent, i, base))
		allocated += base
	}
	// Last slice absorbs the rounding remainder so the sum is exact.
	children = append(children, child(intent, n, intent.Quantity-allocated))

	last := &children[len(children)-1]
	if len(children) > 1 && last.Notional < minOrderAmount {
		prev := &children[len(children)-2]
		prev.Quantity += last.Quantity
		prev.Notional += last.Notional
		children = children[:len(children)-1]
	}
	return children
}

func child(intent risk.Intent, seq int, qty float64) ChildOrder {
	return ChildOrder{
		ID:       fmt.Sprintf("%s-%d", intent.ID, seq),
		ParentID: intent.ID,
		Seq:      seq,
		Quantity: qty,
		Notional: qty * intent.Price,
	}
}
