package engine

import (
	"sync"

	"cryptobot/internal/risk"
)

// Book holds the open positions, keyed by "strategyID:symbol". At most one
// position per pair. Reservations count authorized entries that have not
// filled yet, so the per-strategy aggregate covers in-flight intents.
type Book struct {
	mu        sync.RWMutex
	positions map[string]risk.Position
	reserved  map[string]string // pairKey -> strategyID
}

func NewBook() *Book {
	return &Book{
		positions: make(map[string]risk.Position),
		reserved:  make(map[string]string),
	}
}

func pairKey(strategyID, symbol string) string {
	return strategyID + ":" + symbol
}

// Reserve holds a position slot for an authorized entry while its order is in
// flight. Must be called under the same lock that serialized authorization.
func (b *Book) Reserve(strategyID, symbol string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reserved[pairKey(strategyID, symbol)] = strategyID
}

// Release frees a reservation whose entry never filled.
func (b *Book) Release(strategyID, symbol string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.reserved, pairKey(strategyID, symbol))
}

// Open records a new position for the pair and consumes its reservation.
func (b *Book) Open(pos risk.Position) {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := pairKey(pos.StrategyID, pos.Symbol)
	delete(b.reserved, key)
	b.positions[key] = pos
}

// Get returns the pair's position, if any.
func (b *Book) Get(strategyID, symbol string) (risk.Position, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	pos, ok := b.positions[pairKey(strategyID, symbol)]
	return pos, ok
}

// Update replaces the stored position after a stop ratchet or a partial
// exit. Writers work on copies, so a stale write must never undo a ratchet
// that landed in between: the stop and high-water mark only ever rise.
func (b *Book) Update(pos risk.Position) {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := pairKey(pos.StrategyID, pos.Symbol)
	cur, ok := b.positions[key]
	if !ok {
		return
	}
	if cur.StopLoss > pos.StopLoss {
		pos.StopLoss = cur.StopLoss
	}
	if cur.HighWaterMark > pos.HighWaterMark {
		pos.HighWaterMark = cur.HighWaterMark
	}
	b.positions[key] = pos
}

// Close removes and returns the pair's position.
func (b *Book) Close(strategyID, symbol string) (risk.Position, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := pairKey(strategyID, symbol)
	pos, ok := b.positions[key]
	if ok {
		delete(b.positions, key)
	}
	return pos, ok
}

// CountForStrategy returns the strategy's open positions plus reserved
// in-flight entries. This is the aggregate max_positions bounds.
func (b *Book) CountForStrategy(strategyID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	n := 0
	for _, pos := range b.positions {
		if pos.StrategyID == strategyID {
			n++
		}
	}
	for _, sid := range b.reserved {
		if sid == strategyID {
			n++
		}
	}
	return n
}

// Len returns the total number of open positions.
func (b *Book) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.positions)
}

// Snapshot returns a copy of every open position.
func (b *Book) Snapshot() []risk.Position {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]risk.Position, 0, len(b.positions))
	for _, pos := range b.positions {
		out = append(out, pos)
	}
	return out
}
