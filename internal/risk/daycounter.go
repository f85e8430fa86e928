package risk

import (
	"log"
	"sync"
	"time"
)

// DayCounter tracks entries per strategy for the current UTC day. Counts
// reset when the day boundary is crossed; the rollover is checked lazily on
// every access so no background timer is needed.
type DayCounter struct {
	mu     sync.Mutex
	day    time.Time // UTC midnight of the counted day
	counts map[string]int
	now    func() time.Time
}

func NewDayCounter() *DayCounter {
	return &DayCounter{
		counts: make(map[string]int),
		now:    time.Now,
	}
}

// SetClock overrides the time source. Used by tests to cross day boundaries.
func (c *DayCounter) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// Count returns the number of entries recorded for the strategy today.
func (c *DayCounter) Count(strategyID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rolloverLocked()
	return c.counts[strategyID]
}

// Increment records one authorized entry for the strategy.
func (c *DayCounter) Increment(strategyID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rolloverLocked()
	c.counts[strategyID]++
}

func (c *DayCounter) rolloverLocked() {
	today := utcMidnight(c.now())
	if c.day.Equal(today) {
		return
	}
	if !c.day.IsZero() {
		log.Printf("risk: daily trade counters reset at %s", today.Format("2006-01-02"))
	}
	c.day = today
	c.counts = make(map[string]int)
}

func utcMidnight(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
