// Package journal persists order submissions and completed round trips to a
// local SQLite file so runs can be audited and scored after the fact.
package journal

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS orders (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	order_id    TEXT NOT NULL,
	parent_id   TEXT NOT NULL,
	strategy_id TEXT NOT NULL,
	symbol      TEXT NOT NULL,
	side        TEXT NOT NULL,
	quantity    REAL NOT NULL,
	price       REAL NOT NULL,
	status      TEXT NOT NULL,
	created_at  TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS trades (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	strategy_id TEXT NOT NULL,
	symbol      TEXT NOT NULL,
	entry_price REAL NOT NULL,
	exit_price  REAL NOT NULL,
	quantity    REAL NOT NULL,
	profit_pct  REAL NOT NULL,
	exit_reason TEXT NOT NULL,
	opened_at   TIMESTAMP NOT NULL,
	closed_at   TIMESTAMP NOT NULL
);
`

// OrderRecord is one gateway submission, successful or not.
type OrderRecord struct {
	OrderID    string
	ParentID   string
	StrategyID string
	Symbol     string
	Side       string
	Quantity   float64
	Price      float64
	Status     string
	CreatedAt  time.Time
}

// TradeRecord is one completed round trip (entry through exit).
type TradeRecord struct {
	StrategyID string
	Symbol     string
	EntryPrice float64
	ExitPrice  float64
	Quantity   float64
	ProfitPct  float64
	ExitReason string
	OpenedAt   time.Time
	ClosedAt   time.Time
}

// Stats summarizes the journal's completed trades.
type Stats struct {
	Trades       int     `json:"trades"`
	Wins         int     `json:"wins"`
	WinRate      float64 `json:"win_rate"`
	AvgProfitPct float64 `json:"avg_profit_pct"`
	MaxProfitPct float64 `json:"max_profit_pct"`
	MaxLossPct   float64 `json:"max_loss_pct"`
}

// Store is a SQLite-backed journal.
type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("journal: open %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal: init schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) RecordOrder(rec OrderRecord) error {
	_, err := s.db.Exec(
		`INSERT INTO orders (order_id, parent_id, strategy_id, symbol, side, quantity, price, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.OrderID, rec.ParentID, rec.StrategyID, rec.Symbol, rec.Side,
		rec.Quantity, rec.Price, rec.Status, rec.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("journal: record order: %w", err)
	}
	return nil
}

func (s *Store) RecordTrade(rec TradeRecord) error {
	_, err := s.db.Exec(
		`INSERT INTO trades (strategy_id, symbol, entry_price, exit_price, quantity, profit_pct, exit_reason, opened_at, closed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.StrategyID, rec.Symbol, rec.EntryPrice, rec.ExitPrice,
		rec.Quantity, rec.ProfitPct, rec.ExitReason, rec.OpenedAt.UTC(), rec.ClosedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("journal: record trade: %w", err)
	}
	return nil
}

// Stats aggregates completed trades across all strategies.
func (s *Store) Stats() (Stats, error) {
	row := s.db.QueryRow(
		`SELECT COUNT(*),
		        COALESCE(SUM(CASE WHEN profit_pct > 0 THEN 1 ELSE 0 END), 0),
		        COALESCE(AVG(profit_pct), 0),
		        COALESCE(MAX(profit_pct), 0),
		        COALESCE(MIN(profit_pct), 0)
		 FROM trades`,
	)

	var st Stats
	if err := row.Scan(&st.Trades, &st.Wins, &st.AvgProfitPct, &st.MaxProfitPct, &st.MaxLossPct); err != nil {
		return Stats{}, fmt.Errorf("journal: stats: %w", err)
	}
	if st.Trades > 0 {
		st.WinRate = float64(st.Wins) / float64(st.Trades)
	}
	if st.MaxLossPct > 0 {
		st.MaxLossPct = 0
	}
	return st, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
