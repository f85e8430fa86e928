// Package api serves the read-only operations endpoints: health, open
// positions, trade statistics and Prometheus metrics. It never mutates
// engine state.
package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"cryptobot/internal/risk"
	"cryptobot/pkg/journal"
)

// PositionSource supplies the open position snapshot.
type PositionSource interface {
	Positions() []risk.Position
}

// StatsSource supplies aggregated trade statistics.
type StatsSource interface {
	Stats() (journal.Stats, error)
}

// Server is the ops HTTP surface.
type Server struct {
	engine   PositionSource
	stats    StatsSource // optional
	registry *prometheus.Registry
	started  time.Time
}

func NewServer(engine PositionSource, stats StatsSource, registry *prometheus.Registry) *Server {
	return &Server{
		engine:   engine,
		stats:    stats,
		registry: registry,
		started:  time.Now(),
	}
}

// Router builds the gin handler.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", s.health)
	r.GET("/positions", s.positions)
	r.GET("/stats", s.tradeStats)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))
	return r
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"uptime": time.Since(s.started).Round(time.Second).String(),
	})
}

type positionView struct {
	Strategy      string  `json:"strategy"`
	Symbol        string  `json:"symbol"`
	EntryPrice    float64 `json:"entry_price"`
	Quantity      float64 `json:"quantity"`
	StopLoss      float64 `json:"stop_loss"`
	TakeProfit    float64 `json:"take_profit,omitempty"`
	Trailing      bool    `json:"trailing"`
	HighWaterMark float64 `json:"high_water_mark,omitempty"`
	OpenedAt      string  `json:"opened_at"`
}

func (s *Server) positions(c *gin.Context) {
	positions := s.engine.Positions()
	views := make([]positionView, len(positions))
	for i, p := range positions {
		views[i] = positionView{
			Strategy:      p.StrategyID,
			Symbol:        p.Symbol,
			EntryPrice:    p.EntryPrice,
			Quantity:      p.Quantity,
			StopLoss:      p.StopLoss,
			TakeProfit:    p.TakeProfit,
			Trailing:      p.Trailing,
			HighWaterMark: p.HighWaterMark,
			OpenedAt:      p.OpenedAt.UTC().Format(time.RFC3339),
		}
	}
	c.JSON(http.StatusOK, gin.H{"count": len(views), "positions": views})
}

func (s *Server) tradeStats(c *gin.Context) {
	if s.stats == nil {
		c.JSON(http.StatusOK, gin.H{"trades": 0})
		return
	}
	st, err := s.stats.Stats()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, st)
}
