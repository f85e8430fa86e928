// Package monitor exposes engine activity as Prometheus metrics, fed from
// the event bus so the execution path never touches a collector directly.
package monitor

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"cryptobot/internal/events"
	"cryptobot/internal/risk"
	"cryptobot/internal/strategy"
)

// Metrics holds the engine's Prometheus collectors.
type Metrics struct {
	Signals    *prometheus.CounterVec
	Rejections *prometheus.CounterVec
	Orders     *prometheus.CounterVec
	Positions  prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Signals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cryptobot_signals_total",
			Help: "Strategy signals emitted, by strategy and direction.",
		}, []string{"strategy", "direction"}),
		Rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cryptobot_rejections_total",
			Help: "Risk rejections, by check.",
		}, []string{"reason"}),
		Orders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cryptobot_orders_total",
			Help: "Child orders by outcome.",
		}, []string{"outcome"}),
		Positions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cryptobot_open_positions",
			Help: "Currently open positions.",
		}),
	}
	reg.MustRegister(m.Signals, m.Rejections, m.Orders, m.Positions)
	return m
}

// Watch subscribes to the bus and updates the collectors until ctx is
// canceled.
func (m *Metrics) Watch(ctx context.Context, bus *events.Bus) {
	signals, unsubSignals := bus.Subscribe(events.EventSignal, 64)
	rejections, unsubRejections := bus.Subscribe(events.EventIntentRejected, 64)
	filled, unsubFilled := bus.Subscribe(events.EventOrderFilled, 64)
	failed, unsubFailed := bus.Subscribe(events.EventOrderFailed, 64)
	opened, unsubOpened := bus.Subscribe(events.EventPositionOpened, 64)
	closed, unsubClosed := bus.Subscribe(events.EventPositionClosed, 64)

	go func() {
		defer unsubSignals()
		defer unsubRejections()
		defer unsubFilled()
		defer unsubFailed()
		defer unsubOpened()
		defer unsubClosed()

		for {
			select {
			case <-ctx.Done():
				return
			case v := <-signals:
				if sig, ok := v.(strategy.Signal); ok {
					m.Signals.WithLabelValues(sig.StrategyID, string(sig.Direction)).Inc()
				}
			case v := <-rejections:
				if rej, ok := v.(risk.Rejection); ok {
					m.Rejections.WithLabelValues(string(rej.Reason)).Inc()
				}
			case <-filled:
				m.Orders.WithLabelValues("filled").Inc()
			case <-failed:
				m.Orders.WithLabelValues("failed").Inc()
			case <-opened:
				m.Positions.Inc()
			case <-closed:
				m.Positions.Dec()
			}
		}
	}()
}
