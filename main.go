// Command cryptobot runs the strategy-driven trading engine: market data in,
// signals through risk, sliced orders out to the configured exchange (or a
// paper gateway in dry-run).
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"cryptobot/internal/api"
	"cryptobot/internal/engine"
	"cryptobot/internal/events"
	"cryptobot/internal/market"
	"cryptobot/internal/monitor"
	"cryptobot/internal/order"
	"cryptobot/internal/risk"
	"cryptobot/internal/strategy"
	"cryptobot/pkg/config"
	binancegw "cryptobot/pkg/exchanges/binance"
	"cryptobot/pkg/exchanges/common"
	"cryptobot/pkg/exchanges/paper"
	"cryptobot/pkg/journal"
)

const paperEquity = 10_000 // quote currency, dry-run only

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	configPath := flag.String("config", "", "path to config file (default: probe config.yaml/yml/json)")
	listenAddr := flag.String("listen", ":8080", "ops HTTP listen address")
	flag.Parse()

	if err := run(*configPath, *listenAddr); err != nil {
		log.Fatalf("cryptobot: %v", err)
	}
}

func run(configPath, listenAddr string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log.Printf("config loaded: exchange=%s dry_run=%v test_mode=%v", cfg.DefaultExchange, cfg.DryRun, cfg.TestMode)

	strategies := buildStrategies(cfg)
	if len(strategies) == 0 {
		return errors.New("no runnable strategies configured")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	feed := market.NewBinanceFeed()
	bus := events.NewBus()

	gateway, err := buildGateway(cfg, feed)
	if err != nil {
		return err
	}

	store, err := openJournal(cfg.LogDir)
	if err != nil {
		return err
	}
	defer store.Close()

	riskMgr := risk.NewManager(cfg.MinOrderAmount)
	for _, st := range strategies {
		cp, err := cfg.Strategies[st.ID()].Common()
		if err != nil {
			return fmt.Errorf("strategy %s: %w", st.ID(), err)
		}
		riskMgr.SetLimits(st.ID(), risk.LimitsFromConfig(cp))
	}

	exec := order.NewExecutor(gateway, bus, store, cfg.IcebergThreshold, cfg.MinOrderAmount)
	coord := engine.NewCoordinator(feed, feed, riskMgr, exec, bus, store)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	metrics := monitor.NewMetrics(registry)
	metrics.Watch(ctx, bus)

	srv := &http.Server{
		Addr:    listenAddr,
		Handler: api.NewServer(coord, store, registry).Router(),
	}
	go func() {
		log.Printf("ops server listening on %s", listenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("ops server: %v", err)
		}
	}()

	log.Printf("engine starting with %d strategies", len(strategies))
	coord.Run(ctx, strategies)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("ops server shutdown: %v", err)
	}
	log.Printf("engine stopped")
	return nil
}

// buildStrategies constructs every enabled strategy. A strategy that fails
// validation is logged and skipped; the rest still run.
func buildStrategies(cfg *config.Config) []strategy.Strategy {
	var out []strategy.Strategy
	for _, id := range cfg.EnabledStrategies() {
		st, err := strategy.FromConfig(id, cfg.Strategies[id])
		if err != nil {
			log.Printf("skipping strategy %s: %v", id, err)
			continue
		}
		log.Printf("strategy %s: symbols=%v timeframe=%s interval=%s", st.ID(), st.Symbols(), st.Timeframe(), st.CheckInterval())
		out = append(out, st)
	}
	return out
}

func buildGateway(cfg *config.Config, feed *market.BinanceFeed) (common.Gateway, error) {
	if cfg.DryRun {
		log.Printf("dry-run: routing orders to the paper gateway")
		gw := paper.New(paperEquity, nil)
		// Liquidity checks hit the real public ticker even in dry-run.
		return &paperWithLiveVolume{Gateway: gw, feed: feed}, nil
	}

	creds, ok := cfg.APIKeys[cfg.DefaultExchange]
	if !ok || creds.APIKey == "" || creds.SecretKey == "" {
		return nil, fmt.Errorf("no credentials for exchange %s (set %s_API_KEY / %s_SECRET_KEY)",
			cfg.DefaultExchange, envPrefix(cfg.DefaultExchange), envPrefix(cfg.DefaultExchange))
	}
	switch cfg.DefaultExchange {
	case "binance":
		return binancegw.New(binancegw.Config{
			APIKey:    creds.APIKey,
			APISecret: creds.SecretKey,
			Testnet:   cfg.TestMode,
		}), nil
	default:
		return nil, fmt.Errorf("unsupported exchange %q", cfg.DefaultExchange)
	}
}

type paperWithLiveVolume struct {
	*paper.Gateway
	feed *market.BinanceFeed
}

func (p *paperWithLiveVolume) Volume24hUSD(ctx context.Context, symbol string) (float64, error) {
	return p.feed.Volume24hUSD(ctx, symbol)
}

func envPrefix(exchange string) string {
	return strings.ToUpper(strings.ReplaceAll(exchange, "-", "_"))
}

func openJournal(logDir string) (*journal.Store, error) {
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	return journal.Open(filepath.Join(logDir, "journal.db"))
}
