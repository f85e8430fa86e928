package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"cryptobot/internal/risk"
	"cryptobot/pkg/journal"
)

type stubEngine struct {
	positions []risk.Position
}

func (s *stubEngine) Positions() []risk.Position { return s.positions }

type stubStats struct {
	stats journal.Stats
}

func (s *stubStats) Stats() (journal.Stats, error) { return s.stats, nil }

func newTestServer(engine PositionSource, stats StatsSource) *httptest.Server {
	srv := NewServer(engine, stats, prometheus.NewRegistry())
	return httptest.NewServer(srv.Router())
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	res, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer res.Body.Close()
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		t.Fatalf("decode %s: %v", url, err)
	}
	return res.StatusCode
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(&stubEngine{}, nil)
	defer ts.Close()

	var body map[string]any
	if code := getJSON(t, ts.URL+"/healthz", &body); code != http.StatusOK {
		t.Fatalf("status: %d", code)
	}
	if body["status"] != "ok" {
		t.Errorf("body: %v", body)
	}
}

func TestPositions(t *testing.T) {
	engine := &stubEngine{positions: []risk.Position{{
		StrategyID: "ma",
		Symbol:     "BTC/USDT",
		EntryPrice: 50_000,
		Quantity:   0.02,
		StopLoss:   48_500,
		OpenedAt:   time.Now(),
	}}}
	ts := newTestServer(engine, nil)
	defer ts.Close()

	var body struct {
		Count     int `json:"count"`
		Positions []struct {
			Strategy string  `json:"strategy"`
			Symbol   string  `json:"symbol"`
			StopLoss float64 `json:"stop_loss"`
		} `json:"positions"`
	}
	if code := getJSON(t, ts.URL+"/positions", &body); code != http.StatusOK {
		t.Fatalf("status: %d", code)
	}
	if body.Count != 1 || len(body.Positions) != 1 {
		t.Fatalf("body: %+v", body)
	}
	if body.Positions[0].Strategy != "ma" || body.Positions[0].StopLoss != 48_500 {
		t.Errorf("position view: %+v", body.Positions[0])
	}
}

func TestStats(t *testing.T) {
	ts := newTestServer(&stubEngine{}, &stubStats{stats: journal.Stats{
		Trades: 4, Wins: 3, WinRate: 0.75, AvgProfitPct: 1.2,
	}})
	defer ts.Close()

	var body journal.Stats
	if code := getJSON(t, ts.URL+"/stats", &body); code != http.StatusOK {
		t.Fatalf("status: %d", code)
	}
	if body.Trades != 4 || body.WinRate != 0.75 {
		t.Errorf("stats: %+v", body)
	}
}

func TestStatsWithoutJournal(t *testing.T) {
	ts := newTestServer(&stubEngine{}, nil)
	defer ts.Close()

	var body map[string]any
	if code := getJSON(t, ts.URL+"/stats", &body); code != http.StatusOK {
		t.Fatalf("status: %d", code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(&stubEngine{}, nil)
	defer ts.Close()

	res, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status: %d", res.StatusCode)
	}
}
