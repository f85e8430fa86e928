// Package binance provides market data from Binance: candle history over
// REST and live prices over the kline websocket stream.
package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Kline is one OHLCV bar as returned by /api/v3/klines.
type Kline struct {
	OpenTime time.Time
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
	Closed   bool
}

// Client fetches public market data. No credentials are needed.
type Client struct {
	baseURL    string
	wsURL      string
	httpClient *http.Client
	limiter    *rate.Limiter
}

func NewClient() *Client {
	return &Client{
		baseURL:    "https://api.binance.com",
		wsURL:      "wss://stream.binance.com:9443",
		httpClient: &http.Client{Timeout: 10 * time.Second},
		limiter:    rate.NewLimiter(rate.Every(time.Minute/600), 10),
	}
}

// streamSymbol converts "BTC/USDT" into the venue's "btcusdt".
func streamSymbol(symbol string) string {
	return strings.ToLower(strings.ReplaceAll(symbol, "/", ""))
}

func restSymbol(symbol string) string {
	return strings.ToUpper(strings.ReplaceAll(symbol, "/", ""))
}

// GetKlines returns up to limit bars for the symbol and interval, oldest
// first. The venue returns the forming bar last; it is trimmed so callers
// only ever see closed candles.
func (c *Client) GetKlines(ctx context.Context, symbol, interval string, limit int) ([]Kline, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	// Request one extra so trimming the forming bar still yields limit bars.
	u := fmt.Sprintf("%s/api/v3/klines?symbol=%s&interval=%s&limit=%d",
		c.baseURL, restSymbol(symbol), interval, limit+1)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("binance: klines %s: %w", symbol, err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("binance: klines %s status %d", symbol, res.StatusCode)
	}

	var raw [][]json.RawMessage
	if err := json.NewDecoder(res.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("binance: decode klines: %w", err)
	}

	klines := make([]Kline, 0, len(raw))
	now := time.Now()
	for _, row := range raw {
		k, err := parseKline(row, now)
		if err != nil {
			return nil, err
		}
		if !k.Closed {
			continue
		}
		klines = append(klines, k)
	}
	if len(klines) > limit {
		klines = klines[len(klines)-limit:]
	}
	return klines, nil
}

// parseKline decodes one row of the klines array:
// [openTime, open, high, low, close, volume, closeTime, ...]
func parseKline(row []json.RawMessage, now time.Time) (Kline, error) {
	if len(row) < 7 {
		return Kline{}, fmt.Errorf("binance: short kline row (%d fields)", len(row))
	}
	var openMs, closeMs int64
	if err := json.Unmarshal(row[0], &openMs); err != nil {
		return Kline{}, fmt.Errorf("binance: kline open time: %w", err)
	}
	if err := json.Unmarshal(row[6], &closeMs); err != nil {
		return Kline{}, fmt.Errorf("binance: kline close time: %w", err)
	}

	var k Kline
	k.OpenTime = time.UnixMilli(openMs)
	k.Closed = time.UnixMilli(closeMs).Before(now)
	fields := []*float64{&k.Open, &k.High, &k.Low, &k.Close, &k.Volume}
	for i, dst := range fields {
		var s string
		if err := json.Unmarshal(row[i+1], &s); err != nil {
			return Kline{}, fmt.Errorf("binance: kline field %d: %w", i+1, err)
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Kline{}, fmt.Errorf("binance: kline field %d: %w", i+1, err)
		}
		*dst = v
	}
	return k, nil
}

// Volume24h returns the trailing 24h quote volume for the symbol.
func (c *Client) Volume24h(ctx context.Context, symbol string) (float64, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, err
	}
	u := fmt.Sprintf("%s/api/v3/ticker/24hr?symbol=%s", c.baseURL, restSymbol(symbol))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, err
	}
	res, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("binance: 24h ticker %s: %w", symbol, err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("binance: 24h ticker %s status %d", symbol, res.StatusCode)
	}

	var resp struct {
		QuoteVolume string `json:"quoteVolume"`
	}
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		return 0, err
	}
	return strconv.ParseFloat(resp.QuoteVolume, 64)
}
