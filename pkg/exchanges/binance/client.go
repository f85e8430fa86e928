// Package binance implements the exchange gateway against the Binance spot
// REST API. test_mode routes to the spot testnet.
package binance

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"cryptobot/pkg/exchanges/common"
)

// Config holds Binance credentials and connection options.
type Config struct {
	APIKey     string
	APISecret  string
	Testnet    bool
	RecvWindow int64 // ms
	QuoteAsset string // asset counted as equity, default USDT
}

// Client is a Binance spot gateway. Signed calls are paced client-side to
// stay clear of the venue's request weight limits.
type Client struct {
	cfg        Config
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

func New(cfg Config) *Client {
	base := "https://api.binance.com"
	if cfg.Testnet {
		base = "https://testnet.binance.vision"
	}
	if cfg.RecvWindow == 0 {
		cfg.RecvWindow = 5000
	}
	if cfg.QuoteAsset == "" {
		cfg.QuoteAsset = "USDT"
	}
	return &Client{
		cfg:        cfg,
		baseURL:    base,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		// Spot allows 1200 weight/min; stay well under it.
		limiter: rate.NewLimiter(rate.Every(time.Minute/600), 10),
	}
}

// marketSymbol converts "BTC/USDT" into Binance's "BTCUSDT".
func marketSymbol(symbol string) string {
	return strings.ToUpper(strings.ReplaceAll(symbol, "/", ""))
}

func (c *Client) PlaceOrder(ctx context.Context, req common.OrderRequest) (common.OrderResult, error) {
	if c.cfg.APIKey == "" || c.cfg.APISecret == "" {
		return common.OrderResult{}, errors.New("binance: API key/secret required")
	}

	kind := req.Kind
	if kind == "" {
		kind = common.KindMarket
	}
	params := url.Values{}
	params.Set("symbol", marketSymbol(req.Symbol))
	params.Set("side", string(req.Side))
	params.Set("type", string(kind))
	params.Set("quantity", formatFloat(req.Quantity))
	if kind == common.KindLimit {
		params.Set("price", formatFloat(req.Price))
		params.Set("timeInForce", "GTC")
	}
	if req.ClientID != "" {
		params.Set("newClientOrderId", req.ClientID)
	}

	body, err := c.doSigned(ctx, http.MethodPost, "/api/v3/order", params)
	if err != nil {
		return common.OrderResult{}, err
	}

	var resp struct {
		OrderID     int64  `json:"orderId"`
		Status      string `json:"status"`
		ExecutedQty string `json:"executedQty"`
		Fills       []struct {
			Price string `json:"price"`
			Qty   string `json:"qty"`
		} `json:"fills"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return common.OrderResult{}, fmt.Errorf("binance: decode order response: %w", err)
	}

	res := common.OrderResult{
		OrderID: strconv.FormatInt(resp.OrderID, 10),
		Status:  mapStatus(resp.Status),
	}
	res.FilledQty, _ = strconv.ParseFloat(resp.ExecutedQty, 64)
	if notional, qty := fillTotals(resp.Fills); qty > 0 {
		res.AvgPrice = notional / qty
	}
	return res, nil
}

func fillTotals(fills []struct {
	Price string `json:"price"`
	Qty   string `json:"qty"`
}) (notional, qty float64) {
	for _, f := range fills {
		p, _ := strconv.ParseFloat(f.Price, 64)
		q, _ := strconv.ParseFloat(f.Qty, 64)
		notional += p * q
		qty += q
	}
	return notional, qty
}

func (c *Client) CancelOrder(ctx context.Context, symbol, orderID string) error {
	if c.cfg.APIKey == "" || c.cfg.APISecret == "" {
		return errors.New("binance: API key/secret required")
	}
	params := url.Values{}
	params.Set("symbol", marketSymbol(symbol))
	params.Set("orderId", orderID)
	_, err := c.doSigned(ctx, http.MethodDelete, "/api/v3/order", params)
	return err
}

// Volume24hUSD returns the trailing 24h quote volume from the public ticker.
func (c *Client) Volume24hUSD(ctx context.Context, symbol string) (float64, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, err
	}
	u := fmt.Sprintf("%s/api/v3/ticker/24hr?symbol=%s", c.baseURL, marketSymbol(symbol))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, err
	}
	res, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("binance: 24h ticker: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("binance: 24h ticker status %d", res.StatusCode)
	}

	var resp struct {
		QuoteVolume string `json:"quoteVolume"`
	}
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		return 0, err
	}
	return strconv.ParseFloat(resp.QuoteVolume, 64)
}

// Equity returns the free balance of the quote asset.
func (c *Client) Equity(ctx context.Context) (float64, error) {
	body, err := c.doSigned(ctx, http.MethodGet, "/api/v3/account", url.Values{})
	if err != nil {
		return 0, err
	}
	var resp struct {
		Balances []struct {
			Asset string `json:"asset"`
			Free  string `json:"free"`
		} `json:"balances"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("binance: decode account: %w", err)
	}
	for _, b := range resp.Balances {
		if b.Asset == c.cfg.QuoteAsset {
			return strconv.ParseFloat(b.Free, 64)
		}
	}
	return 0, nil
}

func (c *Client) doSigned(ctx context.Context, method, path string, params url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
	params.Set("recvWindow", strconv.FormatInt(c.cfg.RecvWindow, 10))

	query := params.Encode()
	mac := hmac.New(sha256.New, []byte(c.cfg.APISecret))
	mac.Write([]byte(query))
	query += "&signature=" + hex.EncodeToString(mac.Sum(nil))

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path+"?"+query, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-MBX-APIKEY", c.cfg.APIKey)

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("binance: %s %s: %w", method, path, err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("binance: %s %s status %d: %s", method, path, res.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}

func mapStatus(s string) common.OrderStatus {
	switch s {
	case "FILLED":
		return common.StatusFilled
	case "CANCELED", "EXPIRED":
		return common.StatusCanceled
	case "REJECTED":
		return common.StatusRejected
	default:
		return common.StatusNew
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
