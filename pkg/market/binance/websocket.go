package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
)

// tradeEvent is the payload of the <symbol>@trade stream.
type tradeEvent struct {
	Price string `json:"p"`
}

// SubscribeTrades opens the symbol's trade stream and delivers each traded
// price. The connection is redialed with backoff until ctx is canceled; the
// returned channel closes once the subscription winds down.
func (c *Client) SubscribeTrades(ctx context.Context, symbol string) (<-chan float64, func(), error) {
	streamCtx, cancel := context.WithCancel(ctx)
	out := make(chan float64, 64)

	go func() {
		defer close(out)
		backoff := time.Second
		for {
			if err := c.streamTrades(streamCtx, symbol, out); err != nil {
				if streamCtx.Err() != nil {
					return
				}
				log.Printf("binance: %s trade stream: %v (reconnecting in %s)", symbol, err, backoff)
			}
			select {
			case <-time.After(backoff):
			case <-streamCtx.Done():
				return
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
		}
	}()

	return out, cancel, nil
}

func (c *Client) streamTrades(ctx context.Context, symbol string, out chan<- float64) error {
	u := fmt.Sprintf("%s/ws/%s@trade", c.wsURL, streamSymbol(symbol))
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	// Unblock ReadMessage on cancellation.
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read: %w", err)
		}

		var ev tradeEvent
		if err := json.Unmarshal(msg, &ev); err != nil {
			continue
		}
		price, err := strconv.ParseFloat(ev.Price, 64)
		if err != nil || price <= 0 {
			continue
		}

		select {
		case out <- price:
		default:
			// Stop checks only need the latest price; drop on backpressure.
		}
	}
}
