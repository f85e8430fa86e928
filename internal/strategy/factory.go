package strategy

import (
	"errors"
	"fmt"

	"cryptobot/pkg/config"
)

// ErrDisabled marks strategies the configuration turned off.
var ErrDisabled = errors.New("strategy disabled")

// FromConfig builds a strategy from its config entry. The strategy id doubles
// as the variant type unless a "type" parameter overrides it. A validation
// failure disables only that strategy; callers keep starting the others.
func FromConfig(id string, sc config.Strategy) (Strategy, error) {
	if !sc.Enabled {
		return nil, ErrDisabled
	}

	variant := sc.Parameters.String("type", id)
	switch variant {
	case "ma_cross":
		p, err := sc.MACross()
		if err != nil {
			return nil, fmt.Errorf("strategy %s: %w", id, err)
		}
		return NewMACross(id, sc.Symbols, p)
	case "rsi":
		p, err := sc.RSI()
		if err != nil {
			return nil, fmt.Errorf("strategy %s: %w", id, err)
		}
		return NewRSI(id, sc.Symbols, p)
	default:
		return nil, fmt.Errorf("strategy %s: unknown type %q", id, variant)
	}
}
