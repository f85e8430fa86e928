package risk

// Exit triggers reported by the continuous position check.
const (
	ExitStopLoss     = "stop_loss"
	ExitTakeProfit   = "take_profit"
	ExitTrailingStop = "trailing_stop"
	ExitSignal       = "signal"
)

// StopDecision reports a protective exit trigger.
type StopDecision struct {
	Reason string
	Price  float64
}

// CheckStops ratchets the trailing stop and reports whether the position must
// be closed at the given price. Runs on every price update, independent of
// signal evaluation, since price can breach a stop mid-candle. The stop price
// only ever rises for a long: the high-water mark ratchet never moves it
// against the position.
func CheckStops(pos *Position, price float64) *StopDecision {
	if pos == nil || price <= 0 {
		return nil
	}

	if pos.Trailing && price > pos.HighWaterMark {
		pos.HighWaterMark = price
		if trailed := pos.HighWaterMark * (1 - pos.TrailingDistance/100); trailed > pos.StopLoss {
			pos.StopLoss = trailed
		}
	}

	if price <= pos.StopLoss {
		reason := ExitStopLoss
		if pos.Trailing && pos.HighWaterMark > pos.EntryPrice {
			reason = ExitTrailingStop
		}
		return &StopDecision{Reason: reason, Price: price}
	}

	if pos.TakeProfit > 0 && price >= pos.TakeProfit {
		return &StopDecision{Reason: ExitTakeProfit, Price: price}
	}

	return nil
}
