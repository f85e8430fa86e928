package events

// Event enumerates the engine's pub/sub topics.
type Event string

const (
	EventSignal           Event = "strategy.signal"
	EventIntentAuthorized Event = "intent.authorized"
	EventIntentRejected   Event = "intent.rejected"
	EventOrderSubmitted   Event = "order.submitted"
	EventOrderFilled      Event = "order.filled"
	EventOrderFailed      Event = "order.failed"
	EventPositionOpened   Event = "position.opened"
	EventPositionClosed   Event = "position.closed"
	EventPriceTick        Event = "price.tick"
)
