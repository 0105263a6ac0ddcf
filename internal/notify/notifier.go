package notify

import (
	"context"
	"time"
)

// Event types published over the notification stream.
const (
	EventTradeOpened  = "trade_opened"
	EventTradeClosed  = "trade_closed"
	EventRiskHalt     = "risk_halt"
	EventSessionStart = "session_start"
	EventSessionStop  = "session_stop"
)

// Event is a single notification payload. Detail carries event-specific
// fields (entry price, PnL, halt reason) and is serialized as JSON.
type Event struct {
	Type   string                 `json:"type"`
	Market string                 `json:"market,omitempty"`
	Detail map[string]interface{} `json:"detail,omitempty"`
	At     time.Time              `json:"at"`
}

// Notifier delivers events best-effort. Implementations must never block the
// trading loop: failures are logged and counted, not returned to the caller's
// hot path.
type Notifier interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// Noop discards all events. Used when no Redis endpoint is configured.
type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }
func (Noop) Close() error                         { return nil }
