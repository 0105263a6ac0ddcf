package models

import (
	"time"
)

// Side is the direction of an order or position
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Opposite returns the other side
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// OrderType distinguishes entry orders from bracket exits
type OrderType string

const (
	OrderTypeMarket     OrderType = "market"
	OrderTypeLimit      OrderType = "limit"
	OrderTypeStopLoss   OrderType = "stop_loss"
	OrderTypeTakeProfit OrderType = "take_profit"
)

// OrderState is the lifecycle state of an order
type OrderState string

const (
	OrderPending         OrderState = "pending"
	OrderSubmitted       OrderState = "submitted"
	OrderPartiallyFilled OrderState = "partially_filled"
	OrderFilled          OrderState = "filled"
	OrderCancelled       OrderState = "cancelled"
	OrderRejected        OrderState = "rejected"
)

// Terminal reports whether the order can no longer change state
func (s OrderState) Terminal() bool {
	switch s {
	case OrderFilled, OrderCancelled, OrderRejected:
		return true
	}
	return false
}

// Order is a single exchange order tracked by the executor
type Order struct {
	ID          string     `json:"id"`        // exchange-assigned identifier
	ClientID    string     `json:"client_id"` // identifier we generate before submit
	Market      string     `json:"market"`
	Side        Side       `json:"side"`
	Type        OrderType  `json:"type"`
	Qty         float64    `json:"qty"`
	Price       float64    `json:"price"` // limit/trigger price, 0 for market
	State       OrderState `json:"state"`
	FilledQty   float64    `json:"filled_qty"`
	FilledPrice float64    `json:"filled_price"` // volume-weighted fill price
	Fee         float64    `json:"fee"`
	SubmittedAt time.Time  `json:"submitted_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Validate validates an Order before submission
func (o *Order) Validate() error {
	if o.Market == "" {
		return ErrInvalidMarket
	}
	if o.Side != SideBuy && o.Side != SideSell {
		return ErrInvalidSide
	}
	if o.Qty <= 0 {
		return ErrInvalidQuantity
	}
	return nil
}

// Fill is a (possibly partial) execution report for an order
type Fill struct {
	OrderID   string    `json:"order_id"`
	Market    string    `json:"market"`
	Side      Side      `json:"side"`
	Qty       float64   `json:"qty"`
	Price     float64   `json:"price"`
	Fee       float64   `json:"fee"`
	Timestamp time.Time `json:"timestamp"`
}

// Position aggregates fills for one market until it is flattened
type Position struct {
	Market     string    `json:"market"`
	Side       Side      `json:"side"` // direction of the entry
	Qty        float64   `json:"qty"`
	EntryPrice float64   `json:"entry_price"`
	Stop       float64   `json:"stop"`
	Target     float64   `json:"target"`
	Strategy   string    `json:"strategy"`
	OpenedAt   time.Time `json:"opened_at"`
}

// PositionClose is the terminal event for a position; it is the only input
// that mutates risk accounting.
type PositionClose struct {
	Market     string    `json:"market"`
	Side       Side      `json:"side"`
	Qty        float64   `json:"qty"`
	EntryPrice float64   `json:"entry_price"`
	ExitPrice  float64   `json:"exit_price"`
	Fees       float64   `json:"fees"`
	Reason     string    `json:"reason"` // "stop_loss", "take_profit", "session_end"
	Strategy   string    `json:"strategy"`
	ClosedAt   time.Time `json:"closed_at"`
}

// PnL returns the realized profit or loss of the close, net of fees
func (pc *PositionClose) PnL() float64 {
	gross := (pc.ExitPrice - pc.EntryPrice) * pc.Qty
	if pc.Side == SideSell {
		gross = -gross
	}
	return gross - pc.Fees
}
