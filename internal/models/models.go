package models

import (
	"time"
)

// Candle represents a finalized fixed-interval OHLCV candle
type Candle struct {
	Market    string    `json:"market"`
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// Validate validates a Candle
func (c *Candle) Validate() error {
	if c.Market == "" {
		return ErrInvalidMarket
	}
	if c.Timestamp.IsZero() {
		return ErrInvalidTimestamp
	}
	if c.High < c.Low {
		return ErrInvalidCandle
	}
	if c.Volume < 0 {
		return ErrInvalidVolume
	}
	return nil
}

// OrderBook holds the top of book plus aggregate depth for a market
type OrderBook struct {
	Market    string    `json:"market"`
	BestBid   float64   `json:"best_bid"`
	BestAsk   float64   `json:"best_ask"`
	BidDepth  float64   `json:"bid_depth"` // total bid size across levels
	AskDepth  float64   `json:"ask_depth"` // total ask size across levels
	Timestamp time.Time `json:"timestamp"`
}

// SpreadBP returns the bid-ask spread in basis points of the mid price.
// Returns -1 when the book is empty or one-sided.
func (b *OrderBook) SpreadBP() float64 {
	if b.BestBid <= 0 || b.BestAsk <= 0 {
		return -1
	}
	mid := (b.BestBid + b.BestAsk) / 2
	if mid <= 0 {
		return -1
	}
	return (b.BestAsk - b.BestBid) / mid * 10000
}

// TotalDepth returns the combined bid and ask size across levels
func (b *OrderBook) TotalDepth() float64 {
	return b.BidDepth + b.AskDepth
}

// Validate validates an OrderBook
func (b *OrderBook) Validate() error {
	if b.Market == "" {
		return ErrInvalidMarket
	}
	if b.BestBid <= 0 || b.BestAsk <= 0 {
		return ErrInvalidPrice
	}
	if b.BestBid >= b.BestAsk {
		return ErrCrossedBook
	}
	return nil
}

// MarketSnapshot is everything the pipeline knows about one market for one
// scan cycle. It is captured once per cycle and never mutated afterwards; a
// new cycle replaces it wholesale.
type MarketSnapshot struct {
	Market    string    `json:"market"`
	Price     float64   `json:"price"` // latest close
	Candles   []Candle  `json:"candles"`
	Book      OrderBook `json:"book"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Validate validates a MarketSnapshot
func (s *MarketSnapshot) Validate() error {
	if s.Market == "" {
		return ErrInvalidMarket
	}
	if s.Price <= 0 {
		return ErrInvalidPrice
	}
	if s.FetchedAt.IsZero() {
		return ErrInvalidTimestamp
	}
	return nil
}

// LastCandle returns the most recent candle and whether one exists
func (s *MarketSnapshot) LastCandle() (Candle, bool) {
	if len(s.Candles) == 0 {
		return Candle{}, false
	}
	return s.Candles[len(s.Candles)-1], true
}
