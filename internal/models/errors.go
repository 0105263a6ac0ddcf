package models

import "errors"

var (
	ErrInvalidMarket    = errors.New("invalid market")
	ErrInvalidPrice     = errors.New("invalid price")
	ErrInvalidTimestamp = errors.New("invalid timestamp")
	ErrInvalidCandle    = errors.New("invalid candle (high < low)")
	ErrInvalidVolume    = errors.New("invalid volume")
	ErrInvalidQuantity  = errors.New("invalid quantity")
	ErrInvalidSide      = errors.New("invalid order side")
	ErrCrossedBook      = errors.New("invalid order book (bid >= ask)")
)
