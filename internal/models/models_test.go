package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCandle_Validate(t *testing.T) {
	valid := Candle{
		Market:    "KRW-BTC",
		Timestamp: time.Now(),
		Open:      100, High: 110, Low: 95, Close: 105,
		Volume: 12.5,
	}
	require.NoError(t, valid.Validate())

	noMarket := valid
	noMarket.Market = ""
	assert.ErrorIs(t, noMarket.Validate(), ErrInvalidMarket)

	inverted := valid
	inverted.High, inverted.Low = 95.0, 110.0
	assert.ErrorIs(t, inverted.Validate(), ErrInvalidCandle)

	negVol := valid
	negVol.Volume = -1
	assert.ErrorIs(t, negVol.Validate(), ErrInvalidVolume)
}

func TestOrderBook_SpreadBP(t *testing.T) {
	book := OrderBook{Market: "KRW-BTC", BestBid: 9999, BestAsk: 10001, Timestamp: time.Now()}
	// 2 over a mid of 10000 is 2bp
	assert.InDelta(t, 2.0, book.SpreadBP(), 1e-9)

	empty := OrderBook{Market: "KRW-BTC"}
	assert.Equal(t, -1.0, empty.SpreadBP())
}

func TestOrderBook_Validate(t *testing.T) {
	crossed := OrderBook{Market: "KRW-BTC", BestBid: 10001, BestAsk: 10000}
	assert.ErrorIs(t, crossed.Validate(), ErrCrossedBook)

	ok := OrderBook{Market: "KRW-BTC", BestBid: 10000, BestAsk: 10001}
	assert.NoError(t, ok.Validate())
}

func TestOrderState_Terminal(t *testing.T) {
	terminal := []OrderState{OrderFilled, OrderCancelled, OrderRejected}
	for _, s := range terminal {
		assert.True(t, s.Terminal(), "state %s should be terminal", s)
	}
	open := []OrderState{OrderPending, OrderSubmitted, OrderPartiallyFilled}
	for _, s := range open {
		assert.False(t, s.Terminal(), "state %s should not be terminal", s)
	}
}

func TestPositionClose_PnL(t *testing.T) {
	longWin := PositionClose{Side: SideBuy, Qty: 2, EntryPrice: 100, ExitPrice: 110, Fees: 1}
	assert.InDelta(t, 19.0, longWin.PnL(), 1e-9)

	longLoss := PositionClose{Side: SideBuy, Qty: 2, EntryPrice: 100, ExitPrice: 95, Fees: 1}
	assert.InDelta(t, -11.0, longLoss.PnL(), 1e-9)

	shortWin := PositionClose{Side: SideSell, Qty: 2, EntryPrice: 100, ExitPrice: 95, Fees: 1}
	assert.InDelta(t, 9.0, shortWin.PnL(), 1e-9)
}

func TestSide_Opposite(t *testing.T) {
	assert.Equal(t, SideSell, SideBuy.Opposite())
	assert.Equal(t, SideBuy, SideSell.Opposite())
}
