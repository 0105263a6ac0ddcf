package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohamedkhairy/crypto-trader/internal/models"
	"github.com/mohamedkhairy/crypto-trader/internal/signal"
)

func TestMemoryStore_TradesByDate(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	first := &models.PositionClose{
		Market:     "KRW-ETH",
		Side:       models.SideBuy,
		Qty:        2,
		EntryPrice: 100,
		ExitPrice:  110,
		Reason:     "take_profit",
		Strategy:   string(signal.StrategyBreakout),
		ClosedAt:   time.Date(2026, 3, 2, 11, 0, 0, 0, time.UTC),
	}
	second := &models.PositionClose{
		Market:     "KRW-XRP",
		Side:       models.SideBuy,
		Qty:        10,
		EntryPrice: 50,
		ExitPrice:  48,
		Reason:     "stop_loss",
		Strategy:   string(signal.StrategySweep),
		ClosedAt:   time.Date(2026, 3, 3, 9, 30, 0, 0, time.UTC),
	}
	require.NoError(t, store.SaveTrade(ctx, first))
	require.NoError(t, store.SaveTrade(ctx, second))

	trades, err := store.Trades(ctx, "2026-03-02")
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, "KRW-ETH", trades[0].Market)

	trades, err = store.Trades(ctx, "2026-03-04")
	require.NoError(t, err)
	assert.Empty(t, trades)
}

func TestMemoryStore_SaveTradeCopies(t *testing.T) {
	store := NewMemoryStore()
	trade := &models.PositionClose{
		Market:     "KRW-ETH",
		Side:       models.SideBuy,
		Qty:        1,
		EntryPrice: 100,
		ExitPrice:  105,
		ClosedAt:   time.Date(2026, 3, 2, 11, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.SaveTrade(context.Background(), trade))

	trade.ExitPrice = 999

	trades, err := store.Trades(context.Background(), "2026-03-02")
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, 105.0, trades[0].ExitPrice)
}

func TestMemoryStore_Intents(t *testing.T) {
	store := NewMemoryStore()

	require.NoError(t, store.SaveIntent(context.Background(), &IntentRecord{
		Intent: signal.Intent{
			Market:   "KRW-SOL",
			Strategy: signal.StrategyPullback,
			Side:     models.SideBuy,
			Entry:    100,
			Stop:     98,
			Target:   104,
		},
		Approved: false,
		Reason:   "halted",
	}))

	records := store.Intents()
	require.Len(t, records, 1)
	assert.Equal(t, "KRW-SOL", records[0].Intent.Market)
	assert.False(t, records[0].Approved)
	assert.Equal(t, "halted", records[0].Reason)
}
