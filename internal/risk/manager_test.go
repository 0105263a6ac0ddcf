package risk

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohamedkhairy/crypto-trader/internal/models"
	"github.com/mohamedkhairy/crypto-trader/internal/signal"
)

func testIntent(market string) *signal.Intent {
	return &signal.Intent{
		Market:    market,
		Strategy:  signal.StrategyBreakout,
		Side:      models.SideBuy,
		Entry:     100,
		Stop:      95,
		Target:    110,
		CreatedAt: time.Now(),
	}
}

func newTestManager(t *testing.T, config Config) *Manager {
	t.Helper()
	m := NewManager(config, NewMemoryStore())
	require.NoError(t, m.StartDay(context.Background(), "2026-03-02", 1_000_000))
	return m
}

func closeFor(market string, pnlPerUnit float64, qty float64) *models.PositionClose {
	return &models.PositionClose{
		Market:     market,
		Side:       models.SideBuy,
		Qty:        qty,
		EntryPrice: 100,
		ExitPrice:  100 + pnlPerUnit,
		Reason:     "stop_loss",
		Strategy:   "orb_breakout",
		ClosedAt:   time.Now(),
	}
}

func TestManager_Approve_Sizing(t *testing.T) {
	m := newTestManager(t, DefaultConfig())

	qty, err := m.Approve(testIntent("KRW-ETH"))
	require.NoError(t, err)
	// 0.4% of 1,000,000 = 4,000 risk budget over a stop distance of 5.
	assert.InDelta(t, 800.0, qty, 1e-9)
	assert.Equal(t, 1, m.OpenPositions())
}

func TestManager_Approve_MaxPositionValueCap(t *testing.T) {
	config := DefaultConfig()
	config.MaxPositionValue = 50_000
	m := newTestManager(t, config)

	qty, err := m.Approve(testIntent("KRW-ETH"))
	require.NoError(t, err)
	// Uncapped sizing would be 800 units (value 80,000).
	assert.InDelta(t, 500.0, qty, 1e-9)
}

func TestManager_Approve_BelowMinOrderRejected(t *testing.T) {
	config := DefaultConfig()
	m := NewManager(config, NewMemoryStore())
	// Tiny account: risk budget 4 over stop distance 5 = 0.8 units.
	require.NoError(t, m.StartDay(context.Background(), "2026-03-02", 1000))

	_, err := m.Approve(testIntent("KRW-ETH"))
	reason, ok := IsRejection(err)
	require.True(t, ok)
	assert.Equal(t, ReasonBelowMinOrder, reason)
	assert.Equal(t, 0, m.OpenPositions())
}

func TestManager_Approve_DuplicateMarketRejected(t *testing.T) {
	m := newTestManager(t, DefaultConfig())

	_, err := m.Approve(testIntent("KRW-ETH"))
	require.NoError(t, err)

	_, err = m.Approve(testIntent("KRW-ETH"))
	reason, ok := IsRejection(err)
	require.True(t, ok)
	assert.Equal(t, ReasonAlreadyOpen, reason)
}

func TestManager_Approve_MaxOpenPositions(t *testing.T) {
	config := DefaultConfig()
	config.MaxOpenPositions = 1
	m := newTestManager(t, config)

	_, err := m.Approve(testIntent("KRW-ETH"))
	require.NoError(t, err)

	_, err = m.Approve(testIntent("KRW-XRP"))
	reason, ok := IsRejection(err)
	require.True(t, ok)
	assert.Equal(t, ReasonMaxPositions, reason)
}

func TestManager_DailyDrawdownHalts(t *testing.T) {
	m := newTestManager(t, DefaultConfig())
	ctx := context.Background()

	// One loss of 1% of start equity trips the halt.
	_, err := m.Approve(testIntent("KRW-ETH"))
	require.NoError(t, err)
	require.NoError(t, m.OnPositionClosed(ctx, closeFor("KRW-ETH", -10, 1000)))

	assert.True(t, m.Halted())
	_, err = m.Approve(testIntent("KRW-XRP"))
	reason, ok := IsRejection(err)
	require.True(t, ok)
	assert.Equal(t, ReasonHalted, reason)
}

func TestManager_ConsecutiveLossesBanMarket(t *testing.T) {
	m := newTestManager(t, DefaultConfig())
	ctx := context.Background()

	// Two small losses on the same market ban it without halting the day.
	for i := 0; i < 2; i++ {
		_, err := m.Approve(testIntent("KRW-ETH"))
		require.NoError(t, err)
		require.NoError(t, m.OnPositionClosed(ctx, closeFor("KRW-ETH", -1, 100)))
	}

	assert.False(t, m.Halted())
	_, err := m.Approve(testIntent("KRW-ETH"))
	reason, ok := IsRejection(err)
	require.True(t, ok)
	assert.Equal(t, ReasonMarketBanned, reason)

	// Other markets remain tradable.
	_, err = m.Approve(testIntent("KRW-XRP"))
	assert.NoError(t, err)
}

func TestManager_WinResetsLossStreak(t *testing.T) {
	m := newTestManager(t, DefaultConfig())
	ctx := context.Background()

	_, err := m.Approve(testIntent("KRW-ETH"))
	require.NoError(t, err)
	require.NoError(t, m.OnPositionClosed(ctx, closeFor("KRW-ETH", -1, 100)))

	_, err = m.Approve(testIntent("KRW-ETH"))
	require.NoError(t, err)
	require.NoError(t, m.OnPositionClosed(ctx, closeFor("KRW-ETH", 5, 100)))

	// The streak restarted; one more loss must not ban the market.
	_, err = m.Approve(testIntent("KRW-ETH"))
	require.NoError(t, err)
	require.NoError(t, m.OnPositionClosed(ctx, closeFor("KRW-ETH", -1, 100)))

	_, err = m.Approve(testIntent("KRW-ETH"))
	assert.NoError(t, err)
}

func TestManager_StatePersistsAcrossRestart(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	first := NewManager(DefaultConfig(), store)
	require.NoError(t, first.StartDay(ctx, "2026-03-02", 1_000_000))
	_, err := first.Approve(testIntent("KRW-ETH"))
	require.NoError(t, err)
	require.NoError(t, first.OnPositionClosed(ctx, closeFor("KRW-ETH", -10, 1000)))
	require.True(t, first.Halted())

	// A fresh manager over the same store resumes the halted day.
	second := NewManager(DefaultConfig(), store)
	require.NoError(t, second.StartDay(ctx, "2026-03-02", 1_000_000))
	assert.True(t, second.Halted())
	assert.InDelta(t, -10000.0, second.State().RealizedPnL, 1e-9)
}

func TestManager_NewDateResetsState(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	m := NewManager(DefaultConfig(), store)
	require.NoError(t, m.StartDay(ctx, "2026-03-02", 1_000_000))
	_, err := m.Approve(testIntent("KRW-ETH"))
	require.NoError(t, err)
	require.NoError(t, m.OnPositionClosed(ctx, closeFor("KRW-ETH", -10, 1000)))
	require.True(t, m.Halted())

	require.NoError(t, m.StartDay(ctx, "2026-03-03", 990_000))
	assert.False(t, m.Halted())
	_, err = m.Approve(testIntent("KRW-ETH"))
	assert.NoError(t, err)
}

func TestManager_Release(t *testing.T) {
	m := newTestManager(t, DefaultConfig())

	_, err := m.Approve(testIntent("KRW-ETH"))
	require.NoError(t, err)
	m.Release("KRW-ETH")
	assert.Equal(t, 0, m.OpenPositions())

	_, err = m.Approve(testIntent("KRW-ETH"))
	assert.NoError(t, err)
}

func TestDayState_Equity(t *testing.T) {
	state := NewDayState("2026-03-02", 1_000_000)
	state.RealizedPnL = -2500
	assert.Equal(t, 997_500.0, state.Equity())
}
