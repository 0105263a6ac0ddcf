package risk

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mohamedkhairy/crypto-trader/internal/models"
	"github.com/mohamedkhairy/crypto-trader/internal/signal"
	"github.com/mohamedkhairy/crypto-trader/pkg/logger"
)

// Rejection reasons reported on rejected intents.
const (
	ReasonHalted        = "halted"
	ReasonMarketBanned  = "market_banned"
	ReasonMaxPositions  = "max_positions"
	ReasonAlreadyOpen   = "already_open"
	ReasonBelowMinOrder = "below_min_order"
	ReasonInvalidIntent = "invalid_intent"
)

// RejectionError carries the reason an intent was turned down.
type RejectionError struct {
	Reason string
	Detail string
}

func (e *RejectionError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("intent rejected: %s", e.Reason)
	}
	return fmt.Sprintf("intent rejected: %s (%s)", e.Reason, e.Detail)
}

// IsRejection reports whether err is a risk rejection and returns its reason.
func IsRejection(err error) (string, bool) {
	var rej *RejectionError
	if errors.As(err, &rej) {
		return rej.Reason, true
	}
	return "", false
}

// Config holds risk manager parameters
type Config struct {
	PerTradeRiskPct      float64 // fraction of equity risked per trade
	DailyDrawdownPct     float64 // realized loss fraction that halts the day
	MaxConsecutiveLosses int     // per-market losses before the market is banned
	MinOrderValue        float64 // exchange minimum order value
	MaxPositionValue     float64 // cap on position notional
	MaxOpenPositions     int
}

// DefaultConfig returns the default risk configuration
func DefaultConfig() Config {
	return Config{
		PerTradeRiskPct:      0.004,
		DailyDrawdownPct:     0.01,
		MaxConsecutiveLosses: 2,
		MinOrderValue:        5000,
		MaxPositionValue:     1_000_000,
		MaxOpenPositions:     3,
	}
}

// Manager is the risk gate between trade intents and order execution. All
// state mutation runs behind one mutex; each position close is applied
// atomically before the next approval can read the state.
type Manager struct {
	config Config
	store  Store

	mu    sync.Mutex // held across store writes so closes apply atomically
	state *DayState
	open  map[string]bool
}

// NewManager creates a new risk manager
func NewManager(config Config, store Store) *Manager {
	if store == nil {
		store = NewMemoryStore()
	}
	return &Manager{
		config: config,
		store:  store,
		open:   make(map[string]bool),
	}
}

// StartDay loads or initializes the state for a trading date. Called on
// startup and on session roll; a new date resets drawdown and bans.
func (m *Manager) StartDay(ctx context.Context, date string, equity float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, err := m.store.Load(ctx, date)
	switch {
	case err == nil:
		m.state = state
		logger.Info("Resumed risk state",
			logger.String("date", date),
			logger.Float64("realized_pnl", state.RealizedPnL),
			logger.Bool("halted", state.Halted),
		)
	case errors.Is(err, ErrStateNotFound):
		m.state = NewDayState(date, equity)
		if err := m.store.Save(ctx, m.state); err != nil {
			return err
		}
		logger.Info("Started new risk day",
			logger.String("date", date),
			logger.Float64("equity", equity),
		)
	default:
		return err
	}

	logger.DailyPnL.Set(m.state.RealizedPnL)
	return nil
}

// Approve sizes an intent and admits or rejects it. On success it returns
// the order quantity and reserves the market slot; the caller must release
// it through OnPositionClosed or Release.
func (m *Manager) Approve(intent *signal.Intent) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == nil {
		return 0, fmt.Errorf("risk manager has no active day")
	}
	if err := intent.Validate(); err != nil {
		return 0, m.reject(ReasonInvalidIntent, err.Error())
	}
	if m.state.Halted {
		return 0, m.reject(ReasonHalted, m.state.HaltReason)
	}
	if m.state.BannedMarkets[intent.Market] {
		return 0, m.reject(ReasonMarketBanned, intent.Market)
	}
	if m.open[intent.Market] {
		return 0, m.reject(ReasonAlreadyOpen, intent.Market)
	}
	if m.config.MaxOpenPositions > 0 && len(m.open) >= m.config.MaxOpenPositions {
		return 0, m.reject(ReasonMaxPositions, "")
	}

	qty, err := m.size(intent)
	if err != nil {
		return 0, err
	}

	m.open[intent.Market] = true
	return qty, nil
}

// size computes the order quantity from the per-trade risk budget and the
// stop distance, capped by the position value limit. A result below the
// exchange minimum is rejected rather than bumped up; bumping would risk
// more than the budget allows.
func (m *Manager) size(intent *signal.Intent) (float64, error) {
	stopDistance := intent.Entry - intent.Stop
	if stopDistance <= 0 {
		return 0, m.reject(ReasonInvalidIntent, "non-positive stop distance")
	}

	riskBudget := m.state.Equity() * m.config.PerTradeRiskPct
	qty := riskBudget / stopDistance

	if m.config.MaxPositionValue > 0 && qty*intent.Entry > m.config.MaxPositionValue {
		qty = m.config.MaxPositionValue / intent.Entry
	}
	if qty*intent.Entry < m.config.MinOrderValue {
		return 0, m.reject(ReasonBelowMinOrder,
			fmt.Sprintf("value %.0f below minimum %.0f", qty*intent.Entry, m.config.MinOrderValue))
	}
	return qty, nil
}

func (m *Manager) reject(reason, detail string) error {
	logger.RiskRejectionsTotal.WithLabelValues(reason).Inc()
	return &RejectionError{Reason: reason, Detail: detail}
}

// Release frees a market slot reserved by Approve without recording a trade,
// for entries that failed before any fill.
func (m *Manager) Release(market string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.open, market)
}

// OnPositionClosed folds one closed position into the day state: realized
// PnL, win/loss streaks, per-market bans and the daily drawdown halt. The
// update and its persistence happen atomically with respect to Approve.
func (m *Manager) OnPositionClosed(ctx context.Context, close *models.PositionClose) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == nil {
		return fmt.Errorf("risk manager has no active day")
	}
	delete(m.open, close.Market)

	pnl := close.PnL()
	m.state.RealizedPnL += pnl
	m.state.Trades++
	if pnl >= 0 {
		m.state.Wins++
		// A win clears the market's losing streak.
		delete(m.state.ConsecutiveLosses, close.Market)
	} else {
		m.state.Losses++
		m.state.ConsecutiveLosses[close.Market]++
		if m.config.MaxConsecutiveLosses > 0 &&
			m.state.ConsecutiveLosses[close.Market] >= m.config.MaxConsecutiveLosses {
			m.state.BannedMarkets[close.Market] = true
			logger.Warn("Market banned after consecutive losses",
				logger.String("market", close.Market),
				logger.Int("losses", m.state.ConsecutiveLosses[close.Market]),
			)
		}
	}

	if !m.state.Halted && m.config.DailyDrawdownPct > 0 &&
		m.state.RealizedPnL <= -m.config.DailyDrawdownPct*m.state.StartEquity {
		m.state.Halted = true
		m.state.HaltReason = fmt.Sprintf("daily drawdown %.2f%% reached",
			m.config.DailyDrawdownPct*100)
		m.state.HaltedAt = time.Now().UTC()
		logger.Warn("Trading halted for the day",
			logger.Float64("realized_pnl", m.state.RealizedPnL),
			logger.Float64("start_equity", m.state.StartEquity),
		)
	}

	m.state.UpdatedAt = time.Now().UTC()
	logger.DailyPnL.Set(m.state.RealizedPnL)

	if err := m.store.Save(ctx, m.state); err != nil {
		// The in-memory state stays authoritative for this process.
		logger.Error("Failed to persist risk state", logger.ErrorField(err))
		return err
	}
	return nil
}

// Halted reports whether the day is halted.
func (m *Manager) Halted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state != nil && m.state.Halted
}

// State returns a copy of the current day state.
func (m *Manager) State() *DayState {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == nil {
		return nil
	}
	return m.state.Clone()
}

// OpenPositions returns the number of reserved market slots.
func (m *Manager) OpenPositions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.open)
}
