package trader

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mohamedkhairy/crypto-trader/internal/exchange"
	"github.com/mohamedkhairy/crypto-trader/internal/exec"
	"github.com/mohamedkhairy/crypto-trader/internal/models"
	"github.com/mohamedkhairy/crypto-trader/internal/notify"
	"github.com/mohamedkhairy/crypto-trader/internal/risk"
	"github.com/mohamedkhairy/crypto-trader/internal/scanner"
	"github.com/mohamedkhairy/crypto-trader/internal/signal"
	"github.com/mohamedkhairy/crypto-trader/internal/storage"
	"github.com/mohamedkhairy/crypto-trader/pkg/logger"
)

// Mode selects how orders are executed.
const (
	ModePaper = "paper"
	ModeLive  = "live"
)

// Config holds configuration for the trading loop.
type Config struct {
	Mode           string
	ScanInterval   time.Duration
	CandleUnit     int
	StartingEquity float64 // paper-mode equity for risk sizing
}

// DefaultConfig returns default configuration.
func DefaultConfig() Config {
	return Config{
		Mode:           ModePaper,
		ScanInterval:   60 * time.Second,
		CandleUnit:     5,
		StartingEquity: 1_000_000,
	}
}

// Stats tracks loop activity.
type Stats struct {
	Cycles         int64
	IntentsSeen    int64
	TradesOpened   int64
	TradesRejected int64
	LastCycle      time.Time
	LastError      string
}

// Trader runs the scan/signal/risk/execute cycle inside session windows and
// idles outside them. Cycles are sequential: a cycle finishes (including
// order submission) before the next one starts.
type Trader struct {
	config   Config
	schedule *Schedule
	scanner  *scanner.Scanner
	signals  *signal.Engine
	risk     *risk.Manager
	executor *exec.Executor
	gateway  exchange.OrderGateway
	notifier notify.Notifier
	store    storage.TradeStore
	stream   *exchange.PriceStream // nil in paper mode

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu           sync.Mutex
	running      bool
	stats        Stats
	inSession    bool
	sessionStart time.Time
	sessionEnd   time.Time
	currentDate  string
	lastPrices   map[string]float64
}

// New creates a trader from its collaborators. stream may be nil; when set,
// websocket price updates drive exit monitoring between scan cycles.
func New(
	config Config,
	schedule *Schedule,
	scn *scanner.Scanner,
	signals *signal.Engine,
	riskMgr *risk.Manager,
	executor *exec.Executor,
	gateway exchange.OrderGateway,
	notifier notify.Notifier,
	store storage.TradeStore,
	stream *exchange.PriceStream,
) *Trader {
	ctx, cancel := context.WithCancel(context.Background())
	if notifier == nil {
		notifier = notify.Noop{}
	}
	if store == nil {
		store = storage.NewMemoryStore()
	}
	return &Trader{
		config:     config,
		schedule:   schedule,
		scanner:    scn,
		signals:    signals,
		risk:       riskMgr,
		executor:   executor,
		gateway:    gateway,
		notifier:   notifier,
		store:      store,
		stream:     stream,
		ctx:        ctx,
		cancel:     cancel,
		lastPrices: make(map[string]float64),
	}
}

// Start launches the trading loop.
func (t *Trader) Start() error {
	t.mu.Lock()
	if t.running {
		t.mu.Unlock()
		return fmt.Errorf("trader is already running")
	}
	t.running = true
	t.mu.Unlock()

	logger.Info("Starting trader",
		logger.String("mode", t.config.Mode),
		logger.Duration("scan_interval", t.config.ScanInterval),
	)

	if t.stream != nil {
		t.stream.Start()
		t.wg.Add(1)
		go t.streamLoop()
	}

	t.wg.Add(1)
	go t.run()
	return nil
}

// Stop shuts the loop down. In-flight fetches are cancelled; open orders are
// left as-is.
func (t *Trader) Stop() {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return
	}
	t.running = false
	t.mu.Unlock()

	logger.Info("Stopping trader")
	t.cancel()
	if t.stream != nil {
		t.stream.Close()
	}
	t.wg.Wait()
	logger.Info("Trader stopped")
}

func (t *Trader) run() {
	defer t.wg.Done()

	// First cycle immediately, then on the interval.
	t.cycle(time.Now())

	ticker := time.NewTicker(t.config.ScanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-t.ctx.Done():
			return
		case now := <-ticker.C:
			t.cycle(now)
		}
	}
}

// streamLoop feeds websocket price updates into exit monitoring.
func (t *Trader) streamLoop() {
	defer t.wg.Done()

	for {
		select {
		case <-t.ctx.Done():
			return
		case update, ok := <-t.stream.Updates():
			if !ok {
				return
			}
			t.executor.OnPrice(t.ctx, update.Market, update.Price)
		}
	}
}

// cycle runs one full pass: session gate, scan, signal evaluation, risk
// approval, order submission, exit monitoring.
func (t *Trader) cycle(now time.Time) {
	t.mu.Lock()
	t.stats.Cycles++
	t.stats.LastCycle = now
	t.mu.Unlock()

	date := t.schedule.TradingDate(now)
	if err := t.ensureDay(date); err != nil {
		t.recordError(err)
		logger.Error("Failed to initialize trading day", logger.ErrorField(err), logger.String("date", date))
		return
	}

	start, end, active := t.schedule.Active(now)
	if !active {
		t.endSessionIfNeeded()
		return
	}
	t.beginSessionIfNeeded(start, end)

	candidates, snapshots, err := t.scanner.Scan(t.ctx, start)
	if err != nil {
		t.recordError(err)
		logger.Error("Scan cycle failed", logger.ErrorField(err))
		return
	}

	t.rememberPrices(snapshots)
	t.pushPrices(snapshots)

	if t.risk.Halted() {
		t.flattenIfHalted()
		return
	}

	window := signal.Window{Start: start, End: end, CandleUnit: t.config.CandleUnit}
	intents := t.signals.Evaluate(candidates, now, window)
	for i := range intents {
		t.handleIntent(&intents[i])
	}

	if t.stream != nil {
		if err := t.stream.Subscribe(t.executor.OpenMarkets()); err != nil {
			logger.Warn("Failed to update stream subscription", logger.ErrorField(err))
		}
	}
}

// ensureDay rolls risk accounting when the trading date changes.
func (t *Trader) ensureDay(date string) error {
	t.mu.Lock()
	same := t.currentDate == date
	t.mu.Unlock()
	if same {
		return nil
	}

	equity, err := t.equity()
	if err != nil {
		return fmt.Errorf("determine equity: %w", err)
	}
	if err := t.risk.StartDay(t.ctx, date, equity); err != nil {
		return err
	}

	t.mu.Lock()
	t.currentDate = date
	t.mu.Unlock()
	return nil
}

// equity reads the available quote balance used for risk sizing. Paper mode
// falls back to the configured starting equity when the gateway reports
// nothing.
func (t *Trader) equity() (float64, error) {
	balances, err := t.gateway.Balances(t.ctx)
	if err != nil {
		if t.config.Mode == ModePaper {
			return t.config.StartingEquity, nil
		}
		return 0, err
	}
	for _, b := range balances {
		if b.Currency == "KRW" {
			return b.Available + b.Locked, nil
		}
	}
	if t.config.Mode == ModePaper {
		return t.config.StartingEquity, nil
	}
	return 0, fmt.Errorf("no KRW balance reported")
}

func (t *Trader) beginSessionIfNeeded(start, end time.Time) {
	t.mu.Lock()
	if t.inSession && t.sessionStart.Equal(start) {
		t.mu.Unlock()
		return
	}
	t.inSession = true
	t.sessionStart = start
	t.sessionEnd = end
	t.mu.Unlock()

	logger.Info("Session opened",
		logger.Time("start", start),
		logger.Time("end", end),
	)
	t.notifier.Publish(t.ctx, notify.Event{
		Type: notify.EventSessionStart,
		Detail: map[string]interface{}{
			"start": start.Format(time.RFC3339),
			"end":   end.Format(time.RFC3339),
		},
	})
}

// endSessionIfNeeded flattens open positions and resets per-session signal
// state when a window closes.
func (t *Trader) endSessionIfNeeded() {
	t.mu.Lock()
	if !t.inSession {
		t.mu.Unlock()
		return
	}
	t.inSession = false
	prices := make(map[string]float64, len(t.lastPrices))
	for market, price := range t.lastPrices {
		prices[market] = price
	}
	t.mu.Unlock()

	logger.Info("Session closed, flattening positions",
		logger.Int("open_positions", len(t.executor.Positions())),
	)
	t.executor.CloseAll(t.ctx, prices, exec.ReasonSessionEnd)
	t.signals.ResetSession()

	t.notifier.Publish(t.ctx, notify.Event{Type: notify.EventSessionStop})
}

// flattenIfHalted exits remaining positions after a daily-drawdown halt.
func (t *Trader) flattenIfHalted() {
	if len(t.executor.Positions()) == 0 {
		return
	}
	t.mu.Lock()
	prices := make(map[string]float64, len(t.lastPrices))
	for market, price := range t.lastPrices {
		prices[market] = price
	}
	t.mu.Unlock()

	logger.Warn("Risk halt active, flattening positions")
	t.executor.CloseAll(t.ctx, prices, exec.ReasonSessionEnd)
}

func (t *Trader) rememberPrices(snapshots map[string]*models.MarketSnapshot) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for market, snap := range snapshots {
		if candle, ok := snap.LastCandle(); ok {
			t.lastPrices[market] = candle.Close
		}
	}
}

// pushPrices drives stop/target checks from scan snapshots. In live mode the
// websocket stream does this with lower latency; the scan pass is a backstop.
func (t *Trader) pushPrices(snapshots map[string]*models.MarketSnapshot) {
	for _, market := range t.executor.OpenMarkets() {
		snap, ok := snapshots[market]
		if !ok {
			continue
		}
		if candle, ok := snap.LastCandle(); ok {
			t.executor.OnPrice(t.ctx, market, candle.Close)
		}
	}
}

// handleIntent runs one intent through the risk gate and, when approved,
// submits the entry order.
func (t *Trader) handleIntent(intent *signal.Intent) {
	t.mu.Lock()
	t.stats.IntentsSeen++
	t.mu.Unlock()

	qty, err := t.risk.Approve(intent)
	if err != nil {
		reason, rejected := risk.IsRejection(err)
		if !rejected {
			reason = "error"
		}
		t.mu.Lock()
		t.stats.TradesRejected++
		t.mu.Unlock()
		t.saveIntent(intent, false, reason)
		logger.Info("Intent rejected",
			logger.String("market", intent.Market),
			logger.String("strategy", string(intent.Strategy)),
			logger.String("reason", reason),
		)
		return
	}

	position, err := t.executor.Open(t.ctx, intent, qty)
	if err != nil {
		t.risk.Release(intent.Market)
		t.recordError(err)
		t.saveIntent(intent, false, "submit_failed")
		logger.Error("Failed to open position",
			logger.ErrorField(err),
			logger.String("market", intent.Market),
		)
		return
	}

	t.mu.Lock()
	t.stats.TradesOpened++
	t.mu.Unlock()
	t.saveIntent(intent, true, "")

	t.notifier.Publish(t.ctx, notify.Event{
		Type:   notify.EventTradeOpened,
		Market: position.Market,
		Detail: map[string]interface{}{
			"strategy": position.Strategy,
			"qty":      position.Qty,
			"entry":    position.EntryPrice,
			"stop":     position.Stop,
			"target":   position.Target,
		},
	})
}

// HandleClose is the executor's close callback: it settles risk accounting,
// frees the position slot, and records and announces the trade.
func (t *Trader) HandleClose(ctx context.Context, event *models.PositionClose) {
	t.risk.Release(event.Market)

	wasHalted := t.risk.Halted()
	if err := t.risk.OnPositionClosed(ctx, event); err != nil {
		logger.Error("Failed to settle closed position",
			logger.ErrorField(err),
			logger.String("market", event.Market),
		)
	}

	if err := t.store.SaveTrade(ctx, event); err != nil {
		logger.Warn("Failed to record trade", logger.ErrorField(err), logger.String("market", event.Market))
	}

	t.notifier.Publish(ctx, notify.Event{
		Type:   notify.EventTradeClosed,
		Market: event.Market,
		Detail: map[string]interface{}{
			"strategy": event.Strategy,
			"reason":   event.Reason,
			"pnl":      event.PnL(),
		},
	})

	if !wasHalted && t.risk.Halted() {
		state := t.risk.State()
		t.notifier.Publish(ctx, notify.Event{
			Type: notify.EventRiskHalt,
			Detail: map[string]interface{}{
				"reason":       state.HaltReason,
				"realized_pnl": state.RealizedPnL,
			},
		})
	}
}

func (t *Trader) saveIntent(intent *signal.Intent, approved bool, reason string) {
	err := t.store.SaveIntent(t.ctx, &storage.IntentRecord{
		Intent:   *intent,
		Approved: approved,
		Reason:   reason,
	})
	if err != nil {
		logger.Warn("Failed to record intent", logger.ErrorField(err), logger.String("market", intent.Market))
	}
}

func (t *Trader) recordError(err error) {
	t.mu.Lock()
	t.stats.LastError = err.Error()
	t.mu.Unlock()
}

// GetStats returns a copy of loop statistics.
func (t *Trader) GetStats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stats
}

// Cycle runs one pass immediately. Used by tests and the scan-only command.
func (t *Trader) Cycle(now time.Time) {
	t.cycle(now)
}
