package exec

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mohamedkhairy/crypto-trader/internal/exchange"
	"github.com/mohamedkhairy/crypto-trader/internal/models"
	"github.com/mohamedkhairy/crypto-trader/internal/signal"
	"github.com/mohamedkhairy/crypto-trader/pkg/logger"
)

// Close reasons recorded on position-close events.
const (
	ReasonStopLoss   = "stop_loss"
	ReasonTakeProfit = "take_profit"
	ReasonSessionEnd = "session_end"
)

// Config holds executor configuration
type Config struct {
	MaxRetries   int
	RetryBackoff time.Duration

	// Clock stamps open and close events. Nil means time.Now.
	Clock func() time.Time
}

// DefaultConfig returns the default executor configuration
func DefaultConfig() Config {
	return Config{
		MaxRetries:   3,
		RetryBackoff: 500 * time.Millisecond,
	}
}

// CloseFunc receives every terminal position-close event exactly once.
type CloseFunc func(ctx context.Context, close *models.PositionClose)

// Executor turns approved intents into orders and babysits the resulting
// positions. Each open position carries a stop and a target; the first level
// the streamed price touches closes the position and retires the other,
// OCO-style. Terminal closes flow to the registered CloseFunc.
type Executor struct {
	config  Config
	gateway exchange.OrderGateway
	onClose CloseFunc

	mu        sync.Mutex
	positions map[string]*openPosition
}

type openPosition struct {
	position models.Position
	entryFee float64
	closing  bool
}

// NewExecutor creates a new order executor
func NewExecutor(config Config, gateway exchange.OrderGateway, onClose CloseFunc) *Executor {
	if config.Clock == nil {
		config.Clock = time.Now
	}
	return &Executor{
		config:    config,
		gateway:   gateway,
		onClose:   onClose,
		positions: make(map[string]*openPosition),
	}
}

// Open submits the entry order for an approved intent. The returned position
// is tracked until a bracket level fills or the session closes it.
func (e *Executor) Open(ctx context.Context, intent *signal.Intent, qty float64) (*models.Position, error) {
	e.mu.Lock()
	if _, exists := e.positions[intent.Market]; exists {
		e.mu.Unlock()
		return nil, fmt.Errorf("position already open for %s", intent.Market)
	}
	e.mu.Unlock()

	order, err := e.submitWithRetry(ctx, exchange.OrderRequest{
		Market:   intent.Market,
		Side:     intent.Side,
		Type:     models.OrderTypeMarket,
		Qty:      qty,
		Price:    intent.Entry,
		ClientID: uuid.NewString(),
	})
	if err != nil {
		logger.OrdersTotal.WithLabelValues(string(intent.Side), string(models.OrderRejected)).Inc()
		return nil, fmt.Errorf("entry order for %s failed: %w", intent.Market, err)
	}
	logger.OrdersTotal.WithLabelValues(string(order.Side), string(order.State)).Inc()

	position := models.Position{
		Market:     intent.Market,
		Side:       intent.Side,
		Qty:        order.FilledQty,
		EntryPrice: order.FilledPrice,
		Stop:       intent.Stop,
		Target:     intent.Target,
		Strategy:   string(intent.Strategy),
		OpenedAt:   e.config.Clock().UTC(),
	}

	e.mu.Lock()
	e.positions[intent.Market] = &openPosition{position: position, entryFee: order.Fee}
	e.mu.Unlock()

	logger.Info("Position opened",
		logger.String("market", position.Market),
		logger.String("strategy", position.Strategy),
		logger.Float64("qty", position.Qty),
		logger.Float64("entry", position.EntryPrice),
		logger.Float64("stop", position.Stop),
		logger.Float64("target", position.Target),
	)
	return &position, nil
}

// OnPrice feeds one price observation to the bracket monitor. If the price
// crosses the stop or the target of an open position, the position is closed
// at market; hitting one level retires the other.
func (e *Executor) OnPrice(ctx context.Context, market string, price float64) {
	e.mu.Lock()
	op, ok := e.positions[market]
	if !ok || op.closing {
		e.mu.Unlock()
		return
	}

	var reason string
	switch {
	case price <= op.position.Stop:
		reason = ReasonStopLoss
	case price >= op.position.Target:
		reason = ReasonTakeProfit
	default:
		e.mu.Unlock()
		return
	}
	op.closing = true
	e.mu.Unlock()

	e.closePosition(ctx, op, price, reason)
}

// CloseAll exits every open position at the given reference prices, used at
// session end. Markets without a reference price fall back to their entry
// price.
func (e *Executor) CloseAll(ctx context.Context, prices map[string]float64, reason string) {
	e.mu.Lock()
	var toClose []*openPosition
	for _, op := range e.positions {
		if !op.closing {
			op.closing = true
			toClose = append(toClose, op)
		}
	}
	e.mu.Unlock()

	for _, op := range toClose {
		price, ok := prices[op.position.Market]
		if !ok {
			price = op.position.EntryPrice
		}
		e.closePosition(ctx, op, price, reason)
	}
}

func (e *Executor) closePosition(ctx context.Context, op *openPosition, refPrice float64, reason string) {
	pos := op.position
	order, err := e.submitWithRetry(ctx, exchange.OrderRequest{
		Market:   pos.Market,
		Side:     pos.Side.Opposite(),
		Type:     models.OrderTypeMarket,
		Qty:      pos.Qty,
		Price:    refPrice,
		ClientID: uuid.NewString(),
	})
	if err != nil {
		// The position is still live; let the next price tick retry.
		logger.Error("Exit order failed, keeping position open",
			logger.String("market", pos.Market),
			logger.ErrorField(err),
		)
		e.mu.Lock()
		op.closing = false
		e.mu.Unlock()
		return
	}
	logger.OrdersTotal.WithLabelValues(string(order.Side), string(order.State)).Inc()

	e.mu.Lock()
	delete(e.positions, pos.Market)
	e.mu.Unlock()

	event := &models.PositionClose{
		Market:     pos.Market,
		Side:       pos.Side,
		Qty:        order.FilledQty,
		EntryPrice: pos.EntryPrice,
		ExitPrice:  order.FilledPrice,
		Fees:       op.entryFee + order.Fee,
		Reason:     reason,
		Strategy:   pos.Strategy,
		ClosedAt:   e.config.Clock().UTC(),
	}

	logger.PositionsClosedTotal.WithLabelValues(reason).Inc()
	logger.Info("Position closed",
		logger.String("market", event.Market),
		logger.String("reason", reason),
		logger.Float64("entry", event.EntryPrice),
		logger.Float64("exit", event.ExitPrice),
		logger.Float64("pnl", event.PnL()),
	)

	if e.onClose != nil {
		e.onClose(ctx, event)
	}
}

// submitWithRetry retries retryable gateway failures with exponential
// backoff; validation and auth errors fail fast.
func (e *Executor) submitWithRetry(ctx context.Context, req exchange.OrderRequest) (*models.Order, error) {
	var lastErr error
	for attempt := 0; attempt <= e.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := e.config.RetryBackoff * time.Duration(1<<uint(attempt-1))
			logger.Warn("Retrying order submit",
				logger.String("market", req.Market),
				logger.Int("attempt", attempt),
				logger.Duration("backoff", backoff),
			)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		order, err := e.gateway.SubmitOrder(ctx, req)
		if err == nil {
			return order, nil
		}
		lastErr = err
		if !exchange.IsRetryable(err) {
			return nil, err
		}
	}
	return nil, lastErr
}

// Positions returns a copy of the currently open positions.
func (e *Executor) Positions() []models.Position {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]models.Position, 0, len(e.positions))
	for _, op := range e.positions {
		out = append(out, op.position)
	}
	return out
}

// OpenMarkets returns the markets with open positions, for subscribing the
// price stream.
func (e *Executor) OpenMarkets() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	markets := make([]string, 0, len(e.positions))
	for market := range e.positions {
		markets = append(markets, market)
	}
	return markets
}
