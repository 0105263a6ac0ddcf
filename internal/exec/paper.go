package exec

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mohamedkhairy/crypto-trader/internal/exchange"
	"github.com/mohamedkhairy/crypto-trader/internal/models"
)

// PaperConfig holds configuration for the paper gateway
type PaperConfig struct {
	InitialBalance float64 // starting quote-currency balance
	SlippageBP     float64 // simulated market-order slippage
	TakerFeePct    float64 // taker fee fraction
}

// DefaultPaperConfig returns the default paper trading configuration
func DefaultPaperConfig() PaperConfig {
	return PaperConfig{
		InitialBalance: 1_000_000,
		SlippageBP:     3,
		TakerFeePct:    0.0005,
	}
}

// PaperGateway simulates order execution. Market orders fill immediately at
// the request's reference price adjusted by slippage against the taker, with
// the configured fee. Fills are deterministic so paper and live runs share
// identical downstream accounting.
type PaperGateway struct {
	config PaperConfig

	mu      sync.Mutex
	balance float64
	holding map[string]float64 // base units per market
	orders  map[string]*models.Order
}

// NewPaperGateway creates a new paper gateway
func NewPaperGateway(config PaperConfig) *PaperGateway {
	return &PaperGateway{
		config:  config,
		balance: config.InitialBalance,
		holding: make(map[string]float64),
		orders:  make(map[string]*models.Order),
	}
}

func (g *PaperGateway) fillPrice(side models.Side, refPrice float64) float64 {
	slip := g.config.SlippageBP / 10000
	if side == models.SideBuy {
		return refPrice * (1 + slip)
	}
	return refPrice * (1 - slip)
}

// SubmitOrder fills a market order immediately at the slipped reference
// price. Limit orders are not simulated.
func (g *PaperGateway) SubmitOrder(ctx context.Context, req exchange.OrderRequest) (*models.Order, error) {
	if req.Qty <= 0 || req.Price <= 0 {
		return nil, models.ErrInvalidQuantity
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	price := g.fillPrice(req.Side, req.Price)
	value := price * req.Qty
	fee := value * g.config.TakerFeePct

	if req.Side == models.SideBuy {
		if g.balance < value+fee {
			return nil, fmt.Errorf("insufficient paper balance: have %.0f, need %.0f", g.balance, value+fee)
		}
		g.balance -= value + fee
		g.holding[req.Market] += req.Qty
	} else {
		if g.holding[req.Market] < req.Qty {
			return nil, fmt.Errorf("insufficient paper holding for %s", req.Market)
		}
		g.balance += value - fee
		g.holding[req.Market] -= req.Qty
	}

	now := time.Now().UTC()
	order := &models.Order{
		ID:          uuid.NewString(),
		ClientID:    req.ClientID,
		Market:      req.Market,
		Side:        req.Side,
		Type:        req.Type,
		Qty:         req.Qty,
		Price:       req.Price,
		State:       models.OrderFilled,
		FilledQty:   req.Qty,
		FilledPrice: price,
		Fee:         fee,
		SubmittedAt: now,
		UpdatedAt:   now,
	}
	g.orders[order.ID] = order
	copied := *order
	return &copied, nil
}

// CancelOrder is a no-op for filled paper orders.
func (g *PaperGateway) CancelOrder(ctx context.Context, orderID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.orders[orderID]; !ok {
		return exchange.ErrNotFound
	}
	return nil
}

// OrderStatus returns a previously submitted paper order.
func (g *PaperGateway) OrderStatus(ctx context.Context, orderID string) (*models.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	order, ok := g.orders[orderID]
	if !ok {
		return nil, exchange.ErrNotFound
	}
	copied := *order
	return &copied, nil
}

// Balances reports the simulated quote balance under "KRW".
func (g *PaperGateway) Balances(ctx context.Context) ([]exchange.Balance, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return []exchange.Balance{{Currency: "KRW", Available: g.balance}}, nil
}

// Balance returns the current simulated quote balance.
func (g *PaperGateway) Balance() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.balance
}
