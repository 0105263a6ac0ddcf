package exchange

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/mohamedkhairy/crypto-trader/internal/models"
)

// MockClient is an in-memory exchange used by tests. Market data is seeded
// per market; orders fill immediately at the seeded ticker price.
type MockClient struct {
	mu sync.Mutex

	MarketList []MarketInfo
	CandleData map[string][]models.Candle
	Books      map[string]models.OrderBook
	Prices     map[string]float64
	Funds      []Balance

	// FailMarkets makes data fetches for these markets return an error.
	FailMarkets map[string]bool

	Submitted []OrderRequest
	orders    map[string]*models.Order
}

// NewMockClient returns an empty mock exchange.
func NewMockClient() *MockClient {
	return &MockClient{
		CandleData:  make(map[string][]models.Candle),
		Books:       make(map[string]models.OrderBook),
		Prices:      make(map[string]float64),
		FailMarkets: make(map[string]bool),
		orders:      make(map[string]*models.Order),
	}
}

func (m *MockClient) Markets(ctx context.Context) ([]MarketInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MarketInfo(nil), m.MarketList...), nil
}

func (m *MockClient) Tickers(ctx context.Context, markets []string) ([]Ticker, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tickers := make([]Ticker, 0, len(markets))
	for _, market := range markets {
		price, ok := m.Prices[market]
		if !ok {
			continue
		}
		tickers = append(tickers, Ticker{Market: market, TradePrice: price})
	}
	return tickers, nil
}

func (m *MockClient) Candles(ctx context.Context, market string, unit, count int) ([]models.Candle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailMarkets[market] {
		return nil, fmt.Errorf("mock fetch failure for %s", market)
	}
	candles, ok := m.CandleData[market]
	if !ok {
		return nil, ErrNotFound
	}
	if count > 0 && len(candles) > count {
		candles = candles[len(candles)-count:]
	}
	return append([]models.Candle(nil), candles...), nil
}

func (m *MockClient) OrderBook(ctx context.Context, market string) (models.OrderBook, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailMarkets[market] {
		return models.OrderBook{}, fmt.Errorf("mock fetch failure for %s", market)
	}
	book, ok := m.Books[market]
	if !ok {
		return models.OrderBook{}, ErrNotFound
	}
	return book, nil
}

func (m *MockClient) SubmitOrder(ctx context.Context, req OrderRequest) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Submitted = append(m.Submitted, req)

	price := req.Price
	if p, ok := m.Prices[req.Market]; ok && req.Type == models.OrderTypeMarket {
		price = p
	}
	order := &models.Order{
		ID:          uuid.NewString(),
		ClientID:    req.ClientID,
		Market:      req.Market,
		Side:        req.Side,
		Type:        req.Type,
		Qty:         req.Qty,
		Price:       price,
		State:       models.OrderFilled,
		FilledQty:   req.Qty,
		FilledPrice: price,
	}
	m.orders[order.ID] = order
	copied := *order
	return &copied, nil
}

func (m *MockClient) CancelOrder(ctx context.Context, orderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[orderID]
	if !ok {
		return ErrNotFound
	}
	if !order.State.Terminal() {
		order.State = models.OrderCancelled
	}
	return nil
}

func (m *MockClient) OrderStatus(ctx context.Context, orderID string) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[orderID]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *order
	return &copied, nil
}

func (m *MockClient) Balances(ctx context.Context) ([]Balance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Balance(nil), m.Funds...), nil
}
