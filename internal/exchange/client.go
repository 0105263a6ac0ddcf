package exchange

import (
	"context"
	"errors"
	"fmt"

	"github.com/mohamedkhairy/crypto-trader/internal/models"
)

var (
	// ErrNotFound is returned when an order or market does not exist
	ErrNotFound = errors.New("not found")
	// ErrRateLimited is returned when the exchange rejects a request for rate limiting
	ErrRateLimited = errors.New("rate limited")
	// ErrAuthentication is returned when credentials are missing or rejected
	ErrAuthentication = errors.New("authentication failed")
)

// APIError is an error reported by the exchange API.
type APIError struct {
	Code       string
	Message    string
	StatusCode int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("exchange api error %s (http %d): %s", e.Code, e.StatusCode, e.Message)
}

// IsRetryable reports whether a failed call may be retried. Rate limits,
// timeouts and transient network errors are retryable; authentication and
// validation errors are not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	if errors.Is(err, ErrAuthentication) || errors.Is(err, ErrNotFound) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= 500
	}
	// Network-level failures (timeouts, resets) surface as wrapped transport
	// errors and are worth one more attempt.
	return true
}

// MarketInfo describes one tradable market.
type MarketInfo struct {
	Market  string `json:"market"`
	Korean  string `json:"korean_name"`
	English string `json:"english_name"`
	Warning bool   `json:"-"`
}

// Ticker is a point-in-time price snapshot for a market.
type Ticker struct {
	Market        string  `json:"market"`
	TradePrice    float64 `json:"trade_price"`
	AccTradePrice float64 `json:"acc_trade_price_24h"`
	Timestamp     int64   `json:"timestamp"`
}

// OrderRequest describes an order to submit.
type OrderRequest struct {
	Market   string
	Side     models.Side
	Type     models.OrderType
	Qty      float64
	Price    float64
	ClientID string
}

// Balance is the available amount of one currency.
type Balance struct {
	Currency  string
	Available float64
	Locked    float64
}

// MarketData provides read-only market information.
type MarketData interface {
	Markets(ctx context.Context) ([]MarketInfo, error)
	Tickers(ctx context.Context, markets []string) ([]Ticker, error)
	Candles(ctx context.Context, market string, unit, count int) ([]models.Candle, error)
	OrderBook(ctx context.Context, market string) (models.OrderBook, error)
}

// OrderGateway places and manages orders on the exchange.
type OrderGateway interface {
	SubmitOrder(ctx context.Context, req OrderRequest) (*models.Order, error)
	CancelOrder(ctx context.Context, orderID string) error
	OrderStatus(ctx context.Context, orderID string) (*models.Order, error)
	Balances(ctx context.Context) ([]Balance, error)
}

// Client combines market data access and order management.
type Client interface {
	MarketData
	OrderGateway
}
