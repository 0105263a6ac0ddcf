package exchange

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/mohamedkhairy/crypto-trader/internal/models"
	"github.com/mohamedkhairy/crypto-trader/pkg/logger"
)

// UpbitConfig holds configuration for the Upbit REST client
type UpbitConfig struct {
	BaseURL        string
	Timeout        time.Duration
	MaxRetries     int
	RetryBackoff   time.Duration
	RequestsPerSec int
}

// DefaultUpbitConfig returns a default Upbit client configuration
func DefaultUpbitConfig() UpbitConfig {
	return UpbitConfig{
		BaseURL:        "https://api.upbit.com",
		Timeout:        10 * time.Second,
		MaxRetries:     3,
		RetryBackoff:   500 * time.Millisecond,
		RequestsPerSec: 8,
	}
}

// UpbitClient is a REST client for the Upbit exchange implementing both
// market data access and order management.
type UpbitClient struct {
	config  UpbitConfig
	creds   Credentials
	http    *http.Client
	limiter *rateLimiter
}

// NewUpbitClient creates a new Upbit REST client. Credentials may be empty
// for market-data-only use.
func NewUpbitClient(config UpbitConfig, creds Credentials) *UpbitClient {
	return &UpbitClient{
		config:  config,
		creds:   creds,
		http:    &http.Client{Timeout: config.Timeout},
		limiter: newRateLimiter(config.RequestsPerSec, time.Second),
	}
}

// rateLimiter is a sliding-window request limiter.
type rateLimiter struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	times  []time.Time
}

func newRateLimiter(limit int, window time.Duration) *rateLimiter {
	return &rateLimiter{limit: limit, window: window}
}

// Wait blocks until a request slot is available or the context is done.
func (r *rateLimiter) Wait(ctx context.Context) error {
	for {
		r.mu.Lock()
		now := time.Now()
		live := r.times[:0]
		for _, t := range r.times {
			if now.Sub(t) < r.window {
				live = append(live, t)
			}
		}
		r.times = live

		if r.limit <= 0 || len(r.times) < r.limit {
			r.times = append(r.times, now)
			r.mu.Unlock()
			return nil
		}
		wait := r.window - now.Sub(r.times[0])
		r.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

func (c *UpbitClient) doRequest(ctx context.Context, method, path string, query url.Values, body map[string]string, auth bool, out interface{}) error {
	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := c.config.RetryBackoff * time.Duration(1<<uint(attempt-1))
			logger.Warn("Retrying exchange request",
				logger.String("path", path),
				logger.Int("attempt", attempt),
				logger.Duration("backoff", backoff),
				logger.ErrorField(lastErr),
			)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}

		lastErr = c.requestOnce(ctx, method, path, query, body, auth, out)
		if lastErr == nil {
			return nil
		}
		if !IsRetryable(lastErr) {
			return lastErr
		}
	}
	return lastErr
}

func (c *UpbitClient) requestOnce(ctx context.Context, method, path string, query url.Values, body map[string]string, auth bool, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	u := c.config.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if auth {
		// The signature covers query parameters and body fields together.
		signed := url.Values{}
		for k, vs := range query {
			for _, v := range vs {
				signed.Add(k, v)
			}
		}
		for k, v := range body {
			signed.Add(k, v)
		}
		token, err := c.creds.Token(signed)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
		return nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return ErrRateLimited
	case resp.StatusCode == http.StatusUnauthorized:
		return ErrAuthentication
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	default:
		var apiResp struct {
			Error struct {
				Name    string `json:"name"`
				Message string `json:"message"`
			} `json:"error"`
		}
		raw, _ := io.ReadAll(resp.Body)
		if err := json.Unmarshal(raw, &apiResp); err != nil || apiResp.Error.Name == "" {
			return &APIError{
				Code:       fmt.Sprintf("HTTP_%d", resp.StatusCode),
				Message:    string(raw),
				StatusCode: resp.StatusCode,
			}
		}
		return &APIError{
			Code:       apiResp.Error.Name,
			Message:    apiResp.Error.Message,
			StatusCode: resp.StatusCode,
		}
	}
}

type upbitMarket struct {
	Market      string `json:"market"`
	KoreanName  string `json:"korean_name"`
	EnglishName string `json:"english_name"`
	Warning     string `json:"market_warning"`
}

// Markets returns all tradable markets with warning flags.
func (c *UpbitClient) Markets(ctx context.Context) ([]MarketInfo, error) {
	query := url.Values{"isDetails": {"true"}}
	var raw []upbitMarket
	if err := c.doRequest(ctx, http.MethodGet, "/v1/market/all", query, nil, false, &raw); err != nil {
		return nil, fmt.Errorf("failed to fetch markets: %w", err)
	}

	markets := make([]MarketInfo, 0, len(raw))
	for _, m := range raw {
		markets = append(markets, MarketInfo{
			Market:  m.Market,
			Korean:  m.KoreanName,
			English: m.EnglishName,
			Warning: m.Warning != "" && m.Warning != "NONE",
		})
	}
	return markets, nil
}

// Tickers returns current price snapshots for the given markets.
func (c *UpbitClient) Tickers(ctx context.Context, markets []string) ([]Ticker, error) {
	if len(markets) == 0 {
		return nil, nil
	}
	query := url.Values{"markets": {joinMarkets(markets)}}
	var tickers []Ticker
	if err := c.doRequest(ctx, http.MethodGet, "/v1/ticker", query, nil, false, &tickers); err != nil {
		return nil, fmt.Errorf("failed to fetch tickers: %w", err)
	}
	return tickers, nil
}

type upbitCandle struct {
	Market       string  `json:"market"`
	DateTimeUTC  string  `json:"candle_date_time_utc"`
	OpeningPrice float64 `json:"opening_price"`
	HighPrice    float64 `json:"high_price"`
	LowPrice     float64 `json:"low_price"`
	TradePrice   float64 `json:"trade_price"`
	AccVolume    float64 `json:"candle_acc_trade_volume"`
}

// Candles returns up to count minute candles for a market, ordered oldest
// first. unit is the candle size in minutes.
func (c *UpbitClient) Candles(ctx context.Context, market string, unit, count int) ([]models.Candle, error) {
	if count > 200 {
		count = 200
	}
	query := url.Values{
		"market": {market},
		"count":  {strconv.Itoa(count)},
	}
	var raw []upbitCandle
	path := fmt.Sprintf("/v1/candles/minutes/%d", unit)
	if err := c.doRequest(ctx, http.MethodGet, path, query, nil, false, &raw); err != nil {
		return nil, fmt.Errorf("failed to fetch candles for %s: %w", market, err)
	}

	candles := make([]models.Candle, 0, len(raw))
	for _, rc := range raw {
		ts, err := time.Parse("2006-01-02T15:04:05", rc.DateTimeUTC)
		if err != nil {
			return nil, fmt.Errorf("failed to parse candle timestamp %q: %w", rc.DateTimeUTC, err)
		}
		candles = append(candles, models.Candle{
			Market:    rc.Market,
			Timestamp: ts.UTC(),
			Open:      rc.OpeningPrice,
			High:      rc.HighPrice,
			Low:       rc.LowPrice,
			Close:     rc.TradePrice,
			Volume:    rc.AccVolume,
		})
	}
	// The exchange returns newest first.
	sort.Slice(candles, func(i, j int) bool {
		return candles[i].Timestamp.Before(candles[j].Timestamp)
	})
	return candles, nil
}

type upbitOrderBook struct {
	Market       string  `json:"market"`
	TotalAskSize float64 `json:"total_ask_size"`
	TotalBidSize float64 `json:"total_bid_size"`
	Units        []struct {
		AskPrice float64 `json:"ask_price"`
		BidPrice float64 `json:"bid_price"`
		AskSize  float64 `json:"ask_size"`
		BidSize  float64 `json:"bid_size"`
	} `json:"orderbook_units"`
}

// OrderBook returns the current order book snapshot for a market.
func (c *UpbitClient) OrderBook(ctx context.Context, market string) (models.OrderBook, error) {
	query := url.Values{"markets": {market}}
	var raw []upbitOrderBook
	if err := c.doRequest(ctx, http.MethodGet, "/v1/orderbook", query, nil, false, &raw); err != nil {
		return models.OrderBook{}, fmt.Errorf("failed to fetch orderbook for %s: %w", market, err)
	}
	if len(raw) == 0 || len(raw[0].Units) == 0 {
		return models.OrderBook{}, fmt.Errorf("empty orderbook for %s", market)
	}

	ob := raw[0]
	best := ob.Units[0]
	return models.OrderBook{
		Market:    ob.Market,
		BestBid:   best.BidPrice,
		BestAsk:   best.AskPrice,
		BidDepth:  ob.TotalBidSize * best.BidPrice,
		AskDepth:  ob.TotalAskSize * best.AskPrice,
		Timestamp: time.Now().UTC(),
	}, nil
}

type upbitOrder struct {
	UUID           string `json:"uuid"`
	Market         string `json:"market"`
	Side           string `json:"side"`
	OrdType        string `json:"ord_type"`
	State          string `json:"state"`
	Price          string `json:"price"`
	Volume         string `json:"volume"`
	ExecutedVolume string `json:"executed_volume"`
	PaidFee        string `json:"paid_fee"`
	Identifier     string `json:"identifier"`
	CreatedAt      string `json:"created_at"`
	Trades         []struct {
		Price  string `json:"price"`
		Volume string `json:"volume"`
	} `json:"trades"`
}

// SubmitOrder places an order on the exchange. Market buys spend
// req.Qty*req.Price quote currency; market sells release req.Qty base units.
func (c *UpbitClient) SubmitOrder(ctx context.Context, req OrderRequest) (*models.Order, error) {
	body := map[string]string{
		"market": req.Market,
	}
	if req.Side == models.SideBuy {
		body["side"] = "bid"
	} else {
		body["side"] = "ask"
	}
	if req.ClientID != "" {
		body["identifier"] = req.ClientID
	}

	switch req.Type {
	case models.OrderTypeMarket:
		if req.Side == models.SideBuy {
			body["ord_type"] = "price"
			body["price"] = formatAmount(req.Qty * req.Price)
		} else {
			body["ord_type"] = "market"
			body["volume"] = formatAmount(req.Qty)
		}
	default:
		body["ord_type"] = "limit"
		body["volume"] = formatAmount(req.Qty)
		body["price"] = formatAmount(req.Price)
	}

	var raw upbitOrder
	if err := c.doRequest(ctx, http.MethodPost, "/v1/orders", nil, body, true, &raw); err != nil {
		return nil, fmt.Errorf("failed to submit order for %s: %w", req.Market, err)
	}
	return decodeOrder(&raw, req)
}

// CancelOrder cancels an open order by its exchange ID.
func (c *UpbitClient) CancelOrder(ctx context.Context, orderID string) error {
	query := url.Values{"uuid": {orderID}}
	if err := c.doRequest(ctx, http.MethodDelete, "/v1/order", query, nil, true, nil); err != nil {
		return fmt.Errorf("failed to cancel order %s: %w", orderID, err)
	}
	return nil
}

// OrderStatus fetches the current state of an order.
func (c *UpbitClient) OrderStatus(ctx context.Context, orderID string) (*models.Order, error) {
	query := url.Values{"uuid": {orderID}}
	var raw upbitOrder
	if err := c.doRequest(ctx, http.MethodGet, "/v1/order", query, nil, true, &raw); err != nil {
		return nil, fmt.Errorf("failed to fetch order %s: %w", orderID, err)
	}
	return decodeOrder(&raw, OrderRequest{})
}

type upbitAccount struct {
	Currency string `json:"currency"`
	Balance  string `json:"balance"`
	Locked   string `json:"locked"`
}

// Balances returns account balances per currency.
func (c *UpbitClient) Balances(ctx context.Context) ([]Balance, error) {
	var raw []upbitAccount
	if err := c.doRequest(ctx, http.MethodGet, "/v1/accounts", nil, nil, true, &raw); err != nil {
		return nil, fmt.Errorf("failed to fetch balances: %w", err)
	}

	balances := make([]Balance, 0, len(raw))
	for _, a := range raw {
		available, _ := strconv.ParseFloat(a.Balance, 64)
		locked, _ := strconv.ParseFloat(a.Locked, 64)
		balances = append(balances, Balance{
			Currency:  a.Currency,
			Available: available,
			Locked:    locked,
		})
	}
	return balances, nil
}

func decodeOrder(raw *upbitOrder, req OrderRequest) (*models.Order, error) {
	order := &models.Order{
		ID:       raw.UUID,
		ClientID: raw.Identifier,
		Market:   raw.Market,
		State:    decodeOrderState(raw.State),
	}
	if raw.Side == "bid" {
		order.Side = models.SideBuy
	} else {
		order.Side = models.SideSell
	}
	switch raw.OrdType {
	case "limit":
		order.Type = models.OrderTypeLimit
	default:
		order.Type = models.OrderTypeMarket
	}

	order.Qty, _ = strconv.ParseFloat(raw.Volume, 64)
	if order.Qty == 0 {
		order.Qty = req.Qty
	}
	order.Price, _ = strconv.ParseFloat(raw.Price, 64)
	order.FilledQty, _ = strconv.ParseFloat(raw.ExecutedVolume, 64)
	order.Fee, _ = strconv.ParseFloat(raw.PaidFee, 64)

	// Volume-weighted fill price from the trade list when present.
	var notional, qty float64
	for _, tr := range raw.Trades {
		p, _ := strconv.ParseFloat(tr.Price, 64)
		v, _ := strconv.ParseFloat(tr.Volume, 64)
		notional += p * v
		qty += v
	}
	if qty > 0 {
		order.FilledPrice = notional / qty
	}

	if raw.CreatedAt != "" {
		if ts, err := time.Parse(time.RFC3339, raw.CreatedAt); err == nil {
			order.SubmittedAt = ts.UTC()
		}
	}
	return order, nil
}

func decodeOrderState(state string) models.OrderState {
	switch state {
	case "wait", "watch":
		return models.OrderSubmitted
	case "done":
		return models.OrderFilled
	case "cancel":
		return models.OrderCancelled
	default:
		return models.OrderPending
	}
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func joinMarkets(markets []string) string {
	out := ""
	for i, m := range markets {
		if i > 0 {
			out += ","
		}
		out += m
	}
	return out
}
