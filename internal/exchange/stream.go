package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/mohamedkhairy/crypto-trader/pkg/logger"
)

// PriceUpdate is one traded-price observation from the stream.
type PriceUpdate struct {
	Market string
	Price  float64
	At     time.Time
}

// StreamConfig holds configuration for the websocket price stream
type StreamConfig struct {
	URL               string
	ReconnectDelay    time.Duration
	MaxReconnectDelay time.Duration
	WriteTimeout      time.Duration
	PongWait          time.Duration
	PingPeriod        time.Duration
}

// DefaultStreamConfig returns a default stream configuration
func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		URL:               "wss://api.upbit.com/websocket/v1",
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		WriteTimeout:      10 * time.Second,
		PongWait:          60 * time.Second,
		PingPeriod:        54 * time.Second,
	}
}

// PriceStream maintains a websocket subscription to ticker updates for a set
// of markets, reconnecting with exponential backoff when the connection
// drops. Updates are delivered on Updates(); the subscribed set can be
// swapped at runtime as positions open and close.
type PriceStream struct {
	config StreamConfig

	mu        sync.Mutex
	conn      *websocket.Conn
	markets   []string
	attempts  int
	connected bool

	updates chan PriceUpdate

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPriceStream creates a new price stream for the given markets.
func NewPriceStream(config StreamConfig, markets []string) *PriceStream {
	ctx, cancel := context.WithCancel(context.Background())
	return &PriceStream{
		config:  config,
		markets: append([]string(nil), markets...),
		updates: make(chan PriceUpdate, 256),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Updates returns the channel of streamed price updates.
func (s *PriceStream) Updates() <-chan PriceUpdate {
	return s.updates
}

// Subscribe replaces the subscribed market set. Takes effect immediately on a
// live connection, otherwise on the next reconnect.
func (s *PriceStream) Subscribe(markets []string) error {
	s.mu.Lock()
	s.markets = append([]string(nil), markets...)
	conn := s.conn
	s.mu.Unlock()

	if conn == nil {
		return nil
	}
	return s.sendSubscription(conn)
}

// Start launches the connect/reconnect loop.
func (s *PriceStream) Start() {
	s.wg.Add(1)
	go s.connectLoop()
}

// Close stops the stream and waits for its goroutines to exit.
func (s *PriceStream) Close() error {
	s.cancel()
	s.mu.Lock()
	if s.conn != nil {
		s.conn.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
	return nil
}

func (s *PriceStream) connectLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return
		default:
		}

		if err := s.connectOnce(); err != nil {
			logger.Error("Price stream connection failed",
				logger.String("url", s.config.URL),
				logger.ErrorField(err),
			)
		}

		delay := s.backoff()
		logger.Info("Reconnecting price stream",
			logger.String("url", s.config.URL),
			logger.Duration("delay", delay),
		)
		select {
		case <-s.ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

func (s *PriceStream) connectOnce() error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.Dial(s.config.URL, nil)
	if err != nil {
		s.mu.Lock()
		s.attempts++
		s.mu.Unlock()
		return fmt.Errorf("failed to dial price stream: %w", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(s.config.PongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(s.config.PongWait))
		return nil
	})

	s.mu.Lock()
	s.conn = conn
	s.attempts = 0
	s.connected = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.conn = nil
		s.connected = false
		s.mu.Unlock()
	}()

	if err := s.sendSubscription(conn); err != nil {
		return err
	}
	logger.Info("Price stream connected", logger.String("url", s.config.URL))

	pingDone := make(chan struct{})
	defer close(pingDone)
	go s.pingLoop(conn, pingDone)

	for {
		select {
		case <-s.ctx.Done():
			return nil
		default:
		}

		conn.SetReadDeadline(time.Now().Add(s.config.PongWait))
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				return fmt.Errorf("price stream read failed: %w", err)
			}
			return nil
		}
		s.handleMessage(message)
	}
}

func (s *PriceStream) pingLoop(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(s.config.PingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			deadline := time.Now().Add(s.config.WriteTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		}
	}
}

func (s *PriceStream) sendSubscription(conn *websocket.Conn) error {
	s.mu.Lock()
	codes := append([]string(nil), s.markets...)
	s.mu.Unlock()
	if len(codes) == 0 {
		return nil
	}

	request := []interface{}{
		map[string]string{"ticket": uuid.NewString()},
		map[string]interface{}{"type": "ticker", "codes": codes},
	}
	payload, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("failed to encode subscription: %w", err)
	}

	conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return fmt.Errorf("failed to send subscription: %w", err)
	}
	return nil
}

func (s *PriceStream) handleMessage(message []byte) {
	var tick struct {
		Type       string  `json:"type"`
		Code       string  `json:"code"`
		TradePrice float64 `json:"trade_price"`
		Timestamp  int64   `json:"timestamp"`
	}
	if err := json.Unmarshal(message, &tick); err != nil {
		logger.Warn("Dropping undecodable stream message", logger.ErrorField(err))
		return
	}
	if tick.Type != "ticker" || tick.Code == "" || tick.TradePrice <= 0 {
		return
	}

	update := PriceUpdate{
		Market: tick.Code,
		Price:  tick.TradePrice,
		At:     time.UnixMilli(tick.Timestamp).UTC(),
	}
	select {
	case s.updates <- update:
	default:
		// Stale prices are worthless; keep the stream moving.
		logger.Warn("Price update channel full, dropping update",
			logger.String("market", update.Market),
		)
	}
}

func (s *PriceStream) backoff() time.Duration {
	s.mu.Lock()
	attempts := s.attempts
	s.mu.Unlock()

	delay := s.config.ReconnectDelay * time.Duration(1<<uint(attempts))
	if delay > s.config.MaxReconnectDelay || delay <= 0 {
		delay = s.config.MaxReconnectDelay
	}
	return delay
}

// IsConnected reports whether the stream currently has a live connection.
func (s *PriceStream) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}
