package storage

import (
	"context"
	"sync"

	"github.com/mohamedkhairy/crypto-trader/internal/models"
	"github.com/mohamedkhairy/crypto-trader/internal/signal"
)

// IntentRecord captures one risk decision for an emitted intent.
type IntentRecord struct {
	Intent   signal.Intent
	Approved bool
	Reason   string // rejection reason, empty when approved
}

// TradeStore persists executed trades and the decisions that produced them.
// Writes are best-effort from the trading loop's point of view: a storage
// failure must never block order handling.
type TradeStore interface {
	SaveTrade(ctx context.Context, trade *models.PositionClose) error
	SaveIntent(ctx context.Context, record *IntentRecord) error
	Trades(ctx context.Context, date string) ([]*models.PositionClose, error)
	Close() error
}

// MemoryStore keeps trades and intent records in memory. Used in tests and
// when no database is configured.
type MemoryStore struct {
	mu      sync.Mutex
	trades  []*models.PositionClose
	intents []*IntentRecord
}

// NewMemoryStore creates an empty in-memory trade store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) SaveTrade(_ context.Context, trade *models.PositionClose) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *trade
	s.trades = append(s.trades, &copied)
	return nil
}

func (s *MemoryStore) SaveIntent(_ context.Context, record *IntentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *record
	s.intents = append(s.intents, &copied)
	return nil
}

// Trades returns closes recorded on the given trading date (YYYY-MM-DD, UTC).
func (s *MemoryStore) Trades(_ context.Context, date string) ([]*models.PositionClose, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*models.PositionClose
	for _, trade := range s.trades {
		if trade.ClosedAt.UTC().Format("2006-01-02") == date {
			copied := *trade
			out = append(out, &copied)
		}
	}
	return out, nil
}

// Intents returns all recorded intent decisions.
func (s *MemoryStore) Intents() []*IntentRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*IntentRecord, len(s.intents))
	copy(out, s.intents)
	return out
}

func (s *MemoryStore) Close() error { return nil }
