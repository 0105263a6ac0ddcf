package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/mohamedkhairy/crypto-trader/internal/models"
	"github.com/mohamedkhairy/crypto-trader/pkg/logger"
)

// PostgresConfig holds connection settings for the trade database.
type PostgresConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxConnections  int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DefaultPostgresConfig returns default configuration.
func DefaultPostgresConfig() PostgresConfig {
	return PostgresConfig{
		Host:            "localhost",
		Port:            5432,
		User:            "trader",
		Database:        "trader",
		SSLMode:         "disable",
		MaxConnections:  10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

// PostgresStore implements TradeStore on PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore connects to the database and ensures the trade tables
// exist.
func NewPostgresStore(cfg PostgresConfig) (*PostgresStore, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &PostgresStore{db: db}
	if err := store.ensureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("Connected to trade database",
		logger.String("host", cfg.Host),
		logger.Int("port", cfg.Port),
		logger.String("database", cfg.Database),
	)

	return store, nil
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS trades (
			id          BIGSERIAL PRIMARY KEY,
			market      TEXT NOT NULL,
			side        TEXT NOT NULL,
			qty         DOUBLE PRECISION NOT NULL,
			entry_price DOUBLE PRECISION NOT NULL,
			exit_price  DOUBLE PRECISION NOT NULL,
			fees        DOUBLE PRECISION NOT NULL,
			pnl         DOUBLE PRECISION NOT NULL,
			reason      TEXT NOT NULL,
			strategy    TEXT NOT NULL,
			closed_at   TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS trades_closed_at_idx ON trades (closed_at)`,
		`CREATE TABLE IF NOT EXISTS intents (
			id         BIGSERIAL PRIMARY KEY,
			market     TEXT NOT NULL,
			strategy   TEXT NOT NULL,
			side       TEXT NOT NULL,
			entry      DOUBLE PRECISION NOT NULL,
			stop       DOUBLE PRECISION NOT NULL,
			target     DOUBLE PRECISION NOT NULL,
			score      DOUBLE PRECISION NOT NULL,
			approved   BOOLEAN NOT NULL,
			reason     TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) SaveTrade(ctx context.Context, trade *models.PositionClose) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO trades (market, side, qty, entry_price, exit_price, fees, pnl, reason, strategy, closed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, trade.Market, string(trade.Side), trade.Qty, trade.EntryPrice, trade.ExitPrice,
		trade.Fees, trade.PnL(), trade.Reason, trade.Strategy, trade.ClosedAt)
	if err != nil {
		return fmt.Errorf("failed to insert trade: %w", err)
	}
	return nil
}

func (s *PostgresStore) SaveIntent(ctx context.Context, record *IntentRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO intents (market, strategy, side, entry, stop, target, score, approved, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, record.Intent.Market, string(record.Intent.Strategy), string(record.Intent.Side),
		record.Intent.Entry, record.Intent.Stop, record.Intent.Target, record.Intent.Score,
		record.Approved, record.Reason, record.Intent.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert intent: %w", err)
	}
	return nil
}

// Trades returns closes recorded on the given trading date (YYYY-MM-DD, UTC).
func (s *PostgresStore) Trades(ctx context.Context, date string) ([]*models.PositionClose, error) {
	day, err := time.Parse("2006-01-02", date)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q: %w", date, err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT market, side, qty, entry_price, exit_price, fees, reason, strategy, closed_at
		FROM trades
		WHERE closed_at >= $1 AND closed_at < $2
		ORDER BY closed_at ASC
	`, day, day.Add(24*time.Hour))
	if err != nil {
		return nil, fmt.Errorf("failed to query trades: %w", err)
	}
	defer rows.Close()

	var trades []*models.PositionClose
	for rows.Next() {
		var trade models.PositionClose
		var side string
		if err := rows.Scan(
			&trade.Market,
			&side,
			&trade.Qty,
			&trade.EntryPrice,
			&trade.ExitPrice,
			&trade.Fees,
			&trade.Reason,
			&trade.Strategy,
			&trade.ClosedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}
		trade.Side = models.Side(side)
		trades = append(trades, &trade)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return trades, nil
}

func (s *PostgresStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database connection: %w", err)
	}
	return nil
}
