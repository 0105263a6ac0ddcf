package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/mohamedkhairy/crypto-trader/internal/config"
	"github.com/mohamedkhairy/crypto-trader/internal/exchange"
	"github.com/mohamedkhairy/crypto-trader/internal/feature"
	"github.com/mohamedkhairy/crypto-trader/internal/scanner"
	"github.com/mohamedkhairy/crypto-trader/internal/trader"
	"github.com/mohamedkhairy/crypto-trader/pkg/logger"
)

// candidateRow is the JSON shape printed for each candidate.
type candidateRow struct {
	Market   string  `json:"market"`
	Score    float64 `json:"score"`
	RVol     float64 `json:"rvol"`
	RS       float64 `json:"rs"`
	SpreadBP float64 `json:"spread_bp"`
	Trend    bool    `json:"trend"`
	Price    float64 `json:"price"`
}

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	if err := logger.Init(cfg.LogLevel, cfg.Environment); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	loc, err := time.LoadLocation(cfg.Session.Timezone)
	if err != nil {
		logger.Fatal("Failed to load timezone", logger.ErrorField(err))
	}
	schedule, err := trader.ParseSchedule(cfg.Session.Windows, loc)
	if err != nil {
		logger.Fatal("Failed to parse session windows", logger.ErrorField(err))
	}

	upbitCfg := exchange.DefaultUpbitConfig()
	upbitCfg.BaseURL = cfg.Exchange.BaseURL
	upbitCfg.Timeout = cfg.Exchange.RequestTimeout
	upbitCfg.MaxRetries = cfg.Exchange.MaxRetries
	upbitCfg.RequestsPerSec = cfg.Exchange.RequestsPerSec
	upbit := exchange.NewUpbitClient(upbitCfg, exchange.Credentials{
		AccessKey: cfg.Exchange.AccessKey,
		SecretKey: cfg.Exchange.SecretKey,
	})

	featureCfg := feature.DefaultConfig()
	featureCfg.CandleUnit = cfg.Scanner.CandleUnit
	features := feature.NewEngine(featureCfg)

	scanCfg := scanner.DefaultConfig()
	scanCfg.Benchmark = cfg.Scanner.Benchmark
	scanCfg.Workers = cfg.Scanner.Workers
	scanCfg.CandleUnit = cfg.Scanner.CandleUnit
	scanCfg.CandleCount = cfg.Scanner.CandleCount
	scanCfg.RVolThreshold = cfg.Scanner.RVolThreshold
	scanCfg.SpreadBPMax = cfg.Scanner.SpreadBPMax
	scanCfg.RequireTrend = cfg.Scanner.RequireTrend
	scanCfg.MinScore = cfg.Scanner.MinScore
	scanCfg.TopK = cfg.Scanner.CandidateCount
	scanCfg.Universe.MaxMarkets = cfg.Scanner.MaxMarkets
	scanCfg.Universe.MinTurnover24h = cfg.Scanner.MinTurnover24h
	scn := scanner.NewScanner(scanCfg, upbit, features)

	// Feature anchoring: the active window's start, or the most recent
	// window start when run off-hours.
	now := time.Now()
	sessionStart, _, active := schedule.Active(now)
	if !active {
		sessionStart = schedule.LastOpen(now)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	candidates, _, err := scn.Scan(ctx, sessionStart)
	if err != nil {
		logger.Fatal("Scan failed", logger.ErrorField(err))
	}

	rows := make([]candidateRow, 0, len(candidates))
	for _, c := range candidates {
		rows = append(rows, candidateRow{
			Market:   c.Market,
			Score:    c.Score,
			RVol:     c.Features.RVol,
			RS:       c.Features.RS,
			SpreadBP: c.Features.SpreadBP,
			Trend:    c.Features.Trend,
			Price:    c.Features.Price,
		})
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(rows); err != nil {
		logger.Fatal("Failed to encode candidates", logger.ErrorField(err))
	}
}
