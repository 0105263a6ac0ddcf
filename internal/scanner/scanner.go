package scanner

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/mohamedkhairy/crypto-trader/internal/exchange"
	"github.com/mohamedkhairy/crypto-trader/internal/feature"
	"github.com/mohamedkhairy/crypto-trader/internal/models"
	"github.com/mohamedkhairy/crypto-trader/pkg/logger"
)

// Config holds scanner configuration
type Config struct {
	Universe     UniverseConfig
	Benchmark    string // relative strength reference market
	Workers      int
	CandleUnit   int
	CandleCount  int
	FetchTimeout time.Duration

	// Hard filters
	RVolThreshold float64
	SpreadBPMax   float64
	RequireTrend  bool
	MinScore      float64

	// Scoring
	TopK            int
	RVolNormCeiling float64
	RSScale         float64
	WeightRS        float64
	WeightRVol      float64
	WeightTrend     float64
	WeightDepth     float64
}

// DefaultConfig returns the default scanner configuration
func DefaultConfig() Config {
	return Config{
		Universe:        DefaultUniverseConfig(),
		Benchmark:       "KRW-BTC",
		Workers:         4,
		CandleUnit:      5,
		CandleCount:     200,
		FetchTimeout:    10 * time.Second,
		RVolThreshold:   2.0,
		SpreadBPMax:     5.0,
		RequireTrend:    true,
		MinScore:        0,
		TopK:            3,
		RVolNormCeiling: 3.0,
		RSScale:         0.05,
		WeightRS:        0.4,
		WeightRVol:      0.3,
		WeightTrend:     0.2,
		WeightDepth:     0.1,
	}
}

// Candidate is one market that passed the filters, with its score and the
// full feature vector for downstream strategies.
type Candidate struct {
	Market   string
	Score    float64
	Features *feature.Vector
	Snapshot *models.MarketSnapshot
}

// Stats holds scanner statistics
type Stats struct {
	Cycles          int64
	MarketsScanned  int64
	MarketsExcluded int64
	LastCandidates  int
	LastCycleTime   time.Duration
}

// Scanner ranks the tradable universe once per cycle. A cycle fetches all
// snapshots through the worker pool, computes feature vectors, applies the
// hard filters and returns the top-K candidates. Scanning is read-only and
// idempotent within a cycle.
type Scanner struct {
	config   Config
	md       exchange.MarketData
	features *feature.Engine

	mu    sync.Mutex
	stats Stats
}

// NewScanner creates a new scanner
func NewScanner(config Config, md exchange.MarketData, features *feature.Engine) *Scanner {
	return &Scanner{
		config:   config,
		md:       md,
		features: features,
	}
}

// Scan performs one scan cycle and returns ranked candidates plus every
// snapshot fetched so downstream stages reuse the same cycle data.
func (s *Scanner) Scan(ctx context.Context, sessionStart time.Time) ([]Candidate, map[string]*models.MarketSnapshot, error) {
	start := time.Now()

	universe, err := BuildUniverse(ctx, s.md, s.config.Universe)
	if err != nil {
		return nil, nil, err
	}
	if len(universe) == 0 {
		return nil, nil, fmt.Errorf("empty scan universe")
	}

	// Benchmark candles are fetched once and shared across all markets.
	benchSnap, err := fetchOne(ctx, s.md, s.config.Benchmark, s.config)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch benchmark %s: %w", s.config.Benchmark, err)
	}

	snapshots := fetchSnapshots(ctx, s.md, universe, s.config)
	snapshots[s.config.Benchmark] = benchSnap

	var excluded int64
	candidates := make([]Candidate, 0, len(snapshots))
	for _, market := range universe {
		snap, ok := snapshots[market]
		if !ok {
			excluded++
			continue
		}
		vec, err := s.features.Compute(snap, benchSnap.Candles, sessionStart)
		if err != nil {
			excluded++
			logger.Debug("Excluding market from cycle",
				logger.String("market", market),
				logger.ErrorField(err),
			)
			continue
		}
		if !s.passesFilters(vec) {
			continue
		}
		candidates = append(candidates, Candidate{
			Market:   market,
			Score:    s.score(vec),
			Features: vec,
			Snapshot: snap,
		})
	}

	// Score descending; ties broken by tighter spread, then market name, so
	// the ranking is deterministic for identical inputs.
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		if candidates[i].Features.SpreadBP != candidates[j].Features.SpreadBP {
			return candidates[i].Features.SpreadBP < candidates[j].Features.SpreadBP
		}
		return candidates[i].Market < candidates[j].Market
	})
	if s.config.TopK > 0 && len(candidates) > s.config.TopK {
		candidates = candidates[:s.config.TopK]
	}

	elapsed := time.Since(start)
	s.mu.Lock()
	s.stats.Cycles++
	s.stats.MarketsScanned += int64(len(universe))
	s.stats.MarketsExcluded += excluded
	s.stats.LastCandidates = len(candidates)
	s.stats.LastCycleTime = elapsed
	s.mu.Unlock()

	logger.ScanCyclesTotal.Inc()
	logger.ScanCycleDuration.Observe(elapsed.Seconds())
	logger.ScanCandidates.Set(float64(len(candidates)))

	logger.Info("Scan cycle complete",
		logger.Int("universe", len(universe)),
		logger.Int("candidates", len(candidates)),
		logger.Duration("elapsed", elapsed),
	)
	return candidates, snapshots, nil
}

func (s *Scanner) passesFilters(vec *feature.Vector) bool {
	if vec.RVol < s.config.RVolThreshold {
		return false
	}
	if vec.SpreadBP > s.config.SpreadBPMax {
		return false
	}
	if s.config.RequireTrend && !vec.Trend {
		return false
	}
	return s.score(vec) >= s.config.MinScore
}

func (s *Scanner) score(vec *feature.Vector) float64 {
	trend := 0.0
	if vec.Trend {
		trend = 1.0
	}
	return s.config.WeightRS*feature.RSNorm(vec.RS, s.config.RSScale) +
		s.config.WeightRVol*feature.RVolNorm(vec.RVol, s.config.RVolNormCeiling) +
		s.config.WeightTrend*trend +
		s.config.WeightDepth*vec.DepthScore
}

// GetStats returns a copy of the scanner statistics
func (s *Scanner) GetStats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}
