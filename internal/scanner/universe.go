package scanner

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/mohamedkhairy/crypto-trader/internal/exchange"
	"github.com/mohamedkhairy/crypto-trader/pkg/logger"
)

// UniverseConfig holds configuration for universe selection
type UniverseConfig struct {
	QuotePrefix     string  // e.g. "KRW-"
	MaxMarkets      int     // cap on universe size, 0 means unlimited
	MinTurnover24h  float64 // minimum 24h quote turnover
	IncludeWarnings bool    // keep markets flagged with a trading warning
}

// DefaultUniverseConfig returns the default universe configuration
func DefaultUniverseConfig() UniverseConfig {
	return UniverseConfig{
		QuotePrefix:    "KRW-",
		MaxMarkets:     50,
		MinTurnover24h: 0,
	}
}

// BuildUniverse selects the scannable market set: quote-currency filtered,
// warning-flagged markets excluded, optional 24h turnover floor, capped to
// MaxMarkets in alphabetical order so the universe is deterministic for a
// given exchange state.
func BuildUniverse(ctx context.Context, md exchange.MarketData, config UniverseConfig) ([]string, error) {
	all, err := md.Markets(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to build universe: %w", err)
	}

	markets := make([]string, 0, len(all))
	for _, m := range all {
		if !strings.HasPrefix(m.Market, config.QuotePrefix) {
			continue
		}
		if m.Warning && !config.IncludeWarnings {
			continue
		}
		markets = append(markets, m.Market)
	}
	sort.Strings(markets)

	if config.MinTurnover24h > 0 && len(markets) > 0 {
		tickers, err := md.Tickers(ctx, markets)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch turnover: %w", err)
		}
		turnover := make(map[string]float64, len(tickers))
		for _, t := range tickers {
			turnover[t.Market] = t.AccTradePrice
		}
		filtered := markets[:0]
		for _, m := range markets {
			if turnover[m] >= config.MinTurnover24h {
				filtered = append(filtered, m)
			}
		}
		markets = filtered
	}

	if config.MaxMarkets > 0 && len(markets) > config.MaxMarkets {
		markets = markets[:config.MaxMarkets]
	}

	logger.Debug("Built scan universe",
		logger.Int("markets", len(markets)),
		logger.String("quote_prefix", config.QuotePrefix),
	)
	return markets, nil
}
