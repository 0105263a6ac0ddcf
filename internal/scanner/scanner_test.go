package scanner

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohamedkhairy/crypto-trader/internal/exchange"
	"github.com/mohamedkhairy/crypto-trader/internal/feature"
	"github.com/mohamedkhairy/crypto-trader/internal/models"
)

var testStart = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

// seedMarket seeds the mock exchange with 60 candles rising by slope per
// candle, a volume spike on the last bar, and a tight book.
func seedMarket(mock *exchange.MockClient, market string, base, slope float64) {
	candles := make([]models.Candle, 60)
	for i := range candles {
		p := base + slope*float64(i)
		candles[i] = models.Candle{
			Market:    market,
			Timestamp: testStart.Add(time.Duration(i) * 5 * time.Minute),
			Open:      p,
			High:      p + 0.5,
			Low:       p - 0.5,
			Close:     p,
			Volume:    10,
		}
	}
	candles[59].Volume = 30
	last := candles[59].Close

	mock.CandleData[market] = candles
	mock.Books[market] = models.OrderBook{
		Market:    market,
		BestBid:   last * 0.9999,
		BestAsk:   last * 1.0001,
		BidDepth:  1e6,
		AskDepth:  1e6,
		Timestamp: testStart,
	}
	mock.Prices[market] = last
}

func newTestScanner(mock *exchange.MockClient) *Scanner {
	config := DefaultConfig()
	config.Workers = 2
	return NewScanner(config, mock, feature.NewEngine(feature.DefaultConfig()))
}

func seedExchange(t *testing.T) *exchange.MockClient {
	t.Helper()
	mock := exchange.NewMockClient()
	mock.MarketList = []exchange.MarketInfo{
		{Market: "KRW-AAA"},
		{Market: "KRW-BBB"},
		{Market: "KRW-CCC"},
		{Market: "KRW-DDD"},
	}
	seedMarket(mock, "KRW-AAA", 100, 0.05)
	seedMarket(mock, "KRW-BBB", 100, 0.10)
	seedMarket(mock, "KRW-CCC", 100, 0.15)
	seedMarket(mock, "KRW-DDD", 100, 0.12)
	seedMarket(mock, "KRW-BTC", 50000, 0) // flat benchmark
	return mock
}

func TestScanner_Scan_TopKRanking(t *testing.T) {
	mock := seedExchange(t)
	scanner := newTestScanner(mock)

	candidates, snapshots, err := scanner.Scan(context.Background(), testStart)
	require.NoError(t, err)

	// Steepest risers have the strongest relative strength.
	require.Len(t, candidates, 3)
	assert.Equal(t, "KRW-CCC", candidates[0].Market)
	assert.Equal(t, "KRW-DDD", candidates[1].Market)
	assert.Equal(t, "KRW-BBB", candidates[2].Market)
	assert.True(t, candidates[0].Score >= candidates[1].Score)
	assert.True(t, candidates[1].Score >= candidates[2].Score)

	// The cycle's snapshots include the benchmark for downstream reuse.
	assert.Contains(t, snapshots, "KRW-BTC")
	assert.Contains(t, snapshots, "KRW-CCC")
}

func TestScanner_Scan_Deterministic(t *testing.T) {
	mock := seedExchange(t)
	scanner := newTestScanner(mock)

	first, _, err := scanner.Scan(context.Background(), testStart)
	require.NoError(t, err)
	second, _, err := scanner.Scan(context.Background(), testStart)
	require.NoError(t, err)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].Market, second[i].Market)
		assert.Equal(t, first[i].Score, second[i].Score)
	}
}

func TestScanner_Scan_FailedMarketExcluded(t *testing.T) {
	mock := seedExchange(t)
	mock.FailMarkets["KRW-CCC"] = true
	scanner := newTestScanner(mock)

	candidates, _, err := scanner.Scan(context.Background(), testStart)
	require.NoError(t, err)

	for _, c := range candidates {
		assert.NotEqual(t, "KRW-CCC", c.Market)
	}
	require.Len(t, candidates, 3)
	assert.Equal(t, "KRW-DDD", candidates[0].Market)
}

func TestScanner_Scan_RVolFilter(t *testing.T) {
	mock := seedExchange(t)
	// Remove the volume spike on one market.
	candles := mock.CandleData["KRW-CCC"]
	candles[len(candles)-1].Volume = 10
	scanner := newTestScanner(mock)

	candidates, _, err := scanner.Scan(context.Background(), testStart)
	require.NoError(t, err)
	for _, c := range candidates {
		assert.NotEqual(t, "KRW-CCC", c.Market)
	}
}

func TestScanner_Scan_SpreadFilter(t *testing.T) {
	mock := seedExchange(t)
	book := mock.Books["KRW-CCC"]
	book.BestAsk = book.BestBid * 1.01 // ~100bp spread
	mock.Books["KRW-CCC"] = book
	scanner := newTestScanner(mock)

	candidates, _, err := scanner.Scan(context.Background(), testStart)
	require.NoError(t, err)
	for _, c := range candidates {
		assert.NotEqual(t, "KRW-CCC", c.Market)
	}
}

func TestScanner_Scan_TrendFilter(t *testing.T) {
	mock := seedExchange(t)
	// Falling market: keeps the volume spike but loses the trend.
	seedMarket(mock, "KRW-CCC", 200, -0.15)
	scanner := newTestScanner(mock)

	candidates, _, err := scanner.Scan(context.Background(), testStart)
	require.NoError(t, err)
	for _, c := range candidates {
		assert.NotEqual(t, "KRW-CCC", c.Market)
	}
}

func TestScanner_Scan_BenchmarkFailureFailsCycle(t *testing.T) {
	mock := seedExchange(t)
	mock.FailMarkets["KRW-BTC"] = true
	scanner := newTestScanner(mock)

	_, _, err := scanner.Scan(context.Background(), testStart)
	assert.Error(t, err)
}

func TestBuildUniverse(t *testing.T) {
	mock := exchange.NewMockClient()
	mock.MarketList = []exchange.MarketInfo{
		{Market: "KRW-BBB"},
		{Market: "KRW-AAA"},
		{Market: "BTC-ETH"},
		{Market: "KRW-BAD", Warning: true},
	}

	config := DefaultUniverseConfig()
	universe, err := BuildUniverse(context.Background(), mock, config)
	require.NoError(t, err)
	assert.Equal(t, []string{"KRW-AAA", "KRW-BBB"}, universe)
}

func TestBuildUniverse_TurnoverFloor(t *testing.T) {
	mock := exchange.NewMockClient()
	mock.MarketList = []exchange.MarketInfo{
		{Market: "KRW-AAA"},
		{Market: "KRW-BBB"},
	}
	mock.Prices["KRW-AAA"] = 100
	mock.Prices["KRW-BBB"] = 100

	config := DefaultUniverseConfig()
	config.MinTurnover24h = 1e9
	universe, err := BuildUniverse(context.Background(), mock, config)
	require.NoError(t, err)
	assert.Empty(t, universe)
}

func TestBuildUniverse_Cap(t *testing.T) {
	mock := exchange.NewMockClient()
	mock.MarketList = []exchange.MarketInfo{
		{Market: "KRW-CCC"},
		{Market: "KRW-AAA"},
		{Market: "KRW-BBB"},
	}

	config := DefaultUniverseConfig()
	config.MaxMarkets = 2
	universe, err := BuildUniverse(context.Background(), mock, config)
	require.NoError(t, err)
	assert.Equal(t, []string{"KRW-AAA", "KRW-BBB"}, universe)
}
