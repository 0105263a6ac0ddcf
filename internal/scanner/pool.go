package scanner

import (
	"context"
	"sync"
	"time"

	"github.com/mohamedkhairy/crypto-trader/internal/exchange"
	"github.com/mohamedkhairy/crypto-trader/internal/models"
	"github.com/mohamedkhairy/crypto-trader/pkg/logger"
)

// fetchResult carries one market's snapshot or the error that excluded it.
type fetchResult struct {
	market string
	snap   *models.MarketSnapshot
	err    error
}

// fetchSnapshots pulls candle and order book data for every market through a
// bounded worker pool. Markets that fail stay absent from the result; a
// failed market never fails the cycle.
func fetchSnapshots(ctx context.Context, md exchange.MarketData, markets []string, config Config) map[string]*models.MarketSnapshot {
	workers := config.Workers
	if workers <= 0 {
		workers = 1
	}

	jobs := make(chan string)
	results := make(chan fetchResult, len(markets))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for market := range jobs {
				snap, err := fetchOne(ctx, md, market, config)
				results <- fetchResult{market: market, snap: snap, err: err}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, market := range markets {
			select {
			case jobs <- market:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	snapshots := make(map[string]*models.MarketSnapshot, len(markets))
	for res := range results {
		if res.err != nil {
			logger.MarketFetchErrors.WithLabelValues(res.market).Inc()
			logger.Warn("Skipping market after fetch failure",
				logger.String("market", res.market),
				logger.ErrorField(res.err),
			)
			continue
		}
		snapshots[res.market] = res.snap
	}
	return snapshots
}

func fetchOne(ctx context.Context, md exchange.MarketData, market string, config Config) (*models.MarketSnapshot, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, config.FetchTimeout)
	defer cancel()

	candles, err := md.Candles(fetchCtx, market, config.CandleUnit, config.CandleCount)
	if err != nil {
		return nil, err
	}
	book, err := md.OrderBook(fetchCtx, market)
	if err != nil {
		return nil, err
	}

	snap := &models.MarketSnapshot{
		Market:    market,
		Candles:   candles,
		Book:      book,
		FetchedAt: time.Now().UTC(),
	}
	if last, ok := snap.LastCandle(); ok {
		snap.Price = last.Close
	}
	return snap, nil
}
