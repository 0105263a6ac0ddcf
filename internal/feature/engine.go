package feature

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/mohamedkhairy/crypto-trader/internal/models"
	"github.com/mohamedkhairy/crypto-trader/pkg/indicator"
)

var (
	// ErrInsufficientHistory is returned when a market has too few candles
	// for the configured lookbacks.
	ErrInsufficientHistory = indicator.ErrInsufficientHistory
	// ErrFeatureUnavailable is returned when a feature denominator is zero
	// (no baseline volume, one-sided book). The market is excluded for the
	// cycle rather than carrying an Inf or NaN downstream.
	ErrFeatureUnavailable = errors.New("feature unavailable")
)

// Vector is the full feature set computed for one market in one scan cycle.
type Vector struct {
	Market      string
	RVol        float64
	RS          float64
	SessionVWAP float64
	EMAFast     float64
	EMASlow     float64
	ATR         float64
	Trend       bool
	SpreadBP    float64
	DepthScore  float64
	Price       float64
	Volume      float64
	ComputedAt  time.Time
}

// Config holds feature engine parameters
type Config struct {
	CandleUnit        int // candle size in minutes
	RVolWindow        int
	RSLookbackMinutes int
	EMAFastPeriod     int
	EMASlowPeriod     int
	ATRPeriod         int
	LogDepthCap       float64
}

// DefaultConfig returns the default feature engine configuration
func DefaultConfig() Config {
	return Config{
		CandleUnit:        5,
		RVolWindow:        20,
		RSLookbackMinutes: 60,
		EMAFastPeriod:     20,
		EMASlowPeriod:     50,
		ATRPeriod:         14,
		LogDepthCap:       10,
	}
}

// Engine computes feature vectors from market snapshots. It is stateless;
// every feature derives from the snapshot and benchmark passed in.
type Engine struct {
	config Config
}

// NewEngine creates a new feature engine
func NewEngine(config Config) *Engine {
	return &Engine{config: config}
}

// MinCandles returns the candle history depth the engine needs.
func (e *Engine) MinCandles() int {
	min := e.config.RVolWindow + 1
	if n := e.rsPeriods() + 1; n > min {
		min = n
	}
	if n := e.config.EMASlowPeriod; n > min {
		min = n
	}
	if n := e.config.ATRPeriod + 1; n > min {
		min = n
	}
	return min
}

func (e *Engine) rsPeriods() int {
	if e.config.CandleUnit <= 0 {
		return 0
	}
	return e.config.RSLookbackMinutes / e.config.CandleUnit
}

// Compute builds the feature vector for one market. benchmark carries the
// reference market's candles for relative strength; sessionStart anchors the
// session VWAP window.
func (e *Engine) Compute(snap *models.MarketSnapshot, benchmark []models.Candle, sessionStart time.Time) (*Vector, error) {
	if err := snap.Validate(); err != nil {
		return nil, fmt.Errorf("invalid snapshot for %s: %w", snap.Market, err)
	}
	candles := snap.Candles
	if len(candles) < e.MinCandles() {
		return nil, fmt.Errorf("market %s: %w", snap.Market, ErrInsufficientHistory)
	}

	rvol, ok, err := indicator.RVol(candles, e.config.RVolWindow)
	if err != nil {
		return nil, fmt.Errorf("market %s rvol: %w", snap.Market, err)
	}
	if !ok {
		return nil, fmt.Errorf("market %s rvol baseline: %w", snap.Market, ErrFeatureUnavailable)
	}

	periods := e.rsPeriods()
	marketRet, err := indicator.Return(candles, periods)
	if err != nil {
		return nil, fmt.Errorf("market %s return: %w", snap.Market, err)
	}
	benchRet, err := indicator.Return(benchmark, periods)
	if err != nil {
		return nil, fmt.Errorf("benchmark return: %w", err)
	}
	rs := marketRet - benchRet

	vwap, ok := indicator.SessionVWAP(candles, sessionStart)
	if !ok {
		return nil, fmt.Errorf("market %s session vwap: %w", snap.Market, ErrFeatureUnavailable)
	}

	unit := time.Duration(e.config.CandleUnit) * time.Minute
	emaFast, err := indicator.EMA(candles, e.config.EMAFastPeriod, unit)
	if err != nil {
		return nil, fmt.Errorf("market %s ema fast: %w", snap.Market, err)
	}
	emaSlow, err := indicator.EMA(candles, e.config.EMASlowPeriod, unit)
	if err != nil {
		return nil, fmt.Errorf("market %s ema slow: %w", snap.Market, err)
	}
	atr, err := indicator.ATR(candles, e.config.ATRPeriod, unit)
	if err != nil {
		return nil, fmt.Errorf("market %s atr: %w", snap.Market, err)
	}

	spread := snap.Book.SpreadBP()
	if spread < 0 {
		return nil, fmt.Errorf("market %s spread: %w", snap.Market, ErrFeatureUnavailable)
	}

	last := candles[len(candles)-1]
	trend := emaFast > emaSlow && last.Close > vwap

	return &Vector{
		Market:      snap.Market,
		RVol:        rvol,
		RS:          rs,
		SessionVWAP: vwap,
		EMAFast:     emaFast,
		EMASlow:     emaSlow,
		ATR:         atr,
		Trend:       trend,
		SpreadBP:    spread,
		DepthScore:  e.depthScore(snap.Book.TotalDepth()),
		Price:       last.Close,
		Volume:      last.Volume,
		ComputedAt:  snap.FetchedAt,
	}, nil
}

func (e *Engine) depthScore(totalDepth float64) float64 {
	if totalDepth <= 0 || e.config.LogDepthCap <= 0 {
		return 0
	}
	score := math.Log1p(totalDepth) / e.config.LogDepthCap
	if score > 1 {
		return 1
	}
	return score
}
