package signal

import (
	"sync"
	"time"

	"github.com/mohamedkhairy/crypto-trader/internal/feature"
	"github.com/mohamedkhairy/crypto-trader/internal/models"
	"github.com/mohamedkhairy/crypto-trader/internal/scanner"
	"github.com/mohamedkhairy/crypto-trader/pkg/logger"
)

// Config holds signal engine parameters
type Config struct {
	OpeningRange time.Duration // length of the opening-range window
	CandleUnit   int           // candle size in minutes
	VolumeWindow int

	BreakoutBufferATR float64
	BreakoutVolMult   float64
	BreakoutStopATR   float64
	BreakoutTargetATR float64

	PullbackBandATR   float64
	PullbackMinPct    float64
	PullbackMaxPct    float64
	PullbackStopATR   float64
	PullbackTargetATR float64

	SweepLookback       int
	SweepBuffer         int
	SweepPenetrationATR float64
	SweepVolMult        float64
	SweepStopATR        float64
	SweepTargetATR      float64
}

// DefaultConfig returns the default signal engine configuration
func DefaultConfig() Config {
	return Config{
		OpeningRange:        time.Hour,
		CandleUnit:          5,
		VolumeWindow:        20,
		BreakoutBufferATR:   0.1,
		BreakoutVolMult:     1.5,
		BreakoutStopATR:     0.5,
		BreakoutTargetATR:   1.5,
		PullbackBandATR:     0.25,
		PullbackMinPct:      0.005,
		PullbackMaxPct:      0.02,
		PullbackStopATR:     0.5,
		PullbackTargetATR:   1.5,
		SweepLookback:       50,
		SweepBuffer:         5,
		SweepPenetrationATR: 0.05,
		SweepVolMult:        2.0,
		SweepStopATR:        0.5,
		SweepTargetATR:      1.5,
	}
}

// Window is the active trading session seen by one evaluation cycle.
type Window struct {
	Start      time.Time
	End        time.Time
	CandleUnit int
}

// CandlePeriod returns the candle duration of the session.
func (w Window) CandlePeriod() time.Duration {
	return time.Duration(w.CandleUnit) * time.Minute
}

// marketState carries per-market machine state across cycles within one
// session.
type marketState struct {
	market       string
	states       map[Strategy]State
	box          orbBox
	pullbackHigh float64
	sweepLow     float64
	sweepArmedAt time.Time
}

func newMarketState(market string) *marketState {
	return &marketState{
		market: market,
		states: make(map[Strategy]State),
	}
}

type strategy interface {
	name() Strategy
	evaluate(st *marketState, snap *models.MarketSnapshot, vec *feature.Vector, now time.Time, session Window) *Intent
}

// Engine runs per-market strategy machines over scan candidates. A machine
// lives as long as its market stays a candidate within the session; each
// (market, strategy) pair triggers at most once per session, and a market
// emits at most one intent per cycle with breakout taking precedence over
// pullback over sweep.
type Engine struct {
	config     Config
	strategies []strategy

	mu        sync.Mutex
	machines  map[string]*marketState
	triggered map[string]map[Strategy]bool
}

// NewEngine creates a new signal engine
func NewEngine(config Config) *Engine {
	return &Engine{
		config: config,
		strategies: []strategy{
			breakout{config: config},
			pullback{config: config},
			sweep{config: config},
		},
		machines:  make(map[string]*marketState),
		triggered: make(map[string]map[Strategy]bool),
	}
}

// Evaluate runs one cycle over the ranked candidates and returns at most one
// intent per market.
func (e *Engine) Evaluate(candidates []scanner.Candidate, now time.Time, session Window) []Intent {
	e.mu.Lock()
	defer e.mu.Unlock()

	// Machines for markets that dropped out of candidacy are discarded;
	// the per-session trigger record survives so a returning market cannot
	// re-fire a consumed setup.
	current := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		current[c.Market] = true
	}
	for market := range e.machines {
		if !current[market] {
			delete(e.machines, market)
		}
	}

	var intents []Intent
	for _, cand := range candidates {
		st, ok := e.machines[cand.Market]
		if !ok {
			st = newMarketState(cand.Market)
			e.machines[cand.Market] = st
		}

		for _, strat := range e.strategies {
			name := strat.name()
			if e.triggered[cand.Market][name] {
				continue
			}
			intent := strat.evaluate(st, cand.Snapshot, cand.Features, now, session)
			if intent == nil {
				continue
			}
			intent.Score = cand.Score
			if err := intent.Validate(); err != nil {
				logger.Warn("Discarding implausible intent",
					logger.String("market", intent.Market),
					logger.String("strategy", string(intent.Strategy)),
					logger.ErrorField(err),
				)
				continue
			}

			st.states[name] = StateTriggered
			if e.triggered[cand.Market] == nil {
				e.triggered[cand.Market] = make(map[Strategy]bool)
			}
			e.triggered[cand.Market][name] = true

			logger.SignalIntentsTotal.WithLabelValues(string(name)).Inc()
			logger.Info("Trade intent",
				logger.String("market", intent.Market),
				logger.String("strategy", string(intent.Strategy)),
				logger.Float64("entry", intent.Entry),
				logger.Float64("stop", intent.Stop),
				logger.Float64("target", intent.Target),
			)
			intents = append(intents, *intent)
			break // one intent per market per cycle
		}
	}
	return intents
}

// ResetSession discards all machine state and trigger records. Called when a
// trading session ends; armed setups do not survive into the next session.
func (e *Engine) ResetSession() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.machines = make(map[string]*marketState)
	e.triggered = make(map[string]map[Strategy]bool)
}

// States returns a copy of the machine states for one market, for
// observability.
func (e *Engine) States(market string) map[Strategy]State {
	e.mu.Lock()
	defer e.mu.Unlock()
	st, ok := e.machines[market]
	if !ok {
		return nil
	}
	out := make(map[Strategy]State, len(st.states))
	for k, v := range st.states {
		out[k] = v
	}
	return out
}
