package signal

import (
	"time"

	"github.com/mohamedkhairy/crypto-trader/internal/feature"
	"github.com/mohamedkhairy/crypto-trader/internal/models"
)

// pullback implements the session-VWAP pullback setup: price first extends
// above the VWAP band, then re-enters it with the trend intact and a
// pullback depth inside the configured range.
type pullback struct {
	config Config
}

func (pullback) name() Strategy { return StrategyPullback }

func (s pullback) evaluate(st *marketState, snap *models.MarketSnapshot, vec *feature.Vector, now time.Time, session Window) *Intent {
	last, ok := snap.LastCandle()
	if !ok {
		return nil
	}

	band := s.config.PullbackBandATR * vec.ATR
	upper := vec.SessionVWAP + band
	lower := vec.SessionVWAP - band

	state := st.states[StrategyPullback]
	if state == "" {
		state = StateIdle
	}

	// Extension above the band arms the machine and marks the high the
	// pullback is measured from.
	if last.Close > upper {
		st.states[StrategyPullback] = StateArmed
		if last.High > st.pullbackHigh {
			st.pullbackHigh = last.High
		}
		return nil
	}
	if state != StateArmed {
		return nil
	}
	if last.High > st.pullbackHigh {
		st.pullbackHigh = last.High
	}

	// Re-entry into the band, trend intact.
	if last.Close < lower || last.Close > upper {
		return nil
	}
	if vec.EMAFast <= vec.EMASlow {
		return nil
	}
	if st.pullbackHigh <= 0 {
		return nil
	}
	depth := (st.pullbackHigh - last.Close) / st.pullbackHigh
	if depth < s.config.PullbackMinPct || depth > s.config.PullbackMaxPct {
		return nil
	}

	entry := last.Close
	stop := vec.SessionVWAP - s.config.PullbackStopATR*vec.ATR
	if stop >= entry {
		return nil
	}

	return &Intent{
		Market:    snap.Market,
		Strategy:  StrategyPullback,
		Side:      models.SideBuy,
		Entry:     entry,
		Stop:      stop,
		Target:    entry + s.config.PullbackTargetATR*vec.ATR,
		CreatedAt: now,
	}
}
