package signal

import (
	"time"

	"github.com/mohamedkhairy/crypto-trader/internal/feature"
	"github.com/mohamedkhairy/crypto-trader/internal/models"
	"github.com/mohamedkhairy/crypto-trader/pkg/indicator"
)

// sweep implements the liquidity-sweep setup: a confirmed swing low gets
// penetrated by at least an ATR fraction, then price closes back above the
// level on heavy volume within the same or the following bar.
type sweep struct {
	config Config
}

func (sweep) name() Strategy { return StrategySweep }

func (s sweep) evaluate(st *marketState, snap *models.MarketSnapshot, vec *feature.Vector, now time.Time, session Window) *Intent {
	last, ok := snap.LastCandle()
	if !ok {
		return nil
	}

	levels := indicator.Swings(snap.Candles, s.config.SweepLookback, s.config.SweepBuffer)
	if !levels.HasLow {
		return nil
	}
	penetration := s.config.SweepPenetrationATR * vec.ATR

	state := st.states[StrategySweep]
	if state == "" {
		state = StateIdle
	}

	swept := last.Low <= levels.Low-penetration
	recovered := last.Close > levels.Low

	switch state {
	case StateIdle:
		if !swept {
			return nil
		}
		// Track the sweep extreme for the stop.
		st.sweepLow = last.Low
		if !recovered {
			// Recovery may come on the next bar.
			st.states[StrategySweep] = StateArmed
			st.sweepArmedAt = last.Timestamp
			return nil
		}
	case StateArmed:
		if last.Low < st.sweepLow {
			st.sweepLow = last.Low
		}
		// One bar of grace; a stale sweep is no longer a sweep.
		if last.Timestamp.Sub(st.sweepArmedAt) > session.CandlePeriod() {
			st.states[StrategySweep] = StateIdle
			st.sweepLow = 0
			return nil
		}
		if !recovered {
			return nil
		}
	default:
		return nil
	}

	meanVol, err := indicator.MeanVolume(snap.Candles, s.config.VolumeWindow)
	if err != nil || meanVol <= 0 {
		return nil
	}
	if last.Volume < s.config.SweepVolMult*meanVol {
		st.states[StrategySweep] = StateIdle
		st.sweepLow = 0
		return nil
	}

	entry := last.Close
	stop := st.sweepLow - s.config.SweepStopATR*vec.ATR
	if stop >= entry {
		return nil
	}

	return &Intent{
		Market:    snap.Market,
		Strategy:  StrategySweep,
		Side:      models.SideBuy,
		Entry:     entry,
		Stop:      stop,
		Target:    entry + s.config.SweepTargetATR*vec.ATR,
		CreatedAt: now,
	}
}
