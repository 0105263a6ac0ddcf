package signal

import (
	"time"

	"github.com/mohamedkhairy/crypto-trader/internal/feature"
	"github.com/mohamedkhairy/crypto-trader/internal/models"
	"github.com/mohamedkhairy/crypto-trader/pkg/indicator"
)

// orbBox is the opening-range high/low accumulated during the opening
// window.
type orbBox struct {
	high     float64
	low      float64
	observed bool
}

func (b *orbBox) extend(c models.Candle) {
	if !b.observed || c.High > b.high {
		b.high = c.High
	}
	if !b.observed || c.Low < b.low {
		b.low = c.Low
	}
	b.observed = true
}

func (b *orbBox) size() float64 {
	return b.high - b.low
}

// breakout implements the opening-range breakout setup. The box builds while
// the opening window is open; the machine arms when the window closes and
// triggers on a volume-confirmed close above the box plus an ATR buffer.
type breakout struct {
	config Config
}

func (breakout) name() Strategy { return StrategyBreakout }

func (s breakout) evaluate(st *marketState, snap *models.MarketSnapshot, vec *feature.Vector, now time.Time, session Window) *Intent {
	last, ok := snap.LastCandle()
	if !ok {
		return nil
	}

	openEnd := session.Start.Add(s.config.OpeningRange)
	for _, c := range snap.Candles {
		if !c.Timestamp.Before(session.Start) && c.Timestamp.Before(openEnd) {
			st.box.extend(c)
		}
	}

	if now.Before(openEnd) || !st.box.observed {
		st.states[StrategyBreakout] = StateIdle
		return nil
	}
	if st.states[StrategyBreakout] == StateIdle || st.states[StrategyBreakout] == "" {
		st.states[StrategyBreakout] = StateArmed
	}
	if st.states[StrategyBreakout] != StateArmed {
		return nil
	}

	buffer := s.config.BreakoutBufferATR * vec.ATR
	if last.Close <= st.box.high+buffer {
		return nil
	}
	meanVol, err := indicator.MeanVolume(snap.Candles, s.config.VolumeWindow)
	if err != nil || meanVol <= 0 {
		return nil
	}
	if last.Volume < s.config.BreakoutVolMult*meanVol {
		return nil
	}

	entry := last.Close
	stop := st.box.low - s.config.BreakoutStopATR*vec.ATR
	targetRange := st.box.size()
	if min := s.config.BreakoutTargetATR * vec.ATR; min > targetRange {
		targetRange = min
	}

	return &Intent{
		Market:    snap.Market,
		Strategy:  StrategyBreakout,
		Side:      models.SideBuy,
		Entry:     entry,
		Stop:      stop,
		Target:    entry + targetRange,
		CreatedAt: now,
	}
}
