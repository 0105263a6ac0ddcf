package indicator

import (
	"time"

	"github.com/mohamedkhairy/crypto-trader/internal/models"
)

// VWAP accumulates a volume-weighted average price incrementally.
type VWAP struct {
	sumPV float64
	sumV  float64
}

// Add folds one price/volume observation into the accumulator.
func (v *VWAP) Add(price, volume float64) {
	v.sumPV += price * volume
	v.sumV += volume
}

// Value returns the current VWAP. ok is false when no volume has been
// accumulated.
func (v *VWAP) Value() (value float64, ok bool) {
	if v.sumV <= 0 {
		return 0, false
	}
	return v.sumPV / v.sumV, true
}

// Reset clears the accumulator for a new session.
func (v *VWAP) Reset() {
	v.sumPV = 0
	v.sumV = 0
}

// SessionVWAP computes the volume-weighted average close price over the
// candles at or after sessionStart. It returns ok=false when total volume in
// the window is zero.
func SessionVWAP(candles []models.Candle, sessionStart time.Time) (value float64, ok bool) {
	var v VWAP
	for _, c := range candles {
		if c.Timestamp.Before(sessionStart) {
			continue
		}
		v.Add(c.Close, c.Volume)
	}
	return v.Value()
}
