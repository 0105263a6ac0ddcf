package indicator

import "github.com/mohamedkhairy/crypto-trader/internal/models"

// SwingLevels holds the most recent confirmed swing high and low.
type SwingLevels struct {
	High    float64
	HasHigh bool
	Low     float64
	HasLow  bool
}

// Swings scans the last `lookback` candles for local extremes. A candle is a
// swing high when its high exceeds the highs of `buffer` candles on each side,
// and a swing low when its low undercuts the lows of `buffer` candles on each
// side. The most recent confirmed extreme of each kind is returned.
func Swings(candles []models.Candle, lookback, buffer int) SwingLevels {
	var levels SwingLevels
	n := len(candles)
	if buffer <= 0 || n < 2*buffer+1 {
		return levels
	}
	start := n - lookback
	if start < buffer {
		start = buffer
	}
	// The last `buffer` candles cannot confirm an extreme yet.
	for i := start; i < n-buffer; i++ {
		if isSwingHigh(candles, i, buffer) {
			levels.High = candles[i].High
			levels.HasHigh = true
		}
		if isSwingLow(candles, i, buffer) {
			levels.Low = candles[i].Low
			levels.HasLow = true
		}
	}
	return levels
}

func isSwingHigh(candles []models.Candle, i, buffer int) bool {
	h := candles[i].High
	for j := i - buffer; j <= i+buffer; j++ {
		if j == i {
			continue
		}
		if candles[j].High >= h {
			return false
		}
	}
	return true
}

func isSwingLow(candles []models.Candle, i, buffer int) bool {
	l := candles[i].Low
	for j := i - buffer; j <= i+buffer; j++ {
		if j == i {
			continue
		}
		if candles[j].Low <= l {
			return false
		}
	}
	return true
}
