package indicator

import "github.com/mohamedkhairy/crypto-trader/internal/models"

// Return computes the simple return of the latest close against the close
// `periods` candles earlier.
func Return(candles []models.Candle, periods int) (float64, error) {
	if periods <= 0 {
		return 0, ErrInsufficientHistory
	}
	n := len(candles)
	if n < periods+1 {
		return 0, ErrInsufficientHistory
	}
	base := candles[n-1-periods].Close
	if base <= 0 {
		return 0, ErrInsufficientHistory
	}
	return candles[n-1].Close/base - 1, nil
}

// RVol computes relative volume: the volume of the latest candle divided by
// the mean volume of the preceding `window` candles. ok is false when the
// baseline volume is zero.
func RVol(candles []models.Candle, window int) (rvol float64, ok bool, err error) {
	n := len(candles)
	if window <= 0 || n < window+1 {
		return 0, false, ErrInsufficientHistory
	}
	var sum float64
	for _, c := range candles[n-1-window : n-1] {
		sum += c.Volume
	}
	mean := sum / float64(window)
	if mean <= 0 {
		return 0, false, nil
	}
	return candles[n-1].Volume / mean, true, nil
}

// MeanVolume returns the average volume of the last `window` closed candles,
// excluding the most recent one.
func MeanVolume(candles []models.Candle, window int) (float64, error) {
	n := len(candles)
	if window <= 0 || n < window+1 {
		return 0, ErrInsufficientHistory
	}
	var sum float64
	for _, c := range candles[n-1-window : n-1] {
		sum += c.Volume
	}
	return sum / float64(window), nil
}
