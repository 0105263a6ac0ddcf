package indicator

import (
	"errors"
	"time"

	"github.com/sdcoffey/big"
	"github.com/sdcoffey/techan"

	"github.com/mohamedkhairy/crypto-trader/internal/models"
)

// ErrInsufficientHistory is returned when a calculation needs more candles
// than were supplied.
var ErrInsufficientHistory = errors.New("insufficient history")

// Series converts candles into a techan TimeSeries. Candles are assumed to be
// ordered oldest first and to share the given period.
func Series(candles []models.Candle, unit time.Duration) *techan.TimeSeries {
	series := techan.NewTimeSeries()
	for _, c := range candles {
		candle := techan.NewCandle(techan.NewTimePeriod(c.Timestamp, unit))
		candle.OpenPrice = big.NewDecimal(c.Open)
		candle.MaxPrice = big.NewDecimal(c.High)
		candle.MinPrice = big.NewDecimal(c.Low)
		candle.ClosePrice = big.NewDecimal(c.Close)
		candle.Volume = big.NewDecimal(c.Volume)
		series.AddCandle(candle)
	}
	return series
}

// EMA returns the exponential moving average of closing prices over the given
// period, evaluated at the most recent candle.
func EMA(candles []models.Candle, period int, unit time.Duration) (float64, error) {
	if len(candles) < period {
		return 0, ErrInsufficientHistory
	}
	series := Series(candles, unit)
	ema := techan.NewEMAIndicator(techan.NewClosePriceIndicator(series), period)
	return ema.Calculate(series.LastIndex()).Float(), nil
}

// ATR returns the average true range over the given period, evaluated at the
// most recent candle.
func ATR(candles []models.Candle, period int, unit time.Duration) (float64, error) {
	if len(candles) < period+1 {
		return 0, ErrInsufficientHistory
	}
	series := Series(candles, unit)
	atr := techan.NewAverageTrueRangeIndicator(series, period)
	return atr.Calculate(series.LastIndex()).Float(), nil
}
