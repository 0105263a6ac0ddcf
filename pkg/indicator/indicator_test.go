package indicator

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/mohamedkhairy/crypto-trader/internal/models"
)

func makeCandles(closes []float64, volume float64) []models.Candle {
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	candles := make([]models.Candle, len(closes))
	for i, c := range closes {
		candles[i] = models.Candle{
			Market:    "KRW-BTC",
			Timestamp: base.Add(time.Duration(i) * 5 * time.Minute),
			Open:      c,
			High:      c + 1,
			Low:       c - 1,
			Close:     c,
			Volume:    volume,
		}
	}
	return candles
}

func TestReturn(t *testing.T) {
	candles := makeCandles([]float64{100, 101, 102, 110}, 1)

	ret, err := Return(candles, 3)
	if err != nil {
		t.Fatalf("Return failed: %v", err)
	}
	if math.Abs(ret-0.10) > 1e-9 {
		t.Errorf("Expected 0.10, got %f", ret)
	}

	_, err = Return(candles, 10)
	if !errors.Is(err, ErrInsufficientHistory) {
		t.Errorf("Expected ErrInsufficientHistory, got %v", err)
	}
}

func TestRVol(t *testing.T) {
	candles := makeCandles([]float64{100, 100, 100, 100, 100}, 10)
	// Last candle has triple the baseline volume.
	candles[len(candles)-1].Volume = 30

	rvol, ok, err := RVol(candles, 4)
	if err != nil {
		t.Fatalf("RVol failed: %v", err)
	}
	if !ok {
		t.Fatal("Expected rvol to be available")
	}
	if math.Abs(rvol-3.0) > 1e-9 {
		t.Errorf("Expected 3.0, got %f", rvol)
	}
}

func TestRVol_ZeroBaseline(t *testing.T) {
	candles := makeCandles([]float64{100, 100, 100}, 0)
	candles[len(candles)-1].Volume = 5

	_, ok, err := RVol(candles, 2)
	if err != nil {
		t.Fatalf("RVol failed: %v", err)
	}
	if ok {
		t.Error("Expected rvol unavailable with zero baseline volume")
	}
}

func TestRVol_InsufficientHistory(t *testing.T) {
	candles := makeCandles([]float64{100, 100}, 10)
	_, _, err := RVol(candles, 20)
	if !errors.Is(err, ErrInsufficientHistory) {
		t.Errorf("Expected ErrInsufficientHistory, got %v", err)
	}
}

func TestSessionVWAP(t *testing.T) {
	candles := makeCandles([]float64{100, 200}, 0)
	candles[0].Volume = 1
	candles[1].Volume = 3

	vwap, ok := SessionVWAP(candles, candles[0].Timestamp)
	if !ok {
		t.Fatal("Expected vwap to be available")
	}
	// (100*1 + 200*3) / 4 = 175
	if math.Abs(vwap-175.0) > 1e-9 {
		t.Errorf("Expected 175.0, got %f", vwap)
	}
}

func TestSessionVWAP_ExcludesPreSession(t *testing.T) {
	candles := makeCandles([]float64{50, 100}, 1)

	vwap, ok := SessionVWAP(candles, candles[1].Timestamp)
	if !ok {
		t.Fatal("Expected vwap to be available")
	}
	if math.Abs(vwap-100.0) > 1e-9 {
		t.Errorf("Expected 100.0, got %f", vwap)
	}
}

func TestSessionVWAP_ZeroVolume(t *testing.T) {
	candles := makeCandles([]float64{100, 100}, 0)
	if _, ok := SessionVWAP(candles, candles[0].Timestamp); ok {
		t.Error("Expected vwap unavailable with zero volume")
	}
}

func TestVWAP_Reset(t *testing.T) {
	var v VWAP
	v.Add(100, 2)
	if val, ok := v.Value(); !ok || val != 100 {
		t.Fatalf("Expected 100, got %f (ok=%v)", val, ok)
	}
	v.Reset()
	if _, ok := v.Value(); ok {
		t.Error("Expected empty accumulator after reset")
	}
}

func TestEMA(t *testing.T) {
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 100
	}
	candles := makeCandles(closes, 1)

	ema, err := EMA(candles, 20, 5*time.Minute)
	if err != nil {
		t.Fatalf("EMA failed: %v", err)
	}
	// Constant series: EMA must converge to the constant.
	if math.Abs(ema-100.0) > 1e-6 {
		t.Errorf("Expected 100.0, got %f", ema)
	}

	_, err = EMA(candles[:5], 20, 5*time.Minute)
	if !errors.Is(err, ErrInsufficientHistory) {
		t.Errorf("Expected ErrInsufficientHistory, got %v", err)
	}
}

func TestATR(t *testing.T) {
	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = 100
	}
	// makeCandles builds a constant 2-point high-low range.
	candles := makeCandles(closes, 1)

	atr, err := ATR(candles, 14, 5*time.Minute)
	if err != nil {
		t.Fatalf("ATR failed: %v", err)
	}
	if math.Abs(atr-2.0) > 1e-6 {
		t.Errorf("Expected 2.0, got %f", atr)
	}

	_, err = ATR(candles[:10], 14, 5*time.Minute)
	if !errors.Is(err, ErrInsufficientHistory) {
		t.Errorf("Expected ErrInsufficientHistory, got %v", err)
	}
}

func TestMeanVolume(t *testing.T) {
	candles := makeCandles([]float64{100, 100, 100, 100}, 10)
	candles[len(candles)-1].Volume = 99 // must be excluded from the mean

	mean, err := MeanVolume(candles, 3)
	if err != nil {
		t.Fatalf("MeanVolume failed: %v", err)
	}
	if math.Abs(mean-10.0) > 1e-9 {
		t.Errorf("Expected 10.0, got %f", mean)
	}
}

func TestSwings(t *testing.T) {
	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = 100
	}
	candles := makeCandles(closes, 1)
	// Carve out one clear swing high and one clear swing low.
	candles[10].High = 120
	candles[18].Low = 80

	levels := Swings(candles, 30, 5)
	if !levels.HasHigh {
		t.Fatal("Expected a swing high")
	}
	if levels.High != 120 {
		t.Errorf("Expected swing high 120, got %f", levels.High)
	}
	if !levels.HasLow {
		t.Fatal("Expected a swing low")
	}
	if levels.Low != 80 {
		t.Errorf("Expected swing low 80, got %f", levels.Low)
	}
}

func TestSwings_UnconfirmedExtreme(t *testing.T) {
	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = 100
	}
	candles := makeCandles(closes, 1)
	// An extreme inside the trailing buffer is not confirmed yet.
	candles[28].High = 130

	levels := Swings(candles, 30, 5)
	if levels.HasHigh {
		t.Errorf("Expected no confirmed swing high, got %f", levels.High)
	}
}

func TestSwings_TooFewCandles(t *testing.T) {
	candles := makeCandles([]float64{100, 101, 102}, 1)
	levels := Swings(candles, 50, 5)
	if levels.HasHigh || levels.HasLow {
		t.Error("Expected no swings with too few candles")
	}
}
