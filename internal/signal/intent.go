package signal

import (
	"time"

	"github.com/mohamedkhairy/crypto-trader/internal/models"
)

// Strategy identifies which setup produced an intent.
type Strategy string

const (
	StrategyBreakout Strategy = "orb_breakout"
	StrategyPullback Strategy = "vwap_pullback"
	StrategySweep    Strategy = "liquidity_sweep"
)

// State is the lifecycle of one market/strategy machine.
type State string

const (
	StateIdle      State = "idle"
	StateArmed     State = "armed"
	StateTriggered State = "triggered"
)

// Intent is a fully-specified trade proposal: what to buy, where the thesis
// is wrong (stop) and where to take profit (target). It carries no sizing;
// that belongs to the risk gate.
type Intent struct {
	Market    string      `json:"market"`
	Strategy  Strategy    `json:"strategy"`
	Side      models.Side `json:"side"`
	Entry     float64     `json:"entry"`
	Stop      float64     `json:"stop"`
	Target    float64     `json:"target"`
	Score     float64     `json:"score"`
	CreatedAt time.Time   `json:"created_at"`
}

// Validate checks intent plausibility for a long entry.
func (i *Intent) Validate() error {
	if i.Market == "" {
		return models.ErrInvalidMarket
	}
	if i.Entry <= 0 || i.Stop <= 0 || i.Target <= 0 {
		return models.ErrInvalidPrice
	}
	if i.Side == models.SideBuy && (i.Stop >= i.Entry || i.Target <= i.Entry) {
		return models.ErrInvalidPrice
	}
	return nil
}
