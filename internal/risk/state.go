package risk

import "time"

// DayState is the daily risk bookkeeping, keyed by trading date. It is the
// unit of persistence: a restart mid-session reloads it so earlier losses
// and an active halt are not forgotten.
type DayState struct {
	Date              string          `json:"date"` // YYYY-MM-DD, session-local
	StartEquity       float64         `json:"start_equity"`
	RealizedPnL       float64         `json:"realized_pnl"`
	Halted            bool            `json:"halted"`
	HaltReason        string          `json:"halt_reason,omitempty"`
	HaltedAt          time.Time       `json:"halted_at,omitempty"`
	Trades            int             `json:"trades"`
	Wins              int             `json:"wins"`
	Losses            int             `json:"losses"`
	ConsecutiveLosses map[string]int  `json:"consecutive_losses"` // per market
	BannedMarkets     map[string]bool `json:"banned_markets"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// NewDayState creates a fresh day state for the given trading date.
func NewDayState(date string, startEquity float64) *DayState {
	return &DayState{
		Date:              date,
		StartEquity:       startEquity,
		ConsecutiveLosses: make(map[string]int),
		BannedMarkets:     make(map[string]bool),
	}
}

// Equity returns start-of-day equity adjusted by realized PnL.
func (s *DayState) Equity() float64 {
	return s.StartEquity + s.RealizedPnL
}

// Clone returns a deep copy of the state.
func (s *DayState) Clone() *DayState {
	copied := *s
	copied.ConsecutiveLosses = make(map[string]int, len(s.ConsecutiveLosses))
	for k, v := range s.ConsecutiveLosses {
		copied.ConsecutiveLosses[k] = v
	}
	copied.BannedMarkets = make(map[string]bool, len(s.BannedMarkets))
	for k, v := range s.BannedMarkets {
		copied.BannedMarkets[k] = v
	}
	return &copied
}
