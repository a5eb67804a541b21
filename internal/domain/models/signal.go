package models

import "time"

type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

// Valid reports whether s is LONG or SHORT.
func (s Side) Valid() bool { return s == SideLong || s == SideShort }

type Origin string

const (
	OriginRule Origin = "rule"
	OriginAI   Origin = "ai"
)

const (
	MarketSpot    = "spot"
	MarketFutures = "futures"
)

// CanonicalSignal is the durable output of extraction. A zero EntryMin means
// no entry was found; prices are always strictly positive.
type CanonicalSignal struct {
	Symbol       string    `json:"symbol"`
	Side         Side      `json:"side"`
	EntryMin     float64   `json:"entry_min"`
	EntryMax     float64   `json:"entry_max"`
	TakeProfits  []float64 `json:"take_profits"`
	StopLoss     *float64  `json:"stop_loss"`
	Leverage     float64   `json:"leverage"`
	Confidence   float64   `json:"confidence"`
	IsComplete   bool      `json:"is_complete"`
	Origin       Origin    `json:"origin"`
	Source       string    `json:"source"`
	ChannelTitle string    `json:"channel_title"`
	Timestamp    time.Time `json:"timestamp"`

	MessageID int64  `json:"message_id,omitempty"`
	Market    string `json:"market,omitempty"`
	Locale    string `json:"locale,omitempty"`
}

// HasEntry reports whether an entry zone was extracted.
func (s CanonicalSignal) HasEntry() bool { return s.EntryMin > 0 }

// Empty reports whether no trade field at all was extracted.
func (s CanonicalSignal) Empty() bool {
	return s.Symbol == "" && !s.Side.Valid() && !s.HasEntry() &&
		len(s.TakeProfits) == 0 && s.StopLoss == nil
}

// Float64Ptr is a small helper for optional prices.
func Float64Ptr(v float64) *float64 { return &v }
