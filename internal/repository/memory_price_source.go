package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"SignalBT/internal/domain/models"
	domrepo "SignalBT/internal/domain/repository"
)

// BarRecord is one line of a price file: {symbol, timestamp, high, low}.
type BarRecord struct {
	Symbol    string    `json:"symbol"`
	Timestamp time.Time `json:"timestamp"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
}

// MemoryPriceSource serves bars held in memory, used for file-driven backtests and tests.
type MemoryPriceSource struct {
	mu   sync.RWMutex
	bars map[string][]models.Bar
}

var _ domrepo.PriceSource = (*MemoryPriceSource)(nil)

func NewMemoryPriceSource() *MemoryPriceSource {
	return &MemoryPriceSource{bars: make(map[string][]models.Bar)}
}

// NewMemoryPriceSourceFromRecords groups records by symbol.
func NewMemoryPriceSourceFromRecords(recs []BarRecord) *MemoryPriceSource {
	m := NewMemoryPriceSource()
	by := make(map[string][]models.Bar)
	for _, r := range recs {
		sym := strings.ToUpper(r.Symbol)
		by[sym] = append(by[sym], models.Bar{Timestamp: r.Timestamp.UTC(), High: r.High, Low: r.Low})
	}
	for sym, bars := range by {
		m.Put(sym, bars)
	}
	return m
}

// Put replaces the bars of symbol; they are sorted by time.
func (m *MemoryPriceSource) Put(symbol string, bars []models.Bar) {
	cp := append([]models.Bar(nil), bars...)
	sort.SliceStable(cp, func(i, j int) bool { return cp[i].Timestamp.Before(cp[j].Timestamp) })
	m.mu.Lock()
	m.bars[strings.ToUpper(symbol)] = cp
	m.mu.Unlock()
}

func (m *MemoryPriceSource) GetBars(_ context.Context, symbol string, start, end time.Time) ([]models.Bar, error) {
	m.mu.RLock()
	all, ok := m.bars[strings.ToUpper(symbol)]
	m.mu.RUnlock()
	if !ok {
		return nil, domrepo.ErrPriceUnavailable
	}
	lo := sort.Search(len(all), func(i int) bool { return !all[i].Timestamp.Before(start) })
	out := make([]models.Bar, 0)
	for _, b := range all[lo:] {
		if b.Timestamp.After(end) {
			break
		}
		out = append(out, b)
	}
	return out, nil
}
