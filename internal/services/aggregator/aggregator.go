package aggregator

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"

	"SignalBT/internal/domain/models"
)

// Rating and verdict thresholds, in win-rate percent.
const (
	excellentWinRate = 70
	goodWinRate      = 50
	goLiveWinRate    = 60
	cautionWinRate   = 50
)

// Aggregate groups a materialized batch by channel and by symbol.
// A result's channel is its Source, falling back to ChannelTitle.
func Aggregate(results []models.BacktestResult) (map[string]models.ChannelStats, map[string]models.SymbolStats) {
	byChannel := make(map[string][]models.BacktestResult)
	bySymbol := make(map[string][]models.BacktestResult)
	for _, r := range results {
		byChannel[ChannelKey(r)] = append(byChannel[ChannelKey(r)], r)
		bySymbol[r.Symbol] = append(bySymbol[r.Symbol], r)
	}

	channels := make(map[string]models.ChannelStats, len(byChannel))
	for k, rs := range byChannel {
		channels[k] = models.ChannelStats{Channel: k, Stats: Compute(rs)}
	}
	symbols := make(map[string]models.SymbolStats, len(bySymbol))
	for k, rs := range bySymbol {
		symbols[k] = models.SymbolStats{Symbol: k, Stats: Compute(rs)}
	}
	return channels, symbols
}

func ChannelKey(r models.BacktestResult) string {
	if r.Source != "" {
		return r.Source
	}
	return r.ChannelTitle
}

// Compute reduces a group of results. Every result, OPEN and ERROR included,
// contributes its PnL to the average and the dispersion score; only the win
// rate is restricted to closed trades.
func Compute(results []models.BacktestResult) models.Stats {
	var st models.Stats
	st.Total = len(results)

	var pnls []float64
	total := decimal.Zero
	gross := decimal.Zero
	lost := decimal.Zero
	for _, r := range results {
		switch r.Outcome {
		case models.OutcomeWin:
			st.Wins++
		case models.OutcomeLoss:
			st.Losses++
		case models.OutcomeOpen:
			st.Open++
		default:
			st.Errors++
		}
		pnls = append(pnls, r.PnL)
		p := decimal.NewFromFloat(r.PnL)
		total = total.Add(p)
		switch r.Outcome {
		case models.OutcomeWin:
			gross = gross.Add(p)
		case models.OutcomeLoss:
			lost = lost.Add(p)
		}
	}

	closed := st.Wins + st.Losses
	if closed > 0 {
		st.WinRate = round(float64(st.Wins)/float64(closed)*100, 1)
	}
	if st.Total > 0 {
		st.AvgPnL, _ = total.Div(decimal.NewFromInt(int64(st.Total))).Round(2).Float64()
	}
	st.TotalPnL, _ = total.Round(2).Float64()
	if st.Wins > 0 {
		st.AvgWin, _ = gross.Div(decimal.NewFromInt(int64(st.Wins))).Round(2).Float64()
	}
	if st.Losses > 0 {
		st.AvgLoss, _ = lost.Div(decimal.NewFromInt(int64(st.Losses))).Round(2).Float64()
		if !lost.IsZero() {
			st.ProfitFactor, _ = gross.Div(lost.Abs()).Round(2).Float64()
		}
	}

	mean, sd := moments(pnls)
	st.StdDev = round(sd, 2)
	st.Score = round(mean/sd, 2)
	st.Rating = Rating(st.WinRate)
	return st
}

// moments returns the mean and the population standard deviation, the latter
// floored at 1 for fewer than two values or zero variance.
func moments(xs []float64) (float64, float64) {
	if len(xs) == 0 {
		return 0, 1
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	n := float64(len(xs))
	mean := sum / n
	if len(xs) < 2 {
		return mean, 1
	}
	ss := 0.0
	for _, x := range xs {
		d := x - mean
		ss += d * d
	}
	variance := ss / n
	if variance <= 0 {
		return mean, 1
	}
	return mean, math.Sqrt(variance)
}

func Rating(winRate float64) string {
	switch {
	case winRate >= excellentWinRate:
		return models.RatingExcellent
	case winRate >= goodWinRate:
		return models.RatingGood
	}
	return models.RatingPoor
}

func Verdict(st models.Stats) string {
	switch {
	case st.WinRate >= goLiveWinRate && st.TotalPnL > 0:
		return models.VerdictGoLive
	case st.WinRate >= cautionWinRate:
		return models.VerdictCaution
	}
	return models.VerdictAvoid
}

// RankChannels orders channels by total PnL then win rate, both descending.
// Ties keep ascending channel order.
func RankChannels(m map[string]models.ChannelStats) []models.ChannelStats {
	out := make([]models.ChannelStats, 0, len(m))
	for _, cs := range m {
		out = append(out, cs)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Channel < out[j].Channel })
	sort.SliceStable(out, func(i, j int) bool { return better(out[i].Stats, out[j].Stats) })
	return out
}

func RankSymbols(m map[string]models.SymbolStats) []models.SymbolStats {
	out := make([]models.SymbolStats, 0, len(m))
	for _, ss := range m {
		out = append(out, ss)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	sort.SliceStable(out, func(i, j int) bool { return better(out[i].Stats, out[j].Stats) })
	return out
}

func better(a, b models.Stats) bool {
	if a.TotalPnL != b.TotalPnL {
		return a.TotalPnL > b.TotalPnL
	}
	return a.WinRate > b.WinRate
}

// Summarize builds the batch view with leaderboards cut to top entries (top <= 0 keeps all).
func Summarize(results []models.BacktestResult, top int) models.Summary {
	channels, symbols := Aggregate(results)
	overall := Compute(results)
	return models.Summary{
		Overall:  overall,
		Verdict:  Verdict(overall),
		Channels: limit(RankChannels(channels), top),
		Symbols:  limit(RankSymbols(symbols), top),
	}
}

func limit[T any](xs []T, n int) []T {
	if n > 0 && len(xs) > n {
		return xs[:n]
	}
	return xs
}

func round(v float64, places int32) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	out, _ := decimal.NewFromFloat(v).Round(places).Float64()
	return out
}
