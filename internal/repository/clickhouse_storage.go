package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"SignalBT/internal/domain/models"
	"SignalBT/internal/domain/repository"
)

// insertChunk is the number of rows per multi-row INSERT.
const insertChunk = 2000

const signalColumns = "ts, source, channel_title, message_id, symbol, side, entry_min, entry_max, take_profits, stop_loss, leverage, confidence, is_complete, origin, market, locale"

const resultColumns = "ts, source, channel_title, message_id, symbol, side, entry_min, tp, sl, leverage, outcome, error, pnl, tp_index, exit_price, exit_time, bars_evaluated"

// ClickHouseStorage stores signals and backtest results.
type ClickHouseStorage struct {
	db       *sql.DB
	database string
}

var _ repository.Storage = (*ClickHouseStorage)(nil)

func NewClickHouseStorage(db *sql.DB, database string) *ClickHouseStorage {
	return &ClickHouseStorage{db: db, database: database}
}

func (s *ClickHouseStorage) signalsTable() string { return s.database + ".signals" }
func (s *ClickHouseStorage) resultsTable() string { return s.database + ".backtest_results" }

// Schema returns idempotent DDL for the tables this storage writes.
func Schema(database string) []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.signals (
            ts DateTime64(3, 'UTC'), source String, channel_title String, message_id Int64,
            symbol LowCardinality(String), side LowCardinality(String),
            entry_min Float64, entry_max Float64, take_profits Array(Float64), stop_loss Nullable(Float64),
            leverage Float64, confidence Float64, is_complete Bool,
            origin LowCardinality(String), market LowCardinality(String), locale LowCardinality(String)
        ) ENGINE = ReplacingMergeTree ORDER BY (source, message_id, ts)`, database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.backtest_results (
            ts DateTime64(3, 'UTC'), source String, channel_title String, message_id Int64,
            symbol LowCardinality(String), side LowCardinality(String),
            entry_min Float64, tp Float64, sl Float64, leverage Float64,
            outcome LowCardinality(String), error String, pnl Float64, tp_index UInt8,
            exit_price Float64, exit_time Nullable(DateTime64(3, 'UTC')), bars_evaluated UInt32
        ) ENGINE = ReplacingMergeTree ORDER BY (source, message_id, ts)`, database),
	}
}

func (s *ClickHouseStorage) Init(ctx context.Context) error {
	for _, stmt := range Schema(s.database) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

func (s *ClickHouseStorage) StoreSignals(ctx context.Context, signals []models.CanonicalSignal) error {
	return insertChunked(ctx, s.db, s.signalsTable(), signalColumns, 16, len(signals), func(i int) []interface{} {
		sig := signals[i]
		return []interface{}{
			sig.Timestamp.UTC(), sig.Source, sig.ChannelTitle, sig.MessageID,
			sig.Symbol, string(sig.Side), sig.EntryMin, sig.EntryMax,
			takeProfits(sig.TakeProfits), sig.StopLoss, sig.Leverage, sig.Confidence,
			sig.IsComplete, string(sig.Origin), sig.Market, sig.Locale,
		}
	})
}

func (s *ClickHouseStorage) StoreResults(ctx context.Context, results []models.BacktestResult) error {
	return insertChunked(ctx, s.db, s.resultsTable(), resultColumns, 17, len(results), func(i int) []interface{} {
		r := results[i]
		return []interface{}{
			r.Timestamp.UTC(), r.Source, r.ChannelTitle, r.MessageID,
			r.Symbol, string(r.Side), r.EntryMin, r.TP, r.SL, r.Leverage,
			string(r.Outcome), r.Error, r.PnL, uint8(r.TPIndex),
			r.ExitPrice, r.ExitTime, uint32(r.BarsEvaluated),
		}
	})
}

// insertChunked writes n rows as multi-row VALUES statements of at most insertChunk rows.
func insertChunked(ctx context.Context, db *sql.DB, table, columns string, width, n int, row func(i int) []interface{}) error {
	if n == 0 {
		return nil
	}
	ph := "(" + strings.TrimSuffix(strings.Repeat("?, ", width), ", ") + ")"
	for start := 0; start < n; start += insertChunk {
		end := start + insertChunk
		if end > n {
			end = n
		}
		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*width)
		for i := start; i < end; i++ {
			values = append(values, ph)
			args = append(args, row(i)...)
		}
		q := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s", table, columns, strings.Join(values, ","))
		if _, err := db.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("insert %s: %w", table, err)
		}
	}
	return nil
}

func takeProfits(tps []float64) []float64 {
	if tps == nil {
		return []float64{}
	}
	return tps
}

// window builds the shared WHERE clause for time window and channel filters.
func window(from, to time.Time, channel string) (string, []interface{}) {
	var conds []string
	var args []interface{}
	if !from.IsZero() {
		conds = append(conds, "ts >= ?")
		args = append(args, from.UTC())
	}
	if !to.IsZero() {
		conds = append(conds, "ts <= ?")
		args = append(args, to.UTC())
	}
	if channel != "" {
		conds = append(conds, "(source = ? OR channel_title = ?)")
		args = append(args, channel, channel)
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (s *ClickHouseStorage) QuerySignals(ctx context.Context, q repository.SignalQuery) ([]models.CanonicalSignal, error) {
	where, args := window(q.From, q.To, q.Channel)
	if q.CompleteOnly {
		if where == "" {
			where = " WHERE is_complete"
		} else {
			where += " AND is_complete"
		}
	}
	query := fmt.Sprintf("SELECT %s FROM %s FINAL%s ORDER BY ts ASC", signalColumns, s.signalsTable(), where)
	if q.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query signals: %w", err)
	}
	defer rows.Close()

	var out []models.CanonicalSignal
	for rows.Next() {
		var (
			sig        models.CanonicalSignal
			side, orig string
			tps        []float64
			stop       sql.NullFloat64
		)
		if err := rows.Scan(&sig.Timestamp, &sig.Source, &sig.ChannelTitle, &sig.MessageID,
			&sig.Symbol, &side, &sig.EntryMin, &sig.EntryMax, &tps, &stop,
			&sig.Leverage, &sig.Confidence, &sig.IsComplete, &orig, &sig.Market, &sig.Locale); err != nil {
			return nil, fmt.Errorf("scan signal: %w", err)
		}
		sig.Side = models.Side(side)
		sig.Origin = models.Origin(orig)
		sig.TakeProfits = takeProfits(tps)
		if stop.Valid {
			sig.StopLoss = models.Float64Ptr(stop.Float64)
		}
		sig.Timestamp = sig.Timestamp.UTC()
		out = append(out, sig)
	}
	return out, rows.Err()
}

func (s *ClickHouseStorage) QueryResults(ctx context.Context, q repository.ResultQuery) ([]models.BacktestResult, error) {
	where, args := window(q.From, q.To, q.Channel)
	query := fmt.Sprintf("SELECT %s FROM %s FINAL%s ORDER BY ts ASC", resultColumns, s.resultsTable(), where)
	if q.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()

	var out []models.BacktestResult
	for rows.Next() {
		var (
			r             models.BacktestResult
			side, outcome string
			tpIndex       uint8
			barsEvaluated uint32
			exitTime      sql.NullTime
		)
		if err := rows.Scan(&r.Timestamp, &r.Source, &r.ChannelTitle, &r.MessageID,
			&r.Symbol, &side, &r.EntryMin, &r.TP, &r.SL, &r.Leverage,
			&outcome, &r.Error, &r.PnL, &tpIndex, &r.ExitPrice, &exitTime, &barsEvaluated); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		r.Side = models.Side(side)
		r.Outcome = models.Outcome(outcome)
		r.TPIndex = int(tpIndex)
		r.BarsEvaluated = int(barsEvaluated)
		if exitTime.Valid {
			t := exitTime.Time.UTC()
			r.ExitTime = &t
		}
		r.Timestamp = r.Timestamp.UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *ClickHouseStorage) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close is a no-op; the pool belongs to pkg/clickhouse.Client.
func (s *ClickHouseStorage) Close() error {
	return nil
}
