package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"SignalBT/internal/domain/models"
	domrepo "SignalBT/internal/domain/repository"
	applogger "SignalBT/pkg/logger"
)

// CHPriceStore implements PriceSource over the read-only candle tables.
type CHPriceStore struct {
	db       *sql.DB
	database string
	tf       domrepo.Timeframe
	l        *applogger.Logger
}

var _ domrepo.PriceSource = (*CHPriceStore)(nil)

func NewCHPriceStore(db *sql.DB, database string, tf domrepo.Timeframe) *CHPriceStore {
	return &CHPriceStore{db: db, database: database, tf: tf, l: applogger.Nop()}
}

// SetLogger injects a structured logger.
func (s *CHPriceStore) SetLogger(l *applogger.Logger) {
	if l != nil {
		s.l = l
	}
}

// GetBars returns bars in [start, end] ascending. A symbol with no rows at all
// yields ErrPriceUnavailable; a symbol with rows outside the window yields an empty slice.
func (s *CHPriceStore) GetBars(ctx context.Context, symbol string, start, end time.Time) ([]models.Bar, error) {
	begin := time.Now()
	table, err := s.table()
	if err != nil {
		return nil, err
	}
	const qtpl = `
        SELECT bucket, high, low
        FROM %s
        WHERE symbol = ? AND bucket >= ? AND bucket <= ?
        ORDER BY bucket ASC
    `
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(qtpl, table), symbol, start.UTC(), end.UTC())
	if err != nil {
		s.l.Error("clickhouse get_bars query error",
			applogger.String("table", table),
			applogger.String("symbol", symbol),
			applogger.Error(err),
		)
		return nil, fmt.Errorf("get bars: %w", err)
	}
	defer rows.Close()

	out := make([]models.Bar, 0, 1024)
	for rows.Next() {
		var b models.Bar
		if err := rows.Scan(&b.Timestamp, &b.High, &b.Low); err != nil {
			return nil, fmt.Errorf("scan bar: %w", err)
		}
		b.Timestamp = b.Timestamp.UTC()
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	if len(out) == 0 {
		known, err := s.hasSymbol(ctx, table, symbol)
		if err != nil {
			return nil, err
		}
		if !known {
			return nil, domrepo.ErrPriceUnavailable
		}
	}
	s.l.Debug("clickhouse get_bars ok",
		applogger.String("table", table),
		applogger.String("symbol", symbol),
		applogger.Int("rows", len(out)),
		applogger.Duration("duration_ms", time.Since(begin)),
	)
	return out, nil
}

func (s *CHPriceStore) hasSymbol(ctx context.Context, table, symbol string) (bool, error) {
	var n uint64
	q := fmt.Sprintf("SELECT count() FROM %s WHERE symbol = ?", table)
	if err := s.db.QueryRowContext(ctx, q, symbol).Scan(&n); err != nil {
		return false, fmt.Errorf("count bars: %w", err)
	}
	return n > 0, nil
}

func (s *CHPriceStore) table() (string, error) {
	switch s.tf {
	case domrepo.TF1s:
		return s.database + ".candles_1s", nil
	case domrepo.TF1m, domrepo.TF5m:
		// 5m replays 1m bars; first-touch only needs the finer series
		return s.database + ".candles_1m", nil
	default:
		return "", fmt.Errorf("unsupported timeframe: %s", s.tf)
	}
}
