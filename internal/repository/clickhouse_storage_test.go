package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SignalBT/internal/domain/models"
	domrepo "SignalBT/internal/domain/repository"
)

// passThrough lets array and pointer arguments reach the mock unchanged,
// as the ClickHouse driver accepts them natively.
type passThrough struct{}

func (passThrough) ConvertValue(v interface{}) (driver.Value, error) { return v, nil }

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.ValueConverterOption(passThrough{}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

var ts = time.Date(2024, 2, 1, 9, 30, 0, 0, time.UTC)

func TestStoreSignalsChunks(t *testing.T) {
	db, mock := newMock(t)
	s := NewClickHouseStorage(db, "signalbt")

	signals := make([]models.CanonicalSignal, insertChunk+1)
	for i := range signals {
		signals[i] = models.CanonicalSignal{Symbol: "BTCUSDT", Side: models.SideLong, Timestamp: ts, MessageID: int64(i)}
	}
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO signalbt.signals (ts, source")).WillReturnResult(sqlmock.NewResult(0, insertChunk))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO signalbt.signals (ts, source")).WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.StoreSignals(context.Background(), signals))
	require.NoError(t, s.StoreSignals(context.Background(), nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQuerySignalsScansRows(t *testing.T) {
	db, mock := newMock(t)
	s := NewClickHouseStorage(db, "signalbt")

	cols := []string{"ts", "source", "channel_title", "message_id", "symbol", "side", "entry_min", "entry_max",
		"take_profits", "stop_loss", "leverage", "confidence", "is_complete", "origin", "market", "locale"}
	rows := mock.NewRows(cols).
		AddRow(ts, "chan", "Chan", int64(4), "ETHUSDT", "SHORT", 3000.0, 3050.0, []float64{2900, 2800}, 3100.0, 20.0, 0.9, true, "rule", "futures", "en").
		AddRow(ts, "chan", "Chan", int64(5), "SOLUSDT", "LONG", 20.0, 20.0, []float64{}, nil, 15.0, 0.5, true, "ai", "spot", "tr")

	mock.ExpectQuery(regexp.QuoteMeta("FROM signalbt.signals FINAL WHERE ts >= ? AND ts <= ? AND (source = ? OR channel_title = ?) AND is_complete ORDER BY ts ASC LIMIT ?")).
		WithArgs(ts, ts.Add(time.Hour), "chan", "chan", 10).
		WillReturnRows(rows)

	got, err := s.QuerySignals(context.Background(), domrepo.SignalQuery{
		From: ts, To: ts.Add(time.Hour), Channel: "chan", CompleteOnly: true, Limit: 10,
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, models.SideShort, got[0].Side)
	assert.Equal(t, []float64{2900, 2800}, got[0].TakeProfits)
	require.NotNil(t, got[0].StopLoss)
	assert.Equal(t, 3100.0, *got[0].StopLoss)
	assert.Nil(t, got[1].StopLoss)
	assert.Equal(t, []float64{}, got[1].TakeProfits)
	assert.Equal(t, models.OriginAI, got[1].Origin)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreAndQueryResults(t *testing.T) {
	db, mock := newMock(t)
	s := NewClickHouseStorage(db, "signalbt")

	exit := ts.Add(time.Minute)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO signalbt.backtest_results (ts, source")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, s.StoreResults(context.Background(), []models.BacktestResult{{
		Symbol: "BTCUSDT", Side: models.SideLong, Outcome: models.OutcomeWin, PnL: 50, TPIndex: 1, ExitTime: &exit, Timestamp: ts,
	}}))

	cols := []string{"ts", "source", "channel_title", "message_id", "symbol", "side", "entry_min", "tp", "sl",
		"leverage", "outcome", "error", "pnl", "tp_index", "exit_price", "exit_time", "bars_evaluated"}
	mock.ExpectQuery(regexp.QuoteMeta("SELECT ts, source")).
		WillReturnRows(mock.NewRows(cols).
			AddRow(ts, "chan", "", int64(1), "BTCUSDT", "LONG", 100.0, 105.0, 95.0, 10.0, "WIN", "", 50.0, int64(1), 105.0, exit, int64(3)).
			AddRow(ts, "chan", "", int64(2), "ETHUSDT", "LONG", 100.0, 105.0, 95.0, 10.0, "ERROR", "no_price_data", 0.0, int64(0), 0.0, nil, int64(0)))

	got, err := s.QueryResults(context.Background(), domrepo.ResultQuery{})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, models.OutcomeWin, got[0].Outcome)
	assert.Equal(t, 1, got[0].TPIndex)
	assert.Equal(t, 3, got[0].BarsEvaluated)
	require.NotNil(t, got[0].ExitTime)
	assert.Equal(t, exit, *got[0].ExitTime)
	assert.Equal(t, "no_price_data", got[1].Error)
	assert.Nil(t, got[1].ExitTime)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPriceStoreDistinguishesUnavailable(t *testing.T) {
	db, mock := newMock(t)
	ps := NewCHPriceStore(db, "market", domrepo.TF1m)

	mock.ExpectQuery(regexp.QuoteMeta("FROM market.candles_1m")).
		WithArgs("BTCUSDT", ts, ts.Add(time.Hour)).
		WillReturnRows(sqlmock.NewRows([]string{"bucket", "high", "low"}).
			AddRow(ts, 101.0, 99.0).
			AddRow(ts.Add(time.Minute), 102.0, 100.0))
	bars, err := ps.GetBars(context.Background(), "BTCUSDT", ts, ts.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, 102.0, bars[1].High)

	mock.ExpectQuery(regexp.QuoteMeta("FROM market.candles_1m")).
		WillReturnRows(sqlmock.NewRows([]string{"bucket", "high", "low"}))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT count() FROM market.candles_1m WHERE symbol = ?")).
		WithArgs("NOPEUSDT").
		WillReturnRows(sqlmock.NewRows([]string{"count()"}).AddRow(uint64(0)))
	_, err = ps.GetBars(context.Background(), "NOPEUSDT", ts, ts.Add(time.Hour))
	assert.ErrorIs(t, err, domrepo.ErrPriceUnavailable)

	mock.ExpectQuery(regexp.QuoteMeta("FROM market.candles_1m")).
		WillReturnRows(sqlmock.NewRows([]string{"bucket", "high", "low"}))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT count()")).
		WillReturnRows(sqlmock.NewRows([]string{"count()"}).AddRow(uint64(42)))
	bars, err = ps.GetBars(context.Background(), "BTCUSDT", ts.Add(-48*time.Hour), ts.Add(-47*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, bars)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInitRunsSchema(t *testing.T) {
	db, mock := newMock(t)
	s := NewClickHouseStorage(db, "signalbt")
	for range Schema("signalbt") {
		mock.ExpectExec("CREATE").WillReturnResult(sqlmock.NewResult(0, 0))
	}
	require.NoError(t, s.Init(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
