package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SignalBT/internal/domain/models"
	domrepo "SignalBT/internal/domain/repository"
	"SignalBT/internal/lexicon"
	"SignalBT/internal/repository"
	"SignalBT/internal/services/extractor"
	"SignalBT/internal/services/normalizer"
	"SignalBT/internal/services/simulator"
	"SignalBT/internal/usecase"
	xlogger "SignalBT/pkg/logger"
)

var t0 = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

type memStore struct {
	signals []models.CanonicalSignal
	results []models.BacktestResult
	lastQ   domrepo.SignalQuery
	health  error
}

func (m *memStore) Init(context.Context) error     { return nil }
func (m *memStore) Health(context.Context) error   { return m.health }
func (m *memStore) Close() error                   { return nil }
func (m *memStore) StoreSignals(_ context.Context, s []models.CanonicalSignal) error {
	m.signals = append(m.signals, s...)
	return nil
}
func (m *memStore) QuerySignals(_ context.Context, q domrepo.SignalQuery) ([]models.CanonicalSignal, error) {
	m.lastQ = q
	return m.signals, nil
}
func (m *memStore) StoreResults(_ context.Context, r []models.BacktestResult) error {
	m.results = append(m.results, r...)
	return nil
}
func (m *memStore) QueryResults(context.Context, domrepo.ResultQuery) ([]models.BacktestResult, error) {
	return m.results, nil
}

func signal(symbol string) models.CanonicalSignal {
	return models.CanonicalSignal{
		Symbol:      symbol,
		Side:        models.SideLong,
		EntryMin:    100,
		EntryMax:    100,
		TakeProfits: []float64{105},
		StopLoss:    models.Float64Ptr(95),
		Leverage:    10,
		IsComplete:  true,
		Origin:      models.OriginRule,
		Source:      "vip",
		Timestamp:   t0,
	}
}

func newEcho(store *memStore) *echo.Echo {
	lex := lexicon.Default()
	res := usecase.NewSignalResolver(normalizer.NewRuleExtractor(extractor.New(lex), normalizer.New(lex, normalizer.DefaultConfig())))

	prices := repository.NewMemoryPriceSource()
	prices.Put("BTCUSDT", []models.Bar{{Timestamp: t0.Add(time.Minute), High: 106, Low: 99}})
	sim := simulator.New()
	uc := usecase.NewBacktestUseCase(store, nil, usecase.NewBacktester(prices, sim), sim)

	e := echo.New()
	NewSignalsHandler(xlogger.Nop(), res).RegisterRoutes(e)
	NewBacktestHandler(xlogger.Nop(), uc).RegisterRoutes(e)
	NewHealthHandler().
		Require("clickhouse", store.Health).
		Report("relay", func(context.Context) error { return errors.New("not connected") }).
		RegisterRoutes(e)
	return e
}

func do(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Status int             `json:"status"`
	Data   json.RawMessage `json:"data"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	require.NoError(t, json.Unmarshal(env.Data, v))
}

func TestParseEndpoint(t *testing.T) {
	e := newEcho(&memStore{})
	rec := do(e, http.MethodPost, "/api/signals/parse",
		`{"source":"vip","timestamp":"2024-05-01T10:00:00Z","text":"#BTC/USDT LONG\nEntry: 60000\nTP: 61000\nSL: 59000","use_ai":false}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var out struct {
		RequestID string                 `json:"request_id"`
		Signal    models.CanonicalSignal `json:"signal"`
		Usable    bool                   `json:"usable"`
	}
	decode(t, rec, &out)
	assert.NotEmpty(t, out.RequestID)
	assert.True(t, out.Usable)
	assert.Equal(t, "BTCUSDT", out.Signal.Symbol)
	assert.True(t, out.Signal.Timestamp.Equal(t0))
}

func TestParseEndpointValidation(t *testing.T) {
	e := newEcho(&memStore{})

	rec := do(e, http.MethodPost, "/api/signals/parse", `{"text":"btc long"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"field":"source"`)

	rec = do(e, http.MethodPost, "/api/signals/parse", `{"source":"vip","text":"btc","timestamp":"yesterday"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "timestamp")

	rec = do(e, http.MethodPost, "/api/signals/parse", `{"source":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSimulateEndpoint(t *testing.T) {
	e := newEcho(&memStore{})
	body, err := json.Marshal(models.SimulateRequest{
		Signal: signal("BTCUSDT"),
		Bars:   []models.Bar{{Timestamp: t0, High: 106, Low: 94}},
	})
	require.NoError(t, err)

	rec := do(e, http.MethodPost, "/api/backtest/simulate", string(body))
	require.Equal(t, http.StatusOK, rec.Code)
	var res models.BacktestResult
	decode(t, rec, &res)
	assert.Equal(t, models.OutcomeLoss, res.Outcome)

	rec = do(e, http.MethodPost, "/api/backtest/simulate", `{"tie_break":"coin_flip"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRunAndStatsEndpoints(t *testing.T) {
	store := &memStore{signals: []models.CanonicalSignal{signal("BTCUSDT"), signal("ETHUSDT")}}
	e := newEcho(store)

	rec := do(e, http.MethodPost, "/api/backtest/run", `{"from":"2024-05-01","to":"2024-05-02","channel":"vip"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var run usecase.RunResult
	decode(t, rec, &run)
	require.Len(t, run.Results, 2)
	assert.Equal(t, models.OutcomeWin, run.Results[0].Outcome)
	assert.Equal(t, models.OutcomeError, run.Results[1].Outcome)
	assert.Equal(t, 1000, store.lastQ.Limit)
	assert.Len(t, store.results, 2)

	rec = do(e, http.MethodPost, "/api/backtest/run", `{"from":"2024-05-02","to":"2024-05-01"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(e, http.MethodGet, "/api/stats?from=2024-05-01&to=2024-05-02&top=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var sum models.Summary
	decode(t, rec, &sum)
	assert.Equal(t, 1, sum.Overall.Wins)

	rec = do(e, http.MethodGet, "/api/stats?top=501", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthEndpoint(t *testing.T) {
	store := &memStore{}
	e := newEcho(store)

	rec := do(e, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"degraded"`)

	store.health = errors.New("clickhouse down")
	rec = do(e, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
