package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"SignalBT/internal/domain/models"
	domainsvc "SignalBT/internal/domain/service"
	"SignalBT/internal/lexicon"
	"SignalBT/internal/service/cache"
	"SignalBT/internal/services/normalizer"
	xhttp "SignalBT/pkg/http"
)

type mockCompleter struct {
	mock.Mock
}

func (m *mockCompleter) Complete(ctx context.Context, req domainsvc.CompletionRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Policy = fastPolicy(3)
	cfg.RequestTimeout = time.Second
	return cfg
}

func newNormalizer() *normalizer.Normalizer {
	return normalizer.New(lexicon.Default(), normalizer.DefaultConfig())
}

const goodAnswer = "```json\n{\"symbol\": \"sol\", \"side\": \"buy\", \"entry\": [\"21,5\", 20], \"tp\": [23, 25], \"sl\": 19, \"confidence\": 0.85}\n```"

func TestResolverNormalizesAnswer(t *testing.T) {
	m := &mockCompleter{}
	m.On("Complete", mock.Anything, mock.MatchedBy(func(r domainsvc.CompletionRequest) bool {
		return r.System == SystemPrompt && r.Temperature == 0.1 && r.MaxTokens == 500
	})).Return(goodAnswer, nil).Once()

	r := New(m, newNormalizer(), testConfig())
	sig, fail := r.Extract(context.Background(), models.RawMessage{Source: "c", MessageID: 5, Text: "sol al 20-21,5"})
	require.Nil(t, fail)
	assert.Equal(t, "SOLUSDT", sig.Symbol)
	assert.Equal(t, models.SideLong, sig.Side)
	assert.Equal(t, 20.0, sig.EntryMin)
	assert.Equal(t, 21.5, sig.EntryMax)
	assert.Equal(t, []float64{23, 25}, sig.TakeProfits)
	assert.Equal(t, normalizer.DefaultLeverage, sig.Leverage)
	assert.Equal(t, 0.85, sig.Confidence)
	assert.Equal(t, models.OriginAI, sig.Origin)
	assert.Equal(t, "c", sig.Source)
	assert.True(t, sig.IsComplete)
	m.AssertExpectations(t)
}

func TestResolverNegativeLeverageFallsBack(t *testing.T) {
	m := &mockCompleter{}
	m.On("Complete", mock.Anything, mock.Anything).
		Return(`{"symbol": "btc", "side": "long", "entry": 100, "tp": 110, "sl": 95, "leverage": "-5"}`, nil).Once()

	r := New(m, newNormalizer(), testConfig())
	sig, fail := r.Extract(context.Background(), models.RawMessage{Source: "c", MessageID: 6, Text: "btc long 100"})
	require.Nil(t, fail)
	assert.Equal(t, normalizer.DefaultLeverage, sig.Leverage)
	assert.Equal(t, 100.0, sig.EntryMin)
}

func TestResolverRetriesMalformedThenFails(t *testing.T) {
	m := &mockCompleter{}
	m.On("Complete", mock.Anything, mock.Anything).Return(`{"symbol": "BTC"}}`, nil).Times(3)

	r := New(m, newNormalizer(), testConfig())
	_, fail := r.Resolve(context.Background(), "btc to the moon")
	require.NotNil(t, fail)
	assert.Equal(t, models.ReasonMalformedOutput, fail.Reason)
	assert.Equal(t, 3, fail.Attempts)
	m.AssertExpectations(t)
}

func TestResolverConnectionFailsFast(t *testing.T) {
	m := &mockCompleter{}
	dialErr := &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}
	m.On("Complete", mock.Anything, mock.Anything).Return("", dialErr).Once()

	r := New(m, newNormalizer(), testConfig())
	_, fail := r.Resolve(context.Background(), "eth long 3000")
	require.NotNil(t, fail)
	assert.Equal(t, models.ReasonConnection, fail.Reason)
	assert.Equal(t, 1, fail.Attempts)
	m.AssertExpectations(t)
}

func TestResolverNoSignalAndEmptyText(t *testing.T) {
	m := &mockCompleter{}
	m.On("Complete", mock.Anything, mock.Anything).Return(`<think>nothing here</think>{"signal": false}`, nil).Once()

	r := New(m, newNormalizer(), testConfig())
	_, fail := r.Resolve(context.Background(), "good morning")
	require.NotNil(t, fail)
	assert.Equal(t, models.ReasonNoSignal, fail.Reason)

	_, fail = r.Resolve(context.Background(), "   ")
	require.NotNil(t, fail)
	assert.Equal(t, models.ReasonNoSignal, fail.Reason)
	m.AssertExpectations(t)
}

func TestResolverUsesCache(t *testing.T) {
	m := &mockCompleter{}
	m.On("Complete", mock.Anything, mock.Anything).Return(goodAnswer, nil).Once()

	r := New(m, newNormalizer(), testConfig(), WithCache(cache.NewTTLCache(), time.Minute))
	first, fail := r.Resolve(context.Background(), "sol al 20-21,5")
	require.Nil(t, fail)
	second, fail := r.Resolve(context.Background(), "sol al 20-21,5")
	require.Nil(t, fail)
	assert.Equal(t, first, second)
	m.AssertExpectations(t)
}

type blockingCompleter struct {
	started chan struct{}
	release chan struct{}
}

func (b *blockingCompleter) Complete(ctx context.Context, _ domainsvc.CompletionRequest) (string, error) {
	b.started <- struct{}{}
	<-b.release
	return goodAnswer, nil
}

func TestResolverThrottled(t *testing.T) {
	bc := &blockingCompleter{started: make(chan struct{}, 1), release: make(chan struct{})}
	r := New(bc, newNormalizer(), testConfig(), WithThrottle(NewThrottle(1, 0, 0, 20*time.Millisecond)))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, fail := r.Resolve(context.Background(), "first")
		assert.Nil(t, fail)
	}()
	<-bc.started

	_, fail := r.Resolve(context.Background(), "second")
	require.NotNil(t, fail)
	assert.Equal(t, models.ReasonThrottled, fail.Reason)

	close(bc.release)
	wg.Wait()
}

func chatServer(t *testing.T, status int, content string, hits *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		atomic.AddInt32(hits, 1)
		assert.Equal(t, "/chat/completions", req.URL.Path)
		assert.Equal(t, "Bearer k", req.Header.Get("Authorization"))
		var body chatRequest
		assert.NoError(t, json.NewDecoder(req.Body).Decode(&body))
		assert.Len(t, body.Messages, 2)
		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error": "nope"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"role": "assistant", "content": content}}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCompletionClientOverHTTP(t *testing.T) {
	var hits int32
	srv := chatServer(t, http.StatusOK, goodAnswer, &hits)
	c := NewCompletionClient(ProviderConfig{Name: "local", BaseURL: srv.URL + "/", APIKey: "k", Model: "m"})

	r := New(c, newNormalizer(), testConfig())
	sig, fail := r.Resolve(context.Background(), "sol al")
	require.Nil(t, fail)
	assert.Equal(t, "SOLUSDT", sig.Symbol)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestCompletionClientRateLimited(t *testing.T) {
	var hits int32
	srv := chatServer(t, http.StatusTooManyRequests, "", &hits)
	c := NewCompletionClient(ProviderConfig{Name: "cloud", BaseURL: srv.URL, APIKey: "k", Model: "m"})

	_, err := c.Complete(context.Background(), BuildRequest("x", 0.1, 10))
	require.Error(t, err)
	var se *xhttp.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, models.ReasonRateLimited, Classify(err))

	r := New(c, newNormalizer(), testConfig())
	_, fail := r.Resolve(context.Background(), "btc long")
	require.NotNil(t, fail)
	assert.Equal(t, models.ReasonRateLimited, fail.Reason)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestClassify(t *testing.T) {
	assert.Equal(t, models.ReasonUpstream, Classify(&xhttp.StatusError{Code: 502}))
	assert.Equal(t, models.ReasonTimeout, Classify(&xhttp.StatusError{Code: 504}))
	assert.Equal(t, models.ReasonTimeout, Classify(context.DeadlineExceeded))
	assert.Equal(t, models.ReasonUnavailable, Classify(ErrNoProvider))
	assert.Equal(t, models.ReasonConnection, Classify(&net.DNSError{Err: "no such host", Name: "x"}))
	assert.Equal(t, models.FailureReason(""), Classify(nil))
}
