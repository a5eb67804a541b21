package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SignalBT/internal/domain/models"
	"SignalBT/internal/domain/repository"
)

type memPublisher struct {
	mu      sync.Mutex
	signals []models.CanonicalSignal
	results []models.BacktestResult
	err     error
}

func (p *memPublisher) PublishSignals(_ context.Context, s []models.CanonicalSignal) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.signals = append(p.signals, s...)
	return nil
}

func (p *memPublisher) PublishResults(_ context.Context, r []models.BacktestResult) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.results = append(p.results, r...)
	return nil
}

func (p *memPublisher) Close() error { return nil }

func (p *memPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.signals)
}

// fakeStream replays one session per Read call; a session ends with an error.
type fakeStream struct {
	mu         sync.Mutex
	sessions   [][]*models.RawMessage
	reconnects int
}

func (s *fakeStream) Connect(context.Context) error   { return nil }
func (s *fakeStream) Subscribe(context.Context) error { return nil }
func (s *fakeStream) Close() error                    { return nil }
func (s *fakeStream) IsConnected() bool               { return true }

func (s *fakeStream) Reconnect(context.Context) error {
	s.mu.Lock()
	s.reconnects++
	s.mu.Unlock()
	return nil
}

func (s *fakeStream) Read(ctx context.Context) (<-chan *models.RawMessage, <-chan error) {
	out := make(chan *models.RawMessage)
	errs := make(chan error, 1)
	s.mu.Lock()
	var session []*models.RawMessage
	if len(s.sessions) > 0 {
		session, s.sessions = s.sessions[0], s.sessions[1:]
	}
	last := len(s.sessions) == 0
	s.mu.Unlock()

	go func() {
		defer close(out)
		defer close(errs)
		for _, m := range session {
			select {
			case out <- m:
			case <-ctx.Done():
				return
			}
		}
		if last {
			<-ctx.Done()
			return
		}
		errs <- errors.New("connection reset")
	}()
	return out, errs
}

func rawMsg(id int64, text string) *models.RawMessage {
	return &models.RawMessage{Source: "vip", MessageID: id, Timestamp: when, Text: text}
}

func newProcessor(pub *memPublisher, store *memStore, sink string) *MessageProcessor {
	res := NewSignalResolver(ruleExtractor())
	return NewMessageProcessor(res, pub, store, newNopMetrics(), sink, false, nil)
}

func TestProcessorRoutesBySink(t *testing.T) {
	msg := rawMsg(1, "#BTC/USDT LONG\nEntry: 60000\nTP: 61000\nSL: 59000")

	pub, store := &memPublisher{}, &memStore{}
	require.NoError(t, newProcessor(pub, store, SinkBoth).Process(context.Background(), msg))
	assert.Len(t, pub.signals, 1)
	assert.Len(t, store.signals, 1)
	assert.Equal(t, "BTCUSDT", pub.signals[0].Symbol)

	pub, store = &memPublisher{}, &memStore{}
	require.NoError(t, newProcessor(pub, store, SinkClickHouse).Process(context.Background(), msg))
	assert.Empty(t, pub.signals)
	assert.Len(t, store.signals, 1)

	pub = &memPublisher{}
	require.NoError(t, newProcessor(pub, store, SinkKafka).Process(context.Background(), rawMsg(2, "good morning everyone")))
	assert.Empty(t, pub.signals)

	pub = &memPublisher{err: errors.New("broker down")}
	assert.Error(t, newProcessor(pub, nil, SinkKafka).Process(context.Background(), msg))
	assert.Error(t, newProcessor(pub, nil, "redis").ProcessBatch(context.Background(), []models.CanonicalSignal{{Symbol: "X"}}))
}

func TestCollectorReconnectsAndKeepsReading(t *testing.T) {
	stream := &fakeStream{sessions: [][]*models.RawMessage{
		{rawMsg(1, "#BTC/USDT LONG\nEntry: 60000\nTP: 61000\nSL: 59000")},
		{rawMsg(2, "#ETH/USDT SHORT\nEntry: 3000\nTP: 2900\nSL: 3100")},
	}}
	pub := &memPublisher{}
	proc := newProcessor(pub, nil, SinkKafka)
	c := NewMessageCollector(stream, proc, newNopMetrics(), nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, c.Start(ctx))

	require.Eventually(t, func() bool { return pub.count() == 2 }, 5*time.Second, 10*time.Millisecond)
	cancel()
	select {
	case <-c.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("collector did not stop")
	}
	assert.Equal(t, 1, stream.reconnects)
	require.NoError(t, c.Shutdown(context.Background()))
}

func TestKafkaMessagesHandler(t *testing.T) {
	pub := &memPublisher{}
	h := NewKafkaMessagesHandler("messages", newProcessor(pub, nil, SinkKafka), newNopMetrics())
	assert.Equal(t, "messages", h.Topic())

	err := h.Handle(context.Background(), []byte(`{"source":"vip","message_id":3,"timestamp":"2024-01-01T10:00:00Z","text":"#SOL/USDT LONG\nEntry: 20\nTP: 22\nSL: 19"}`))
	require.NoError(t, err)
	require.Len(t, pub.signals, 1)
	assert.Equal(t, "SOLUSDT", pub.signals[0].Symbol)

	assert.Error(t, h.Handle(context.Background(), []byte(`{"message_id":3}`)))
	assert.Error(t, h.Handle(context.Background(), []byte(`{`)))
}

var _ repository.MessageStream = (*fakeStream)(nil)
