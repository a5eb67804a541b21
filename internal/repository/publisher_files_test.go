package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SignalBT/internal/domain/models"
	domrepo "SignalBT/internal/domain/repository"
	pkgkafka "SignalBT/pkg/kafka"
)

type fakeWriter struct {
	msgs   []kafka.Message
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaPublisherTopicsAndKeys(t *testing.T) {
	w := &fakeWriter{}
	p := NewKafkaPublisher(pkgkafka.NewProducerWithWriter(w, "gzip"), "signals", "results")

	require.NoError(t, p.PublishSignals(context.Background(), []models.CanonicalSignal{
		{Symbol: "BTCUSDT", Side: models.SideLong, TakeProfits: []float64{1}},
	}))
	require.NoError(t, p.PublishResults(context.Background(), []models.BacktestResult{
		{Symbol: "ETHUSDT", Outcome: models.OutcomeOpen},
	}))
	require.NoError(t, p.PublishResults(context.Background(), nil))

	require.Len(t, w.msgs, 2)
	assert.Equal(t, "signals", w.msgs[0].Topic)
	assert.Equal(t, []byte("BTCUSDT"), w.msgs[0].Key)
	assert.Equal(t, "results", w.msgs[1].Topic)

	var sig map[string]interface{}
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &sig))
	assert.Equal(t, "LONG", sig["side"])
	assert.Contains(t, sig, "stop_loss")

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestNDJSONRoundTripSkipsMalformed(t *testing.T) {
	in := strings.Join([]string{
		`{"source": "chan", "message_id": 1, "timestamp": "2024-01-01T10:00:00Z", "text": "BTC long"}`,
		``,
		`{"source": "chan", "message_id": 2, "timestamp": "yesterday", "text": "bad time"}`,
		`not json`,
		`{"source": "other", "message_id": 3, "timestamp": "2024-01-01T11:00:00+03:00", "text": "ETH short"}`,
	}, "\n")

	msgs, skipped, err := ReadNDJSON[models.RawMessage](strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, 2, skipped)
	require.Len(t, msgs, 2)
	assert.Equal(t, int64(3), msgs[1].MessageID)
	assert.True(t, msgs[1].Timestamp.Equal(time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)))

	var buf bytes.Buffer
	require.NoError(t, WriteNDJSON(&buf, msgs))
	assert.Equal(t, 2, strings.Count(buf.String(), "\n"))

	back, skipped, err := ReadNDJSON[models.RawMessage](&buf)
	require.NoError(t, err)
	assert.Zero(t, skipped)
	assert.Equal(t, msgs, back)
}

func TestMemoryPriceSource(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	src := NewMemoryPriceSourceFromRecords([]BarRecord{
		{Symbol: "btcusdt", Timestamp: base.Add(2 * time.Minute), High: 3, Low: 2},
		{Symbol: "BTCUSDT", Timestamp: base, High: 1, Low: 0.5},
		{Symbol: "BTCUSDT", Timestamp: base.Add(time.Minute), High: 2, Low: 1},
	})

	bars, err := src.GetBars(context.Background(), "BTCUSDT", base.Add(time.Minute), base.Add(2*time.Minute))
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, 2.0, bars[0].High)
	assert.Equal(t, 3.0, bars[1].High)

	bars, err = src.GetBars(context.Background(), "BTCUSDT", base.Add(time.Hour), base.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, bars)

	_, err = src.GetBars(context.Background(), "DOGEUSDT", base, base.Add(time.Hour))
	assert.ErrorIs(t, err, domrepo.ErrPriceUnavailable)
}
