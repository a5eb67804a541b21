package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"SignalBT/internal/domain/models"
	domrepo "SignalBT/internal/domain/repository"
	pkgkafka "SignalBT/pkg/kafka"
)

// KafkaMessagesHandler consumes raw channel messages and hands them to the processor.
type KafkaMessagesHandler struct {
	topic   string
	proc    *MessageProcessor
	metrics domrepo.Metrics
}

func NewKafkaMessagesHandler(topic string, proc *MessageProcessor, metrics domrepo.Metrics) *KafkaMessagesHandler {
	return &KafkaMessagesHandler{topic: topic, proc: proc, metrics: metrics}
}

func (h *KafkaMessagesHandler) Topic() string { return h.topic }

// Handle decodes one input record: {source, message_id, timestamp, text}.
// Malformed records are returned as errors so the consumer routes them to the DLQ.
func (h *KafkaMessagesHandler) Handle(ctx context.Context, b []byte) error {
	m, err := DecodeMessage(b)
	if err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return err
	}
	if !m.Timestamp.IsZero() {
		h.metrics.RecordLatency("ingest_e2e_seconds", time.Since(m.Timestamp).Seconds())
	}

	start := time.Now()
	err = h.proc.Process(ctx, &m)
	h.metrics.RecordLatency("consumer_process_seconds", time.Since(start).Seconds())
	if err != nil {
		h.metrics.RecordError("consumer_process")
		return err
	}
	return nil
}

// DecodeMessage parses and validates one input record.
func DecodeMessage(b []byte) (models.RawMessage, error) {
	var m models.RawMessage
	if err := json.Unmarshal(b, &m); err != nil {
		return m, fmt.Errorf("decode message: %w", err)
	}
	if strings.TrimSpace(m.Source) == "" {
		return m, fmt.Errorf("decode message: source empty")
	}
	m.Timestamp = m.Timestamp.UTC()
	return m, nil
}

var _ pkgkafka.MessageHandler = (*KafkaMessagesHandler)(nil)
