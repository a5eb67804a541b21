package repository

import (
	"context"

	"SignalBT/internal/domain/models"
	"SignalBT/internal/domain/repository"
	pkgkafka "SignalBT/pkg/kafka"
)

// KafkaPublisher implements Publisher for Kafka. Records are keyed by symbol.
type KafkaPublisher struct {
	producer     *pkgkafka.Producer
	signalsTopic string
	resultsTopic string
}

var _ repository.Publisher = (*KafkaPublisher)(nil)

func NewKafkaPublisher(producer *pkgkafka.Producer, signalsTopic, resultsTopic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, signalsTopic: signalsTopic, resultsTopic: resultsTopic}
}

func (p *KafkaPublisher) PublishSignals(ctx context.Context, signals []models.CanonicalSignal) error {
	if len(signals) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, len(signals))
	for i, s := range signals {
		msgs[i] = pkgkafka.Message{Key: []byte(s.Symbol), Value: s}
	}
	return p.producer.PublishBatch(ctx, p.signalsTopic, msgs)
}

func (p *KafkaPublisher) PublishResults(ctx context.Context, results []models.BacktestResult) error {
	if len(results) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, len(results))
	for i, r := range results {
		msgs[i] = pkgkafka.Message{Key: []byte(r.Symbol), Value: r}
	}
	return p.producer.PublishBatch(ctx, p.resultsTopic, msgs)
}

func (p *KafkaPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
