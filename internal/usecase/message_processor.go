package usecase

import (
	"context"
	"fmt"
	"time"

	"SignalBT/internal/domain/models"
	drepo "SignalBT/internal/domain/repository"
	applogger "SignalBT/pkg/logger"
)

// Sink names accepted by MessageProcessor.
const (
	SinkKafka      = "kafka"
	SinkClickHouse = "clickhouse"
	SinkBoth       = "both"
)

// MessageProcessor resolves live messages and routes usable signals to the configured sink.
type MessageProcessor struct {
	res     *SignalResolver
	pub     drepo.Publisher
	store   drepo.Storage
	metrics drepo.Metrics
	sink    string
	allowAI bool
	log     *applogger.Logger
}

// NewMessageProcessor creates a processor. pub or store may be nil when the sink does not use it.
func NewMessageProcessor(
	res *SignalResolver,
	pub drepo.Publisher,
	store drepo.Storage,
	metrics drepo.Metrics,
	sink string,
	allowAI bool,
	log *applogger.Logger,
) *MessageProcessor {
	if log == nil {
		log = applogger.Nop()
	}
	return &MessageProcessor{
		res:     res,
		pub:     pub,
		store:   store,
		metrics: metrics,
		sink:    sink,
		allowAI: allowAI,
		log:     log,
	}
}

// Process resolves one message. Messages without a signal are dropped without error.
func (p *MessageProcessor) Process(ctx context.Context, msg *models.RawMessage) error {
	if msg == nil {
		return fmt.Errorf("message is nil")
	}
	r := p.res.Resolve(ctx, *msg, p.allowAI)
	if r.Failure != nil {
		p.log.Warn("ai fallback failed",
			applogger.String("source", msg.Source),
			applogger.Int64("message_id", msg.MessageID),
			applogger.String("reason", string(r.Failure.Reason)),
			applogger.Int("attempts", r.Failure.Attempts),
		)
	}
	if !r.Usable() {
		return nil
	}
	return p.ProcessBatch(ctx, []models.CanonicalSignal{r.Signal})
}

// ProcessBatch routes already-resolved signals.
func (p *MessageProcessor) ProcessBatch(ctx context.Context, signals []models.CanonicalSignal) error {
	if len(signals) == 0 {
		return nil
	}

	start := time.Now()
	var err error
	switch p.sink {
	case SinkKafka:
		err = p.pub.PublishSignals(ctx, signals)
	case SinkClickHouse:
		err = p.store.StoreSignals(ctx, signals)
	case SinkBoth:
		if err = p.store.StoreSignals(ctx, signals); err == nil {
			err = p.pub.PublishSignals(ctx, signals)
		}
	default:
		err = fmt.Errorf("unknown sink: %s", p.sink)
	}

	if err != nil {
		p.metrics.RecordError("process_batch")
		return fmt.Errorf("process batch: %w", err)
	}
	p.metrics.RecordLatency("process_batch", time.Since(start).Seconds())
	return nil
}

// Close closes underlying resources if available.
func (p *MessageProcessor) Close() {
	if p.pub != nil {
		_ = p.pub.Close()
	}
	if p.store != nil {
		_ = p.store.Close()
	}
}
