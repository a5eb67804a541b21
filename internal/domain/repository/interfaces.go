package repository

import (
	"context"
	"time"

	"SignalBT/internal/domain/models"
)

// MessageStream delivers raw channel messages from a live relay.
type MessageStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.RawMessage, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

type Publisher interface {
	PublishSignals(ctx context.Context, signals []models.CanonicalSignal) error
	PublishResults(ctx context.Context, results []models.BacktestResult) error
	Close() error
}

// SignalQuery selects stored signals by time window and optional channel.
type SignalQuery struct {
	From         time.Time
	To           time.Time
	Channel      string
	CompleteOnly bool
	Limit        int
}

// ResultQuery selects stored backtest results.
type ResultQuery struct {
	From    time.Time
	To      time.Time
	Channel string
	Limit   int
}

type Storage interface {
	Init(ctx context.Context) error
	StoreSignals(ctx context.Context, signals []models.CanonicalSignal) error
	QuerySignals(ctx context.Context, q SignalQuery) ([]models.CanonicalSignal, error)
	StoreResults(ctx context.Context, results []models.BacktestResult) error
	QueryResults(ctx context.Context, q ResultQuery) ([]models.BacktestResult, error)
	Health(ctx context.Context) error
	Close() error
}

type Metrics interface {
	RecordMessage(source string)
	RecordSignal(origin string, complete bool)
	RecordResolverFailure(reason string)
	RecordOutcome(outcome string)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
