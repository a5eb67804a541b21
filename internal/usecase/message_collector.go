package usecase

import (
	"context"
	"time"

	"SignalBT/internal/domain/models"
	drepo "SignalBT/internal/domain/repository"
	mid "SignalBT/internal/middleware"
	applogger "SignalBT/pkg/logger"
)

// MessageCollector reads messages from a live relay and feeds the ingestion pipeline.
type MessageCollector struct {
	stream  drepo.MessageStream
	proc    *MessageProcessor
	metrics drepo.Metrics
	pipe    *mid.IngestPipeline
	log     *applogger.Logger
	done    chan struct{}
}

func NewMessageCollector(stream drepo.MessageStream, proc *MessageProcessor, metrics drepo.Metrics, pipe *mid.IngestPipeline, log *applogger.Logger) *MessageCollector {
	if log == nil {
		log = applogger.Nop()
	}
	return &MessageCollector{stream: stream, proc: proc, metrics: metrics, pipe: pipe, log: log, done: make(chan struct{})}
}

func (c *MessageCollector) IsConnected() bool {
	return c.stream.IsConnected()
}

// Start connects, subscribes and consumes in the background until ctx ends.
func (c *MessageCollector) Start(ctx context.Context) error {
	if err := c.stream.Connect(ctx); err != nil {
		return err
	}
	if err := c.stream.Subscribe(ctx); err != nil {
		return err
	}
	if c.pipe != nil {
		c.pipe.Start(ctx)
	}
	go c.run(ctx)
	return nil
}

// Done is closed once the consume loop has exited.
func (c *MessageCollector) Done() <-chan struct{} { return c.done }

func (c *MessageCollector) run(ctx context.Context) {
	defer close(c.done)
	for {
		msgCh, errCh := c.stream.Read(ctx)
		err := c.consume(ctx, msgCh, errCh)
		if ctx.Err() != nil {
			return
		}
		c.metrics.RecordError("stream")
		c.log.Warn("relay stream interrupted, reconnecting", applogger.Error(err))
		if !c.reconnect(ctx) {
			return
		}
	}
}

// consume drains one stream session and returns the error that ended it.
func (c *MessageCollector) consume(ctx context.Context, msgCh <-chan *models.RawMessage, errCh <-chan error) error {
	var streamErr error
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err, ok := <-errCh:
			if ok && err != nil {
				streamErr = err
			}
			errCh = nil
		case m, ok := <-msgCh:
			if !ok {
				return streamErr
			}
			if m == nil {
				continue
			}
			c.metrics.RecordMessage(m.Source)
			if c.pipe != nil {
				err := c.pipe.Process(ctx, m)
				if err != nil {
					c.log.Debug("message rejected by pipeline",
						applogger.String("source", m.Source),
						applogger.Int64("message_id", m.MessageID),
						applogger.Error(err),
					)
				}
				continue
			}
			if err := c.proc.Process(ctx, m); err != nil {
				c.log.Error("message processing failed", applogger.String("source", m.Source), applogger.Error(err))
			}
		}
	}
}

func (c *MessageCollector) reconnect(ctx context.Context) bool {
	backoff := time.Second
	for {
		err := c.stream.Reconnect(ctx)
		if err == nil {
			c.log.Info("relay stream reconnected")
			return true
		}
		if ctx.Err() != nil {
			return false
		}
		c.log.Warn("relay reconnect failed", applogger.Error(err), applogger.Duration("retry_in_ms", backoff))
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return false
		}
		if backoff < time.Minute {
			backoff *= 2
		}
	}
}

// Processor returns the underlying processor for lifecycle management.
func (c *MessageCollector) Processor() *MessageProcessor { return c.proc }

// Shutdown stops the pipeline and closes the stream.
func (c *MessageCollector) Shutdown(ctx context.Context) error {
	if c.pipe != nil {
		c.pipe.Stop()
	}
	return c.stream.Close()
}
