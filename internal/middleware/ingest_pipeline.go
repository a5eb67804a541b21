package middleware

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"SignalBT/internal/domain/models"
	domrepo "SignalBT/internal/domain/repository"
	"SignalBT/internal/service/ratelimit"
)

// Proc is the minimal processor interface the pipeline needs.
type Proc interface {
	Process(ctx context.Context, m *models.RawMessage) error
}

// IngestPipeline sits between the relay and the processor.
// It validates, throttles per channel, optionally transforms, and buffers when downstream fails.
type IngestPipeline struct {
	proc      Proc
	metrics   domrepo.Metrics
	perSec    float64
	burst     int
	maxText   int
	bufSize   int
	bufCh     chan *models.RawMessage
	stopCh    chan struct{}
	started   bool
	mu        sync.Mutex
	limiter   *ratelimit.Limiter
	transform func(*models.RawMessage) *models.RawMessage
}

type PipelineOption func(*IngestPipeline)

// WithChannelRate sets the accepted messages per second per channel.
func WithChannelRate(perSec float64, burst int) PipelineOption {
	return func(p *IngestPipeline) {
		if perSec > 0 {
			p.perSec = perSec
		}
		if burst > 0 {
			p.burst = burst
		}
	}
}

// WithBufferSize sets the retry buffer size used when downstream is unavailable.
func WithBufferSize(n int) PipelineOption {
	return func(p *IngestPipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

func WithMaxTextLen(n int) PipelineOption {
	return func(p *IngestPipeline) {
		if n > 0 {
			p.maxText = n
		}
	}
}

// WithTransform sets a hook applied to every message after validation.
func WithTransform(fn func(*models.RawMessage) *models.RawMessage) PipelineOption {
	return func(p *IngestPipeline) { p.transform = fn }
}

func NewIngestPipeline(proc Proc, metrics domrepo.Metrics, opts ...PipelineOption) *IngestPipeline {
	p := &IngestPipeline{
		proc:    proc,
		metrics: metrics,
		perSec:  5,
		burst:   10,
		maxText: 8000,
		bufSize: 1000,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.bufCh = make(chan *models.RawMessage, p.bufSize)
	p.limiter = ratelimit.New(p.perSec, p.burst)
	return p
}

// Start launches background flushing of buffered messages.
func (p *IngestPipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.stopCh = make(chan struct{})
	stop := p.stopCh
	p.mu.Unlock()

	go p.flush(ctx, stop)
}

func (p *IngestPipeline) flush(ctx context.Context, stop <-chan struct{}) {
	const minBackoff = 50 * time.Millisecond
	backoff := minBackoff
	sweep := time.NewTicker(time.Minute)
	defer sweep.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case now := <-sweep.C:
			p.limiter.Sweep(now)
		case m := <-p.bufCh:
			if m == nil {
				continue
			}
			if err := p.proc.Process(ctx, m); err != nil {
				if backoff < 2*time.Second {
					backoff *= 2
				}
				p.metrics.RecordError("pipeline_flush")
				select {
				case <-time.After(backoff):
				case <-stop:
					return
				}
				select {
				case p.bufCh <- m:
				default:
					p.metrics.RecordError("pipeline_buffer_drop")
				}
			} else {
				backoff = minBackoff
			}
		}
	}
}

// Stop stops the background flushing.
func (p *IngestPipeline) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started {
		return
	}
	p.started = false
	close(p.stopCh)
}

// Buffered returns the number of messages waiting for a retry.
func (p *IngestPipeline) Buffered() int { return len(p.bufCh) }

// Process validates, throttles, and forwards a message, buffering it on downstream errors.
// Throttled messages are dropped without error.
func (p *IngestPipeline) Process(ctx context.Context, m *models.RawMessage) error {
	start := time.Now()
	if err := p.validate(m); err != nil {
		p.metrics.RecordError("pipeline_validate")
		return err
	}
	if p.transform != nil {
		m = p.transform(m)
		if err := p.validate(m); err != nil {
			p.metrics.RecordError("pipeline_transform_invalid")
			return err
		}
	}
	if !p.limiter.AllowAt(m.Source, start) {
		p.metrics.RecordError("pipeline_throttle")
		return nil
	}

	if err := p.proc.Process(ctx, m); err != nil {
		p.metrics.RecordError("pipeline_process")
		select {
		case p.bufCh <- m:
			p.metrics.RecordLatency("pipeline_buffer_depth", float64(len(p.bufCh)))
		default:
			p.metrics.RecordError("pipeline_buffer_full")
		}
		return fmt.Errorf("pipeline downstream: %w", err)
	}
	p.metrics.RecordLatency("pipeline_process", time.Since(start).Seconds())
	return nil
}

func (p *IngestPipeline) validate(m *models.RawMessage) error {
	if m == nil {
		return fmt.Errorf("message nil")
	}
	if m.Source == "" {
		return fmt.Errorf("source empty")
	}
	if strings.TrimSpace(m.Text) == "" {
		return fmt.Errorf("text empty")
	}
	if len(m.Text) > p.maxText {
		return fmt.Errorf("text exceeds %d bytes", p.maxText)
	}
	return nil
}
