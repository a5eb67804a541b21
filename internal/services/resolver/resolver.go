// Package resolver is the AI fallback path: it asks a chat-completion backend
// for a fixed JSON schema, cleans and validates the answer and feeds it
// through the same normalization as the rule path.
package resolver

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"SignalBT/internal/domain/models"
	domainsvc "SignalBT/internal/domain/service"
	"SignalBT/internal/lexicon"
	"SignalBT/internal/service/cache"
	svcmetrics "SignalBT/internal/service/metrics"
	"SignalBT/internal/services/extractor"
	"SignalBT/internal/services/normalizer"
	applogger "SignalBT/pkg/logger"
)

type Config struct {
	Policy         Policy
	Temperature    float64
	MaxTokens      int
	RequestTimeout time.Duration
	// CacheNamespace separates cached answers of different models.
	CacheNamespace string
}

func DefaultConfig() Config {
	return Config{
		Policy:         DefaultPolicy(),
		Temperature:    0.1,
		MaxTokens:      500,
		RequestTimeout: 60 * time.Second,
	}
}

// Resolver is the AI-backed SignalExtractor.
type Resolver struct {
	completer domainsvc.Completer
	norm      *normalizer.Normalizer
	cfg       Config
	throttle  *Throttle
	cache     cache.BytesCache
	cacheTTL  time.Duration
	log       *applogger.Logger
}

var _ domainsvc.SignalExtractor = (*Resolver)(nil)

type Option func(*Resolver)

func WithThrottle(t *Throttle) Option {
	return func(r *Resolver) { r.throttle = t }
}

func WithCache(c cache.BytesCache, ttl time.Duration) Option {
	return func(r *Resolver) {
		r.cache = c
		r.cacheTTL = ttl
	}
}

func WithLogger(l *applogger.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.log = l
		}
	}
}

func New(completer domainsvc.Completer, norm *normalizer.Normalizer, cfg Config, opts ...Option) *Resolver {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultConfig().RequestTimeout
	}
	if cfg.Policy.Attempts <= 0 {
		cfg.Policy = DefaultPolicy()
	}
	r := &Resolver{
		completer: completer,
		norm:      norm,
		cfg:       cfg,
		log:       applogger.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Resolver) Name() string { return string(models.OriginAI) }

// Resolve runs the fallback on bare text.
func (r *Resolver) Resolve(ctx context.Context, text string) (models.CanonicalSignal, *models.Failure) {
	return r.Extract(ctx, models.RawMessage{Text: text})
}

// Extract never returns a Go error: every transport or parse problem ends up
// as a tagged failure, logged with reason and attempt count.
func (r *Resolver) Extract(ctx context.Context, msg models.RawMessage) (models.CanonicalSignal, *models.Failure) {
	if strings.TrimSpace(msg.Text) == "" {
		return models.CanonicalSignal{}, models.NewFailure(models.ReasonNoSignal, nil)
	}
	if r.throttle != nil {
		release, err := r.throttle.Acquire(ctx)
		if err != nil {
			return models.CanonicalSignal{}, r.fail(msg, models.NewFailure(models.ReasonThrottled, err))
		}
		defer release()
	}

	p, fail := r.payload(ctx, msg.Text)
	if fail != nil {
		return models.CanonicalSignal{}, r.fail(msg, fail)
	}
	return r.toSignal(p, msg), nil
}

func (r *Resolver) fail(msg models.RawMessage, f *models.Failure) *models.Failure {
	svcmetrics.ResolverFailures.WithLabelValues(string(f.Reason)).Inc()
	fields := []applogger.Field{
		applogger.String("reason", string(f.Reason)),
		applogger.Int("attempts", f.Attempts),
		applogger.String("source", msg.Source),
		applogger.Int64("message_id", msg.MessageID),
	}
	if f.Err != nil {
		fields = append(fields, applogger.Error(f.Err))
	}
	if f.Reason == models.ReasonNoSignal {
		r.log.Debug("resolver found no signal", fields...)
	} else {
		r.log.Warn("resolver failed", fields...)
	}
	return f
}

func (r *Resolver) cacheKey(text string) string {
	sum := sha256.Sum256([]byte(r.cfg.CacheNamespace + "\x00" + text))
	return "resolver:" + hex.EncodeToString(sum[:])
}

func (r *Resolver) payload(ctx context.Context, text string) (Payload, *models.Failure) {
	key := r.cacheKey(text)
	if r.cache != nil {
		if b, ok, err := r.cache.GetBytes(ctx, key); err == nil && ok {
			if p, f := ParseResponse(string(b)); f == nil {
				svcmetrics.ResolverCache.WithLabelValues("hit").Inc()
				return p, nil
			}
		}
		svcmetrics.ResolverCache.WithLabelValues("miss").Inc()
	}

	req := BuildRequest(text, r.cfg.Temperature, r.cfg.MaxTokens)
	var attempts int
	p, fail := Do(ctx, r.cfg.Policy, func(ctx context.Context, attempt int) (Payload, *models.Failure) {
		attempts = attempt
		cctx, cancel := context.WithTimeout(ctx, r.cfg.RequestTimeout)
		defer cancel()

		raw, err := r.completer.Complete(cctx, req)
		if err != nil {
			return Payload{}, models.NewFailure(Classify(err), err)
		}
		p, f := ParseResponse(raw)
		if f != nil && f.Reason == models.ReasonMalformedOutput {
			r.log.Debug("malformed completion",
				applogger.Int("attempt", attempt),
				applogger.String("response", truncate(raw, 300)))
		}
		if f == nil && r.cache != nil {
			if err := r.cache.SetBytes(ctx, key, []byte(raw), r.cacheTTL); err != nil {
				r.log.Warn("resolver cache write failed", applogger.Error(err))
			}
		}
		return p, f
	})
	svcmetrics.ResolverAttempts.Observe(float64(attempts))
	return p, fail
}

// toSignal passes the payload through the rule normalizer so leverage
// defaults and numeric coercion are identical on both paths.
func (r *Resolver) toSignal(p Payload, msg models.RawMessage) models.CanonicalSignal {
	field := func(tokens Numbers) *extractor.Field {
		if len(tokens) == 0 {
			return nil
		}
		return &extractor.Field{Raw: strings.Join(tokens, " "), Tokens: tokens}
	}
	cf := extractor.CandidateFields{
		Text:     msg.Text,
		Symbol:   p.Symbol,
		Side:     r.side(p.Side),
		Entry:    field(p.Entry),
		Targets:  field(p.TP),
		Stop:     field(p.SL),
		Leverage: field(p.Leverage),
		Locale:   lexicon.LocaleUnknown,
	}
	sig, _ := r.norm.Normalize(cf, msg)
	sig.Origin = models.OriginAI
	if len(p.Confidence) > 0 {
		if c, ok := normalizer.ParseNumber(r.norm.Lexicon(), p.Confidence[0]); ok {
			sig.Confidence = clamp01(c)
		}
	}
	return sig
}

func (r *Resolver) side(s string) models.Side {
	switch up := models.Side(strings.ToUpper(strings.TrimSpace(s))); up {
	case models.SideLong, models.SideShort:
		return up
	}
	if k, ok := r.norm.Lexicon().MatchPhrase(strings.Fields(lexicon.Fold(s))); ok && k.Field == lexicon.FieldSide {
		return k.Side
	}
	return ""
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
