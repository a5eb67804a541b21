package usecase

import (
	"context"
	"time"

	"SignalBT/internal/domain/models"
	domrepo "SignalBT/internal/domain/repository"
	domsvc "SignalBT/internal/domain/service"
	"SignalBT/internal/services/resolver"
	applogger "SignalBT/pkg/logger"
)

// DefaultConfidenceThreshold is the rule confidence below which the AI path is consulted.
const DefaultConfidenceThreshold = 0.7

// Resolution is the outcome of resolving one message.
// Failure is set when the AI path was tried and failed; Signal then holds the rule result.
type Resolution struct {
	Signal  models.CanonicalSignal `json:"signal"`
	Failure *models.Failure        `json:"failure,omitempty"`
	Filled  []string               `json:"filled,omitempty"`
	UsedAI  bool                   `json:"used_ai"`
}

// Usable reports whether the resolution produced anything worth keeping.
func (r Resolution) Usable() bool { return !r.Signal.Empty() }

// SignalResolver tries rule extraction first and falls back to the AI extractor.
type SignalResolver struct {
	rule            domsvc.SignalExtractor
	ai              domsvc.SignalExtractor
	policy          resolver.MergePolicy
	threshold       float64
	defaultLeverage float64
	metrics         domrepo.Metrics
	log             *applogger.Logger
}

type ResolverOption func(*SignalResolver)

// WithAI enables the fallback path. A nil extractor keeps it disabled.
func WithAI(ai domsvc.SignalExtractor) ResolverOption {
	return func(r *SignalResolver) { r.ai = ai }
}

func WithMergePolicy(p resolver.MergePolicy) ResolverOption {
	return func(r *SignalResolver) {
		if p != "" {
			r.policy = p
		}
	}
}

func WithConfidenceThreshold(v float64) ResolverOption {
	return func(r *SignalResolver) {
		if v > 0 {
			r.threshold = v
		}
	}
}

func WithDefaultLeverage(v float64) ResolverOption {
	return func(r *SignalResolver) {
		if v > 0 {
			r.defaultLeverage = v
		}
	}
}

func WithResolverMetrics(m domrepo.Metrics) ResolverOption {
	return func(r *SignalResolver) { r.metrics = m }
}

func WithResolverLogger(l *applogger.Logger) ResolverOption {
	return func(r *SignalResolver) { r.log = l }
}

func NewSignalResolver(rule domsvc.SignalExtractor, opts ...ResolverOption) *SignalResolver {
	r := &SignalResolver{
		rule:            rule,
		policy:          resolver.MergeAuto,
		threshold:       DefaultConfidenceThreshold,
		defaultLeverage: 15,
		log:             applogger.Nop(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// AIEnabled reports whether a fallback extractor is configured.
func (r *SignalResolver) AIEnabled() bool { return r.ai != nil }

// Resolve runs the rule path and, when allowed and needed, the AI path, then
// merges both under the configured policy.
func (r *SignalResolver) Resolve(ctx context.Context, msg models.RawMessage, allowAI bool) Resolution {
	start := time.Now()
	sig, _ := r.rule.Extract(ctx, msg)
	res := Resolution{Signal: sig}

	if allowAI && r.ai != nil && r.needsAI(sig) {
		res.UsedAI = true
		aiSig, fail := r.ai.Extract(ctx, msg)
		if fail != nil {
			res.Failure = fail
			if r.metrics != nil {
				r.metrics.RecordResolverFailure(string(fail.Reason))
			}
		} else {
			res.Signal, res.Filled = resolver.Merge(r.policy, sig, aiSig, r.defaultLeverage)
		}
	}

	if r.metrics != nil {
		r.metrics.RecordMessage(msg.Source)
		if res.Usable() {
			r.metrics.RecordSignal(string(res.Signal.Origin), res.Signal.IsComplete)
		}
		r.metrics.RecordLatency("resolve", time.Since(start).Seconds())
	}
	if len(res.Filled) > 0 {
		r.log.Debug("ai merged into rule result",
			applogger.String("source", msg.Source),
			applogger.Int64("message_id", msg.MessageID),
			applogger.Strings("filled", res.Filled),
		)
	}
	return res
}

func (r *SignalResolver) needsAI(sig models.CanonicalSignal) bool {
	return !sig.IsComplete || sig.Confidence < r.threshold
}
