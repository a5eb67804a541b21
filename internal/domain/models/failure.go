package models

import "fmt"

// FailureReason tags why a field, a resolution or a simulation did not yield
// a usable value.
type FailureReason string

const (
	ReasonExtractionGap        FailureReason = "extraction_gap"
	ReasonNormalizationFailure FailureReason = "normalization_failure"
	ReasonTimeout              FailureReason = "timeout"
	ReasonRateLimited          FailureReason = "rate_limited"
	ReasonThrottled            FailureReason = "throttled"
	ReasonConnection           FailureReason = "connection"
	ReasonUpstream             FailureReason = "upstream_error"
	ReasonUnavailable          FailureReason = "unavailable"
	ReasonMalformedOutput      FailureReason = "malformed_output"
	ReasonNoSignal             FailureReason = "no_signal"
	ReasonNoPriceData          FailureReason = "no_price_data"
	ReasonIncompleteSignal     FailureReason = "incomplete_signal"
)

// Failure is the structured failure value returned instead of raising.
type Failure struct {
	Reason   FailureReason `json:"error"`
	Attempts int           `json:"attempts,omitempty"`
	Err      error         `json:"-"`
}

// NewFailure builds a Failure for reason wrapping err (may be nil).
func NewFailure(reason FailureReason, err error) *Failure {
	return &Failure{Reason: reason, Err: err}
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("%s: %v", f.Reason, f.Err)
	}
	return string(f.Reason)
}

func (f *Failure) Unwrap() error { return f.Err }
