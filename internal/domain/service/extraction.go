package service

import (
	"context"

	"SignalBT/internal/domain/models"
)

// SignalExtractor turns a raw message into a canonical signal. The rule-based
// and AI-backed variants both satisfy it; neither raises on bad input.
type SignalExtractor interface {
	Name() string
	Extract(ctx context.Context, msg models.RawMessage) (models.CanonicalSignal, *models.Failure)
}

// CompletionRequest is the outbound request to a chat-completion backend.
type CompletionRequest struct {
	System      string
	User        string
	Temperature float64
	MaxTokens   int
}

// Completer returns the raw assistant text for one request.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}
