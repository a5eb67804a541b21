package repository

import (
	"context"
	"errors"
	"time"

	"SignalBT/internal/domain/models"
)

// ErrPriceUnavailable means the source holds no data at all for a symbol,
// as opposed to an empty window.
var ErrPriceUnavailable = errors.New("price data unavailable")

// PriceSource returns bars ordered ascending by timestamp for [start, end].
type PriceSource interface {
	GetBars(ctx context.Context, symbol string, start, end time.Time) ([]models.Bar, error)
}
