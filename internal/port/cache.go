package port

import (
	"context"
	"time"

	"github.com/tmladenov/exchange/internal/domain"
)

// Cache stores the single order book snapshot under one well-known key.
// GetBook returns the canonical empty book for a missing or expired key;
// callers must not special-case "book not yet initialized".
type Cache interface {
	GetBook(ctx context.Context) (*domain.OrderBook, error)
	SetBook(ctx context.Context, book *domain.OrderBook, ttl time.Duration) error
	DeleteBook(ctx context.Context) error
}
