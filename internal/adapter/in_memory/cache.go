package in_memory

import (
	"context"
	"sync"
	"time"

	"github.com/tmladenov/exchange/internal/domain"
	"github.com/tmladenov/exchange/internal/port"
)

var _ port.Cache = (*Cache)(nil)

// Cache keeps the snapshot in memory. GetErr/SetErr, when set, inject
// failures; TTL is recorded but never enforced.
type Cache struct {
	mu   sync.Mutex
	book *domain.OrderBook

	LastTTL time.Duration
	GetErr  error
	SetErr  error
}

func NewCache() *Cache {
	return &Cache{}
}

func (c *Cache) GetBook(ctx context.Context) (*domain.OrderBook, error) {
	if c.GetErr != nil {
		return nil, c.GetErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.book == nil {
		return domain.NewOrderBook(), nil
	}
	return c.book.DeepCopy(), nil
}

func (c *Cache) SetBook(ctx context.Context, book *domain.OrderBook, ttl time.Duration) error {
	if c.SetErr != nil {
		return c.SetErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.book = book.DeepCopy()
	c.LastTTL = ttl
	return nil
}

func (c *Cache) DeleteBook(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.book = nil
	return nil
}
