package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/tmladenov/exchange/internal/domain"
	"github.com/tmladenov/exchange/internal/port"
)

// BookKey is the single well-known key the snapshot lives under.
const BookKey = "order_book"

var _ port.Cache = (*RedisCache)(nil)

type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(addr, password string, db int) *RedisCache {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisCache{client: rdb}
}

func (c *RedisCache) SetBook(ctx context.Context, book *domain.OrderBook, ttl time.Duration) error {
	b, err := json.Marshal(book)
	if err != nil {
		return domain.NewPersistenceError("cache: marshal book", err)
	}
	if err := c.client.Set(ctx, BookKey, b, ttl).Err(); err != nil {
		return domain.NewPersistenceError("cache: set book", err)
	}
	return nil
}

// GetBook returns the canonical empty book for a missing or expired key.
// Only a real I/O or decode failure is an error.
func (c *RedisCache) GetBook(ctx context.Context) (*domain.OrderBook, error) {
	b, err := c.client.Get(ctx, BookKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.NewOrderBook(), nil
	}
	if err != nil {
		return nil, domain.NewPersistenceError("cache: get book", err)
	}
	var book domain.OrderBook
	if err := json.Unmarshal(b, &book); err != nil {
		return nil, domain.NewPersistenceError("cache: unmarshal book", err)
	}
	if book.BuyOrders == nil {
		book.BuyOrders = []domain.Order{}
	}
	if book.SellOrders == nil {
		book.SellOrders = []domain.Order{}
	}
	return &book, nil
}

func (c *RedisCache) DeleteBook(ctx context.Context) error {
	if err := c.client.Del(ctx, BookKey).Err(); err != nil {
		return domain.NewPersistenceError("cache: delete book", err)
	}
	return nil
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
