package port

import (
	"context"

	"github.com/tmladenov/exchange/internal/domain"
)

// Repository is the durable shadow of individual orders and the append-only
// match ledger. It never holds a live book; that lives in the cache.
type Repository interface {
	SaveOrder(ctx context.Context, o *domain.Order) error
	FindOrder(ctx context.Context, id int64) (*domain.Order, error)
	FindOrdersByDirectionAndStatus(ctx context.Context, direction domain.Direction, statuses []domain.OrderStatus) ([]*domain.Order, error)
	LoadOpenOrders(ctx context.Context) ([]*domain.Order, error)
	SaveMatch(ctx context.Context, m *domain.OrderMatch) error
	FindMatchesForOrder(ctx context.Context, orderID int64) ([]*domain.OrderMatch, error)
	BeginTx(ctx context.Context) (Tx, error)
}

// Tx scopes the multi-row mutation of one crossing event: the resting order
// update, the optional excess order insert and the ledger append commit or
// roll back together.
type Tx interface {
	SaveOrder(ctx context.Context, o *domain.Order) error
	SaveMatch(ctx context.Context, m *domain.OrderMatch) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}
