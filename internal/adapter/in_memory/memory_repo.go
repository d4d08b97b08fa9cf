package in_memory

import (
	"context"
	"sort"
	"strconv"
	"sync"

	"github.com/tmladenov/exchange/internal/domain"
	"github.com/tmladenov/exchange/internal/port"
)

var _ port.Repository = (*MemoryRepo)(nil)

// MemoryRepo backs the engine in tests. Err, when set, is returned by every
// write so persistence failures can be exercised.
type MemoryRepo struct {
	mu      sync.Mutex
	orders  map[int64]domain.Order
	matches []domain.OrderMatch

	Err error
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{orders: make(map[int64]domain.Order)}
}

func (r *MemoryRepo) SaveOrder(ctx context.Context, o *domain.Order) error {
	if r.Err != nil {
		return r.Err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[o.ID] = *o
	return nil
}

func (r *MemoryRepo) SaveMatch(ctx context.Context, m *domain.OrderMatch) error {
	if r.Err != nil {
		return r.Err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.matches = append(r.matches, *m)
	return nil
}

func (r *MemoryRepo) FindOrder(ctx context.Context, id int64) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, domain.NewNotFound("order", strconv.FormatInt(id, 10))
	}
	return &o, nil
}

func (r *MemoryRepo) FindOrdersByDirectionAndStatus(ctx context.Context, direction domain.Direction, statuses []domain.OrderStatus) ([]*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var res []*domain.Order
	for _, o := range r.orders {
		if o.Direction != direction {
			continue
		}
		for _, st := range statuses {
			if o.Status == st {
				o := o
				res = append(res, &o)
				break
			}
		}
	}
	sortByCreation(res)
	return res, nil
}

func (r *MemoryRepo) LoadOpenOrders(ctx context.Context) ([]*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var res []*domain.Order
	for _, o := range r.orders {
		if o.Resting() {
			o := o
			res = append(res, &o)
		}
	}
	sortByCreation(res)
	return res, nil
}

func (r *MemoryRepo) FindMatchesForOrder(ctx context.Context, orderID int64) ([]*domain.OrderMatch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var res []*domain.OrderMatch
	for i := range r.matches {
		m := r.matches[i]
		if m.BuyOrderID == orderID || m.SellOrderID == orderID {
			res = append(res, &m)
		}
	}
	return res, nil
}

// MatchCount reports the ledger size; matches are never removed.
func (r *MemoryRepo) MatchCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.matches)
}

func (r *MemoryRepo) OrderCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.orders)
}

func (r *MemoryRepo) BeginTx(ctx context.Context) (port.Tx, error) {
	if r.Err != nil {
		return nil, r.Err
	}
	return &memTx{repo: r}, nil
}

// memTx stages writes and applies them on Commit, mirroring the all-or-nothing
// behavior of the SQL transaction.
type memTx struct {
	repo    *MemoryRepo
	orders  []domain.Order
	matches []domain.OrderMatch
}

func (t *memTx) SaveOrder(ctx context.Context, o *domain.Order) error {
	if t.repo.Err != nil {
		return t.repo.Err
	}
	t.orders = append(t.orders, *o)
	return nil
}

func (t *memTx) SaveMatch(ctx context.Context, m *domain.OrderMatch) error {
	if t.repo.Err != nil {
		return t.repo.Err
	}
	t.matches = append(t.matches, *m)
	return nil
}

func (t *memTx) Commit(ctx context.Context) error {
	if t.repo.Err != nil {
		return t.repo.Err
	}
	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()
	for _, o := range t.orders {
		t.repo.orders[o.ID] = o
	}
	t.repo.matches = append(t.repo.matches, t.matches...)
	return nil
}

func (t *memTx) Rollback(ctx context.Context) error {
	t.orders = nil
	t.matches = nil
	return nil
}

func sortByCreation(orders []*domain.Order) {
	sort.SliceStable(orders, func(i, j int) bool {
		return orders[i].CreatedAt.Before(orders[j].CreatedAt)
	})
}
