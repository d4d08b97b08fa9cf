package pg

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tmladenov/exchange/internal/domain"
	"github.com/tmladenov/exchange/internal/port"
)

var _ port.Repository = (*PgRepo)(nil)

// querier covers both the pool and an open transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PgRepo struct {
	pool *pgxpool.Pool
}

// NewPgRepo opens a connection pool; call Close when finished.
func NewPgRepo(ctx context.Context, dsn string) (*PgRepo, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pg: create pool: %w", err)
	}
	return &PgRepo{pool: pool}, nil
}

func NewRepository(pool *pgxpool.Pool) *PgRepo {
	return &PgRepo{pool: pool}
}

func (p *PgRepo) Close() {
	if p.pool != nil {
		p.pool.Close()
	}
}

func (p *PgRepo) SaveOrder(ctx context.Context, o *domain.Order) error {
	return saveOrder(ctx, p.pool, o)
}

func (p *PgRepo) SaveMatch(ctx context.Context, m *domain.OrderMatch) error {
	return saveMatch(ctx, p.pool, m)
}

func (p *PgRepo) FindOrder(ctx context.Context, id int64) (*domain.Order, error) {
	row := p.pool.QueryRow(ctx, `
SELECT id, amount, price, remaining, status, direction, created_at
FROM orders
WHERE id = $1
`, id)
	var o domain.Order
	var status, direction string
	if err := row.Scan(&o.ID, &o.Amount, &o.Price, &o.Remaining, &status, &direction, &o.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFound("order", strconv.FormatInt(id, 10))
		}
		return nil, domain.NewPersistenceError("pg: find order", err)
	}
	o.Status = domain.OrderStatus(status)
	o.Direction = domain.Direction(direction)
	return &o, nil
}

func (p *PgRepo) FindOrdersByDirectionAndStatus(ctx context.Context, direction domain.Direction, statuses []domain.OrderStatus) ([]*domain.Order, error) {
	ss := make([]string, 0, len(statuses))
	for _, st := range statuses {
		ss = append(ss, string(st))
	}
	rows, err := p.pool.Query(ctx, `
SELECT id, amount, price, remaining, status, direction, created_at
FROM orders
WHERE direction = $1 AND status = ANY($2)
ORDER BY created_at ASC
`, string(direction), ss)
	if err != nil {
		return nil, domain.NewPersistenceError("pg: find orders", err)
	}
	defer rows.Close()
	return scanOrders(rows)
}

// LoadOpenOrders returns every order still in the book, FIFO by creation
// time. Used to rebuild the cached snapshot on startup.
func (p *PgRepo) LoadOpenOrders(ctx context.Context) ([]*domain.Order, error) {
	rows, err := p.pool.Query(ctx, `
SELECT id, amount, price, remaining, status, direction, created_at
FROM orders
WHERE status = 'OPEN' AND COALESCE(remaining, 0) > 0
ORDER BY created_at ASC
`)
	if err != nil {
		return nil, domain.NewPersistenceError("pg: load open orders", err)
	}
	defer rows.Close()
	return scanOrders(rows)
}

func (p *PgRepo) FindMatchesForOrder(ctx context.Context, orderID int64) ([]*domain.OrderMatch, error) {
	rows, err := p.pool.Query(ctx, `
SELECT id, buy_order_id, sell_order_id, price, amount, created_at
FROM order_matches
WHERE buy_order_id = $1 OR sell_order_id = $1
ORDER BY created_at ASC
`, orderID)
	if err != nil {
		return nil, domain.NewPersistenceError("pg: find matches", err)
	}
	defer rows.Close()

	var res []*domain.OrderMatch
	for rows.Next() {
		var m domain.OrderMatch
		if err := rows.Scan(&m.ID, &m.BuyOrderID, &m.SellOrderID, &m.Price, &m.Amount, &m.CreatedAt); err != nil {
			return nil, domain.NewPersistenceError("pg: scan match", err)
		}
		res = append(res, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewPersistenceError("pg: find matches", err)
	}
	return res, nil
}

func (p *PgRepo) BeginTx(ctx context.Context) (port.Tx, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return nil, domain.NewPersistenceError("pg: begin tx", err)
	}
	return &pgTx{tx: tx}, nil
}

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) SaveOrder(ctx context.Context, o *domain.Order) error {
	return saveOrder(ctx, t.tx, o)
}

func (t *pgTx) SaveMatch(ctx context.Context, m *domain.OrderMatch) error {
	return saveMatch(ctx, t.tx, m)
}

func (t *pgTx) Commit(ctx context.Context) error {
	if err := t.tx.Commit(ctx); err != nil {
		return domain.NewPersistenceError("pg: commit", err)
	}
	return nil
}

func (t *pgTx) Rollback(ctx context.Context) error {
	return t.tx.Rollback(ctx)
}

func saveOrder(ctx context.Context, q querier, o *domain.Order) error {
	if o == nil {
		return domain.NewInvalidInput("order", "nil")
	}
	_, err := q.Exec(ctx, `
INSERT INTO orders(id, amount, price, remaining, status, direction, created_at)
VALUES($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (id) DO UPDATE SET
  amount = EXCLUDED.amount,
  price = EXCLUDED.price,
  remaining = EXCLUDED.remaining,
  status = EXCLUDED.status,
  direction = EXCLUDED.direction
`, o.ID, o.Amount, o.Price, o.Remaining, string(o.Status), string(o.Direction), o.CreatedAt)
	if err != nil {
		return domain.NewPersistenceError("pg: save order", err)
	}
	return nil
}

// saveMatch appends to the ledger; rows are never updated or deleted.
func saveMatch(ctx context.Context, q querier, m *domain.OrderMatch) error {
	if m == nil {
		return domain.NewInvalidInput("match", "nil")
	}
	_, err := q.Exec(ctx, `
INSERT INTO order_matches(id, buy_order_id, sell_order_id, price, amount, created_at)
VALUES($1,$2,$3,$4,$5,$6)
ON CONFLICT (id) DO NOTHING
`, m.ID, m.BuyOrderID, m.SellOrderID, m.Price, m.Amount, m.CreatedAt)
	if err != nil {
		return domain.NewPersistenceError("pg: save match", err)
	}
	return nil
}

func scanOrders(rows pgx.Rows) ([]*domain.Order, error) {
	var res []*domain.Order
	for rows.Next() {
		var o domain.Order
		var status, direction string
		if err := rows.Scan(&o.ID, &o.Amount, &o.Price, &o.Remaining, &status, &direction, &o.CreatedAt); err != nil {
			return nil, domain.NewPersistenceError("pg: scan order", err)
		}
		o.Status = domain.OrderStatus(status)
		o.Direction = domain.Direction(direction)
		res = append(res, &o)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewPersistenceError("pg: read orders", err)
	}
	return res, nil
}
