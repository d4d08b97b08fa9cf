package core

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tmladenov/exchange/internal/domain"
	"github.com/tmladenov/exchange/internal/port"
)

// Engine owns the book. A single mutex serializes every read-sort-match-write
// cycle against the cached snapshot, so two concurrent placements can never
// both read the same snapshot and silently drop each other's update.
type Engine struct {
	repo  port.Repository
	cache port.Cache
	log   *slog.Logger

	mu      sync.Mutex
	bookTTL time.Duration
	timeout time.Duration
}

// PlacementResult reports what an order submission did: rested a new order,
// merged into an existing one, or produced a match.
type PlacementResult struct {
	Created bool               `json:"created"`
	Merged  bool               `json:"merged"`
	Match   *domain.OrderMatch `json:"match,omitempty"`
}

// OrderDetails pairs an order with the matches it participated in.
type OrderDetails struct {
	Order   *domain.Order        `json:"order"`
	Matches []*domain.OrderMatch `json:"matches"`
}

func NewEngine(repo port.Repository, cache port.Cache, log *slog.Logger, bookTTL, callTimeout time.Duration) *Engine {
	if log == nil {
		log = slog.Default()
	}
	if bookTTL <= 0 {
		bookTTL = 18000 * time.Second
	}
	if callTimeout <= 0 {
		callTimeout = 3 * time.Second
	}
	return &Engine{
		repo:    repo,
		cache:   cache,
		log:     log,
		bookTTL: bookTTL,
		timeout: callTimeout,
	}
}

// Bootstrap seeds the cached book on startup. An empty cache is rebuilt from
// the OPEN orders in the store, which also recovers the book after a TTL
// eviction.
func (e *Engine) Bootstrap(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	book, err := e.cache.GetBook(ctx)
	if err != nil {
		return err
	}
	if len(book.BuyOrders) > 0 || len(book.SellOrders) > 0 {
		return nil
	}

	orders, err := e.repo.LoadOpenOrders(ctx)
	if err != nil {
		return err
	}
	book = domain.NewOrderBook()
	for _, o := range orders {
		book.Append(o)
	}
	book.Sort()

	e.log.Info("order book bootstrapped", "buy_orders", len(book.BuyOrders), "sell_orders", len(book.SellOrders))
	return e.cache.SetBook(ctx, book, e.bookTTL)
}

// PlaceOrder runs the matching algorithm for one incoming order:
// duplicate coalescing, then a price-priority scan of the opposite side, then
// either one match against the first crossing order or a new resting order.
func (e *Engine) PlaceOrder(ctx context.Context, id int64, amount, price decimal.Decimal, direction domain.Direction) (*PlacementResult, error) {
	if id <= 0 {
		return nil, domain.NewInvalidInput("id", "must be positive")
	}
	if !amount.IsPositive() {
		return nil, domain.NewInvalidInput("amount", "must be greater than zero")
	}
	if !price.IsPositive() {
		return nil, domain.NewInvalidInput("price", "must be greater than zero")
	}
	if direction != domain.Buy && direction != domain.Sell {
		return nil, domain.NewInvalidInput("direction", "must be BUY or SELL")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	book, err := e.loadBook(ctx)
	if err != nil {
		return nil, err
	}

	// Duplicate coalescing: a second submission at an already-resting
	// price/side grows that order instead of inserting a sibling.
	if existing := book.FindByPrice(direction, price); existing != nil {
		existing.Merge(amount)
		if err := e.repo.SaveOrder(ctx, existing); err != nil {
			return nil, err
		}
		if err := e.cache.SetBook(ctx, book, e.bookTTL); err != nil {
			return nil, err
		}
		e.log.Info("order merged", "order_id", existing.ID, "price", price, "added", amount)
		return &PlacementResult{Merged: true}, nil
	}

	// The cache is the only shared state, so the re-sorted book is written
	// back before the scan rather than kept private to this invocation.
	book.Sort()
	if err := e.cache.SetBook(ctx, book, e.bookTTL); err != nil {
		return nil, err
	}

	opposite := book.Side(direction.Opposite())
	for i := range *opposite {
		resting := (*opposite)[i]
		if !crosses(direction, price, resting.Price) {
			continue
		}
		match, err := e.executeMatch(ctx, book, id, amount, price, direction, resting)
		if err != nil {
			return nil, err
		}
		return &PlacementResult{Match: match}, nil
	}

	newOrder := domain.NewOrder(amount, price, direction)
	newOrder.ID = id
	if err := e.repo.SaveOrder(ctx, newOrder); err != nil {
		return nil, err
	}
	book.Append(newOrder)
	if err := e.cache.SetBook(ctx, book, e.bookTTL); err != nil {
		return nil, err
	}
	e.log.Info("order rested", "order_id", id, "direction", direction, "price", price, "amount", amount)
	return &PlacementResult{Created: true}, nil
}

// crosses is the price-only eligibility rule: a buy crosses the first sell
// at or below its price, a sell crosses the first buy at or above. Size never
// gates a match; it only decides between partial and full fill.
func crosses(incoming domain.Direction, incomingPrice, restingPrice decimal.Decimal) bool {
	if incoming == domain.Buy {
		return restingPrice.LessThanOrEqual(incomingPrice)
	}
	return restingPrice.GreaterThanOrEqual(incomingPrice)
}

// executeMatch settles one crossing event. The ledger row records the resting
// order's price and the incoming order's full requested amount. When the
// incoming order is larger than the counterparty, the excess rests on the
// incoming side under the incoming id; the resting row is marked FILLED and
// kept. All store rows move in one transaction, the snapshot is written after
// commit.
func (e *Engine) executeMatch(ctx context.Context, book *domain.OrderBook, id int64, amount, price decimal.Decimal, direction domain.Direction, resting domain.Order) (*domain.OrderMatch, error) {
	var match *domain.OrderMatch
	if direction == domain.Buy {
		match = domain.NewOrderMatch(id, resting.ID, resting.Price, amount)
	} else {
		match = domain.NewOrderMatch(resting.ID, id, resting.Price, amount)
	}

	var excess *domain.Order
	if amount.GreaterThan(resting.Amount) {
		excess = domain.NewOrder(amount.Sub(resting.Amount), price, direction)
		excess.ID = id
		resting.Fill(resting.Amount)
	} else {
		resting.Fill(amount)
	}

	err := withTx(ctx, e.repo, func(tx port.Tx) error {
		if err := tx.SaveOrder(ctx, &resting); err != nil {
			return err
		}
		if excess != nil {
			if err := tx.SaveOrder(ctx, excess); err != nil {
				return err
			}
		}
		return tx.SaveMatch(ctx, match)
	})
	if err != nil {
		return nil, err
	}

	if resting.Resting() {
		book.Replace(&resting)
	} else {
		book.Remove(resting.Direction, resting.ID)
	}
	if excess != nil {
		book.Append(excess)
	}
	if err := e.cache.SetBook(ctx, book, e.bookTTL); err != nil {
		return nil, err
	}

	e.log.Info("orders matched",
		"match_id", match.ID,
		"buy_order_id", match.BuyOrderID,
		"sell_order_id", match.SellOrderID,
		"price", match.Price,
		"amount", match.Amount)
	return match, nil
}

// FindOrder returns an order with the matches it took part in.
func (e *Engine) FindOrder(ctx context.Context, id int64) (*OrderDetails, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	o, err := e.repo.FindOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	matches, err := e.repo.FindMatchesForOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if matches == nil {
		matches = []*domain.OrderMatch{}
	}
	return &OrderDetails{Order: o, Matches: matches}, nil
}

func (e *Engine) FindOrdersByDirectionAndStatus(ctx context.Context, direction domain.Direction, statuses []domain.OrderStatus) ([]*domain.Order, error) {
	if direction != domain.Buy && direction != domain.Sell {
		return nil, domain.NewInvalidInput("direction", "must be BUY or SELL")
	}
	if len(statuses) == 0 {
		return nil, domain.NewInvalidInput("status", "at least one status required")
	}
	for _, st := range statuses {
		if st != domain.Open && st != domain.Filled {
			return nil, domain.NewInvalidInput("status", "must be OPEN or FILLED")
		}
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	return e.repo.FindOrdersByDirectionAndStatus(ctx, direction, statuses)
}

// loadBook fetches the snapshot, mapping any cache failure to an absent book,
// which is semantically different from an empty one.
func (e *Engine) loadBook(ctx context.Context) (*domain.OrderBook, error) {
	book, err := e.cache.GetBook(ctx)
	if err != nil {
		e.log.Error("order book unavailable", "err", err)
		return nil, err
	}
	if book == nil {
		return nil, domain.NewNotFound("order book", bookKey)
	}
	return book, nil
}
