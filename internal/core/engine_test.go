package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tmladenov/exchange/internal/adapter/in_memory"
	"github.com/tmladenov/exchange/internal/domain"
)

func newTestEngine() (*Engine, *in_memory.MemoryRepo, *in_memory.Cache) {
	repo := in_memory.NewMemoryRepo()
	cache := in_memory.NewCache()
	eng := NewEngine(repo, cache, nil, time.Hour, time.Second)
	return eng, repo, cache
}

func d(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func mustPlace(t *testing.T, eng *Engine, id int64, amount, price int64, dir domain.Direction) *PlacementResult {
	t.Helper()
	res, err := eng.PlaceOrder(context.Background(), id, d(amount), d(price), dir)
	if err != nil {
		t.Fatalf("PlaceOrder(%d) error: %v", id, err)
	}
	return res
}

func TestPlaceOrderValidation(t *testing.T) {
	eng, _, _ := newTestEngine()
	ctx := context.Background()

	cases := []struct {
		name      string
		id        int64
		amount    decimal.Decimal
		price     decimal.Decimal
		direction domain.Direction
	}{
		{"zero id", 0, d(5), d(10), domain.Buy},
		{"zero amount", 1, d(0), d(10), domain.Buy},
		{"negative amount", 1, d(-3), d(10), domain.Sell},
		{"zero price", 1, d(5), d(0), domain.Buy},
		{"negative price", 1, d(5), d(-1), domain.Sell},
		{"bad direction", 1, d(5), d(10), domain.Direction("HOLD")},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := eng.PlaceOrder(ctx, tc.id, tc.amount, tc.price, tc.direction)
			if !domain.IsInvalidInput(err) {
				t.Fatalf("expected InvalidInputError, got %v", err)
			}
		})
	}
}

func TestPlaceOrderEmptyBookRests(t *testing.T) {
	eng, repo, cache := newTestEngine()
	ctx := context.Background()

	res := mustPlace(t, eng, 1, 5, 26, domain.Buy)
	if !res.Created || res.Merged || res.Match != nil {
		t.Fatalf("expected pure creation, got %+v", res)
	}

	o, err := repo.FindOrder(ctx, 1)
	if err != nil {
		t.Fatalf("order not persisted: %v", err)
	}
	if o.Status != domain.Open || !o.Remaining.Equal(d(5)) || !o.Price.Equal(d(26)) {
		t.Fatalf("unexpected stored order: %+v", o)
	}

	book, err := cache.GetBook(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(book.BuyOrders) != 1 || book.BuyOrders[0].ID != 1 {
		t.Fatalf("expected buy side [order 1], got %+v", book.BuyOrders)
	}
	if len(book.SellOrders) != 0 {
		t.Fatalf("expected empty sell side, got %+v", book.SellOrders)
	}
}

func TestPlaceOrderExactMatch(t *testing.T) {
	eng, repo, cache := newTestEngine()
	ctx := context.Background()

	mustPlace(t, eng, 1, 20, 50, domain.Buy)
	res := mustPlace(t, eng, 2, 20, 50, domain.Sell)

	m := res.Match
	if m == nil {
		t.Fatalf("expected match, got %+v", res)
	}
	if m.BuyOrderID != 1 || m.SellOrderID != 2 {
		t.Fatalf("wrong counterparties: %+v", m)
	}
	if !m.Amount.Equal(d(20)) || !m.Price.Equal(d(50)) {
		t.Fatalf("wrong fill terms: %+v", m)
	}

	book, _ := cache.GetBook(ctx)
	if len(book.BuyOrders) != 0 || len(book.SellOrders) != 0 {
		t.Fatalf("expected empty book, got %+v", book)
	}

	// the filled row is kept for audit, only the book forgets it
	o, err := repo.FindOrder(ctx, 1)
	if err != nil {
		t.Fatalf("filled order deleted from store: %v", err)
	}
	if o.Status != domain.Filled || !o.Remaining.Equal(decimal.Zero) {
		t.Fatalf("expected FILLED with zero remaining, got %+v", o)
	}
	if repo.MatchCount() != 1 {
		t.Fatalf("expected 1 ledger row, got %d", repo.MatchCount())
	}
}

func TestPlaceOrderDuplicateMerges(t *testing.T) {
	eng, repo, cache := newTestEngine()
	ctx := context.Background()

	mustPlace(t, eng, 1, 5, 26, domain.Buy)
	res := mustPlace(t, eng, 2, 7, 26, domain.Buy)

	if !res.Merged || res.Created || res.Match != nil {
		t.Fatalf("expected merge, got %+v", res)
	}

	book, _ := cache.GetBook(ctx)
	if len(book.BuyOrders) != 1 {
		t.Fatalf("merge must not insert a sibling, got %+v", book.BuyOrders)
	}
	merged := book.BuyOrders[0]
	if !merged.Amount.Equal(d(12)) || !merged.Remaining.Equal(d(12)) {
		t.Fatalf("merge must add the incoming amount, got %+v", merged)
	}

	o, _ := repo.FindOrder(ctx, 1)
	if !o.Amount.Equal(d(12)) {
		t.Fatalf("merged amount not persisted: %+v", o)
	}
	if repo.OrderCount() != 1 {
		t.Fatalf("expected 1 stored order, got %d", repo.OrderCount())
	}
	if repo.MatchCount() != 0 {
		t.Fatalf("pure merge must not produce a match, got %d", repo.MatchCount())
	}
}

func TestPlaceOrderPartialFill(t *testing.T) {
	eng, repo, cache := newTestEngine()
	ctx := context.Background()

	mustPlace(t, eng, 1, 10, 20, domain.Sell)
	res := mustPlace(t, eng, 2, 4, 25, domain.Buy)

	m := res.Match
	if m == nil {
		t.Fatalf("expected match, got %+v", res)
	}
	if !m.Price.Equal(d(20)) {
		t.Fatalf("price must come from the resting order, got %v", m.Price)
	}
	if !m.Amount.Equal(d(4)) {
		t.Fatalf("expected fill of 4, got %v", m.Amount)
	}

	book, _ := cache.GetBook(ctx)
	if len(book.SellOrders) != 1 || !book.SellOrders[0].Remaining.Equal(d(6)) {
		t.Fatalf("resting order should shrink to 6, got %+v", book.SellOrders)
	}

	o, _ := repo.FindOrder(ctx, 1)
	if o.Status != domain.Open || !o.Remaining.Equal(d(6)) {
		t.Fatalf("store disagrees with book: %+v", o)
	}
}

func TestPlaceOrderOversizeIncomingRests(t *testing.T) {
	eng, repo, cache := newTestEngine()
	ctx := context.Background()

	mustPlace(t, eng, 1, 5, 20, domain.Sell)
	res := mustPlace(t, eng, 9, 8, 20, domain.Buy)

	m := res.Match
	if m == nil {
		t.Fatalf("expected match, got %+v", res)
	}
	if m.BuyOrderID != 9 || m.SellOrderID != 1 {
		t.Fatalf("wrong counterparties: %+v", m)
	}
	if !m.Amount.Equal(d(8)) || !m.Price.Equal(d(20)) {
		t.Fatalf("wrong fill terms: %+v", m)
	}

	book, _ := cache.GetBook(ctx)
	if len(book.SellOrders) != 0 {
		t.Fatalf("consumed sell should leave the book, got %+v", book.SellOrders)
	}
	if len(book.BuyOrders) != 1 {
		t.Fatalf("excess should rest on the buy side, got %+v", book.BuyOrders)
	}
	excess := book.BuyOrders[0]
	if excess.ID != 9 || !excess.Remaining.Equal(d(3)) || !excess.Price.Equal(d(20)) {
		t.Fatalf("excess order wrong: %+v", excess)
	}

	sold, _ := repo.FindOrder(ctx, 1)
	if sold.Status != domain.Filled {
		t.Fatalf("consumed order must be FILLED, got %+v", sold)
	}
	rested, _ := repo.FindOrder(ctx, 9)
	if rested.Status != domain.Open || !rested.Amount.Equal(d(3)) {
		t.Fatalf("excess order not persisted: %+v", rested)
	}
}

func TestPlaceOrderPricePriority(t *testing.T) {
	eng, _, _ := newTestEngine()

	mustPlace(t, eng, 1, 5, 30, domain.Sell)
	mustPlace(t, eng, 2, 5, 10, domain.Sell)
	mustPlace(t, eng, 3, 5, 20, domain.Sell)

	res := mustPlace(t, eng, 4, 5, 25, domain.Buy)
	m := res.Match
	if m == nil {
		t.Fatalf("expected match, got %+v", res)
	}
	if m.SellOrderID != 2 || !m.Price.Equal(d(10)) {
		t.Fatalf("should match the best ask first, got %+v", m)
	}
}

func TestPlaceOrderNoCrossKeepsLedger(t *testing.T) {
	eng, repo, _ := newTestEngine()

	mustPlace(t, eng, 1, 5, 30, domain.Sell)
	res := mustPlace(t, eng, 2, 5, 10, domain.Buy) // bid below best ask

	if !res.Created || res.Match != nil {
		t.Fatalf("expected no match, got %+v", res)
	}
	if repo.MatchCount() != 0 {
		t.Fatalf("ledger must be untouched, got %d rows", repo.MatchCount())
	}
}

func TestPlaceOrderRestoresSortInvariant(t *testing.T) {
	eng, _, cache := newTestEngine()
	ctx := context.Background()

	// an external writer appended unsorted entries
	book := domain.NewOrderBook()
	for i, price := range []int64{15, 40, 25} {
		o := domain.NewOrder(d(1), d(price), domain.Sell)
		o.ID = int64(i + 1)
		book.Append(o)
	}
	if err := cache.SetBook(ctx, book, time.Hour); err != nil {
		t.Fatal(err)
	}

	mustPlace(t, eng, 10, 1, 5, domain.Buy) // no cross, rests

	got, _ := cache.GetBook(ctx)
	if err := got.Validate(); err != nil {
		t.Fatalf("book left in invalid state: %v", err)
	}
	if !got.SellOrders[0].Price.Equal(d(15)) {
		t.Fatalf("sell side not re-sorted: %+v", got.SellOrders)
	}
}

func TestPlaceOrderBookUnavailable(t *testing.T) {
	eng, _, cache := newTestEngine()
	cache.GetErr = errors.New("connection refused")

	_, err := eng.PlaceOrder(context.Background(), 1, d(5), d(10), domain.Buy)
	if err == nil {
		t.Fatal("expected error when the book cannot be loaded")
	}
}

func TestPlaceOrderPersistenceFailureAborts(t *testing.T) {
	eng, repo, cache := newTestEngine()
	ctx := context.Background()

	mustPlace(t, eng, 1, 10, 20, domain.Sell)

	repo.Err = domain.NewPersistenceError("stub: save order", errors.New("down"))
	_, err := eng.PlaceOrder(ctx, 2, d(4), d(25), domain.Buy)
	if !domain.IsPersistence(err) {
		t.Fatalf("expected PersistenceError, got %v", err)
	}
	if !domain.IsRetriable(err) {
		t.Fatalf("persistence failures must be retryable, got %v", err)
	}

	// nothing partially applied: ledger empty, resting order untouched
	if repo.MatchCount() != 0 {
		t.Fatalf("ledger row written despite failure")
	}
	repo.Err = nil
	o, _ := repo.FindOrder(ctx, 1)
	if !o.Remaining.Equal(d(10)) {
		t.Fatalf("resting order mutated despite failure: %+v", o)
	}
	book, _ := cache.GetBook(ctx)
	if len(book.SellOrders) != 1 || !book.SellOrders[0].Remaining.Equal(d(10)) {
		t.Fatalf("book diverged from store: %+v", book.SellOrders)
	}
}

func TestRemainingNeverExceedsAmount(t *testing.T) {
	eng, _, cache := newTestEngine()
	ctx := context.Background()

	mustPlace(t, eng, 1, 20, 50, domain.Buy)
	mustPlace(t, eng, 2, 5, 50, domain.Sell)
	mustPlace(t, eng, 3, 7, 45, domain.Sell)
	mustPlace(t, eng, 4, 3, 60, domain.Sell)

	book, _ := cache.GetBook(ctx)
	for _, side := range [][]domain.Order{book.BuyOrders, book.SellOrders} {
		for _, o := range side {
			if o.Remaining.IsNegative() || o.Remaining.GreaterThan(o.Amount) {
				t.Fatalf("remaining out of bounds: %+v", o)
			}
		}
	}
}

func TestFindOrder(t *testing.T) {
	eng, _, _ := newTestEngine()
	ctx := context.Background()

	mustPlace(t, eng, 1, 20, 50, domain.Buy)
	mustPlace(t, eng, 2, 20, 50, domain.Sell)

	t.Run("found with matches", func(t *testing.T) {
		details, err := eng.FindOrder(ctx, 1)
		if err != nil {
			t.Fatal(err)
		}
		if details.Order.ID != 1 || len(details.Matches) != 1 {
			t.Fatalf("expected order 1 with one match, got %+v", details)
		}
	})

	t.Run("unknown id", func(t *testing.T) {
		_, err := eng.FindOrder(ctx, 42)
		if !domain.IsNotFound(err) {
			t.Fatalf("expected NotFoundError, got %v", err)
		}
	})
}

func TestFindOrdersByDirectionAndStatus(t *testing.T) {
	eng, _, _ := newTestEngine()
	ctx := context.Background()

	mustPlace(t, eng, 1, 20, 50, domain.Buy)
	mustPlace(t, eng, 2, 20, 50, domain.Sell) // fills order 1
	mustPlace(t, eng, 3, 5, 40, domain.Buy)

	t.Run("open buys", func(t *testing.T) {
		orders, err := eng.FindOrdersByDirectionAndStatus(ctx, domain.Buy, []domain.OrderStatus{domain.Open})
		if err != nil {
			t.Fatal(err)
		}
		if len(orders) != 1 || orders[0].ID != 3 {
			t.Fatalf("expected only order 3, got %+v", orders)
		}
	})

	t.Run("filled buys", func(t *testing.T) {
		orders, err := eng.FindOrdersByDirectionAndStatus(ctx, domain.Buy, []domain.OrderStatus{domain.Filled})
		if err != nil {
			t.Fatal(err)
		}
		if len(orders) != 1 || orders[0].ID != 1 {
			t.Fatalf("expected only order 1, got %+v", orders)
		}
	})

	t.Run("no statuses", func(t *testing.T) {
		_, err := eng.FindOrdersByDirectionAndStatus(ctx, domain.Buy, nil)
		if !domain.IsInvalidInput(err) {
			t.Fatalf("expected InvalidInputError, got %v", err)
		}
	})
}

func TestBootstrapRebuildsEmptyBook(t *testing.T) {
	eng, repo, cache := newTestEngine()
	ctx := context.Background()

	for i, price := range []int64{30, 10, 20} {
		o := domain.NewOrder(d(5), d(price), domain.Sell)
		o.ID = int64(i + 1)
		o.CreatedAt = o.CreatedAt.Add(time.Duration(i) * time.Millisecond)
		if err := repo.SaveOrder(ctx, o); err != nil {
			t.Fatal(err)
		}
	}

	if err := eng.Bootstrap(ctx); err != nil {
		t.Fatal(err)
	}

	book, _ := cache.GetBook(ctx)
	if len(book.SellOrders) != 3 {
		t.Fatalf("expected 3 restored sells, got %+v", book.SellOrders)
	}
	if !book.SellOrders[0].Price.Equal(d(10)) {
		t.Fatalf("restored book not sorted: %+v", book.SellOrders)
	}
	if err := book.Validate(); err != nil {
		t.Fatal(err)
	}
}

func TestBootstrapLeavesPopulatedBookAlone(t *testing.T) {
	eng, repo, cache := newTestEngine()
	ctx := context.Background()

	mustPlace(t, eng, 1, 5, 26, domain.Buy)

	stray := domain.NewOrder(d(9), d(99), domain.Sell)
	stray.ID = 100
	if err := repo.SaveOrder(ctx, stray); err != nil {
		t.Fatal(err)
	}

	if err := eng.Bootstrap(ctx); err != nil {
		t.Fatal(err)
	}
	book, _ := cache.GetBook(ctx)
	if len(book.SellOrders) != 0 {
		t.Fatalf("bootstrap must not touch a populated book, got %+v", book.SellOrders)
	}
}
