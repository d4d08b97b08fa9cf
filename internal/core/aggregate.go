package core

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/tmladenov/exchange/internal/domain"
)

// bookKey is the single well-known cache key holding the snapshot.
const bookKey = "order_book"

type AggregatedLevel struct {
	ID     int64           `json:"id"`
	Amount decimal.Decimal `json:"amount"`
	Price  decimal.Decimal `json:"price"`
}

type AggregatedBook struct {
	AggregatedBuyOrders  []AggregatedLevel `json:"aggregatedBuyOrders"`
	AggregatedSellOrders []AggregatedLevel `json:"aggregatedSellOrders"`
}

// FindAggregatedLevels builds the leveled public view of the book: both sides
// re-sorted, truncated to the first levels entries and projected to
// {id, amount, price}. The re-sorted snapshot is written back, so this read
// path shares the engine's write serialization.
func (e *Engine) FindAggregatedLevels(ctx context.Context, levels int) (*AggregatedBook, error) {
	agg := &AggregatedBook{
		AggregatedBuyOrders:  []AggregatedLevel{},
		AggregatedSellOrders: []AggregatedLevel{},
	}
	if levels <= 0 {
		return agg, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	book, err := e.loadBook(ctx)
	if err != nil {
		return nil, err
	}
	book.Sort()
	if err := e.cache.SetBook(ctx, book, e.bookTTL); err != nil {
		return nil, err
	}

	agg.AggregatedBuyOrders = project(book.BuyOrders, levels)
	agg.AggregatedSellOrders = project(book.SellOrders, levels)
	return agg, nil
}

func project(orders []domain.Order, levels int) []AggregatedLevel {
	if levels > len(orders) {
		levels = len(orders)
	}
	res := make([]AggregatedLevel, 0, levels)
	for _, o := range orders[:levels] {
		res = append(res, AggregatedLevel{ID: o.ID, Amount: o.Amount, Price: o.Price})
	}
	return res
}
