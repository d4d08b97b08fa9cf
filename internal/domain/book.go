package domain

import (
	"sort"

	"github.com/shopspring/decimal"
)

// OrderBook is the cached snapshot of both resting sides. It is the single
// externally visible representation of book state; the order store holds the
// durable shadow of each row but never a live book.
type OrderBook struct {
	BuyOrders  []Order `json:"buyOrders"`
	SellOrders []Order `json:"sellOrders"`
}

// NewOrderBook returns the canonical empty snapshot. Both slices are non-nil
// so the JSON form is always {"buyOrders":[],"sellOrders":[]}.
func NewOrderBook() *OrderBook {
	return &OrderBook{BuyOrders: []Order{}, SellOrders: []Order{}}
}

func (b *OrderBook) DeepCopy() *OrderBook {
	c := NewOrderBook()
	c.BuyOrders = append(c.BuyOrders, b.BuyOrders...)
	c.SellOrders = append(c.SellOrders, b.SellOrders...)
	return c
}

// Side returns the resting list for a direction. The returned pointer aliases
// the snapshot, so mutations through it are mutations of the book.
func (b *OrderBook) Side(d Direction) *[]Order {
	if d == Buy {
		return &b.BuyOrders
	}
	return &b.SellOrders
}

// Sort re-establishes price priority on both sides: bids descending, asks
// ascending, FIFO within a price level. External writers may have appended
// unsorted entries, so this runs before every matching scan.
func (b *OrderBook) Sort() {
	sort.SliceStable(b.BuyOrders, func(i, j int) bool {
		return b.BuyOrders[i].Price.GreaterThan(b.BuyOrders[j].Price)
	})
	sort.SliceStable(b.SellOrders, func(i, j int) bool {
		return b.SellOrders[i].Price.LessThan(b.SellOrders[j].Price)
	})
}

// FindByPrice locates a resting order on side d at exactly price. Used for
// duplicate coalescing; returns nil when no order rests at that price.
func (b *OrderBook) FindByPrice(d Direction, price decimal.Decimal) *Order {
	side := b.Side(d)
	for i := range *side {
		if (*side)[i].Price.Equal(price) {
			return &(*side)[i]
		}
	}
	return nil
}

func (b *OrderBook) Append(o *Order) {
	side := b.Side(o.Direction)
	*side = append(*side, *o)
}

func (b *OrderBook) Remove(d Direction, orderID int64) {
	side := b.Side(d)
	for i := range *side {
		if (*side)[i].ID == orderID {
			*side = append((*side)[:i], (*side)[i+1:]...)
			return
		}
	}
}

// Replace overwrites the snapshot entry for o with its current state.
func (b *OrderBook) Replace(o *Order) {
	side := b.Side(o.Direction)
	for i := range *side {
		if (*side)[i].ID == o.ID {
			(*side)[i] = *o
			return
		}
	}
}

// Validate asserts the book invariants: only resting orders, both sides in
// price priority order. Returns an InvariantViolationError describing the
// first violation found.
func (b *OrderBook) Validate() error {
	for i := range b.BuyOrders {
		if !b.BuyOrders[i].Resting() {
			return NewInvariantViolation("buy side holds a non-resting order")
		}
		if i > 0 && b.BuyOrders[i].Price.GreaterThan(b.BuyOrders[i-1].Price) {
			return NewInvariantViolation("buy side not sorted by price descending")
		}
	}
	for i := range b.SellOrders {
		if !b.SellOrders[i].Resting() {
			return NewInvariantViolation("sell side holds a non-resting order")
		}
		if i > 0 && b.SellOrders[i].Price.LessThan(b.SellOrders[i-1].Price) {
			return NewInvariantViolation("sell side not sorted by price ascending")
		}
	}
	return nil
}
