package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Direction string
type OrderStatus string

const (
	Buy  Direction = "BUY"
	Sell Direction = "SELL"

	Open   OrderStatus = "OPEN"
	Filled OrderStatus = "FILLED"
)

// Order is a standing intention to buy or sell at a fixed price.
// Remaining tracks the unfilled part: equal to Amount until the first fill,
// zero once the order leaves the book.
type Order struct {
	ID        int64           `json:"id"`
	Amount    decimal.Decimal `json:"amount"`
	Price     decimal.Decimal `json:"price"`
	Remaining decimal.Decimal `json:"remaining"`
	Status    OrderStatus     `json:"status"`
	Direction Direction       `json:"direction"`
	CreatedAt time.Time       `json:"created_at"`
}

func NewOrder(amount, price decimal.Decimal, direction Direction) *Order {
	return &Order{
		Amount:    amount,
		Price:     price,
		Remaining: amount,
		Status:    Open,
		Direction: direction,
		CreatedAt: time.Now(),
	}
}

func (o *Order) Resting() bool {
	return o.Status == Open && o.Remaining.IsPositive()
}

// Fill reduces the unfilled part by qty and flips the order to FILLED when
// nothing is left. The row is kept for audit; only the book forgets it.
func (o *Order) Fill(qty decimal.Decimal) {
	o.Amount = o.Amount.Sub(qty)
	o.Remaining = o.Amount
	if !o.Remaining.IsPositive() {
		o.Amount = decimal.Zero
		o.Remaining = decimal.Zero
		o.Status = Filled
	}
}

// Merge folds an incoming submission at the same price and side into this
// resting order instead of creating a second row.
func (o *Order) Merge(amount decimal.Decimal) {
	o.Amount = o.Amount.Add(amount)
	o.Remaining = o.Amount
}

// Opposite returns the side an incoming order matches against.
func (d Direction) Opposite() Direction {
	if d == Buy {
		return Sell
	}
	return Buy
}

func ParseDirection(s string) (Direction, bool) {
	switch d := Direction(strings.ToUpper(s)); d {
	case Buy, Sell:
		return d, true
	}
	return "", false
}

func ParseStatus(s string) (OrderStatus, bool) {
	switch st := OrderStatus(strings.ToUpper(s)); st {
	case Open, Filled:
		return st, true
	}
	return "", false
}
