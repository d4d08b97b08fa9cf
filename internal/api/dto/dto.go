package dto

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tmladenov/exchange/internal/domain"
)

type PlaceOrderRequest struct {
	ID        int64           `json:"id" binding:"required"`
	Amount    decimal.Decimal `json:"amount" binding:"required"`
	Price     decimal.Decimal `json:"price" binding:"required"`
	Direction string          `json:"direction" binding:"required"`
}

type PlaceOrderResponse struct {
	Created bool        `json:"created"`
	Merged  bool        `json:"merged"`
	Match   *OrderMatch `json:"match,omitempty"`
	Message string      `json:"message,omitempty"`
}

type Order struct {
	ID        int64           `json:"id"`
	Amount    decimal.Decimal `json:"amount"`
	Price     decimal.Decimal `json:"price"`
	Remaining decimal.Decimal `json:"remaining"`
	Status    string          `json:"status"`
	Direction string          `json:"direction"`
	CreatedAt time.Time       `json:"created_at"`
}

type OrderMatch struct {
	ID          string          `json:"id"`
	BuyOrderID  int64           `json:"buy_order_id"`
	SellOrderID int64           `json:"sell_order_id"`
	Price       decimal.Decimal `json:"price"`
	Amount      decimal.Decimal `json:"amount"`
	CreatedAt   time.Time       `json:"created_at"`
}

type GetOrderResponse struct {
	Order   Order        `json:"order"`
	Matches []OrderMatch `json:"matches"`
}

type ListOrdersResponse struct {
	Orders []Order `json:"orders"`
}

func FromOrder(o *domain.Order) Order {
	return Order{
		ID:        o.ID,
		Amount:    o.Amount,
		Price:     o.Price,
		Remaining: o.Remaining,
		Status:    string(o.Status),
		Direction: string(o.Direction),
		CreatedAt: o.CreatedAt,
	}
}

func FromOrders(orders []*domain.Order) []Order {
	res := make([]Order, len(orders))
	for i, o := range orders {
		res[i] = FromOrder(o)
	}
	return res
}

func FromMatch(m *domain.OrderMatch) *OrderMatch {
	if m == nil {
		return nil
	}
	return &OrderMatch{
		ID:          m.ID,
		BuyOrderID:  m.BuyOrderID,
		SellOrderID: m.SellOrderID,
		Price:       m.Price,
		Amount:      m.Amount,
		CreatedAt:   m.CreatedAt,
	}
}

func FromMatches(matches []*domain.OrderMatch) []OrderMatch {
	res := make([]OrderMatch, len(matches))
	for i, m := range matches {
		res[i] = *FromMatch(m)
	}
	return res
}

// ParseStatusList splits a pipe-separated status filter, e.g. "open|filled".
func ParseStatusList(raw string) ([]domain.OrderStatus, bool) {
	if raw == "" {
		return nil, false
	}
	parts := strings.Split(raw, "|")
	res := make([]domain.OrderStatus, 0, len(parts))
	for _, p := range parts {
		st, ok := domain.ParseStatus(strings.TrimSpace(p))
		if !ok {
			return nil, false
		}
		res = append(res, st)
	}
	return res, true
}
