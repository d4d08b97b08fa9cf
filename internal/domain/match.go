package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderMatch is an immutable record of one crossing event. Price follows the
// price-maker convention: it is the resting order's price, not the incoming
// order's.
type OrderMatch struct {
	ID          string          `json:"id"`
	BuyOrderID  int64           `json:"buy_order_id"`
	SellOrderID int64           `json:"sell_order_id"`
	Price       decimal.Decimal `json:"price"`
	Amount      decimal.Decimal `json:"amount"`
	CreatedAt   time.Time       `json:"created_at"`
}

func NewOrderMatch(buyOrderID, sellOrderID int64, price, amount decimal.Decimal) *OrderMatch {
	return &OrderMatch{
		ID:          uuid.NewString(),
		BuyOrderID:  buyOrderID,
		SellOrderID: sellOrderID,
		Price:       price,
		Amount:      amount,
		CreatedAt:   time.Now(),
	}
}
