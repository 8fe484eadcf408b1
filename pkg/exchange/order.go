package exchange

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Order is a standing offer by User to exchange AmountGive of TokenGive
// for AmountGet of TokenGet. The record itself is immutable after
// creation; cancellation and fill status live in separate sets keyed
// by ID.
type Order struct {
	ID         uint64         `json:"id"`
	User       common.Address `json:"user"`
	TokenGet   common.Address `json:"tokenGet"`
	AmountGet  *big.Int       `json:"amountGet"`
	TokenGive  common.Address `json:"tokenGive"`
	AmountGive *big.Int       `json:"amountGive"`
	CreatedAt  int64          `json:"createdAt"` // Unix milliseconds
}

// Status is the derived lifecycle state of an order.
type Status string

const (
	StatusOpen      Status = "open"
	StatusCancelled Status = "cancelled"
	StatusFilled    Status = "filled"
)

func (o *Order) clone() *Order {
	c := *o
	c.AmountGet = new(big.Int).Set(o.AmountGet)
	c.AmountGive = new(big.Int).Set(o.AmountGive)
	return &c
}
