package events

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Event types, one per successful mutating exchange call.
type Type string

const (
	TypeDeposit    Type = "deposit"
	TypeWithdrawal Type = "withdrawal"
	TypeOrder      Type = "order"
	TypeCancel     Type = "cancel"
	TypeTrade      Type = "trade"
)

// Deposit records funds entering exchange custody.
// Balance is the depositor's ledger balance after the credit.
type Deposit struct {
	Token   common.Address `json:"token"`
	User    common.Address `json:"user"`
	Amount  *big.Int       `json:"amount"`
	Balance *big.Int       `json:"balance"`
}

// Withdrawal records funds leaving exchange custody.
// Amount is the gross requested amount; Balance is the ledger balance
// after the full debit (fee skim included).
type Withdrawal struct {
	Token   common.Address `json:"token"`
	User    common.Address `json:"user"`
	Amount  *big.Int       `json:"amount"`
	Balance *big.Int       `json:"balance"`
}

// Order records a newly created resting order.
type Order struct {
	ID         uint64         `json:"id"`
	User       common.Address `json:"user"`
	TokenGet   common.Address `json:"tokenGet"`
	AmountGet  *big.Int       `json:"amountGet"`
	TokenGive  common.Address `json:"tokenGive"`
	AmountGive *big.Int       `json:"amountGive"`
	Timestamp  int64          `json:"timestamp"`
}

// Cancel records an order being cancelled by its creator.
type Cancel struct {
	ID         uint64         `json:"id"`
	User       common.Address `json:"user"`
	TokenGet   common.Address `json:"tokenGet"`
	AmountGet  *big.Int       `json:"amountGet"`
	TokenGive  common.Address `json:"tokenGive"`
	AmountGive *big.Int       `json:"amountGive"`
	Timestamp  int64          `json:"timestamp"`
}

// Trade records the settlement of an order. User is the order creator,
// UserFill the counterparty that triggered the fill.
type Trade struct {
	ID         uint64         `json:"id"`
	User       common.Address `json:"user"`
	UserFill   common.Address `json:"userFill"`
	TokenGet   common.Address `json:"tokenGet"`
	AmountGet  *big.Int       `json:"amountGet"`
	TokenGive  common.Address `json:"tokenGive"`
	AmountGive *big.Int       `json:"amountGive"`
	Timestamp  int64          `json:"timestamp"`
}

// Event is one entry of the append-only exchange journal. Seq is assigned
// by the exchange and strictly increases; exactly one payload field is set,
// matching Type.
type Event struct {
	Seq       uint64 `json:"seq"`
	Type      Type   `json:"type"`
	Timestamp int64  `json:"timestamp"`

	Deposit    *Deposit    `json:"deposit,omitempty"`
	Withdrawal *Withdrawal `json:"withdrawal,omitempty"`
	Order      *Order      `json:"order,omitempty"`
	Cancel     *Cancel     `json:"cancel,omitempty"`
	Trade      *Trade      `json:"trade,omitempty"`
}
