package exchange

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// ledger is the custodial balance table: asset -> account -> amount.
// Entries are never removed, only zeroed. All access happens under the
// owning Exchange's mutex.
type ledger struct {
	balances map[common.Address]map[common.Address]*big.Int
}

func newLedger() *ledger {
	return &ledger{balances: make(map[common.Address]map[common.Address]*big.Int)}
}

// get returns the live balance entry, zero if absent. The returned value
// must not be handed outside the lock; callers copy before exposing it.
func (l *ledger) get(asset, account common.Address) *big.Int {
	if accounts, ok := l.balances[asset]; ok {
		if bal, ok := accounts[account]; ok {
			return bal
		}
	}
	return new(big.Int)
}

func (l *ledger) credit(asset, account common.Address, amount *big.Int) *big.Int {
	accounts, ok := l.balances[asset]
	if !ok {
		accounts = make(map[common.Address]*big.Int)
		l.balances[asset] = accounts
	}
	bal, ok := accounts[account]
	if !ok {
		bal = new(big.Int)
		accounts[account] = bal
	}
	bal.Add(bal, amount)
	return bal
}

// debit subtracts amount from the entry. The caller checks sufficiency
// first; debit never drives an entry negative.
func (l *ledger) debit(asset, account common.Address, amount *big.Int) (*big.Int, error) {
	accounts, ok := l.balances[asset]
	if !ok {
		return nil, ErrInsufficientBalance
	}
	bal, ok := accounts[account]
	if !ok || bal.Cmp(amount) < 0 {
		return nil, ErrInsufficientBalance
	}
	bal.Sub(bal, amount)
	return bal, nil
}

// set installs an absolute balance, used when loading persisted state.
func (l *ledger) set(asset, account common.Address, amount *big.Int) {
	accounts, ok := l.balances[asset]
	if !ok {
		accounts = make(map[common.Address]*big.Int)
		l.balances[asset] = accounts
	}
	accounts[account] = new(big.Int).Set(amount)
}
