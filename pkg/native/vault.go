// Package native simulates the host environment's native-asset custody:
// wallet balances outside the exchange, plus the value the exchange
// holds. Deposits attach value to the call through TransferIn and
// withdrawals release it through TransferOut.
package native

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

var ErrInsufficientFunds = errors.New("insufficient funds")

// Vault tracks native-asset wallet balances and the amount in exchange
// custody. It satisfies the exchange's NativeVault interface.
type Vault struct {
	mu       sync.Mutex
	balances map[common.Address]*big.Int
	held     *big.Int
}

func NewVault() *Vault {
	return &Vault{
		balances: make(map[common.Address]*big.Int),
		held:     new(big.Int),
	}
}

// Fund credits a wallet, the devnet faucet.
func (v *Vault) Fund(addr common.Address, amount *big.Int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	bal, ok := v.balances[addr]
	if !ok {
		bal = new(big.Int)
		v.balances[addr] = bal
	}
	bal.Add(bal, amount)
}

// TransferIn moves value from a wallet into exchange custody, the way
// value attached to a call moves with it.
func (v *Vault) TransferIn(from common.Address, amount *big.Int) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	bal, ok := v.balances[from]
	if !ok || bal.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s", ErrInsufficientFunds, from.Hex())
	}
	bal.Sub(bal, amount)
	v.held.Add(v.held, amount)
	return nil
}

// TransferOut releases value from exchange custody to a wallet.
func (v *Vault) TransferOut(to common.Address, amount *big.Int) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.held.Cmp(amount) < 0 {
		return fmt.Errorf("%w: custody underflow", ErrInsufficientFunds)
	}
	v.held.Sub(v.held, amount)
	bal, ok := v.balances[to]
	if !ok {
		bal = new(big.Int)
		v.balances[to] = bal
	}
	bal.Add(bal, amount)
	return nil
}

// BalanceOf returns a wallet's balance outside custody.
func (v *Vault) BalanceOf(addr common.Address) *big.Int {
	v.mu.Lock()
	defer v.mu.Unlock()
	if bal, ok := v.balances[addr]; ok {
		return new(big.Int).Set(bal)
	}
	return new(big.Int)
}

// Held returns the total value in exchange custody.
func (v *Vault) Held() *big.Int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return new(big.Int).Set(v.held)
}
