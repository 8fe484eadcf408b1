// Package token provides an in-process fungible-asset ledger with
// allowance semantics, playing the role of the external token contract
// the exchange settles against.
package token

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrInsufficientBalance   = errors.New("transfer amount exceeds balance")
	ErrInsufficientAllowance = errors.New("transfer amount exceeds allowance")
	ErrZeroAddress           = errors.New("transfer to the zero address")
)

// Token is a conserving fungible-asset ledger: the total supply is
// minted once to the deployer and only ever moves between holders.
type Token struct {
	mu sync.Mutex

	name        string
	symbol      string
	decimals    uint8
	totalSupply *big.Int

	balances   map[common.Address]*big.Int
	allowances map[common.Address]map[common.Address]*big.Int
}

// New deploys a token with the full initial supply credited to deployer.
func New(name, symbol string, decimals uint8, initialSupply *big.Int, deployer common.Address) *Token {
	t := &Token{
		name:        name,
		symbol:      symbol,
		decimals:    decimals,
		totalSupply: new(big.Int).Set(initialSupply),
		balances:    make(map[common.Address]*big.Int),
		allowances:  make(map[common.Address]map[common.Address]*big.Int),
	}
	t.balances[deployer] = new(big.Int).Set(initialSupply)
	return t
}

func (t *Token) Name() string     { return t.name }
func (t *Token) Symbol() string   { return t.symbol }
func (t *Token) Decimals() uint8 { return t.decimals }

// TotalSupply returns the fixed total supply.
func (t *Token) TotalSupply() *big.Int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return new(big.Int).Set(t.totalSupply)
}

// BalanceOf returns the holder's token balance.
func (t *Token) BalanceOf(holder common.Address) *big.Int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return new(big.Int).Set(t.balance(holder))
}

// Transfer moves amount from the caller to recipient.
func (t *Token) Transfer(from, to common.Address, amount *big.Int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.transfer(from, to, amount)
}

// Approve grants spender the right to move amount on behalf of owner.
// A new approval replaces the previous allowance.
func (t *Token) Approve(owner, spender common.Address, amount *big.Int) error {
	if spender == (common.Address{}) {
		return ErrZeroAddress
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	grants, ok := t.allowances[owner]
	if !ok {
		grants = make(map[common.Address]*big.Int)
		t.allowances[owner] = grants
	}
	grants[spender] = new(big.Int).Set(amount)
	return nil
}

// Allowance returns what spender may still move on behalf of owner.
func (t *Token) Allowance(owner, spender common.Address) *big.Int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if grants, ok := t.allowances[owner]; ok {
		if a, ok := grants[spender]; ok {
			return new(big.Int).Set(a)
		}
	}
	return new(big.Int)
}

// TransferFrom moves amount from owner to recipient on the authority of
// spender's allowance, decrementing it.
func (t *Token) TransferFrom(spender, owner, to common.Address, amount *big.Int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	grants, ok := t.allowances[owner]
	if !ok {
		return ErrInsufficientAllowance
	}
	allowance, ok := grants[spender]
	if !ok || allowance.Cmp(amount) < 0 {
		return ErrInsufficientAllowance
	}
	if err := t.transfer(owner, to, amount); err != nil {
		return err
	}
	allowance.Sub(allowance, amount)
	return nil
}

func (t *Token) transfer(from, to common.Address, amount *big.Int) error {
	if to == (common.Address{}) {
		return ErrZeroAddress
	}
	bal := t.balance(from)
	if bal.Cmp(amount) < 0 {
		return fmt.Errorf("%w: have %s, need %s", ErrInsufficientBalance, bal, amount)
	}
	bal.Sub(bal, amount)
	dst, ok := t.balances[to]
	if !ok {
		dst = new(big.Int)
		t.balances[to] = dst
	}
	dst.Add(dst, amount)
	return nil
}

// balance returns the live entry for holder, installing a zero entry if
// absent. Caller holds the lock.
func (t *Token) balance(holder common.Address) *big.Int {
	bal, ok := t.balances[holder]
	if !ok {
		bal = new(big.Int)
		t.balances[holder] = bal
	}
	return bal
}

// Binding presents the token to a single caller the way a contract sees
// msg.sender, satisfying the exchange's TokenContract interface.
type Binding struct {
	t      *Token
	caller common.Address
}

// Binding binds the token to caller.
func (t *Token) Binding(caller common.Address) *Binding {
	return &Binding{t: t, caller: caller}
}

// Transfer moves amount out of the bound caller's balance.
func (b *Binding) Transfer(to common.Address, amount *big.Int) error {
	return b.t.Transfer(b.caller, to, amount)
}

// TransferFrom moves amount from owner to recipient under the bound
// caller's allowance.
func (b *Binding) TransferFrom(owner, to common.Address, amount *big.Int) error {
	return b.t.TransferFrom(b.caller, owner, to, amount)
}
