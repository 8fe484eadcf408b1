package token_test

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Abdillahzakkie/blockchain-developer-bootcamp/pkg/token"
)

var (
	deployer = common.HexToAddress("0xD000000000000000000000000000000000000001")
	alice    = common.HexToAddress("0xA000000000000000000000000000000000000001")
	bob      = common.HexToAddress("0xB000000000000000000000000000000000000001")
	spender  = common.HexToAddress("0xC000000000000000000000000000000000000001")
)

func newTestToken(t *testing.T) *token.Token {
	t.Helper()
	return token.New("RAIDTOKEN", "RAID", 18, big.NewInt(1_000_000), deployer)
}

func TestNewMintsSupplyToDeployer(t *testing.T) {
	tok := newTestToken(t)

	if got := tok.Name(); got != "RAIDTOKEN" {
		t.Errorf("name = %q, want RAIDTOKEN", got)
	}
	if got := tok.Symbol(); got != "RAID" {
		t.Errorf("symbol = %q, want RAID", got)
	}
	if got := tok.Decimals(); got != 18 {
		t.Errorf("decimals = %d, want 18", got)
	}
	if got := tok.TotalSupply(); got.Cmp(big.NewInt(1_000_000)) != 0 {
		t.Errorf("total supply = %s, want 1000000", got)
	}
	if got := tok.BalanceOf(deployer); got.Cmp(big.NewInt(1_000_000)) != 0 {
		t.Errorf("deployer balance = %s, want full supply", got)
	}
}

func TestTransfer(t *testing.T) {
	tok := newTestToken(t)

	if err := tok.Transfer(deployer, alice, big.NewInt(300)); err != nil {
		t.Fatalf("transfer failed: %v", err)
	}
	if got := tok.BalanceOf(alice); got.Cmp(big.NewInt(300)) != 0 {
		t.Errorf("alice balance = %s, want 300", got)
	}
	if got := tok.BalanceOf(deployer); got.Cmp(big.NewInt(999_700)) != 0 {
		t.Errorf("deployer balance = %s, want 999700", got)
	}
}

func TestTransferInsufficientBalance(t *testing.T) {
	tok := newTestToken(t)

	err := tok.Transfer(alice, bob, big.NewInt(1))
	if !errors.Is(err, token.ErrInsufficientBalance) {
		t.Errorf("broke transfer: got %v, want ErrInsufficientBalance", err)
	}
}

func TestTransferZeroAddress(t *testing.T) {
	tok := newTestToken(t)

	err := tok.Transfer(deployer, common.Address{}, big.NewInt(1))
	if !errors.Is(err, token.ErrZeroAddress) {
		t.Errorf("zero-address transfer: got %v, want ErrZeroAddress", err)
	}
	if got := tok.BalanceOf(deployer); got.Cmp(big.NewInt(1_000_000)) != 0 {
		t.Errorf("deployer balance moved: %s", got)
	}
}

func TestApproveAndAllowance(t *testing.T) {
	tok := newTestToken(t)

	if err := tok.Approve(deployer, spender, big.NewInt(500)); err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	if got := tok.Allowance(deployer, spender); got.Cmp(big.NewInt(500)) != 0 {
		t.Errorf("allowance = %s, want 500", got)
	}

	// A second approve replaces, not adds.
	if err := tok.Approve(deployer, spender, big.NewInt(200)); err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	if got := tok.Allowance(deployer, spender); got.Cmp(big.NewInt(200)) != 0 {
		t.Errorf("allowance = %s, want 200", got)
	}

	if err := tok.Approve(deployer, common.Address{}, big.NewInt(1)); !errors.Is(err, token.ErrZeroAddress) {
		t.Errorf("zero-address approve: got %v, want ErrZeroAddress", err)
	}
}

func TestTransferFrom(t *testing.T) {
	tok := newTestToken(t)
	if err := tok.Approve(deployer, spender, big.NewInt(500)); err != nil {
		t.Fatalf("approve failed: %v", err)
	}

	if err := tok.TransferFrom(spender, deployer, bob, big.NewInt(400)); err != nil {
		t.Fatalf("transferFrom failed: %v", err)
	}
	if got := tok.BalanceOf(bob); got.Cmp(big.NewInt(400)) != 0 {
		t.Errorf("bob balance = %s, want 400", got)
	}
	if got := tok.Allowance(deployer, spender); got.Cmp(big.NewInt(100)) != 0 {
		t.Errorf("remaining allowance = %s, want 100", got)
	}

	err := tok.TransferFrom(spender, deployer, bob, big.NewInt(200))
	if !errors.Is(err, token.ErrInsufficientAllowance) {
		t.Errorf("over-allowance spend: got %v, want ErrInsufficientAllowance", err)
	}
}

func TestTransferFromWithoutApproval(t *testing.T) {
	tok := newTestToken(t)

	err := tok.TransferFrom(spender, deployer, bob, big.NewInt(1))
	if !errors.Is(err, token.ErrInsufficientAllowance) {
		t.Errorf("unapproved spend: got %v, want ErrInsufficientAllowance", err)
	}
}

func TestTransferFromInsufficientBalance(t *testing.T) {
	tok := newTestToken(t)
	// Allowance exceeds what alice actually holds.
	if err := tok.Approve(alice, spender, big.NewInt(100)); err != nil {
		t.Fatalf("approve failed: %v", err)
	}

	err := tok.TransferFrom(spender, alice, bob, big.NewInt(50))
	if !errors.Is(err, token.ErrInsufficientBalance) {
		t.Errorf("broke owner spend: got %v, want ErrInsufficientBalance", err)
	}
	if got := tok.Allowance(alice, spender); got.Cmp(big.NewInt(100)) != 0 {
		t.Errorf("allowance consumed on failed spend: %s", got)
	}
}

func TestBinding(t *testing.T) {
	tok := newTestToken(t)
	custody := common.HexToAddress("0xCC00000000000000000000000000000000000001")
	binding := tok.Binding(custody)

	if err := tok.Approve(deployer, custody, big.NewInt(100)); err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	if err := binding.TransferFrom(deployer, custody, big.NewInt(100)); err != nil {
		t.Fatalf("binding transferFrom failed: %v", err)
	}
	if got := tok.BalanceOf(custody); got.Cmp(big.NewInt(100)) != 0 {
		t.Errorf("custody balance = %s, want 100", got)
	}

	if err := binding.Transfer(alice, big.NewInt(40)); err != nil {
		t.Fatalf("binding transfer failed: %v", err)
	}
	if got := tok.BalanceOf(alice); got.Cmp(big.NewInt(40)) != 0 {
		t.Errorf("alice balance = %s, want 40", got)
	}
	if got := tok.BalanceOf(custody); got.Cmp(big.NewInt(60)) != 0 {
		t.Errorf("custody balance = %s, want 60", got)
	}
}
