package exchange_test

import (
	"errors"
	"testing"

	"github.com/Abdillahzakkie/blockchain-developer-bootcamp/pkg/events"
	"github.com/Abdillahzakkie/blockchain-developer-bootcamp/pkg/exchange"
	"github.com/Abdillahzakkie/blockchain-developer-bootcamp/pkg/native"
)

func TestRestartRecoversState(t *testing.T) {
	dir := t.TempDir()
	vault := native.NewVault()
	vault.Fund(user1, toWei(10))
	vault.Fund(user2, toWei(10))

	store, err := exchange.NewStore(dir)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	ex, err := exchange.New(exchange.Config{
		FeeAccount: feeAccount,
		FeePercent: 10,
		Store:      store,
		Vault:      vault,
	})
	if err != nil {
		t.Fatalf("failed to create exchange: %v", err)
	}

	if err := ex.DepositNative(user1, toWei(4)); err != nil {
		t.Fatalf("deposit failed: %v", err)
	}
	if err := ex.DepositNative(user2, toWei(3)); err != nil {
		t.Fatalf("deposit failed: %v", err)
	}
	if _, err := ex.MakeOrder(user1, raidAddr, toWei(1), exchange.NativeAsset, toWei(2)); err != nil {
		t.Fatalf("make order failed: %v", err)
	}
	if _, err := ex.MakeOrder(user2, exchange.NativeAsset, toWei(1), raidAddr, toWei(1)); err != nil {
		t.Fatalf("make order failed: %v", err)
	}
	if err := ex.CancelOrder(user2, 2); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if err := ex.ChangeFeePercent(feeAccount, 3); err != nil {
		t.Fatalf("change fee percent failed: %v", err)
	}
	seq := ex.EventSeq()
	if err := store.Close(); err != nil {
		t.Fatalf("failed to close store: %v", err)
	}

	store, err = exchange.NewStore(dir)
	if err != nil {
		t.Fatalf("failed to reopen store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	// Constructor values differ on purpose; persisted config must win.
	ex, err = exchange.New(exchange.Config{
		FeeAccount: user2,
		FeePercent: 10,
		Store:      store,
		Vault:      vault,
	})
	if err != nil {
		t.Fatalf("failed to recreate exchange: %v", err)
	}

	if got := ex.BalanceOf(exchange.NativeAsset, user1); got.Cmp(toWei(4)) != 0 {
		t.Errorf("user1 balance = %s, want %s", got, toWei(4))
	}
	if got := ex.BalanceOf(exchange.NativeAsset, user2); got.Cmp(toWei(3)) != 0 {
		t.Errorf("user2 balance = %s, want %s", got, toWei(3))
	}
	if got := ex.OrderCount(); got != 2 {
		t.Errorf("order count = %d, want 2", got)
	}
	if got := ex.FeePercent(); got != 3 {
		t.Errorf("fee percent = %d, want persisted 3", got)
	}
	if got := ex.FeeAccount(); got != feeAccount {
		t.Errorf("fee account = %s, want persisted %s", got.Hex(), feeAccount.Hex())
	}
	if got := ex.Admin(); got != feeAccount {
		t.Errorf("admin = %s, want persisted %s", got.Hex(), feeAccount.Hex())
	}
	if got := ex.EventSeq(); got != seq {
		t.Errorf("event seq = %d, want %d", got, seq)
	}

	order, err := ex.Orders(1)
	if err != nil {
		t.Fatalf("orders(1) failed: %v", err)
	}
	if order.User != user1 || order.AmountGive.Cmp(toWei(2)) != 0 {
		t.Errorf("order 1 = (%s, %s), want (%s, %s)", order.User.Hex(), order.AmountGive, user1.Hex(), toWei(2))
	}
	if !ex.CancelledOrders(2) {
		t.Error("order 2 lost its cancelled status")
	}
	status, err := ex.OrderStatus(1)
	if err != nil {
		t.Fatalf("order status failed: %v", err)
	}
	if status != exchange.StatusOpen {
		t.Errorf("order 1 status = %s, want open", status)
	}

	// Identifiers keep counting from where they stopped.
	id, err := ex.MakeOrder(user1, raidAddr, toWei(1), exchange.NativeAsset, toWei(1))
	if err != nil {
		t.Fatalf("make order failed: %v", err)
	}
	if id != 3 {
		t.Errorf("post-restart order id = %d, want 3", id)
	}
}

func TestRestartReplaysEvents(t *testing.T) {
	dir := t.TempDir()
	vault := native.NewVault()
	vault.Fund(user1, toWei(10))

	store, err := exchange.NewStore(dir)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	ex, err := exchange.New(exchange.Config{
		FeeAccount: feeAccount,
		FeePercent: 10,
		Store:      store,
		Vault:      vault,
	})
	if err != nil {
		t.Fatalf("failed to create exchange: %v", err)
	}

	if err := ex.DepositNative(user1, toWei(2)); err != nil {
		t.Fatalf("deposit failed: %v", err)
	}
	if err := ex.Withdraw(user1, exchange.NativeAsset, toWei(1)); err != nil {
		t.Fatalf("withdraw failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("failed to close store: %v", err)
	}

	store, err = exchange.NewStore(dir)
	if err != nil {
		t.Fatalf("failed to reopen store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	ex, err = exchange.New(exchange.Config{
		FeeAccount: feeAccount,
		FeePercent: 10,
		Store:      store,
		Vault:      vault,
	})
	if err != nil {
		t.Fatalf("failed to recreate exchange: %v", err)
	}

	evts, err := ex.Events(0, 0)
	if err != nil {
		t.Fatalf("events failed: %v", err)
	}
	if len(evts) != 2 {
		t.Fatalf("event count = %d, want 2", len(evts))
	}
	if evts[0].Type != events.TypeDeposit || evts[1].Type != events.TypeWithdrawal {
		t.Errorf("event types = %s, %s", evts[0].Type, evts[1].Type)
	}
	wd := evts[1].Withdrawal
	if wd == nil {
		t.Fatal("withdrawal event payload missing")
	}
	if wd.Amount.Cmp(toWei(1)) != 0 || wd.Balance.Cmp(toWei(1)) != 0 {
		t.Errorf("withdrawal event amount/balance = %s/%s, want 1/1", wd.Amount, wd.Balance)
	}
}

func TestStoreEmptyLoad(t *testing.T) {
	store, err := exchange.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	evts, err := store.LoadEvents(0, 10)
	if err != nil {
		t.Fatalf("load events failed: %v", err)
	}
	if len(evts) != 0 {
		t.Errorf("event count = %d, want 0", len(evts))
	}

	ex, err := exchange.New(exchange.Config{
		FeeAccount: feeAccount,
		FeePercent: 10,
		Store:      store,
		Vault:      native.NewVault(),
	})
	if err != nil {
		t.Fatalf("failed to create exchange: %v", err)
	}
	if _, err := ex.Orders(1); !errors.Is(err, exchange.ErrOrderNotFound) {
		t.Errorf("orders(1) on empty store: got %v, want ErrOrderNotFound", err)
	}
}
