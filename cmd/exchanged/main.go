package main

import (
	"context"
	"log"
	"math/big"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/Abdillahzakkie/blockchain-developer-bootcamp/params"
	"github.com/Abdillahzakkie/blockchain-developer-bootcamp/pkg/api"
	"github.com/Abdillahzakkie/blockchain-developer-bootcamp/pkg/exchange"
	"github.com/Abdillahzakkie/blockchain-developer-bootcamp/pkg/native"
	"github.com/Abdillahzakkie/blockchain-developer-bootcamp/pkg/token"
	"github.com/Abdillahzakkie/blockchain-developer-bootcamp/pkg/util"
)

// RAID token deployment parameters: 10,000 whole tokens at 18 decimals,
// minted to the admin wallet.
var (
	raidAddress = common.HexToAddress("0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512")
	raidSupply  = new(big.Int).Mul(big.NewInt(10_000), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
)

// Demo wallets for a seeded devnet.
var (
	demoAdmin = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	demoUser1 = common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	demoUser2 = common.HexToAddress("0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC")
)

func main() {
	cfg := params.LoadFromEnv("")

	logger, err := util.NewLogger(cfg.Node.LogFile)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	feeAccount := cfg.Exchange.FeeAccount
	if feeAccount == (common.Address{}) {
		if !cfg.Node.SeedDemo {
			sugar.Fatal("FEE_ACCOUNT is required (or set SEED_DEMO=true for a devnet)")
		}
		feeAccount = demoAdmin
	}

	store, err := exchange.NewStore(cfg.Node.DataDir)
	if err != nil {
		sugar.Fatalw("store_open_failed", "path", cfg.Node.DataDir, "err", err)
	}
	defer store.Close()

	vault := native.NewVault()
	raid := token.New("RAIDTOKEN", "RAID", 18, raidSupply, demoAdmin)

	ex, err := exchange.New(exchange.Config{
		FeeAccount: feeAccount,
		FeePercent: cfg.Exchange.FeePercent,
		Store:      store,
		Vault:      vault,
		Logger:     sugar,
	})
	if err != nil {
		sugar.Fatalw("exchange_init_failed", "err", err)
	}
	if err := ex.RegisterToken(raidAddress, raid.Binding(ex.Address())); err != nil {
		sugar.Fatalw("token_register_failed", "err", err)
	}

	if cfg.Node.SeedDemo {
		seedDemo(ex, vault, raid, sugar)
	}

	server := api.NewServer(ex, sugar)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := server.Start(cfg.Node.APIAddr); err != nil {
			sugar.Fatalw("api_server_failed", "err", err)
		}
	}()

	sugar.Infow("exchanged_running",
		"api_addr", cfg.Node.APIAddr,
		"data_dir", cfg.Node.DataDir,
		"raid_token", raidAddress.Hex(),
	)

	<-ctx.Done()
	sugar.Info("shutting down")
}

// seedDemo funds the demo wallets and replays a small trading session so
// a fresh devnet has balances, an open order, a cancelled order and a
// filled trade to look at.
func seedDemo(ex *exchange.Exchange, vault *native.Vault, raid *token.Token, sugar *zap.SugaredLogger) {
	if ex.OrderCount() > 0 {
		// Already seeded on a previous boot.
		return
	}

	ether := func(n int64) *big.Int {
		return new(big.Int).Mul(big.NewInt(n), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
	}

	vault.Fund(demoUser1, ether(100))
	vault.Fund(demoUser2, ether(100))

	seed := func(name string, err error) {
		if err != nil {
			sugar.Warnw("seed_step_failed", "step", name, "err", err)
		}
	}

	seed("token_transfer_user1", raid.Transfer(demoAdmin, demoUser1, ether(1000)))
	seed("token_transfer_user2", raid.Transfer(demoAdmin, demoUser2, ether(1000)))

	seed("deposit_ether_user1", ex.DepositNative(demoUser1, ether(1)))
	seed("approve_user2", raid.Approve(demoUser2, ex.Address(), ether(100)))
	seed("deposit_token_user2", ex.DepositToken(demoUser2, raidAddress, ether(100)))

	// One cancelled order, one filled order, one left open.
	if id, err := ex.MakeOrder(demoUser1, raidAddress, ether(100), exchange.NativeAsset, ether(1)); err != nil {
		seed("make_order_1", err)
	} else {
		seed("cancel_order_1", ex.CancelOrder(demoUser1, id))
	}
	if id, err := ex.MakeOrder(demoUser1, raidAddress, ether(100), exchange.NativeAsset, ether(1)); err != nil {
		seed("make_order_2", err)
	} else {
		seed("fill_order_2", ex.FillOrder(demoUser2, id))
	}
	if _, err := ex.MakeOrder(demoUser2, exchange.NativeAsset, ether(1), raidAddress, ether(50)); err != nil {
		seed("make_order_3", err)
	}
}
