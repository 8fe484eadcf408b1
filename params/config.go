package params

import (
	"os"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
)

type Exchange struct {
	// FeeAccount receives withdrawal fee skims and bootstraps the admin
	// identity. Required on first boot.
	FeeAccount common.Address
	// FeePercent is the withdrawal fee, whole percent in [0,100].
	FeePercent uint64
}

type Node struct {
	DataDir string
	APIAddr string
	LogFile string
	// SeedDemo funds demo wallets and a RAID token balance on boot so a
	// fresh devnet has something to trade.
	SeedDemo bool
}

type Config struct {
	Exchange Exchange
	Node     Node
}

func Default() Config {
	return Config{
		Exchange: Exchange{
			FeePercent: 10,
		},
		Node: Node{
			DataDir: "data/exchange.db",
			APIAddr: ":8080",
			LogFile: "data/exchanged.log",
		},
	}
}

// LoadFromEnv loads configuration from a .env file (if present) and
// environment variables. Priority: ENV > .env file > defaults.
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	if v := os.Getenv("FEE_ACCOUNT"); common.IsHexAddress(v) {
		cfg.Exchange.FeeAccount = common.HexToAddress(v)
	}
	if v := os.Getenv("FEE_PERCENT"); v != "" {
		if pct, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.Exchange.FeePercent = pct
		}
	}
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Node.DataDir = v
	}
	if v := os.Getenv("API_ADDR"); v != "" {
		cfg.Node.APIAddr = v
	}
	if v := os.Getenv("LOG_FILE"); v != "" {
		cfg.Node.LogFile = v
	}
	if v := os.Getenv("SEED_DEMO"); v != "" {
		cfg.Node.SeedDemo = v == "true"
	}

	return cfg
}
