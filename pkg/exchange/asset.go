package exchange

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// NativeAsset is the reserved asset identifier for the host chain's
// settlement asset. Every other asset identifier is the address of a
// fungible token contract.
var NativeAsset = common.Address{}

// DeployAddress is the default identity of the exchange itself, used as
// the recipient of token custody transfers when the operator does not
// configure one. It mirrors the first contract address of a fresh devnet.
var DeployAddress = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")

// TokenContract is the surface the exchange requires of a fungible-asset
// collaborator. Implementations must follow conservation (no mint or burn
// inside these calls) and report failure instead of silently truncating.
//
// Both calls run synchronously while the exchange holds its state lock;
// an implementation must not call back into the exchange.
type TokenContract interface {
	// TransferFrom moves amount from owner into the caller's custody,
	// honoring a prior allowance grant by owner.
	TransferFrom(owner, recipient common.Address, amount *big.Int) error

	// Transfer moves amount out of the caller's own token balance
	// to recipient.
	Transfer(recipient common.Address, amount *big.Int) error
}

// NativeVault models the host execution environment's native-asset
// custody: value attached to a deposit call moves in through TransferIn,
// and withdrawals release value back out through TransferOut.
//
// Like TokenContract, both calls run under the exchange state lock and
// must not reenter the exchange.
type NativeVault interface {
	// TransferIn moves the value attached to a deposit call from the
	// caller's wallet into exchange custody.
	TransferIn(from common.Address, amount *big.Int) error

	// TransferOut releases value from exchange custody to recipient.
	TransferOut(recipient common.Address, amount *big.Int) error
}
