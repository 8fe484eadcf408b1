package exchange

import "errors"

// Failure taxonomy of the exchange. Every operation that returns one of
// these leaves the exchange state untouched; there is no partial commit.
var (
	ErrZeroAmount          = errors.New("amount must be greater than zero")
	ErrInvalidAsset        = errors.New("invalid asset for this operation")
	ErrInsufficientBalance = errors.New("amount exceeds balance")
	ErrAssetTransferFailed = errors.New("asset transfer failed")
	ErrOrderNotFound       = errors.New("order does not exist")
	ErrUnauthorized        = errors.New("caller is not authorized")
	ErrAlreadyCancelled    = errors.New("order has already been cancelled")
	ErrAlreadyFilled       = errors.New("order has already been filled")
	ErrFeeOutOfRange       = errors.New("fee percent out of range")
)
