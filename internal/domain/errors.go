package domain

import "errors"

// Sentinel errors for domain-level error handling. Richer error types
// in the market and ledger packages unwrap to these, so callers can
// classify failures with errors.Is without importing every package.
var (
	ErrValidation          = errors.New("validation_failed")
	ErrSymbolNotFound      = errors.New("symbol_not_found")
	ErrNoPrices            = errors.New("no_prices")
	ErrAccountFrozen       = errors.New("account_frozen")
	ErrInsufficientBalance = errors.New("insufficient_balance")
	ErrInsufficientShares  = errors.New("insufficient_shares")
	ErrShareQuantity       = errors.New("invalid_share_quantity")
	ErrTraderNameTaken     = errors.New("trader_name_taken")
	ErrUnknownAlgorithm    = errors.New("unknown_algorithm")
	ErrInitialFunds        = errors.New("invalid_initial_funds")
	ErrTradingFee          = errors.New("invalid_trading_fee")
)
