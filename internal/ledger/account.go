// Package ledger implements the per-trader account: a transactional
// cash balance plus stock holdings tied to one market, with an
// irreversible frozen state that takes the account out of the
// simulation.
package ledger

import (
	"github.com/google/uuid"

	"github.com/jabernat/EasyMoney/internal/dispatch"
	"github.com/jabernat/EasyMoney/internal/domain"
	"github.com/jabernat/EasyMoney/internal/market"
)

// maxRoundingError is the tolerance within which share and fund
// quantities that overshoot a boundary are assumed to be floating
// point rounding error and silently clamped instead of rejected.
const maxRoundingError = 1e-6

// Topics published by an Account.
const (
	TopicBought = "bought"
	TopicSold   = "sold"
	TopicFrozen = "frozen"
)

// Bought is the payload for TopicBought. BalanceChange is negative.
type Bought struct {
	TradeID       string
	Symbol        string
	Shares        float64
	BalanceChange float64
}

// Sold is the payload for TopicSold. BalanceChange is the sale's
// fee-adjusted proceeds.
type Sold struct {
	TradeID       string
	Symbol        string
	Shares        float64
	BalanceChange float64
}

// Frozen is the payload for TopicFrozen. Cause carries the offending
// error when the freeze was triggered by one, and is nil for manual
// freezes.
type Frozen struct {
	Reason string
	Cause  error
}

// FeeSource supplies the per-trade fee an account must pay. It is an
// interface so the owning trader's live fee setting applies without
// the ledger depending on the sim package.
type FeeSource interface {
	TradingFee() float64
}

// FlatFee is a fixed FeeSource, convenient for direct Account use.
type FlatFee float64

// TradingFee returns the flat fee amount.
func (f FlatFee) TradingFee() float64 { return float64(f) }

// Statistics aggregates an account's running performance.
type Statistics struct {
	// NetProfit is the balance plus the fee-adjusted mark-to-market
	// value of all holdings, minus the initial balance.
	NetProfit float64
}

// Account is a trader's bank balance and stock portfolio for one run
// of the simulation. The balance and every holding stay non-negative
// (within rounding tolerance). Once frozen an account never trades
// again; the only recovery path is replacing it with a new Account.
type Account struct {
	hub      *dispatch.Hub
	market   *market.Series
	fees     FeeSource
	initial  float64
	balance  float64
	holdings map[string]float64
	frozen   bool
}

// NewAccount creates an account holding initialFunds with no stocks.
// Prices are read from m and every trade pays the fee supplied by
// fees; a nil fees means trading is free.
func NewAccount(m *market.Series, initialFunds float64, fees FeeSource) *Account {
	if fees == nil {
		fees = FlatFee(0)
	}
	return &Account{
		hub:      dispatch.NewHub(TopicBought, TopicSold, TopicFrozen),
		market:   m,
		fees:     fees,
		initial:  initialFunds,
		balance:  initialFunds,
		holdings: make(map[string]float64),
	}
}

// Events returns the hub that announces trades and freezes.
func (a *Account) Events() *dispatch.Hub {
	return a.hub
}

// Market returns the price series this account trades against.
func (a *Account) Market() *market.Series {
	return a.market
}

// Balance returns the current non-negative cash balance.
func (a *Account) Balance() float64 {
	return a.balance
}

// InitialBalance returns the balance the account was created with.
func (a *Account) InitialBalance() float64 {
	return a.initial
}

// Holdings returns a copy of the owned share quantities by symbol.
func (a *Account) Holdings() map[string]float64 {
	c := make(map[string]float64, len(a.holdings))
	for symbol, shares := range a.holdings {
		c[symbol] = shares
	}
	return c
}

// IsFrozen reports whether the account has been permanently frozen.
func (a *Account) IsFrozen() bool {
	return a.frozen
}

// Freeze permanently stops the account from buying or selling and
// publishes TopicFrozen with the given reason and optional cause.
// Freezing an already-frozen account is a no-op. There is no unfreeze;
// the trader must create a new account to resume participating.
func (a *Account) Freeze(reason string, cause error) {
	if a.frozen {
		return
	}
	a.frozen = true
	_, _ = a.hub.Publish(TopicFrozen, Frozen{Reason: reason, Cause: cause})
}

// Buy purchases shares of symbol at the market's latest price plus the
// trading fee, debiting the balance and crediting the holding. A cost
// that overshoots the balance by no more than the rounding tolerance
// spends the entire balance instead, recomputing the share quantity.
// Publishes TopicBought on success.
func (a *Account) Buy(symbol string, shares float64) error {
	if a.frozen {
		return domain.ErrAccountFrozen
	}

	price, err := a.market.LatestPrice(symbol)
	if err != nil {
		return err
	}
	fee := a.fees.TradingFee()
	cost := shares*price + fee
	if cost > a.balance {
		if a.balance-cost < -maxRoundingError {
			return &InsufficientBalanceError{Symbol: symbol, Cost: cost, Balance: a.balance}
		}
		// Rounding overshoot: spend all remaining funds.
		cost = a.balance
		shares = (cost - fee) / price
	}
	if shares <= 0 {
		return &ShareQuantityError{Symbol: symbol, Shares: shares}
	}

	a.balance -= cost
	a.holdings[symbol] += shares
	_, err = a.hub.Publish(TopicBought, Bought{
		TradeID:       uuid.NewString(),
		Symbol:        symbol,
		Shares:        shares,
		BalanceChange: -cost,
	})
	return err
}

// Sell exchanges shares of symbol for their value at the market's
// latest price minus the trading fee. Selling marginally more than
// owned (within rounding tolerance) sells the whole position instead.
// A sale whose fee exceeds its proceeds is rejected rather than let
// the balance go negative. Publishes TopicSold on success.
func (a *Account) Sell(symbol string, shares float64) error {
	if a.frozen {
		return domain.ErrAccountFrozen
	}

	owned := a.holdings[symbol]
	if shares > owned {
		if owned-shares < -maxRoundingError {
			return &InsufficientSharesError{Symbol: symbol, Shares: shares, Owned: owned}
		}
		// Rounding overshoot: sell the whole position.
		shares = owned
	}
	if shares <= 0 {
		return &ShareQuantityError{Symbol: symbol, Shares: shares}
	}

	price, err := a.market.LatestPrice(symbol)
	if err != nil {
		return err
	}
	profit := shares*price - a.fees.TradingFee()
	if a.balance+profit < 0 {
		// The trading fee made the sale a net loss the balance can't cover.
		return &InsufficientBalanceError{Symbol: symbol, Cost: -profit, Balance: a.balance}
	}

	a.balance += profit
	if remaining := owned - shares; remaining > 0 {
		a.holdings[symbol] = remaining
	} else {
		delete(a.holdings, symbol)
	}
	_, err = a.hub.Publish(TopicSold, Sold{
		TradeID:       uuid.NewString(),
		Symbol:        symbol,
		Shares:        shares,
		BalanceChange: profit,
	})
	return err
}

// Statistics marks every open position to the latest market price,
// less one trading fee per position, and reports the running net
// profit relative to the initial balance.
func (a *Account) Statistics() (Statistics, error) {
	fee := a.fees.TradingFee()
	value := 0.0
	for symbol, shares := range a.holdings {
		if shares <= 0 {
			continue
		}
		price, err := a.market.LatestPrice(symbol)
		if err != nil {
			return Statistics{}, err
		}
		value += shares*price - fee
	}
	return Statistics{NetProfit: a.balance + value - a.initial}, nil
}
