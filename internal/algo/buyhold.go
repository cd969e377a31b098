package algo

import (
	"fmt"

	"github.com/jabernat/EasyMoney/internal/domain"
	"github.com/jabernat/EasyMoney/internal/sim"
)

// BuyAndHold buys an equal split of every market symbol on its first
// decision and then does nothing. It doubles as the simplest possible
// exercise of the trader contract.
type BuyAndHold struct{}

type buyHoldSettings struct {
	// Reserve is the fraction of the initial balance kept in cash, in
	// [0, 1).
	Reserve float64 `mapstructure:"reserve"`
}

// Name returns the algorithm's registry name.
func (BuyAndHold) Name() string { return "BuyAndHold" }

// DefaultSettings returns the settings used when a trader supplies
// none.
func (BuyAndHold) DefaultSettings() sim.Settings {
	return sim.Settings{"reserve": 0.0}
}

// New validates settings and builds a fresh buy-and-hold strategy.
func (b BuyAndHold) New(settings sim.Settings) (sim.Strategy, error) {
	var cfg buyHoldSettings
	if err := decodeSettings(settings, &cfg); err != nil {
		return nil, err
	}
	if cfg.Reserve < 0 || cfg.Reserve >= 1 {
		return nil, fmt.Errorf("%w: reserve %v must be in [0, 1)", domain.ErrValidation, cfg.Reserve)
	}
	return &buyHoldStrategy{cfg: cfg}, nil
}

type buyHoldStrategy struct {
	cfg    buyHoldSettings
	bought bool
}

// Reset re-arms the one-shot purchase when the market clears.
func (s *buyHoldStrategy) Reset() {
	s.bought = false
}

// Decide spreads the investable balance evenly across all symbols
// once, skipping symbols whose per-symbol budget doesn't cover the
// trading fee.
func (s *buyHoldStrategy) Decide(tr *sim.Trader) error {
	if s.bought {
		return nil
	}
	prices := tr.Market().PricesAsOf(nil)
	if prices == nil {
		return nil
	}

	account := tr.Account()
	budget := account.Balance() * (1 - s.cfg.Reserve)
	perSymbol := budget / float64(len(prices))
	for _, symbol := range sortedSymbols(prices) {
		shares := (perSymbol - tr.TradingFee()) / prices[symbol]
		if shares <= 0 {
			continue
		}
		if err := account.Buy(symbol, shares); err != nil {
			return err
		}
	}
	s.bought = true
	return nil
}
