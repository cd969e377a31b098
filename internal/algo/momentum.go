package algo

import (
	"fmt"
	"sort"

	"github.com/jabernat/EasyMoney/internal/domain"
	"github.com/jabernat/EasyMoney/internal/sim"
)

// Momentum is a trend-following algorithm: it assumes each symbol's
// current price trend will continue, buying the strongest riser and
// dumping positions at the first significant drop. Likely profitable
// only in low-fee environments.
type Momentum struct{}

type momentumSettings struct {
	// BuyFraction is the share of the current balance spent on each
	// purchase, in (0, 1].
	BuyFraction float64 `mapstructure:"buy_fraction"`
	// SellDrop is the per-share price decrease since the previous
	// observation that triggers selling the whole position.
	SellDrop float64 `mapstructure:"sell_drop"`
}

// Name returns the algorithm's registry name.
func (Momentum) Name() string { return "Momentum" }

// DefaultSettings returns the settings used when a trader supplies
// none.
func (Momentum) DefaultSettings() sim.Settings {
	return sim.Settings{
		"buy_fraction": 0.5,
		"sell_drop":    1.0,
	}
}

// New validates settings and builds a fresh momentum strategy.
func (m Momentum) New(settings sim.Settings) (sim.Strategy, error) {
	cfg := momentumSettings{BuyFraction: 0.5, SellDrop: 1.0}
	if err := decodeSettings(settings, &cfg); err != nil {
		return nil, err
	}
	if cfg.BuyFraction <= 0 || cfg.BuyFraction > 1 {
		return nil, fmt.Errorf("%w: buy_fraction %v must be in (0, 1]", domain.ErrValidation, cfg.BuyFraction)
	}
	if cfg.SellDrop <= 0 {
		return nil, fmt.Errorf("%w: sell_drop %v must be positive", domain.ErrValidation, cfg.SellDrop)
	}
	return &momentumStrategy{cfg: cfg, lastPrices: make(map[string]float64)}, nil
}

type momentumStrategy struct {
	cfg momentumSettings
	// lastPrices holds the previously observed price per symbol; the
	// deltas against it rank buy candidates.
	lastPrices map[string]float64
}

// Reset discards the price history when the market clears.
func (s *momentumStrategy) Reset() {
	s.lastPrices = make(map[string]float64)
}

// Decide sells positions that dropped past the configured threshold,
// then buys the symbol with the biggest price increase since the last
// observation, spending a fraction of the current balance.
func (s *momentumStrategy) Decide(tr *sim.Trader) error {
	prices := tr.Market().PricesAsOf(nil)
	if prices == nil {
		return nil
	}
	previous := s.lastPrices
	s.lastPrices = prices
	if len(previous) == 0 {
		return nil // first observation establishes the baseline
	}

	account := tr.Account()

	// Dump every owned position that is falling.
	holdings := account.Holdings()
	for _, symbol := range sortedSymbols(holdings) {
		last, ok := previous[symbol]
		if !ok {
			continue
		}
		if last-prices[symbol] >= s.cfg.SellDrop {
			if err := account.Sell(symbol, holdings[symbol]); err != nil {
				return err
			}
		}
	}

	// Rank symbols by price increase and buy the strongest riser.
	type mover struct {
		symbol string
		delta  float64
	}
	movers := make([]mover, 0, len(prices))
	for symbol, price := range prices {
		last, ok := previous[symbol]
		if !ok {
			continue
		}
		movers = append(movers, mover{symbol: symbol, delta: price - last})
	}
	sort.Slice(movers, func(i, j int) bool {
		if movers[i].delta != movers[j].delta {
			return movers[i].delta > movers[j].delta
		}
		return movers[i].symbol < movers[j].symbol
	})
	if len(movers) == 0 || movers[0].delta <= 0 {
		return nil
	}

	best := movers[0]
	budget := account.Balance() * s.cfg.BuyFraction
	shares := (budget - tr.TradingFee()) / prices[best.symbol]
	if shares <= 0 {
		return nil // budget doesn't even cover the fee
	}
	return account.Buy(best.symbol, shares)
}

func sortedSymbols(m map[string]float64) []string {
	symbols := make([]string, 0, len(m))
	for symbol := range m {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	return symbols
}
