// Package sim orchestrates the stock-market simulation: it owns the
// price series, a registry of trading algorithms, and the participating
// traders with their accounts.
package sim

import (
	"errors"
	"fmt"
	"sort"

	"github.com/jabernat/EasyMoney/internal/dispatch"
	"github.com/jabernat/EasyMoney/internal/domain"
	"github.com/jabernat/EasyMoney/internal/market"
)

// Topics published by a Model.
const (
	TopicTraderAdded    = "trader_added"
	TopicTraderRemoved  = "trader_removed"
	TopicAlgorithmAdded = "algorithm_added"
)

// TraderAdded is the payload for TopicTraderAdded.
type TraderAdded struct {
	Trader *Trader
}

// TraderRemoved is the payload for TopicTraderRemoved.
type TraderRemoved struct {
	Trader *Trader
}

// AlgorithmAdded is the payload for TopicAlgorithmAdded.
type AlgorithmAdded struct {
	Name string
}

// Model is the state of one simulated stock market along with its
// participating traders. Trader names and algorithm names are unique
// within a model. All mutation happens synchronously on the caller's
// stack; the model has no background goroutines of its own.
type Model struct {
	hub        *dispatch.Hub
	market     *market.Series
	algorithms map[string]Algorithm
	traders    map[string]*Trader
}

// NewModel creates a model with an empty market, no algorithms and no
// traders.
func NewModel() *Model {
	return &Model{
		hub:        dispatch.NewHub(TopicTraderAdded, TopicTraderRemoved, TopicAlgorithmAdded),
		market:     market.NewSeries(),
		algorithms: make(map[string]Algorithm),
		traders:    make(map[string]*Trader),
	}
}

// Events returns the hub that announces model membership changes.
func (m *Model) Events() *dispatch.Hub {
	return m.hub
}

// Market returns the model's price series. Callers other than the
// price feed should only read it.
func (m *Model) Market() *market.Series {
	return m.market
}

// RegisterAlgorithm makes alg available to AddTrader under its name.
// Registering a name twice is a no-op. Publishes TopicAlgorithmAdded
// for new names.
func (m *Model) RegisterAlgorithm(alg Algorithm) {
	name := alg.Name()
	if _, ok := m.algorithms[name]; ok {
		return
	}
	m.algorithms[name] = alg
	_, _ = m.hub.Publish(TopicAlgorithmAdded, AlgorithmAdded{Name: name})
}

// Algorithms returns the registered algorithm names in sorted order.
func (m *Model) Algorithms() []string {
	names := make([]string, 0, len(m.algorithms))
	for name := range m.algorithms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultSettings returns a copy of the named algorithm's default
// settings, or domain.ErrUnknownAlgorithm.
func (m *Model) DefaultSettings(algorithm string) (Settings, error) {
	alg, ok := m.algorithms[algorithm]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownAlgorithm, algorithm)
	}
	return alg.DefaultSettings().copy(), nil
}

// AddTrader adds a uniquely named trader driven by the named
// algorithm, creates its first account, and returns it. The trader
// persists until RemoveTrader. Publishes TopicTraderAdded on success.
func (m *Model) AddTrader(name string, initialFunds, tradingFee float64, algorithm string, settings Settings) (*Trader, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: trader name cannot be empty", domain.ErrValidation)
	}
	if _, ok := m.traders[name]; ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrTraderNameTaken, name)
	}
	alg, ok := m.algorithms[algorithm]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownAlgorithm, algorithm)
	}

	tr, err := newTrader(m.market, name, initialFunds, tradingFee, alg, settings)
	if err != nil {
		return nil, err
	}
	m.traders[name] = tr
	tr.CreateAccount()
	_, _ = m.hub.Publish(TopicTraderAdded, TraderAdded{Trader: tr})
	return tr, nil
}

// Trader returns the trader known by name, or nil.
func (m *Model) Trader(name string) *Trader {
	return m.traders[name]
}

// Traders returns the participating traders sorted by name.
func (m *Model) Traders() []*Trader {
	traders := make([]*Trader, 0, len(m.traders))
	for _, name := range sortedTraderNames(m.traders) {
		traders = append(traders, m.traders[name])
	}
	return traders
}

// RemoveTrader detaches and drops the named trader. Removing an
// unknown name is a no-op. Publishes TopicTraderRemoved on success.
func (m *Model) RemoveTrader(name string) {
	tr, ok := m.traders[name]
	if !ok {
		return
	}
	tr.detach()
	delete(m.traders, name)
	_, _ = m.hub.Publish(TopicTraderRemoved, TraderRemoved{Trader: tr})
}

// Reset clears the market of old price data, which fans out to every
// trader replacing its account with a fresh one at its configured
// initial funds. One trader's replacement failing never prevents the
// others from completing; the failures are aggregated into the
// returned error.
func (m *Model) Reset() error {
	for _, tr := range m.traders {
		tr.resetErr = nil
	}
	if err := m.market.Clear(); err != nil {
		return err
	}

	var errs []error
	for _, name := range sortedTraderNames(m.traders) {
		if err := m.traders[name].resetErr; err != nil {
			errs = append(errs, fmt.Errorf("trader %q: %w", name, err))
		}
	}
	return errors.Join(errs...)
}
