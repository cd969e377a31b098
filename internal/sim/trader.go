package sim

import (
	"fmt"
	"sort"

	"github.com/jabernat/EasyMoney/internal/dispatch"
	"github.com/jabernat/EasyMoney/internal/domain"
	"github.com/jabernat/EasyMoney/internal/ledger"
	"github.com/jabernat/EasyMoney/internal/market"
)

// Topics published by a Trader.
const (
	TopicAccountCreated      = "account_created"
	TopicInitialFundsChanged = "initial_funds_changed"
	TopicTradingFeeChanged   = "trading_fee_changed"
	TopicSettingsChanged     = "settings_changed"
)

// AccountCreated is the payload for TopicAccountCreated.
type AccountCreated struct {
	Trader  *Trader
	Account *ledger.Account
}

// InitialFundsChanged is the payload for TopicInitialFundsChanged.
type InitialFundsChanged struct {
	Trader       *Trader
	InitialFunds float64
}

// TradingFeeChanged is the payload for TopicTradingFeeChanged.
type TradingFeeChanged struct {
	Trader     *Trader
	TradingFee float64
}

// SettingsChanged is the payload for TopicSettingsChanged.
type SettingsChanged struct {
	Trader   *Trader
	Settings Settings
}

// Settings holds an algorithm's free-form configuration values before
// the algorithm decodes them into its own typed form.
type Settings map[string]any

func (s Settings) copy() Settings {
	c := make(Settings, len(s))
	for k, v := range s {
		c[k] = v
	}
	return c
}

// Strategy is one trader's live decision-maker, created by an
// Algorithm from validated settings. Decide runs on every market price
// addition and may buy and sell through the trader's account.
type Strategy interface {
	Decide(tr *Trader) error
}

// resettable is implemented by strategies that carry state derived
// from market history, so it can be discarded when the market clears.
type resettable interface {
	Reset()
}

// Algorithm is a named factory for Strategy instances. New validates
// the supplied settings and fails on unknown keys or bad values.
type Algorithm interface {
	Name() string
	DefaultSettings() Settings
	New(settings Settings) (Strategy, error)
}

// Trader is one participant in the simulation. Its settings (initial
// funds, trading fee, algorithm configuration) persist across market
// resets, while its account is replaced on every reset: the trader
// subscribes to the market's "cleared" topic and responds by creating
// a fresh account, which is also how a frozen trader re-enters the
// simulation.
type Trader struct {
	hub       *dispatch.Hub
	market    *market.Series
	name      string
	algorithm Algorithm
	strategy  Strategy
	settings  Settings

	initialFunds float64
	tradingFee   float64

	account     *ledger.Account
	frozenSub   dispatch.Subscription
	additionSub dispatch.Subscription
	clearedSub  dispatch.Subscription
	watchesAdds bool

	// resetErr records a failure while replacing the account during a
	// market clear; Model.Reset collects it after the fan-out.
	resetErr error
}

func newTrader(m *market.Series, name string, initialFunds, tradingFee float64, alg Algorithm, settings Settings) (*Trader, error) {
	if initialFunds <= 0 {
		return nil, fmt.Errorf("%w: initial funds %v must be positive", domain.ErrInitialFunds, initialFunds)
	}
	if tradingFee < 0 {
		return nil, fmt.Errorf("%w: trading fee %v cannot be negative", domain.ErrTradingFee, tradingFee)
	}
	if settings == nil {
		settings = alg.DefaultSettings()
	}
	strategy, err := alg.New(settings)
	if err != nil {
		return nil, err
	}

	t := &Trader{
		hub: dispatch.NewHub(
			TopicAccountCreated,
			TopicInitialFundsChanged,
			TopicTradingFeeChanged,
			TopicSettingsChanged,
		),
		market:       m,
		name:         name,
		algorithm:    alg,
		strategy:     strategy,
		settings:     settings.copy(),
		initialFunds: initialFunds,
		tradingFee:   tradingFee,
	}
	t.clearedSub, _ = m.Events().Subscribe(market.TopicCleared, t.onCleared)
	return t, nil
}

// Events returns the hub that announces trader state changes.
func (t *Trader) Events() *dispatch.Hub {
	return t.hub
}

// Name returns the trader's name, unique within its Model.
func (t *Trader) Name() string {
	return t.name
}

// AlgorithmName returns the name of the trading algorithm driving this
// trader's decisions.
func (t *Trader) AlgorithmName() string {
	return t.algorithm.Name()
}

// Market returns the price series this trader reacts to.
func (t *Trader) Market() *market.Series {
	return t.market
}

// Account returns the trader's active account, or nil before the first
// CreateAccount.
func (t *Trader) Account() *ledger.Account {
	return t.account
}

// InitialFunds returns the positive balance every new account starts
// with.
func (t *Trader) InitialFunds() float64 {
	return t.initialFunds
}

// SetInitialFunds configures the starting balance of future accounts.
// The current account is unaffected. Publishes
// TopicInitialFundsChanged unless the value is unchanged.
func (t *Trader) SetInitialFunds(funds float64) error {
	if funds == t.initialFunds {
		return nil
	}
	if funds <= 0 {
		return fmt.Errorf("%w: initial funds %v must be positive", domain.ErrInitialFunds, funds)
	}
	t.initialFunds = funds
	_, _ = t.hub.Publish(TopicInitialFundsChanged, InitialFundsChanged{Trader: t, InitialFunds: funds})
	return nil
}

// TradingFee returns the fee paid on every buy or sell. It implements
// ledger.FeeSource, so fee changes apply to the live account
// immediately.
func (t *Trader) TradingFee() float64 {
	return t.tradingFee
}

// SetTradingFee changes the per-trade fee. Publishes
// TopicTradingFeeChanged unless the value is unchanged.
func (t *Trader) SetTradingFee(fee float64) error {
	if fee == t.tradingFee {
		return nil
	}
	if fee < 0 {
		return fmt.Errorf("%w: trading fee %v cannot be negative", domain.ErrTradingFee, fee)
	}
	t.tradingFee = fee
	_, _ = t.hub.Publish(TopicTradingFeeChanged, TradingFeeChanged{Trader: t, TradingFee: fee})
	return nil
}

// Settings returns a copy of the trader's algorithm settings.
func (t *Trader) Settings() Settings {
	return t.settings.copy()
}

// SetSettings replaces the algorithm settings, validating them through
// the algorithm's factory and swapping in the rebuilt strategy.
// Publishes TopicSettingsChanged on success.
func (t *Trader) SetSettings(settings Settings) error {
	if settings == nil {
		settings = t.algorithm.DefaultSettings()
	}
	strategy, err := t.algorithm.New(settings)
	if err != nil {
		return err
	}
	t.strategy = strategy
	t.settings = settings.copy()
	_, _ = t.hub.Publish(TopicSettingsChanged, SettingsChanged{Trader: t, Settings: t.settings.copy()})
	return nil
}

// CreateAccount discards any previous account and creates a new one
// holding the trader's configured initial funds. The old account is
// never mutated again; stale references to it stay readable but inert.
// The trader (re)subscribes to market additions, which also revives a
// trader whose previous account froze. Publishes TopicAccountCreated.
func (t *Trader) CreateAccount() *ledger.Account {
	if t.account != nil {
		// Stop listening to the discarded account; a freeze on a stale
		// account must not detach the trader from the market.
		t.account.Events().Unsubscribe(t.frozenSub)
	}
	t.account = ledger.NewAccount(t.market, t.initialFunds, t)
	t.frozenSub, _ = t.account.Events().Subscribe(ledger.TopicFrozen, t.onFrozen)
	if !t.watchesAdds {
		t.additionSub, _ = t.market.Events().Subscribe(market.TopicAddition, t.onAddition)
		t.watchesAdds = true
	}
	if r, ok := t.strategy.(resettable); ok {
		r.Reset()
	}
	_, _ = t.hub.Publish(TopicAccountCreated, AccountCreated{Trader: t, Account: t.account})
	return t.account
}

// detach removes the trader's market subscriptions when it is removed
// from the model.
func (t *Trader) detach() {
	t.market.Events().Unsubscribe(t.clearedSub)
	if t.watchesAdds {
		t.market.Events().Unsubscribe(t.additionSub)
		t.watchesAdds = false
	}
}

// onAddition reacts to a new market price point by running the
// strategy. A strategy error or panic never propagates into the shared
// dispatch loop: it freezes this trader's account instead, so one
// misbehaving strategy only disables itself.
func (t *Trader) onAddition(dispatch.Event) bool {
	if t.account == nil || t.account.IsFrozen() {
		return true
	}
	t.decide()
	return true
}

func (t *Trader) decide() {
	defer func() {
		if r := recover(); r != nil {
			t.account.Freeze("trading strategy panicked while deciding",
				fmt.Errorf("strategy panic: %v", r))
		}
	}()
	if err := t.strategy.Decide(t); err != nil {
		t.account.Freeze("trading strategy failed while deciding", err)
	}
}

// onFrozen stops the trader from reacting to further market additions
// once its account freezes. The unsubscribe is deferred by the hub
// when a freeze happens mid-dispatch, so the current round finishes
// cleanly.
func (t *Trader) onFrozen(dispatch.Event) bool {
	if t.watchesAdds {
		t.market.Events().Unsubscribe(t.additionSub)
		t.watchesAdds = false
	}
	return true
}

// onCleared replaces the account when the market resets. A failure is
// recorded rather than propagated so sibling traders still get their
// replacements; Model.Reset aggregates the failures afterwards.
func (t *Trader) onCleared(dispatch.Event) bool {
	t.resetErr = nil
	t.replaceAccount()
	return true
}

func (t *Trader) replaceAccount() {
	defer func() {
		if r := recover(); r != nil {
			t.resetErr = fmt.Errorf("account replacement panicked: %v", r)
		}
	}()
	t.CreateAccount()
}

func sortedTraderNames(traders map[string]*Trader) []string {
	names := make([]string, 0, len(traders))
	for name := range traders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
