// Package logview is a read-only observer that narrates the simulation
// through structured logs. It subscribes to the hubs of the model, its
// traders, their accounts, the datasource, and the updater, and never
// mutates any of them.
package logview

import (
	"log/slog"

	"github.com/jabernat/EasyMoney/internal/datasource"
	"github.com/jabernat/EasyMoney/internal/dispatch"
	"github.com/jabernat/EasyMoney/internal/ledger"
	"github.com/jabernat/EasyMoney/internal/market"
	"github.com/jabernat/EasyMoney/internal/sim"
	"github.com/jabernat/EasyMoney/internal/updater"
)

// View logs simulation events as they happen.
type View struct {
	log *slog.Logger
}

// New creates a view logging through log. A nil log uses the default
// logger.
func New(log *slog.Logger) *View {
	if log == nil {
		log = slog.Default()
	}
	return &View{log: log}
}

// WatchModel observes the model's trader registry, its market, and
// every current and future trader.
func (v *View) WatchModel(m *sim.Model) {
	_, _ = m.Events().Subscribe(sim.TopicTraderAdded, func(e dispatch.Event) bool {
		p := e.Payload.(sim.TraderAdded)
		v.log.Info("trader added",
			slog.String("trader", p.Trader.Name()),
			slog.String("algorithm", p.Trader.AlgorithmName()))
		v.WatchTrader(p.Trader)
		return true
	})
	_, _ = m.Events().Subscribe(sim.TopicTraderRemoved, func(e dispatch.Event) bool {
		p := e.Payload.(sim.TraderRemoved)
		v.log.Info("trader removed", slog.String("trader", p.Trader.Name()))
		return true
	})
	_, _ = m.Events().Subscribe(sim.TopicAlgorithmAdded, func(e dispatch.Event) bool {
		p := e.Payload.(sim.AlgorithmAdded)
		v.log.Info("algorithm registered", slog.String("algorithm", p.Name))
		return true
	})

	_, _ = m.Market().Events().Subscribe(market.TopicAddition, func(e dispatch.Event) bool {
		p := e.Payload.(market.Addition)
		v.log.Debug("prices added",
			slog.Time("time", p.Time),
			slog.Int("symbols", len(p.Prices)))
		return true
	})
	_, _ = m.Market().Events().Subscribe(market.TopicCleared, func(dispatch.Event) bool {
		v.log.Info("market cleared")
		return true
	})

	for _, tr := range m.Traders() {
		v.WatchTrader(tr)
	}
}

// WatchTrader observes one trader and every account it creates.
func (v *View) WatchTrader(tr *sim.Trader) {
	_, _ = tr.Events().Subscribe(sim.TopicAccountCreated, func(e dispatch.Event) bool {
		p := e.Payload.(sim.AccountCreated)
		v.log.Info("account created",
			slog.String("trader", p.Trader.Name()),
			slog.Float64("balance", p.Account.Balance()))
		v.watchAccount(p.Trader.Name(), p.Account)
		return true
	})
	// The trader may already have an account by the time the view
	// attaches (AddTrader creates one before announcing the trader), so
	// report and watch it as if its creation had just been seen.
	if account := tr.Account(); account != nil {
		v.log.Info("account created",
			slog.String("trader", tr.Name()),
			slog.Float64("balance", account.Balance()))
		v.watchAccount(tr.Name(), account)
	}
}

func (v *View) watchAccount(trader string, account *ledger.Account) {
	_, _ = account.Events().Subscribe(ledger.TopicBought, func(e dispatch.Event) bool {
		p := e.Payload.(ledger.Bought)
		v.log.Info("bought",
			slog.String("trader", trader),
			slog.String("symbol", p.Symbol),
			slog.Float64("shares", p.Shares),
			slog.Float64("cost", -p.BalanceChange))
		return true
	})
	_, _ = account.Events().Subscribe(ledger.TopicSold, func(e dispatch.Event) bool {
		p := e.Payload.(ledger.Sold)
		v.log.Info("sold",
			slog.String("trader", trader),
			slog.String("symbol", p.Symbol),
			slog.Float64("shares", p.Shares),
			slog.Float64("proceeds", p.BalanceChange))
		return true
	})
	_, _ = account.Events().Subscribe(ledger.TopicFrozen, func(e dispatch.Event) bool {
		p := e.Payload.(ledger.Frozen)
		attrs := []any{
			slog.String("trader", trader),
			slog.String("reason", p.Reason),
		}
		if p.Cause != nil {
			attrs = append(attrs, slog.String("error", p.Cause.Error()))
		}
		v.log.Warn("account frozen", attrs...)
		return true
	})
}

// WatchDatasource observes datasource lifecycle changes.
func (v *View) WatchDatasource(d *datasource.Datasource) {
	_, _ = d.Events().Subscribe(datasource.TopicSymbolAdded, func(e dispatch.Event) bool {
		p := e.Payload.(datasource.SymbolAdded)
		v.log.Info("symbol added", slog.String("symbol", p.Symbol))
		return true
	})
	_, _ = d.Events().Subscribe(datasource.TopicSymbolRemoved, func(e dispatch.Event) bool {
		p := e.Payload.(datasource.SymbolRemoved)
		v.log.Info("symbol removed", slog.String("symbol", p.Symbol))
		return true
	})
	_, _ = d.Events().Subscribe(datasource.TopicConfirmed, func(dispatch.Event) bool {
		v.log.Info("datasource confirmed")
		return true
	})
	_, _ = d.Events().Subscribe(datasource.TopicUnconfirmed, func(dispatch.Event) bool {
		v.log.Info("datasource unconfirmed")
		return true
	})
}

// WatchUpdater observes updater state transitions.
func (v *View) WatchUpdater(u *updater.Updater) {
	_, _ = u.Events().Subscribe(updater.TopicPlaying, func(dispatch.Event) bool {
		v.log.Info("simulation playing")
		return true
	})
	_, _ = u.Events().Subscribe(updater.TopicPaused, func(dispatch.Event) bool {
		v.log.Info("simulation paused")
		return true
	})
	_, _ = u.Events().Subscribe(updater.TopicReset, func(dispatch.Event) bool {
		v.log.Info("simulation reset")
		return true
	})
}
