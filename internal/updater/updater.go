// Package updater drives the simulation clock: while playing, it
// periodically pulls the next combined price point from the datasource
// and appends it to the model's market.
package updater

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jabernat/EasyMoney/internal/datasource"
	"github.com/jabernat/EasyMoney/internal/dispatch"
	"github.com/jabernat/EasyMoney/internal/sim"
)

// State is the updater's running status.
type State string

const (
	StatePaused  State = "paused"
	StatePlaying State = "playing"
	StateReset   State = "reset"
)

// Topics published by an Updater.
const (
	TopicPlaying = "playing"
	TopicPaused  = "paused"
	TopicReset   = "reset"
)

// Playing is the payload for TopicPlaying.
type Playing struct{}

// Paused is the payload for TopicPaused.
type Paused struct{}

// Reset is the payload for TopicReset.
type Reset struct{}

// Updater feeds datasource prices into the simulation at a fixed
// interval. New updaters start paused.
type Updater struct {
	hub      *dispatch.Hub
	source   *datasource.Datasource
	model    *sim.Model
	interval time.Duration
	log      *slog.Logger

	mu    sync.Mutex
	state State
}

// New creates a paused updater ticking at interval once started.
func New(source *datasource.Datasource, model *sim.Model, interval time.Duration, log *slog.Logger) *Updater {
	if log == nil {
		log = slog.Default()
	}
	return &Updater{
		hub:      dispatch.NewHub(TopicPlaying, TopicPaused, TopicReset),
		source:   source,
		model:    model,
		interval: interval,
		log:      log,
		state:    StatePaused,
	}
}

// Events returns the hub that announces state transitions.
func (u *Updater) Events() *dispatch.Hub {
	return u.hub
}

// State returns the updater's current running status.
func (u *Updater) State() State {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.state
}

// IsPlaying reports whether ticks currently feed the model.
func (u *Updater) IsPlaying() bool {
	return u.State() == StatePlaying
}

// Play resumes feeding datasource prices into the model. Publishes
// TopicPlaying unless already playing.
func (u *Updater) Play() {
	if !u.setState(StatePlaying) {
		return
	}
	_, _ = u.hub.Publish(TopicPlaying, Playing{})
}

// Pause stops feeding new price samples into the model. Publishes
// TopicPaused unless already paused.
func (u *Updater) Pause() {
	if !u.setState(StatePaused) {
		return
	}
	_, _ = u.hub.Publish(TopicPaused, Paused{})
}

// Reset pauses the flow, unconfirms the datasource, and resets the
// model's market and trader accounts. Publishes TopicReset. The
// returned error aggregates any per-trader account replacement
// failures; the reset itself always completes.
func (u *Updater) Reset() error {
	u.setState(StateReset)
	u.source.Unconfirm()
	err := u.model.Reset()
	_, _ = u.hub.Publish(TopicReset, Reset{})
	return err
}

// Start launches a background goroutine that ticks at the configured
// interval while playing. It stops when ctx is cancelled. The updater
// pauses itself when the datasource runs out of data.
func (u *Updater) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(u.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if !u.IsPlaying() {
					continue
				}
				advanced, err := u.Tick()
				if err != nil {
					u.log.Warn("price update failed", slog.String("error", err.Error()))
					continue
				}
				if !advanced {
					u.log.Info("datasource exhausted, pausing")
					u.Pause()
				}
			}
		}
	}()
}

// Tick feeds one datasource price point into the model's market. It
// reports whether a point was available.
func (u *Updater) Tick() (bool, error) {
	p, ok, err := u.source.NextPrices()
	if err != nil || !ok {
		return false, err
	}
	if err := u.model.Market().Append(p.Time, p.Prices); err != nil {
		return false, err
	}
	return true, nil
}

// setState transitions to next and reports whether the state actually
// changed.
func (u *Updater) setState(next State) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.state == next {
		return false
	}
	u.state = next
	return true
}
