// Package datasource collates archived per-symbol price files into the
// chronological combined price points the market's Append operation
// expects. Symbols are added and removed while unconfirmed; confirming
// freezes the symbol set, merges the samples, and opens the cursor
// that NextPrices advances.
package datasource

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/jabernat/EasyMoney/internal/dispatch"
	"github.com/jabernat/EasyMoney/internal/domain"
	"github.com/jabernat/EasyMoney/internal/market"
)

// Topics published by a Datasource.
const (
	TopicSymbolAdded   = "symbol_added"
	TopicSymbolRemoved = "symbol_removed"
	TopicConfirmed     = "confirmed"
	TopicUnconfirmed   = "unconfirmed"
)

// SymbolAdded is the payload for TopicSymbolAdded.
type SymbolAdded struct {
	Symbol string
}

// SymbolRemoved is the payload for TopicSymbolRemoved.
type SymbolRemoved struct {
	Symbol string
}

// Confirmed is the payload for TopicConfirmed.
type Confirmed struct{}

// Unconfirmed is the payload for TopicUnconfirmed.
type Unconfirmed struct{}

var (
	// ErrConfirmed is returned when configuring a datasource after it
	// has been confirmed.
	ErrConfirmed = errors.New("datasource already confirmed")
	// ErrUnconfirmed is returned when reading price data before the
	// datasource is confirmed.
	ErrUnconfirmed = errors.New("datasource not confirmed")
	// ErrNoSymbols is returned when confirming an empty datasource.
	ErrNoSymbols = errors.New("datasource has no symbols")
)

// Sample is one symbol's price at one time.
type Sample struct {
	Time  time.Time
	Price float64
}

// Datasource accumulates per-symbol price samples and serves them as
// combined chronological price points once confirmed.
type Datasource struct {
	hub     *dispatch.Hub
	samples map[string][]Sample

	confirmed bool
	combined  []market.PricePoint
	cursor    int
}

// New creates an unconfirmed datasource with no symbols.
func New() *Datasource {
	return &Datasource{
		hub:     dispatch.NewHub(TopicSymbolAdded, TopicSymbolRemoved, TopicConfirmed, TopicUnconfirmed),
		samples: make(map[string][]Sample),
	}
}

// Events returns the hub that announces datasource lifecycle changes.
func (d *Datasource) Events() *dispatch.Hub {
	return d.hub
}

// Symbols returns the added symbols in sorted order.
func (d *Datasource) Symbols() []string {
	symbols := make([]string, 0, len(d.samples))
	for symbol := range d.samples {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	return symbols
}

// AddFile loads an archived Alpha Vantage JSON file and adds its
// symbol's data, returning the symbol. Data for a previously added
// symbol is replaced.
func (d *Datasource) AddFile(path string) (string, error) {
	if d.confirmed {
		return "", ErrConfirmed
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading price archive: %w", err)
	}
	symbol, samples, err := parseAlphaVantage(data)
	if err != nil {
		return "", fmt.Errorf("parsing price archive %s: %w", path, err)
	}
	if err := d.AddSymbolData(symbol, samples); err != nil {
		return "", err
	}
	return symbol, nil
}

// AddSymbolData adds (or replaces) one symbol's chronological samples.
// Publishes TopicSymbolAdded on success.
func (d *Datasource) AddSymbolData(symbol string, samples []Sample) error {
	if d.confirmed {
		return ErrConfirmed
	}
	if !domain.ValidSymbol(symbol) {
		return fmt.Errorf("%w: malformed symbol %q", domain.ErrValidation, symbol)
	}
	if len(samples) == 0 {
		return fmt.Errorf("%w: symbol %q has no samples", domain.ErrValidation, symbol)
	}
	for _, s := range samples {
		if !(s.Price > 0) {
			return fmt.Errorf("%w: symbol %q has non-positive price %v", domain.ErrValidation, symbol, s.Price)
		}
	}

	sorted := make([]Sample, len(samples))
	copy(sorted, samples)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Time.Before(sorted[j].Time)
	})
	d.samples[symbol] = sorted

	_, _ = d.hub.Publish(TopicSymbolAdded, SymbolAdded{Symbol: symbol})
	return nil
}

// RemoveSymbol drops a symbol's data while unconfirmed. Removing an
// unknown symbol is a no-op. Publishes TopicSymbolRemoved on success.
func (d *Datasource) RemoveSymbol(symbol string) error {
	if d.confirmed {
		return ErrConfirmed
	}
	if _, ok := d.samples[symbol]; !ok {
		return nil
	}
	delete(d.samples, symbol)
	_, _ = d.hub.Publish(TopicSymbolRemoved, SymbolRemoved{Symbol: symbol})
	return nil
}

// CanConfirm reports whether at least one symbol has been added.
func (d *Datasource) CanConfirm() bool {
	return len(d.samples) > 0
}

// IsConfirmed reports whether the datasource's data is ready to read.
func (d *Datasource) IsConfirmed() bool {
	return d.confirmed
}

// Confirm freezes the symbol set, combines all samples into
// chronological price points, and positions the cursor at the first
// point where every symbol has a price. Confirming twice is a no-op;
// confirming with no symbols fails with ErrNoSymbols. Publishes
// TopicConfirmed on success.
func (d *Datasource) Confirm() error {
	if d.confirmed {
		return nil
	}
	if len(d.samples) == 0 {
		return ErrNoSymbols
	}

	d.combined = d.combine()
	d.cursor = d.findStart()
	d.confirmed = true

	_, _ = d.hub.Publish(TopicConfirmed, Confirmed{})
	return nil
}

// Unconfirm re-enables symbol configuration and discards the combined
// data. Unconfirming an unconfirmed datasource is a no-op. Publishes
// TopicUnconfirmed on success.
func (d *Datasource) Unconfirm() {
	if !d.confirmed {
		return
	}
	d.confirmed = false
	d.combined = nil
	d.cursor = 0

	_, _ = d.hub.Publish(TopicUnconfirmed, Unconfirmed{})
}

// NextPrices returns the next combined price point and advances the
// cursor. ok is false once the data is exhausted. Fails with
// ErrUnconfirmed before Confirm.
func (d *Datasource) NextPrices() (p market.PricePoint, ok bool, err error) {
	if !d.confirmed {
		return market.PricePoint{}, false, ErrUnconfirmed
	}
	if d.cursor >= len(d.combined) {
		return market.PricePoint{}, false, nil
	}
	next := d.combined[d.cursor]
	d.cursor++

	prices := make(map[string]float64, len(next.Prices))
	for symbol, price := range next.Prices {
		prices[symbol] = price
	}
	return market.PricePoint{Time: next.Time, Prices: prices}, true, nil
}

// combine merges every symbol's samples into one chronological
// sequence. Times missing a symbol's sample carry the symbol's most
// recent earlier price forward; times before a symbol's first sample
// simply lack that symbol.
func (d *Datasource) combine() []market.PricePoint {
	timeSet := make(map[time.Time]struct{})
	for _, samples := range d.samples {
		for _, s := range samples {
			timeSet[s.Time] = struct{}{}
		}
	}
	times := make([]time.Time, 0, len(timeSet))
	for t := range timeSet {
		times = append(times, t)
	}
	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })

	points := make([]market.PricePoint, len(times))
	for i, t := range times {
		points[i] = market.PricePoint{Time: t, Prices: make(map[string]float64, len(d.samples))}
	}
	for symbol, samples := range d.samples {
		i := 0
		var last float64
		have := false
		for pi, t := range times {
			for i < len(samples) && !samples[i].Time.After(t) {
				last = samples[i].Price
				have = true
				i++
			}
			if have {
				points[pi].Prices[symbol] = last
			}
		}
	}
	return points
}

// findStart returns the index of the first combined point that prices
// every symbol, or the end of the data when none does.
func (d *Datasource) findStart() int {
	for i, p := range d.combined {
		if len(p.Prices) == len(d.samples) {
			return i
		}
	}
	return len(d.combined)
}
