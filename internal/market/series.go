// Package market stores the simulation's chronologically ordered stock
// price time-series and announces every change on its event hub.
package market

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/btree"

	"github.com/jabernat/EasyMoney/internal/dispatch"
	"github.com/jabernat/EasyMoney/internal/domain"
)

// Topics published by a Series.
const (
	TopicAddition = "addition"
	TopicCleared  = "cleared"
)

// Addition is the payload for TopicAddition.
type Addition struct {
	Time   time.Time
	Prices map[string]float64
}

// Cleared is the payload for TopicCleared.
type Cleared struct{}

// PricePoint is one timestamped snapshot of every tracked symbol's
// price per share.
type PricePoint struct {
	Time   time.Time
	Prices map[string]float64
}

// pointLess orders price points chronologically. Times within one
// series are unique, so no tie-break is needed.
func pointLess(a, b PricePoint) bool {
	return a.Time.Before(b.Time)
}

// Series is an append-only time-series of PricePoints. The symbol set
// is fixed by the first appended point and every later point must
// price exactly those symbols at a strictly later time. Clear discards
// everything atomically and always announces it, even when the series
// is already empty.
//
// A Series is owned by the simulation's market slot; traders only read
// it. All accessors return copies, never internal containers.
type Series struct {
	hub     *dispatch.Hub
	points  *btree.BTreeG[PricePoint]
	symbols map[string]struct{}
	last    time.Time
}

// NewSeries creates an empty price series.
func NewSeries() *Series {
	const degree = 32
	return &Series{
		hub:     dispatch.NewHub(TopicAddition, TopicCleared),
		points:  btree.NewG[PricePoint](degree, pointLess),
		symbols: make(map[string]struct{}),
	}
}

// Events returns the hub that announces additions and clears.
func (s *Series) Events() *dispatch.Hub {
	return s.hub
}

// Len returns the number of recorded price points.
func (s *Series) Len() int {
	return s.points.Len()
}

// Symbols returns the established symbol set in sorted order, or nil
// before the first addition.
func (s *Series) Symbols() []string {
	if len(s.symbols) == 0 {
		return nil
	}
	symbols := make([]string, 0, len(s.symbols))
	for symbol := range s.symbols {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	return symbols
}

// Append records a new price point and publishes TopicAddition. The
// first point establishes the symbol set and must contain at least one
// symbol; later points must price exactly the established symbols at a
// time strictly after the previous point. All prices must be positive.
// Validation failures leave the series unchanged and unwrap to
// domain.ErrValidation.
func (s *Series) Append(t time.Time, prices map[string]float64) error {
	for symbol, price := range prices {
		if !(price > 0) { // rejects zero, negatives and NaN
			return &InvalidSharePriceError{Symbol: symbol, Price: price}
		}
	}

	if len(s.symbols) == 0 {
		if len(prices) == 0 {
			return fmt.Errorf("%w: first price point must include at least one symbol", domain.ErrValidation)
		}
	} else {
		if !s.matchesSymbols(prices) {
			return &SymbolMismatchError{Want: s.Symbols(), Got: sortedKeys(prices)}
		}
		if !t.After(s.last) {
			return &NonconsecutiveTimeError{Time: t, Previous: s.last}
		}
	}

	stored := copyPrices(prices)
	s.points.ReplaceOrInsert(PricePoint{Time: t, Prices: stored})
	if len(s.symbols) == 0 {
		for symbol := range stored {
			s.symbols[symbol] = struct{}{}
		}
	}
	s.last = t

	_, err := s.hub.Publish(TopicAddition, Addition{Time: t, Prices: copyPrices(stored)})
	return err
}

// LatestPrice returns the most recent price per share for symbol. It
// fails with domain.ErrNoPrices on an empty series and with
// domain.ErrSymbolNotFound for a symbol outside the established set.
func (s *Series) LatestPrice(symbol string) (float64, error) {
	p, ok := s.points.Max()
	if !ok {
		return 0, fmt.Errorf("%w: series is empty", domain.ErrNoPrices)
	}
	price, ok := p.Prices[symbol]
	if !ok {
		return 0, fmt.Errorf("%w: %q", domain.ErrSymbolNotFound, symbol)
	}
	return price, nil
}

// PricesAsOf returns the prices from the most recent point whose time
// is at or before at, or the very latest point when at is nil. It
// returns nil when no point exists at or before at. The lookup is the
// B-tree's O(log n) floor search.
func (s *Series) PricesAsOf(at *time.Time) map[string]float64 {
	var found map[string]float64
	if at == nil {
		if p, ok := s.points.Max(); ok {
			found = p.Prices
		}
	} else {
		s.points.DescendLessOrEqual(PricePoint{Time: *at}, func(p PricePoint) bool {
			found = p.Prices
			return false
		})
	}
	if found == nil {
		return nil
	}
	return copyPrices(found)
}

// Points returns a chronological snapshot of the whole series. The
// returned slice and maps are copies; market changes do not invalidate
// them.
func (s *Series) Points() []PricePoint {
	points := make([]PricePoint, 0, s.points.Len())
	s.points.Ascend(func(p PricePoint) bool {
		points = append(points, PricePoint{Time: p.Time, Prices: copyPrices(p.Prices)})
		return true
	})
	return points
}

// Clear atomically discards all points and the established symbol set,
// then publishes TopicCleared. The event fires unconditionally, even
// on an already-empty series: downstream components rely on it to
// reset their own state every time a reset is requested.
func (s *Series) Clear() error {
	s.points.Clear(false)
	s.symbols = make(map[string]struct{})
	s.last = time.Time{}

	_, err := s.hub.Publish(TopicCleared, Cleared{})
	return err
}

func (s *Series) matchesSymbols(prices map[string]float64) bool {
	if len(prices) != len(s.symbols) {
		return false
	}
	for symbol := range prices {
		if _, ok := s.symbols[symbol]; !ok {
			return false
		}
	}
	return true
}

func copyPrices(prices map[string]float64) map[string]float64 {
	c := make(map[string]float64, len(prices))
	for symbol, price := range prices {
		c[symbol] = price
	}
	return c
}

func sortedKeys(prices map[string]float64) []string {
	keys := make([]string, 0, len(prices))
	for k := range prices {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
