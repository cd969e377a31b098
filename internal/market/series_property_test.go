package market

import (
	"testing"
	"time"

	"pgregory.net/rapid"
)

func TestProperty_SeriesTimesStrictlyIncrease(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := NewSeries()
		symbols := rapid.SliceOfNDistinct(
			rapid.StringMatching(`[A-Z][A-Z0-9]{0,4}`), 1, 4, rapid.ID[string],
		).Draw(t, "symbols")

		base := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
		offsets := rapid.SliceOfN(rapid.Int64Range(-3600, 3600), 1, 30).Draw(t, "offsets")

		cursor := base
		appended := 0
		for _, off := range offsets {
			at := cursor.Add(time.Duration(off) * time.Second)
			prices := make(map[string]float64, len(symbols))
			for _, symbol := range symbols {
				prices[symbol] = rapid.Float64Range(0.01, 10_000).Draw(t, "price")
			}

			err := s.Append(at, prices)
			if appended > 0 && !at.After(cursor) {
				if err == nil {
					t.Fatalf("Append(%v) after %v succeeded, want rejection", at, cursor)
				}
				continue
			}
			if err != nil {
				t.Fatalf("Append(%v) error: %v", at, err)
			}
			cursor = at
			appended++
		}

		points := s.Points()
		if len(points) != appended {
			t.Fatalf("Points() length = %d, want %d", len(points), appended)
		}
		for i := 1; i < len(points); i++ {
			if !points[i-1].Time.Before(points[i].Time) {
				t.Fatalf("points out of order: %v then %v", points[i-1].Time, points[i].Time)
			}
		}
	})
}

func TestProperty_PricesAsOfIsTightestFloor(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := NewSeries()
		base := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
		n := rapid.IntRange(1, 20).Draw(t, "n")

		times := make([]time.Time, n)
		cursor := base
		for i := 0; i < n; i++ {
			cursor = cursor.Add(time.Duration(rapid.Int64Range(1, 3600).Draw(t, "step")) * time.Second)
			times[i] = cursor
			if err := s.Append(cursor, map[string]float64{"ABC": float64(i + 1)}); err != nil {
				t.Fatalf("Append() error: %v", err)
			}
		}

		// Query at a random offset; the answer must be the latest point
		// at or before the query time.
		query := base.Add(time.Duration(rapid.Int64Range(0, int64(cursor.Sub(base)/time.Second)+100).Draw(t, "query")) * time.Second)
		want := -1
		for i, at := range times {
			if !at.After(query) {
				want = i
			}
		}

		got := s.PricesAsOf(&query)
		if want < 0 {
			if got != nil {
				t.Fatalf("PricesAsOf(%v) = %v, want nil before first point", query, got)
			}
			return
		}
		if got == nil || got["ABC"] != float64(want+1) {
			t.Fatalf("PricesAsOf(%v) = %v, want point %d", query, got, want)
		}
	})
}
