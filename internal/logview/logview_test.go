package logview

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/jabernat/EasyMoney/internal/sim"
)

// failOnce errors on its first decision, freezing the trader's account.
type failOnce struct{}

func (failOnce) Name() string                  { return "FailOnce" }
func (failOnce) DefaultSettings() sim.Settings { return sim.Settings{} }
func (failOnce) New(sim.Settings) (sim.Strategy, error) {
	return failStrategy{}, nil
}

type failStrategy struct{}

func (failStrategy) Decide(*sim.Trader) error { return errors.New("no thanks") }

func TestView_WatchModel(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	m := sim.NewModel()
	m.RegisterAlgorithm(failOnce{})

	v := New(logger)
	v.WatchModel(m)

	if _, err := m.AddTrader("alice", 100, 0, "FailOnce", nil); err != nil {
		t.Fatalf("AddTrader() error: %v", err)
	}
	at := time.Date(2020, 3, 2, 9, 30, 0, 0, time.UTC)
	if err := m.Market().Append(at, map[string]float64{"ABC": 10}); err != nil {
		t.Fatalf("Append() error: %v", err)
	}

	out := buf.String()
	for _, want := range []string{
		"trader added",
		"account created",
		"account frozen",
		"no thanks",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}
}
