package ledger

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/jabernat/EasyMoney/internal/dispatch"
	"github.com/jabernat/EasyMoney/internal/domain"
	"github.com/jabernat/EasyMoney/internal/market"
)

func marketWith(t *testing.T, prices map[string]float64) *market.Series {
	t.Helper()
	s := market.NewSeries()
	at := time.Date(2020, 3, 2, 9, 30, 0, 0, time.UTC)
	if err := s.Append(at, prices); err != nil {
		t.Fatalf("Append() error: %v", err)
	}
	return s
}

func TestAccount_Buy(t *testing.T) {
	m := marketWith(t, map[string]float64{"ABC": 10})
	a := NewAccount(m, 100, FlatFee(1))

	if err := a.Buy("ABC", 5); err != nil {
		t.Fatalf("Buy() error: %v", err)
	}
	if got := a.Balance(); got != 49 { // 100 - (5*10 + 1)
		t.Errorf("Balance() = %v, want 49", got)
	}
	if got := a.Holdings()["ABC"]; got != 5 {
		t.Errorf("Holdings()[ABC] = %v, want 5", got)
	}
}

func TestAccount_Buy_ExactBalance(t *testing.T) {
	m := marketWith(t, map[string]float64{"ABC": 10})
	a := NewAccount(m, 100, FlatFee(1))

	// 9.9 shares at 10 plus the fee costs exactly 100.
	if err := a.Buy("ABC", 9.9); err != nil {
		t.Fatalf("Buy() error: %v", err)
	}
	if got := a.Balance(); got != 0 {
		t.Errorf("Balance() = %v, want 0", got)
	}

	err := a.Buy("ABC", 0.1)
	var ibErr *InsufficientBalanceError
	if !errors.As(err, &ibErr) {
		t.Fatalf("Buy() with empty balance error = %v, want InsufficientBalanceError", err)
	}
	if !errors.Is(err, domain.ErrInsufficientBalance) {
		t.Errorf("error does not unwrap to ErrInsufficientBalance")
	}
	if got := a.Holdings()["ABC"]; got != 9.9 {
		t.Errorf("Holdings()[ABC] after failed buy = %v, want 9.9", got)
	}
}

func TestAccount_Buy_RoundingOvershootClamps(t *testing.T) {
	m := marketWith(t, map[string]float64{"ABC": 10})
	a := NewAccount(m, 100, nil)

	// Overshoots the balance by far less than the rounding tolerance, so
	// the whole balance is spent instead of rejecting.
	if err := a.Buy("ABC", 10+1e-9); err != nil {
		t.Fatalf("Buy() error: %v", err)
	}
	if got := a.Balance(); got != 0 {
		t.Errorf("Balance() = %v, want 0", got)
	}
	if got := a.Holdings()["ABC"]; math.Abs(got-10) > 1e-6 {
		t.Errorf("Holdings()[ABC] = %v, want ~10", got)
	}
}

func TestAccount_Buy_Rejections(t *testing.T) {
	m := marketWith(t, map[string]float64{"ABC": 10})
	a := NewAccount(m, 100, FlatFee(1))

	tests := []struct {
		name   string
		symbol string
		shares float64
		want   error
	}{
		{"insufficient balance", "ABC", 50, domain.ErrInsufficientBalance},
		{"zero shares", "ABC", 0, domain.ErrShareQuantity},
		{"negative shares", "ABC", -1, domain.ErrShareQuantity},
		{"unknown symbol", "XYZ", 1, domain.ErrSymbolNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := a.Buy(tt.symbol, tt.shares); !errors.Is(err, tt.want) {
				t.Errorf("Buy(%q, %v) error = %v, want %v", tt.symbol, tt.shares, err, tt.want)
			}
		})
	}
	if got := a.Balance(); got != 100 {
		t.Errorf("Balance() after rejected buys = %v, want 100", got)
	}
	if got := len(a.Holdings()); got != 0 {
		t.Errorf("Holdings() after rejected buys has %d entries, want 0", got)
	}
}

func TestAccount_Buy_EmptyMarket(t *testing.T) {
	a := NewAccount(market.NewSeries(), 100, nil)
	if err := a.Buy("ABC", 1); !errors.Is(err, domain.ErrNoPrices) {
		t.Errorf("Buy() on empty market error = %v, want ErrNoPrices", err)
	}
}

func TestAccount_Sell(t *testing.T) {
	m := marketWith(t, map[string]float64{"ABC": 10})
	a := NewAccount(m, 100, FlatFee(1))
	if err := a.Buy("ABC", 5); err != nil {
		t.Fatalf("Buy() error: %v", err)
	}

	if err := a.Sell("ABC", 2); err != nil {
		t.Fatalf("Sell() error: %v", err)
	}
	if got := a.Balance(); got != 68 { // 49 + (2*10 - 1)
		t.Errorf("Balance() = %v, want 68", got)
	}
	if got := a.Holdings()["ABC"]; got != 3 {
		t.Errorf("Holdings()[ABC] = %v, want 3", got)
	}
}

func TestAccount_Sell_WholePositionRemovesHolding(t *testing.T) {
	m := marketWith(t, map[string]float64{"ABC": 10})
	a := NewAccount(m, 100, nil)
	if err := a.Buy("ABC", 5); err != nil {
		t.Fatalf("Buy() error: %v", err)
	}

	// Marginally more than owned clamps to the whole position.
	if err := a.Sell("ABC", 5+1e-9); err != nil {
		t.Fatalf("Sell() error: %v", err)
	}
	if _, ok := a.Holdings()["ABC"]; ok {
		t.Error("Holdings() still contains ABC after selling the whole position")
	}
	if got := a.Balance(); got != 100 {
		t.Errorf("Balance() = %v, want 100", got)
	}
}

func TestAccount_Sell_Rejections(t *testing.T) {
	m := marketWith(t, map[string]float64{"ABC": 10})
	a := NewAccount(m, 100, FlatFee(1))
	if err := a.Buy("ABC", 1); err != nil {
		t.Fatalf("Buy() error: %v", err)
	}

	if err := a.Sell("ABC", 3); !errors.Is(err, domain.ErrInsufficientShares) {
		t.Errorf("Sell() beyond position error = %v, want ErrInsufficientShares", err)
	}
	if err := a.Sell("ABC", 0); !errors.Is(err, domain.ErrShareQuantity) {
		t.Errorf("Sell(0) error = %v, want ErrShareQuantity", err)
	}
	if err := a.Sell("XYZ", 1); !errors.Is(err, domain.ErrInsufficientShares) {
		t.Errorf("Sell() of unowned symbol error = %v, want ErrInsufficientShares", err)
	}
}

func TestAccount_Sell_FeeExceedsProceeds(t *testing.T) {
	m := marketWith(t, map[string]float64{"ABC": 10})
	a := NewAccount(m, 101, FlatFee(50))

	// Buy 5 shares: cost 5*10+50 = 100, leaving balance 1.
	if err := a.Buy("ABC", 5); err != nil {
		t.Fatalf("Buy() error: %v", err)
	}

	// Selling a sliver nets 0.1*10-50 = -49, which the balance of 1
	// cannot absorb.
	err := a.Sell("ABC", 0.1)
	if !errors.Is(err, domain.ErrInsufficientBalance) {
		t.Fatalf("Sell() error = %v, want ErrInsufficientBalance", err)
	}
	if got := a.Holdings()["ABC"]; got != 5 {
		t.Errorf("Holdings()[ABC] after rejected sell = %v, want 5", got)
	}
}

func TestAccount_Freeze(t *testing.T) {
	m := marketWith(t, map[string]float64{"ABC": 10})
	a := NewAccount(m, 100, nil)

	var frozen []Frozen
	_, _ = a.Events().Subscribe(TopicFrozen, func(e dispatch.Event) bool {
		frozen = append(frozen, e.Payload.(Frozen))
		return true
	})

	cause := errors.New("strategy blew up")
	a.Freeze("strategy failure", cause)
	if !a.IsFrozen() {
		t.Fatal("IsFrozen() = false after Freeze()")
	}
	if err := a.Buy("ABC", 1); !errors.Is(err, domain.ErrAccountFrozen) {
		t.Errorf("Buy() on frozen account error = %v, want ErrAccountFrozen", err)
	}
	if err := a.Sell("ABC", 1); !errors.Is(err, domain.ErrAccountFrozen) {
		t.Errorf("Sell() on frozen account error = %v, want ErrAccountFrozen", err)
	}

	// Freezing again is a no-op and publishes nothing.
	a.Freeze("again", nil)
	if len(frozen) != 1 {
		t.Fatalf("frozen events = %d, want 1", len(frozen))
	}
	if frozen[0].Reason != "strategy failure" || !errors.Is(frozen[0].Cause, cause) {
		t.Errorf("frozen payload = %+v, want original reason and cause", frozen[0])
	}
}

func TestAccount_TradeEvents(t *testing.T) {
	m := marketWith(t, map[string]float64{"ABC": 10})
	a := NewAccount(m, 100, FlatFee(1))

	var bought []Bought
	var sold []Sold
	_, _ = a.Events().Subscribe(TopicBought, func(e dispatch.Event) bool {
		bought = append(bought, e.Payload.(Bought))
		return true
	})
	_, _ = a.Events().Subscribe(TopicSold, func(e dispatch.Event) bool {
		sold = append(sold, e.Payload.(Sold))
		return true
	})

	if err := a.Buy("ABC", 2); err != nil {
		t.Fatalf("Buy() error: %v", err)
	}
	if err := a.Sell("ABC", 2); err != nil {
		t.Fatalf("Sell() error: %v", err)
	}

	if len(bought) != 1 || len(sold) != 1 {
		t.Fatalf("events = %d bought, %d sold, want 1 each", len(bought), len(sold))
	}
	if bought[0].Symbol != "ABC" || bought[0].Shares != 2 || bought[0].BalanceChange != -21 {
		t.Errorf("bought payload = %+v, want ABC, 2 shares, -21", bought[0])
	}
	if sold[0].Symbol != "ABC" || sold[0].Shares != 2 || sold[0].BalanceChange != 19 {
		t.Errorf("sold payload = %+v, want ABC, 2 shares, +19", sold[0])
	}
	if bought[0].TradeID == "" || bought[0].TradeID == sold[0].TradeID {
		t.Error("trade IDs should be unique and non-empty")
	}
}

func TestAccount_LiveFeeSource(t *testing.T) {
	m := marketWith(t, map[string]float64{"ABC": 10})
	fee := &adjustableFee{fee: 1}
	a := NewAccount(m, 100, fee)

	if err := a.Buy("ABC", 1); err != nil {
		t.Fatalf("Buy() error: %v", err)
	}
	fee.fee = 5
	if err := a.Buy("ABC", 1); err != nil {
		t.Fatalf("Buy() error: %v", err)
	}
	if got := a.Balance(); got != 74 { // 100 - 11 - 15
		t.Errorf("Balance() = %v, want 74", got)
	}
}

type adjustableFee struct{ fee float64 }

func (f *adjustableFee) TradingFee() float64 { return f.fee }

func TestAccount_Statistics(t *testing.T) {
	m := marketWith(t, map[string]float64{"ABC": 10})
	a := NewAccount(m, 100, FlatFee(1))

	stats, err := a.Statistics()
	if err != nil {
		t.Fatalf("Statistics() error: %v", err)
	}
	if stats.NetProfit != 0 {
		t.Errorf("NetProfit before trading = %v, want 0", stats.NetProfit)
	}

	if err := a.Buy("ABC", 5); err != nil {
		t.Fatalf("Buy() error: %v", err)
	}
	// Balance 49, position worth 5*10 less one fee to liquidate.
	stats, err = a.Statistics()
	if err != nil {
		t.Fatalf("Statistics() error: %v", err)
	}
	if stats.NetProfit != -2 {
		t.Errorf("NetProfit after buy = %v, want -2", stats.NetProfit)
	}

	// A price rise shows up as unrealized profit.
	if err := m.Append(time.Date(2020, 3, 2, 9, 31, 0, 0, time.UTC), map[string]float64{"ABC": 12}); err != nil {
		t.Fatalf("Append() error: %v", err)
	}
	stats, err = a.Statistics()
	if err != nil {
		t.Fatalf("Statistics() error: %v", err)
	}
	if stats.NetProfit != 8 { // 49 + (5*12 - 1) - 100
		t.Errorf("NetProfit after price rise = %v, want 8", stats.NetProfit)
	}
}
