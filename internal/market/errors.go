package market

import (
	"fmt"
	"strings"
	"time"

	"github.com/jabernat/EasyMoney/internal/domain"
)

// InvalidSharePriceError reports an attempt to record a non-positive
// share price.
type InvalidSharePriceError struct {
	Symbol string
	Price  float64
}

func (e *InvalidSharePriceError) Error() string {
	return fmt.Sprintf("stock %q share price %v must be positive", e.Symbol, e.Price)
}

func (e *InvalidSharePriceError) Unwrap() error { return domain.ErrValidation }

// NonconsecutiveTimeError reports a price point whose time does not
// strictly follow the previously recorded one. Duplicate times count.
type NonconsecutiveTimeError struct {
	Time     time.Time
	Previous time.Time
}

func (e *NonconsecutiveTimeError) Error() string {
	return fmt.Sprintf("price time %s does not follow previous time %s",
		e.Time.Format(time.RFC3339), e.Previous.Format(time.RFC3339))
}

func (e *NonconsecutiveTimeError) Unwrap() error { return domain.ErrValidation }

// SymbolMismatchError reports a price point whose symbol set differs
// from the set established by the series' first point.
type SymbolMismatchError struct {
	Want []string
	Got  []string
}

func (e *SymbolMismatchError) Error() string {
	return fmt.Sprintf("price point symbols [%s] do not match established set [%s]",
		strings.Join(e.Got, " "), strings.Join(e.Want, " "))
}

func (e *SymbolMismatchError) Unwrap() error { return domain.ErrValidation }
