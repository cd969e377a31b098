package domain

import "regexp"

// symbolRegex matches exchange-style stock symbols: upper-case, up to
// ten characters, with dots allowed for share classes (e.g. BRK.B).
var symbolRegex = regexp.MustCompile(`^[A-Z][A-Z0-9.]{0,9}$`)

// ValidSymbol reports whether s is a well-formed stock symbol.
func ValidSymbol(s string) bool {
	return symbolRegex.MatchString(s)
}
