// Package symbol
package symbol

import (
	"fmt"
	"strings"
)

// Symbol names a tradable pair as 'xxxyyy', where 'xxx' is the base asset
// and 'yyy' is the quote asset. The set is closed and known at compile time.
type Symbol string

const (
	BTCUSD Symbol = "btcusd"
	ETHUSD Symbol = "ethusd"
	ETHBTC Symbol = "ethbtc"
	ZECUSD Symbol = "zecusd"
	ZECBTC Symbol = "zecbtc"
	ZECETH Symbol = "zeceth"
	ZECBCH Symbol = "zecbch"
	ZECLTC Symbol = "zecltc"
	BCHUSD Symbol = "bchusd"
	BCHBTC Symbol = "bchbtc"
	BCHETH Symbol = "bcheth"
	LTCUSD Symbol = "ltcusd"
	LTCBTC Symbol = "ltcbtc"
	LTCETH Symbol = "ltceth"
	LTCBCH Symbol = "ltcbch"
)

// Asset identifies a single currency (e.g. "btc", "usd").
type Asset string

var all = []Symbol{
	BTCUSD, ETHUSD, ETHBTC,
	ZECUSD, ZECBTC, ZECETH, ZECBCH, ZECLTC,
	BCHUSD, BCHBTC, BCHETH,
	LTCUSD, LTCBTC, LTCETH, LTCBCH,
}

// All returns every supported symbol.
func All() []Symbol {
	out := make([]Symbol, len(all))
	copy(out, all)
	return out
}

// Valid reports whether s is one of the supported symbols.
func (s Symbol) Valid() bool {
	for _, known := range all {
		if s == known {
			return true
		}
	}
	return false
}

// Base returns the base asset of the pair ("btcusd" -> "btc").
func (s Symbol) Base() Asset {
	if len(s) < 6 {
		return ""
	}
	return Asset(s[:len(s)-3])
}

// Quote returns the quote asset of the pair ("btcusd" -> "usd").
func (s Symbol) Quote() Asset {
	if len(s) < 6 {
		return ""
	}
	return Asset(s[len(s)-3:])
}

// Product converts a symbol to the exchange product id ("btcusd" -> "BTC-USD").
func (s Symbol) Product() string {
	if len(s) < 6 {
		return strings.ToUpper(string(s))
	}
	return strings.ToUpper(string(s.Base())) + "-" + strings.ToUpper(string(s.Quote()))
}

// FromProduct converts an exchange product id back into a Symbol
// ("BTC-USD" -> "btcusd").
func FromProduct(product string) (Symbol, error) {
	return Parse(strings.ReplaceAll(product, "-", ""))
}

// Parse converts a raw string into a supported Symbol.
func Parse(raw string) (Symbol, error) {
	s := Symbol(strings.ToLower(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", fmt.Errorf("unsupported symbol: %q", raw)
	}
	return s, nil
}

// Ticker is a point-in-time quote for a symbol.
type Ticker struct {
	Bid    float64 `json:"bid"`
	Ask    float64 `json:"ask"`
	Last   float64 `json:"last"`
	Volume float64 `json:"volume"`
}

// Info wraps the ticker for a symbol, mirroring what live exchanges return.
type Info struct {
	Ticker Ticker `json:"ticker"`
}
