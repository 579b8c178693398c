package provider

import (
	"context"
	"strings"
)

// Record is the normalized shape returned by all adapters.
// Price and Change24h are display strings such as "$50,000.12" and "2.3%".
type Record struct {
	Symbol    string `json:"symbol" yaml:"symbol"`
	Price     string `json:"price" yaml:"price"`
	Change24h string `json:"change_24h" yaml:"change_24h"`
}

// Scope is the set of assets a single adapter instance is asked about.
type Scope struct {
	Symbols  []string
	Currency string
	Stocks   []string
}

// NewScope builds a Scope from comma-separated symbol and ticker lists.
func NewScope(symbolsCSV, currency, stocksCSV string) Scope {
	return Scope{
		Symbols:  SplitCSV(symbolsCSV),
		Currency: strings.TrimSpace(currency),
		Stocks:   SplitCSV(stocksCSV),
	}
}

// Adapter fetches and normalizes prices from one provider.
type Adapter interface {
	Name() string
	SupportedCurrencies() []string
	Fetch(ctx context.Context) ([]Record, error)
}

func SplitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
