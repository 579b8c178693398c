package provider

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"pricefeed/internal/httpx"
)

// EnvFunc looks up a credential. os.LookupEnv is the default.
type EnvFunc func(key string) (string, bool)

// MapEnv serves credentials from a fixed map.
func MapEnv(m map[string]string) EnvFunc {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

// Endpoints are the provider base URLs.
type Endpoints struct {
	CoinMarketCap string
	CoinGecko     string
	FinnHub       string
	AlphaVantage  string
}

var DefaultEndpoints = Endpoints{
	CoinMarketCap: "https://pro-api.coinmarketcap.com",
	CoinGecko:     "https://api.coingecko.com/api/v3",
	FinnHub:       "https://finnhub.io/api/v1",
	AlphaVantage:  "https://www.alphavantage.co",
}

// CoinID maps a CoinGecko coin id to the symbol shown in records.
type CoinID struct {
	ID     string
	Symbol string
}

// DefaultCoinIDs is the fixed table CoinGecko is queried with.
var DefaultCoinIDs = []CoinID{
	{ID: "bitcoin", Symbol: "BTC"},
	{ID: "ethereum", Symbol: "ETH"},
}

// ParseCoinIDs parses "id:SYMBOL" pairs.
func ParseCoinIDs(pairs []string) ([]CoinID, error) {
	out := make([]CoinID, 0, len(pairs))
	for _, p := range pairs {
		id, sym, ok := strings.Cut(strings.TrimSpace(p), ":")
		id, sym = strings.TrimSpace(id), strings.TrimSpace(sym)
		if !ok || id == "" || sym == "" {
			return nil, fmt.Errorf("invalid coin id %q, want id:SYMBOL", p)
		}
		out = append(out, CoinID{ID: id, Symbol: sym})
	}
	return out, nil
}

// Options are shared by every adapter constructor.
type Options struct {
	HTTP      httpx.Doer
	Env       EnvFunc
	Logger    *slog.Logger
	Endpoints Endpoints
	CoinIDs   []CoinID
}

// Option is a configuration option for an adapter.
type Option func(*Options)

// WithHTTPClient sets the HTTP client used for provider requests.
func WithHTTPClient(d httpx.Doer) Option {
	return func(o *Options) { o.HTTP = d }
}

// WithEnv sets where credentials are read from.
func WithEnv(env EnvFunc) Option {
	return func(o *Options) { o.Env = env }
}

func WithLogger(l *slog.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

// WithEndpoints overrides provider base URLs. Empty fields keep their default.
func WithEndpoints(e Endpoints) Option {
	return func(o *Options) {
		if e.CoinMarketCap != "" {
			o.Endpoints.CoinMarketCap = e.CoinMarketCap
		}
		if e.CoinGecko != "" {
			o.Endpoints.CoinGecko = e.CoinGecko
		}
		if e.FinnHub != "" {
			o.Endpoints.FinnHub = e.FinnHub
		}
		if e.AlphaVantage != "" {
			o.Endpoints.AlphaVantage = e.AlphaVantage
		}
	}
}

// WithCoinIDs replaces the CoinGecko coin table.
func WithCoinIDs(ids []CoinID) Option {
	return func(o *Options) {
		if len(ids) > 0 {
			o.CoinIDs = ids
		}
	}
}

// Apply resolves opts on top of the defaults.
func Apply(opts ...Option) Options {
	o := Options{
		Env:       os.LookupEnv,
		Endpoints: DefaultEndpoints,
		CoinIDs:   DefaultCoinIDs,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.HTTP == nil {
		o.HTTP = httpx.New(httpx.DefaultTimeout)
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	o.Endpoints.CoinMarketCap = strings.TrimRight(o.Endpoints.CoinMarketCap, "/")
	o.Endpoints.CoinGecko = strings.TrimRight(o.Endpoints.CoinGecko, "/")
	o.Endpoints.FinnHub = strings.TrimRight(o.Endpoints.FinnHub, "/")
	o.Endpoints.AlphaVantage = strings.TrimRight(o.Endpoints.AlphaVantage, "/")
	return o
}
