package coinmarketcap

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"pricefeed/internal/provider"
)

// Name is the registry identifier of this adapter.
const Name = "coinmarketcap"

// EnvAPIKey holds the CoinMarketCap Pro API key.
const EnvAPIKey = "CMC_API_KEY"

var supportedCurrencies = []string{"usd"}

// Adapter fetches crypto quotes from the CoinMarketCap quotes/latest endpoint.
type Adapter struct {
	provider.Base
	apiKey string
}

func New(scope provider.Scope, opts ...provider.Option) (*Adapter, error) {
	base, err := provider.NewBase(Name, scope, supportedCurrencies, opts...)
	if err != nil {
		return nil, err
	}
	key, err := base.RequireEnv(EnvAPIKey)
	if err != nil {
		return nil, err
	}
	return &Adapter{Base: base, apiKey: key}, nil
}

// quotesResponse is the quotes/latest envelope:
//
//	{
//	  "data": {
//	    "BTC": {
//	      "symbol": "BTC",
//	      "quote": {"USD": {"price": 50000.1234, "percent_change_24h": 2.345}}
//	    }
//	  }
//	}
type quotesResponse struct {
	Data provider.Object `json:"data"`
}

type entry struct {
	Quote map[string]*quote `json:"quote"`
}

type quote struct {
	Price            *float64 `json:"price"`
	PercentChange24h *float64 `json:"percent_change_24h"`
}

// Fetch issues a single request for every symbol in scope.
func (a *Adapter) Fetch(ctx context.Context) ([]provider.Record, error) {
	a.Started()

	convert := strings.ToUpper(a.Scope.Currency)
	query := url.Values{}
	query.Set("symbol", strings.Join(a.Scope.Symbols, ","))
	query.Set("convert", convert)
	header := http.Header{}
	header.Set("X-CMC_PRO_API_KEY", a.apiKey)
	header.Set("Accept", "application/json")

	var resp quotesResponse
	ok, err := a.GetJSON(ctx, a.Opts.Endpoints.CoinMarketCap+"/v1/cryptocurrency/quotes/latest", query, header, &resp)
	if err != nil {
		return nil, err
	}
	if !ok {
		return a.Done(nil), nil
	}

	out := make([]provider.Record, 0, len(resp.Data))
	for _, m := range resp.Data {
		var e entry
		if err := m.Decode(&e); err != nil {
			a.Skip(m.Key, "quote")
			continue
		}
		q := e.Quote[convert]
		switch {
		case q == nil:
			a.Skip(m.Key, "quote."+convert)
		case q.Price == nil:
			a.Skip(m.Key, "price")
		case q.PercentChange24h == nil:
			a.Skip(m.Key, "percent_change_24h")
		default:
			out = append(out, provider.NewRecord(m.Key, *q.Price, *q.PercentChange24h))
		}
	}
	return a.Done(out), nil
}
