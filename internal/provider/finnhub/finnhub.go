package finnhub

import (
	"context"
	"net/url"

	"pricefeed/internal/provider"
)

const Name = "finnhub"

// EnvAPIKey holds the FinnHub token.
const EnvAPIKey = "FINNHUB_API_KEY"

var supportedCurrencies = []string{"usd"}

// Adapter fetches stock quotes from FinnHub only. Crypto symbols in scope are ignored.
type Adapter struct {
	provider.Base
	quoter *Quoter
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
	a := &Adapter{Base: base}
	a.quoter = NewQuoter(&a.Base, key)
	return a, nil
}

func (a *Adapter) Fetch(ctx context.Context) ([]provider.Record, error) {
	a.Started()
	out, err := a.quoter.Quotes(ctx, a.Scope.Stocks)
	if err != nil {
		return nil, err
	}
	return a.Done(out), nil
}

// Quoter issues one /quote request per ticker. It logs and counts through the
// Base of the adapter that owns it.
type Quoter struct {
	base  *provider.Base
	token string
}

func NewQuoter(base *provider.Base, token string) *Quoter {
	return &Quoter{base: base, token: token}
}

// {"c": 110.0, "d": 10.0, "dp": 10.0, "h": 111.2, "l": 99.5, "o": 100.0, "pc": 100.0, "t": 1700000000}
type quoteResponse struct {
	Current *float64 `json:"c"`
	Open    *float64 `json:"o"`
}

// Quotes returns one record per ticker whose quote carries both "c" and a non-zero "o".
func (q *Quoter) Quotes(ctx context.Context, tickers []string) ([]provider.Record, error) {
	out := make([]provider.Record, 0, len(tickers))
	for _, ticker := range tickers {
		query := url.Values{}
		query.Set("symbol", ticker)
		query.Set("token", q.token)

		var resp quoteResponse
		ok, err := q.base.GetJSON(ctx, q.base.Opts.Endpoints.FinnHub+"/quote", query, nil, &resp)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		if resp.Current == nil {
			q.base.Skip(ticker, "c")
			continue
		}
		if resp.Open == nil {
			q.base.Skip(ticker, "o")
			continue
		}
		change, ok := provider.PercentChange(*resp.Current, *resp.Open)
		if !ok {
			q.base.Skip(ticker, "o")
			continue
		}
		out = append(out, provider.NewRecord(ticker, *resp.Current, change))
	}
	return out, nil
}
