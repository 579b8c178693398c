package coingecko

import (
	"context"
	"net/url"
	"strings"

	"pricefeed/internal/provider"
	"pricefeed/internal/provider/finnhub"
)

const Name = "coingecko"

var supportedCurrencies = []string{"usd"}

// Adapter blends CoinGecko crypto prices with FinnHub stock quotes.
//
// The coins queried come from Options.CoinIDs (bitcoin and ethereum unless
// overridden), not from Scope.Symbols.
type Adapter struct {
	provider.Base
	quoter *finnhub.Quoter
}

func New(scope provider.Scope, opts ...provider.Option) (*Adapter, error) {
	base, err := provider.NewBase(Name, scope, supportedCurrencies, opts...)
	if err != nil {
		return nil, err
	}
	key, err := base.RequireEnv(finnhub.EnvAPIKey)
	if err != nil {
		return nil, err
	}
	a := &Adapter{Base: base}
	a.quoter = finnhub.NewQuoter(&a.Base, key)
	return a, nil
}

// {"bitcoin": {"usd": 50000.1234, "usd_24h_change": 2.345}}
type simplePrice map[string]*float64

func (a *Adapter) Fetch(ctx context.Context) ([]provider.Record, error) {
	a.Started()
	a.Logger().Info("fetching coins and stocks", "coins", a.Opts.CoinIDs, "stocks", a.Scope.Stocks)

	crypto, err := a.fetchCoins(ctx)
	if err != nil {
		return nil, err
	}
	stocks, err := a.quoter.Quotes(ctx, a.Scope.Stocks)
	if err != nil {
		return nil, err
	}
	return a.Done(append(crypto, stocks...)), nil
}

func (a *Adapter) fetchCoins(ctx context.Context) ([]provider.Record, error) {
	if len(a.Opts.CoinIDs) == 0 {
		return nil, nil
	}
	symbolByID := make(map[string]string, len(a.Opts.CoinIDs))
	ids := make([]string, 0, len(a.Opts.CoinIDs))
	for _, c := range a.Opts.CoinIDs {
		symbolByID[c.ID] = c.Symbol
		ids = append(ids, c.ID)
	}

	cur := strings.ToLower(a.Scope.Currency)
	query := url.Values{}
	query.Set("ids", strings.Join(ids, ","))
	query.Set("vs_currencies", cur)
	query.Set("include_24hr_change", "true")

	var resp provider.Object
	ok, err := a.GetJSON(ctx, a.Opts.Endpoints.CoinGecko+"/simple/price", query, nil, &resp)
	if err != nil || !ok {
		return nil, err
	}

	changeKey := cur + "_24h_change"
	out := make([]provider.Record, 0, len(resp))
	for _, m := range resp {
		symbol, requested := symbolByID[m.Key]
		if !requested {
			continue
		}
		var p simplePrice
		if err := m.Decode(&p); err != nil {
			a.Skip(m.Key, cur)
			continue
		}
		switch {
		case p[cur] == nil:
			a.Skip(m.Key, cur)
		case p[changeKey] == nil:
			a.Skip(m.Key, changeKey)
		default:
			out = append(out, provider.NewRecord(symbol, *p[cur], *p[changeKey]))
		}
	}
	return out, nil
}
