package alphavantage

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"pricefeed/internal/provider"
)

const Name = "alphavantage"

// EnvAPIKey holds the Alpha Vantage API key.
const EnvAPIKey = "ALPHA_VANTAGE_API_KEY"

var supportedCurrencies = []string{"usd"}

const (
	intradaySeries = "Time Series (30min)"
	dailySeries    = "Time Series (Digital Currency Daily)"
	marketOpen     = "09:30:00"
)

// Adapter fetches stocks from the intraday series and crypto from the
// realtime exchange rate plus the daily digital currency series.
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

func (a *Adapter) Fetch(ctx context.Context) ([]provider.Record, error) {
	a.Started()

	out := make([]provider.Record, 0, len(a.Scope.Stocks)+len(a.Scope.Symbols))
	for _, stock := range a.Scope.Stocks {
		r, ok, err := a.stock(ctx, stock)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, r)
		}
	}
	for _, symbol := range a.Scope.Symbols {
		r, ok, err := a.crypto(ctx, symbol)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, r)
		}
	}
	return a.Done(out), nil
}

type intradayResponse struct {
	Meta struct {
		LastRefreshed *string `json:"3. Last Refreshed"`
	} `json:"Meta Data"`
	Series map[string]map[string]string `json:"Time Series (30min)"`
}

// stock uses the open of the most recent 30min bar as the current price and
// the open of that day's 09:30 bar as the baseline. Without a 09:30 bar the
// baseline is the current price, which yields a 0.0% change.
func (a *Adapter) stock(ctx context.Context, ticker string) (provider.Record, bool, error) {
	query := url.Values{}
	query.Set("function", "TIME_SERIES_INTRADAY")
	query.Set("symbol", ticker)
	query.Set("interval", "30min")
	query.Set("outputsize", "full")
	query.Set("apikey", a.apiKey)

	var resp intradayResponse
	ok, err := a.GetJSON(ctx, a.Opts.Endpoints.AlphaVantage+"/query", query, nil, &resp)
	if err != nil || !ok {
		return provider.Record{}, false, err
	}

	if resp.Meta.LastRefreshed == nil {
		a.Skip(ticker, "3. Last Refreshed")
		return provider.Record{}, false, nil
	}
	last := *resp.Meta.LastRefreshed
	if resp.Series == nil {
		a.Skip(ticker, intradaySeries)
		return provider.Record{}, false, nil
	}
	recent, ok := resp.Series[last]["1. open"]
	if !ok {
		a.Skip(ticker, "1. open")
		return provider.Record{}, false, nil
	}
	open, ok := resp.Series[day(last)+" "+marketOpen]["1. open"]
	if !ok {
		open = recent
	}
	return a.record(ticker, recent, open)
}

type exchangeRateResponse struct {
	Rate *struct {
		ExchangeRate *string `json:"5. Exchange Rate"`
	} `json:"Realtime Currency Exchange Rate"`
}

type digitalDailyResponse struct {
	Meta *struct {
		LastRefreshed *string `json:"6. Last Refreshed"`
	} `json:"Meta Data"`
	Series map[string]map[string]string `json:"Time Series (Digital Currency Daily)"`
}

// crypto combines the realtime exchange rate with the open of the latest
// daily bar. Both requests are always issued.
func (a *Adapter) crypto(ctx context.Context, symbol string) (provider.Record, bool, error) {
	market := strings.ToUpper(a.Scope.Currency)

	current := url.Values{}
	current.Set("function", "CURRENCY_EXCHANGE_RATE")
	current.Set("from_currency", symbol)
	current.Set("to_currency", market)
	current.Set("apikey", a.apiKey)
	var rate exchangeRateResponse
	rateOK, err := a.GetJSON(ctx, a.Opts.Endpoints.AlphaVantage+"/query", current, nil, &rate)
	if err != nil {
		return provider.Record{}, false, err
	}

	daily := url.Values{}
	daily.Set("function", "DIGITAL_CURRENCY_DAILY")
	daily.Set("symbol", symbol)
	daily.Set("market", market)
	daily.Set("apikey", a.apiKey)
	var series digitalDailyResponse
	dailyOK, err := a.GetJSON(ctx, a.Opts.Endpoints.AlphaVantage+"/query", daily, nil, &series)
	if err != nil {
		return provider.Record{}, false, err
	}
	if !rateOK || !dailyOK {
		return provider.Record{}, false, nil
	}

	if series.Meta == nil || series.Meta.LastRefreshed == nil {
		a.Skip(symbol, "6. Last Refreshed")
		return provider.Record{}, false, nil
	}
	if rate.Rate == nil || rate.Rate.ExchangeRate == nil {
		a.Skip(symbol, "5. Exchange Rate")
		return provider.Record{}, false, nil
	}
	bar, ok := series.Series[day(*series.Meta.LastRefreshed)]
	if !ok {
		a.Skip(symbol, dailySeries)
		return provider.Record{}, false, nil
	}
	open, ok := bar["1a. open ("+market+")"]
	if !ok {
		open, ok = bar["1. open"]
	}
	if !ok {
		a.Skip(symbol, "1a. open ("+market+")")
		return provider.Record{}, false, nil
	}
	return a.record(symbol, *rate.Rate.ExchangeRate, open)
}

func (a *Adapter) record(symbol, recentStr, openStr string) (provider.Record, bool, error) {
	recent, err := strconv.ParseFloat(strings.TrimSpace(recentStr), 64)
	if err != nil {
		a.Skip(symbol, "price")
		return provider.Record{}, false, nil
	}
	open, err := strconv.ParseFloat(strings.TrimSpace(openStr), 64)
	if err != nil {
		a.Skip(symbol, "open")
		return provider.Record{}, false, nil
	}
	change, ok := provider.PercentChange(recent, open)
	if !ok {
		a.Skip(symbol, "open")
		return provider.Record{}, false, nil
	}
	return provider.NewRecord(symbol, recent, change), true, nil
}

// day is the date part of a "2006-01-02 15:04:05" timestamp.
func day(ts string) string {
	if len(ts) > 10 {
		return ts[:10]
	}
	return ts
}
