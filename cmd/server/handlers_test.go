package main

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"pricefeed/internal/config"
	"pricefeed/internal/httpx"
	"pricefeed/internal/httpx/httpxmock"
	"pricefeed/internal/provider"
	"pricefeed/internal/provider/providertest"
	"pricefeed/internal/registry"
)

var quiet = slog.New(slog.DiscardHandler)

var defaults = config.Scope{
	Provider: "stub",
	Symbols:  []string{"BTC", "ETH"},
	Currency: "usd",
}

type stubAdapter struct {
	scope provider.Scope
	err   error
	calls *atomic.Int32
}

func (s stubAdapter) Name() string                  { return "stub" }
func (s stubAdapter) SupportedCurrencies() []string { return []string{"usd"} }
func (s stubAdapter) Fetch(context.Context) ([]provider.Record, error) {
	if s.calls != nil {
		s.calls.Add(1)
	}
	if s.err != nil {
		return nil, s.err
	}
	out := []provider.Record{}
	for _, sym := range append(append([]string{}, s.scope.Symbols...), s.scope.Stocks...) {
		out = append(out, provider.Record{Symbol: sym, Price: "$1.00", Change24h: "0.0%"})
	}
	return out, nil
}

func stubRegistry(calls *atomic.Int32) *registry.Registry {
	return registry.New(map[string]registry.Factory{
		"stub": func(scope provider.Scope, _ ...provider.Option) (provider.Adapter, error) {
			if scope.Currency != "usd" {
				return nil, &provider.ValidationError{Currency: scope.Currency, Supported: []string{"usd"}}
			}
			return stubAdapter{scope: scope, calls: calls}, nil
		},
		"nokey": func(provider.Scope, ...provider.Option) (provider.Adapter, error) {
			return nil, &provider.ConfigurationError{Msg: "STUB_API_KEY environment variable must be set."}
		},
		"down": func(scope provider.Scope, _ ...provider.Option) (provider.Adapter, error) {
			return stubAdapter{scope: scope, err: errors.New("down: performing request: connection refused")}, nil
		},
	})
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, target, nil))
	return rr
}

func TestPrices_Defaults(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	h := newServer(stubRegistry(&calls), defaults, time.Second, quiet).routes()

	rr := get(t, h, "/api/prices")

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.Equal(t, "application/json; charset=utf-8", rr.Header().Get("Content-Type"))
	var resp pricesResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Equal(t, "stub", resp.Provider)
	require.Equal(t, "usd", resp.Currency)
	require.Equal(t, []provider.Record{
		{Symbol: "BTC", Price: "$1.00", Change24h: "0.0%"},
		{Symbol: "ETH", Price: "$1.00", Change24h: "0.0%"},
	}, resp.Records)
	require.EqualValues(t, 1, calls.Load())
}

func TestPrices_QueryOverridesDefaults(t *testing.T) {
	t.Parallel()

	h := newServer(stubRegistry(nil), defaults, time.Second, quiet).routes()

	rr := get(t, h, "/api/prices?provider=stub&symbols=SOL&stocks=AAPL,%20MSFT")

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var resp pricesResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Records, 3)
	require.Equal(t, "SOL", resp.Records[0].Symbol)
	require.Equal(t, "MSFT", resp.Records[2].Symbol)
}

func TestPrices_EmptyResultIsArray(t *testing.T) {
	t.Parallel()

	h := newServer(stubRegistry(nil), defaults, time.Second, quiet).routes()

	rr := get(t, h, "/api/prices?symbols=")

	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"provider":"stub","currency":"usd","records":[]}`, rr.Body.String())
}

func TestPrices_StatusMapping(t *testing.T) {
	t.Parallel()

	h := newServer(stubRegistry(nil), defaults, time.Second, quiet).routes()

	cases := []struct {
		target string
		status int
		msg    string
	}{
		{"/api/prices?provider=yahoo", http.StatusNotFound, `"yahoo" provider is not implemented`},
		{"/api/prices?currency=eur", http.StatusBadRequest, "CURRENCY=eur is not supported"},
		{"/api/prices?provider=nokey", http.StatusServiceUnavailable, "STUB_API_KEY"},
		{"/api/prices?provider=down", http.StatusBadGateway, "connection refused"},
	}
	for _, tc := range cases {
		rr := get(t, h, tc.target)

		require.Equalf(t, tc.status, rr.Code, "target %s", tc.target)
		var resp errorResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		require.Contains(t, resp.Error, tc.msg)
	}
}

func TestPrices_RealAdapters(t *testing.T) {
	t.Parallel()

	// Arrange: the upstream refuses every connection
	ctrl := gomock.NewController(t)
	doer := httpxmock.NewMockDoer(ctrl)
	doer.EXPECT().Do(gomock.Any()).Return(nil, errors.New("connection refused")).Times(1)

	opts := providertest.Options(doer, map[string]string{"FINNHUB_API_KEY": "fh"})
	h := newServer(registry.Default(), config.Scope{Provider: "coingecko", Currency: "usd"}, time.Second, quiet, opts...).routes()

	// Assert: credentials and currency are checked before any request
	require.Equal(t, http.StatusServiceUnavailable, get(t, h, "/api/prices?provider=coinmarketcap").Code)
	require.Equal(t, http.StatusBadRequest, get(t, h, "/api/prices?currency=USD").Code)
	require.Equal(t, http.StatusBadGateway, get(t, h, "/api/prices").Code)
}

func TestProviders(t *testing.T) {
	t.Parallel()

	h := newServer(registry.Default(), defaults, time.Second, quiet).routes()

	rr := get(t, h, "/api/providers")

	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"providers":["alphavantage","coingecko","coinmarketcap","finnhub"]}`, rr.Body.String())
}

func TestHealthzAndMetrics(t *testing.T) {
	t.Parallel()

	h := newServer(stubRegistry(nil), defaults, time.Second, quiet).routes()

	require.Equal(t, http.StatusOK, get(t, h, "/healthz").Code)

	_ = get(t, h, "/api/prices")
	rr := get(t, h, "/metrics")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `pricefeed_fetches_total{outcome="ok",provider="stub"}`)
}

func TestMethodNotAllowed(t *testing.T) {
	t.Parallel()

	h := newServer(stubRegistry(nil), defaults, time.Second, quiet).routes()

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/prices", nil))
	require.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestGzip(t *testing.T) {
	t.Parallel()

	h := newServer(stubRegistry(nil), defaults, time.Second, quiet).routes()
	req := httptest.NewRequest(http.MethodGet, "/api/prices", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rr := httptest.NewRecorder()

	h.ServeHTTP(rr, req)

	require.Equal(t, "gzip", rr.Header().Get("Content-Encoding"))
	zr, err := gzip.NewReader(rr.Body)
	require.NoError(t, err)
	body, err := io.ReadAll(zr)
	require.NoError(t, err)
	require.Contains(t, string(body), `"symbol":"BTC"`)
}

func TestRecoverPanic(t *testing.T) {
	t.Parallel()

	h := recoverPanic(quiet, http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rr := get(t, h, "/")
	require.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestFetchKey(t *testing.T) {
	t.Parallel()

	a := fetchKey("coingecko", provider.NewScope("BTC,ETH", "usd", ""))
	b := fetchKey("coingecko", provider.NewScope("BTC, ETH", "usd", ""))
	c := fetchKey("coingecko", provider.NewScope("BTC", "usd", "ETH"))

	require.Equal(t, a, b)
	require.NotEqual(t, a, c)
}

func TestPrices_UpstreamErrorHidesCredentials(t *testing.T) {
	t.Parallel()

	// Arrange: real client, nothing listens on port 1
	opts := []provider.Option{
		provider.WithHTTPClient(httpx.New(time.Second)),
		provider.WithEnv(provider.MapEnv(map[string]string{
			"FINNHUB_API_KEY":       "SECRET-TOKEN-123",
			"ALPHA_VANTAGE_API_KEY": "AVSECRET",
		})),
		provider.WithLogger(quiet),
		provider.WithEndpoints(provider.Endpoints{
			FinnHub:      "http://127.0.0.1:1",
			AlphaVantage: "http://127.0.0.1:1",
		}),
	}
	h := newServer(registry.Default(), config.Scope{Currency: "usd"}, 5*time.Second, quiet, opts...).routes()

	for _, target := range []string{
		"/api/prices?provider=finnhub&stocks=AAPL",
		"/api/prices?provider=alphavantage&stocks=IBM",
	} {
		// Act
		rr := get(t, h, target)

		// Assert: the failure is reported without the query string
		require.Equalf(t, http.StatusBadGateway, rr.Code, "target %s", target)
		require.NotContains(t, rr.Body.String(), "SECRET-TOKEN-123")
		require.NotContains(t, rr.Body.String(), "AVSECRET")
		require.Contains(t, rr.Body.String(), "127.0.0.1:1")
	}
}

// blockingRegistry serves "stub" adapters whose Fetch waits for release.
func blockingRegistry(opened, calls *atomic.Int32, release <-chan struct{}) *registry.Registry {
	return registry.New(map[string]registry.Factory{
		"stub": func(scope provider.Scope, _ ...provider.Option) (provider.Adapter, error) {
			opened.Add(1)
			return blockingAdapter{stubAdapter: stubAdapter{scope: scope, calls: calls}, release: release}, nil
		},
	})
}

type blockingAdapter struct {
	stubAdapter
	release <-chan struct{}
}

func (b blockingAdapter) Fetch(ctx context.Context) ([]provider.Record, error) {
	b.calls.Add(1)
	<-b.release
	return stubAdapter{scope: b.scope}.Fetch(ctx)
}

// getAll issues the requests concurrently; wait blocks until all are served.
func getAll(h http.Handler, targets []string) (recs []*httptest.ResponseRecorder, wait func()) {
	out := make([]*httptest.ResponseRecorder, len(targets))
	var wg sync.WaitGroup
	for i, target := range targets {
		out[i] = httptest.NewRecorder()
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.ServeHTTP(out[i], httptest.NewRequest(http.MethodGet, target, nil))
		}()
	}
	return out, wg.Wait
}

func TestPrices_CoalescesIdenticalRequests(t *testing.T) {
	t.Parallel()

	const n = 8
	var opened, calls atomic.Int32
	release := make(chan struct{})
	h := newServer(blockingRegistry(&opened, &calls, release), defaults, 5*time.Second, quiet).routes()

	targets := make([]string, n)
	for i := range targets {
		targets[i] = "/api/prices?symbols=BTC,ETH"
	}

	// Act: every request reaches the adapter factory while the first fetch is blocked
	recs, wait := getAll(h, targets)
	require.Eventually(t, func() bool { return opened.Load() == n }, 5*time.Second, time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	close(release)
	wait()

	// Assert: one upstream fetch served every caller
	require.EqualValues(t, 1, calls.Load())
	for _, rr := range recs {
		require.Equal(t, http.StatusOK, rr.Code)
		var resp pricesResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		require.Len(t, resp.Records, 2)
		require.Equal(t, "BTC", resp.Records[0].Symbol)
	}
}

func TestPrices_DifferentScopesFetchSeparately(t *testing.T) {
	t.Parallel()

	var opened, calls atomic.Int32
	release := make(chan struct{})
	h := newServer(blockingRegistry(&opened, &calls, release), defaults, 5*time.Second, quiet).routes()

	// Act: two scopes in flight at the same time
	recs, wait := getAll(h, []string{"/api/prices?symbols=BTC", "/api/prices?symbols=ETH"})
	require.Eventually(t, func() bool { return calls.Load() == 2 }, 5*time.Second, time.Millisecond)
	close(release)
	wait()

	// Assert
	require.EqualValues(t, 2, calls.Load())
	require.Contains(t, recs[0].Body.String(), `"symbol":"BTC"`)
	require.Contains(t, recs[1].Body.String(), `"symbol":"ETH"`)
}
