package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"pricefeed/internal/config"
	"pricefeed/internal/metrics"
	"pricefeed/internal/provider"
	"pricefeed/internal/registry"
)

type pricesResponse struct {
	Provider string            `json:"provider"`
	Currency string            `json:"currency"`
	Records  []provider.Record `json:"records"`
}

type providersResponse struct {
	Providers []string `json:"providers"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type server struct {
	reg          *registry.Registry
	defaults     config.Scope
	opts         []provider.Option
	fetchTimeout time.Duration
	log          *slog.Logger

	// coalesces identical in-flight fetches; results are not kept afterwards
	group singleflight.Group
}

func newServer(reg *registry.Registry, defaults config.Scope, fetchTimeout time.Duration, logger *slog.Logger, opts ...provider.Option) *server {
	if logger == nil {
		logger = slog.Default()
	}
	return &server{
		reg:          reg,
		defaults:     defaults,
		opts:         opts,
		fetchTimeout: fetchTimeout,
		log:          logger,
	}
}

func (s *server) routes() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	api.HandleFunc("GET /api/providers", s.handleProviders)
	api.HandleFunc("GET /api/prices", s.handlePrices)

	root := http.NewServeMux()
	// promhttp negotiates its own compression and content type
	root.Handle("GET /metrics", metrics.Handler())
	root.Handle("/", withJSONHeaders(withGzip(recoverPanic(s.log, api))))
	return root
}

func (s *server) handleProviders(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, providersResponse{Providers: s.reg.Names()})
}

func (s *server) handlePrices(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	name := s.defaults.Provider
	if q.Has("provider") {
		name = strings.TrimSpace(q.Get("provider"))
	}
	scope := provider.Scope{
		Symbols:  s.defaults.Symbols,
		Currency: s.defaults.Currency,
		Stocks:   s.defaults.Stocks,
	}
	if q.Has("symbols") {
		scope.Symbols = provider.SplitCSV(q.Get("symbols"))
	}
	if q.Has("currency") {
		scope.Currency = strings.TrimSpace(q.Get("currency"))
	}
	if q.Has("stocks") {
		scope.Stocks = provider.SplitCSV(q.Get("stocks"))
	}

	factory, err := s.reg.Resolve(name)
	if err != nil {
		metrics.Fetches.WithLabelValues("", "unknown_provider").Inc()
		writeError(w, http.StatusNotFound, err)
		return
	}
	adapter, err := factory(scope, s.opts...)
	if err != nil {
		var verr *provider.ValidationError
		var cerr *provider.ConfigurationError
		switch {
		case errors.As(err, &verr):
			metrics.Fetches.WithLabelValues(name, "invalid").Inc()
			writeError(w, http.StatusBadRequest, err)
		case errors.As(err, &cerr):
			metrics.Fetches.WithLabelValues(name, "unconfigured").Inc()
			s.log.Warn("provider not configured", "provider", name, "err", err)
			writeError(w, http.StatusServiceUnavailable, err)
		default:
			metrics.Fetches.WithLabelValues(name, "error").Inc()
			writeError(w, http.StatusInternalServerError, err)
		}
		return
	}

	v, err, shared := s.group.Do(fetchKey(name, scope), func() (any, error) {
		// a client hanging up must not fail the callers sharing this fetch
		ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), s.fetchTimeout)
		defer cancel()
		return adapter.Fetch(ctx)
	})
	if err != nil {
		metrics.Fetches.WithLabelValues(name, "upstream_error").Inc()
		s.log.Error("fetch failed", "provider", name, "err", err)
		writeError(w, http.StatusBadGateway, err)
		return
	}
	records := v.([]provider.Record)
	metrics.Fetches.WithLabelValues(name, "ok").Inc()
	s.log.Debug("served prices", "provider", name, "records", len(records), "shared", shared)

	writeJSON(w, http.StatusOK, pricesResponse{
		Provider: name,
		Currency: scope.Currency,
		Records:  records,
	})
}

func fetchKey(name string, scope provider.Scope) string {
	return strings.Join([]string{
		name,
		scope.Currency,
		strings.Join(scope.Symbols, ","),
		strings.Join(scope.Stocks, ","),
	}, "|")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}
