package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"slices"

	"pricefeed/internal/httpx"
	"pricefeed/internal/metrics"
)

// Base carries what every adapter shares: its scope, the resolved options and
// the request/decode plumbing. Adapters embed it.
type Base struct {
	Scope Scope
	Opts  Options

	name      string
	supported []string
	log       *slog.Logger
}

// NewBase validates scope.Currency against supported before anything else.
func NewBase(name string, scope Scope, supported []string, opts ...Option) (Base, error) {
	if !slices.Contains(supported, scope.Currency) {
		return Base{}, &ValidationError{Currency: scope.Currency, Supported: slices.Clone(supported)}
	}
	o := Apply(opts...)
	return Base{
		Scope:     scope,
		Opts:      o,
		name:      name,
		supported: supported,
		log:       o.Logger.With("provider", name),
	}, nil
}

func (b *Base) Name() string { return b.name }

func (b *Base) SupportedCurrencies() []string { return slices.Clone(b.supported) }

// Logger returns the adapter logger, tagged with the provider name.
func (b *Base) Logger() *slog.Logger { return b.log }

// RequireEnv reads a credential, failing with a ConfigurationError when unset.
func (b *Base) RequireEnv(key string) (string, error) {
	v, ok := b.Opts.Env(key)
	if !ok || v == "" {
		return "", &ConfigurationError{Msg: fmt.Sprintf("%s environment variable must be set.", key)}
	}
	return v, nil
}

// GetJSON performs a GET and decodes the body into v. It reports false with a
// nil error when the response was unusable (non-2xx or malformed JSON); that
// condition is logged and counted, never returned. Transport failures are
// returned.
func (b *Base) GetJSON(ctx context.Context, endpoint string, query url.Values, header http.Header, v any) (bool, error) {
	body, err := httpx.Get(ctx, b.Opts.HTTP, endpoint, query, header)
	var se *httpx.StatusError
	switch {
	case errors.As(err, &se):
		b.log.Warn("unexpected status", "endpoint", endpoint, "status", se.Code, "body", string(se.Body))
		metrics.MalformedResponses.WithLabelValues(b.name, "status").Inc()
		return false, nil
	case err != nil:
		return false, fmt.Errorf("%s: %w", b.name, err)
	}

	if err := DecodeJSON(body, v); err != nil {
		b.log.Error("JSON decode error", "endpoint", endpoint, "body", string(body), "err", err)
		metrics.MalformedResponses.WithLabelValues(b.name, "json").Inc()
		return false, nil
	}
	return true, nil
}

// Skip drops one item from the batch.
func (b *Base) Skip(item, field string) {
	err := &MissingFieldError{Item: item, Field: field}
	b.log.Debug("skipping item", "err", err)
	metrics.SkippedItems.WithLabelValues(b.name, field).Inc()
}

// Started logs the beginning of a fetch.
func (b *Base) Started() {
	b.log.Info("fetch started",
		"symbols", b.Scope.Symbols,
		"currency", b.Scope.Currency,
		"stocks", b.Scope.Stocks,
	)
}

// Done logs and counts the records of a finished fetch and returns them.
func (b *Base) Done(out []Record) []Record {
	if out == nil {
		out = []Record{}
	}
	b.log.Info("fetch finished", "records", len(out))
	metrics.Records.WithLabelValues(b.name).Add(float64(len(out)))
	return out
}

// NewRecord formats a price and a change into a Record.
func NewRecord(symbol string, price, change float64) Record {
	return Record{Symbol: symbol, Price: FormatPrice(price), Change24h: FormatChange(change)}
}
