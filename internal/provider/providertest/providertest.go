// Package providertest holds helpers shared by adapter tests.
package providertest

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"

	"go.uber.org/mock/gomock"

	"pricefeed/internal/httpx/httpxmock"
	"pricefeed/internal/provider"
)

// Response builds an upstream response with the given status and body.
func Response(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": {"application/json"}},
		Body:       io.NopCloser(bytes.NewBufferString(body)),
	}
}

// Options wires a mock client, a fixed environment and a silent logger.
func Options(doer *httpxmock.MockDoer, env map[string]string) []provider.Option {
	return []provider.Option{
		provider.WithHTTPClient(doer),
		provider.WithEnv(provider.MapEnv(env)),
		provider.WithLogger(slog.New(slog.DiscardHandler)),
	}
}

// NoRequests returns a mock client that fails the test if it is called.
func NoRequests(ctrl *gomock.Controller) *httpxmock.MockDoer {
	doer := httpxmock.NewMockDoer(ctrl)
	doer.EXPECT().Do(gomock.Any()).Times(0)
	return doer
}
