package registry

import (
	"fmt"
	"maps"
	"slices"

	"pricefeed/internal/provider"
	"pricefeed/internal/provider/alphavantage"
	"pricefeed/internal/provider/coingecko"
	"pricefeed/internal/provider/coinmarketcap"
	"pricefeed/internal/provider/finnhub"
)

// Factory constructs an adapter for a scope.
type Factory func(scope provider.Scope, opts ...provider.Option) (provider.Adapter, error)

// Registry maps provider identifiers to adapter factories.
type Registry struct {
	factories map[string]Factory
}

func New(factories map[string]Factory) *Registry {
	return &Registry{factories: maps.Clone(factories)}
}

// Default holds every adapter this module ships.
func Default() *Registry {
	return New(map[string]Factory{
		coinmarketcap.Name: adapt(coinmarketcap.New),
		coingecko.Name:     adapt(coingecko.New),
		alphavantage.Name:  adapt(alphavantage.New),
		finnhub.Name:       adapt(finnhub.New),
	})
}

// Resolve returns the factory registered under name or a ConfigurationError.
func (r *Registry) Resolve(name string) (Factory, error) {
	f, ok := r.factories[name]
	if !ok {
		return nil, &provider.ConfigurationError{Msg: fmt.Sprintf("%q provider is not implemented", name)}
	}
	return f, nil
}

// Open resolves name and constructs the adapter.
func (r *Registry) Open(name string, scope provider.Scope, opts ...provider.Option) (provider.Adapter, error) {
	f, err := r.Resolve(name)
	if err != nil {
		return nil, err
	}
	return f(scope, opts...)
}

// Names lists the registered identifiers in sorted order.
func (r *Registry) Names() []string {
	return slices.Sorted(maps.Keys(r.factories))
}

// adapt keeps a failed constructor from leaking a typed nil into the interface.
func adapt[A provider.Adapter](fn func(provider.Scope, ...provider.Option) (A, error)) Factory {
	return func(scope provider.Scope, opts ...provider.Option) (provider.Adapter, error) {
		a, err := fn(scope, opts...)
		if err != nil {
			return nil, err
		}
		return a, nil
	}
}
