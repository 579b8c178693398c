package config

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"pricefeed/internal/httpx"
	"pricefeed/internal/provider"
)

type HTTP struct {
	Timeout   time.Duration `yaml:"timeout" json:"timeout" env:"REQUEST_TIMEOUT" env-default:"10s" env-description:"timeout of each provider request"`
	UserAgent string        `yaml:"user_agent" json:"user_agent" env:"USER_AGENT" env-default:"pricefeed/1.0" env-description:"User-Agent sent to providers"`
}

type Endpoints struct {
	CoinMarketCap string `yaml:"coinmarketcap" json:"coinmarketcap" env:"CMC_BASE_URL" env-description:"CoinMarketCap base URL override"`
	CoinGecko     string `yaml:"coingecko" json:"coingecko" env:"COINGECKO_BASE_URL" env-description:"CoinGecko base URL override"`
	FinnHub       string `yaml:"finnhub" json:"finnhub" env:"FINNHUB_BASE_URL" env-description:"FinnHub base URL override"`
	AlphaVantage  string `yaml:"alphavantage" json:"alphavantage" env:"ALPHA_VANTAGE_BASE_URL" env-description:"Alpha Vantage base URL override"`
}

// Scope is the default request used when a caller does not name one.
type Scope struct {
	Provider string   `yaml:"provider" json:"provider" env:"PROVIDER" env-default:"coingecko" env-description:"provider identifier"`
	Symbols  []string `yaml:"symbols" json:"symbols" env:"SYMBOLS" env-default:"BTC,ETH" env-description:"comma-separated crypto symbols"`
	Currency string   `yaml:"currency" json:"currency" env:"CURRENCY" env-default:"usd" env-description:"quote currency"`
	Stocks   []string `yaml:"stocks" json:"stocks" env:"STOCKS" env-description:"comma-separated stock tickers"`
}

type CoinGecko struct {
	IDs []string `yaml:"ids" json:"ids" env:"COINGECKO_IDS" env-default:"bitcoin:BTC,ethereum:ETH" env-description:"CoinGecko id:SYMBOL pairs"`
}

type Server struct {
	Addr              string        `yaml:"addr" json:"addr" env:"ADDR" env-default:":8080" env-description:"HTTP listen address"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout" json:"read_header_timeout" env:"READ_HEADER_TIMEOUT" env-default:"5s"`
	WriteTimeout      time.Duration `yaml:"write_timeout" json:"write_timeout" env:"WRITE_TIMEOUT" env-default:"60s"`
	FetchTimeout      time.Duration `yaml:"fetch_timeout" json:"fetch_timeout" env:"FETCH_TIMEOUT" env-default:"45s" env-description:"upper bound of one fetch served over HTTP"`
}

// Config does not carry API keys. Adapters read CMC_API_KEY, FINNHUB_API_KEY
// and ALPHA_VANTAGE_API_KEY from the process environment.
type Config struct {
	HTTP      HTTP      `yaml:"http" json:"http"`
	Endpoints Endpoints `yaml:"endpoints" json:"endpoints"`
	Scope     Scope     `yaml:"scope" json:"scope"`
	CoinGecko CoinGecko `yaml:"coingecko" json:"coingecko"`
	Server    Server    `yaml:"server" json:"server"`
}

var defaultPaths = []string{"config.yml", "config.yaml", "config.json"}

// Load reads a YAML or JSON config file and applies environment overrides.
// If path is empty the first of config.yml, config.yaml, config.json in the
// working directory is used, and if none exists only the environment is read.
// A path given by the caller must exist.
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		for _, p := range defaultPaths {
			if _, err := os.Stat(p); err == nil {
				path = p
				break
			}
		}
	}
	if path == "" {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return cfg, fmt.Errorf("read env: %w", err)
		}
		return cfg, nil
	}
	if _, err := os.Stat(path); err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// ProviderOptions turns the config into adapter options.
func (c Config) ProviderOptions(logger *slog.Logger) ([]provider.Option, error) {
	ids, err := provider.ParseCoinIDs(c.CoinGecko.IDs)
	if err != nil {
		return nil, fmt.Errorf("coingecko ids: %w", err)
	}
	hc := httpx.New(c.HTTP.Timeout)
	hc.UserAgent = c.HTTP.UserAgent
	return []provider.Option{
		provider.WithHTTPClient(hc),
		provider.WithLogger(logger),
		provider.WithCoinIDs(ids),
		provider.WithEndpoints(provider.Endpoints{
			CoinMarketCap: c.Endpoints.CoinMarketCap,
			CoinGecko:     c.Endpoints.CoinGecko,
			FinnHub:       c.Endpoints.FinnHub,
			AlphaVantage:  c.Endpoints.AlphaVantage,
		}),
	}, nil
}

// Usage prints the environment variables the config understands.
func Usage() string {
	var cfg Config
	text, err := cleanenv.GetDescription(&cfg, nil)
	if err != nil {
		return ""
	}
	return text
}
