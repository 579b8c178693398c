package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"pricefeed/internal/config"
	"pricefeed/internal/provider"
	"pricefeed/internal/registry"
)

func main() {
	var (
		providerName string
		symbolsCSV   string
		currency     string
		stocksCSV    string
		format       string
		configPath   string
		envFile      string
		timeout      time.Duration
		verbose      bool
	)
	flag.StringVar(&providerName, "provider", "", "provider identifier (default from config)")
	flag.StringVar(&symbolsCSV, "symbols", "", "comma-separated crypto symbols (default from config)")
	flag.StringVar(&currency, "currency", "", "quote currency (default from config)")
	flag.StringVar(&stocksCSV, "stocks", "", "comma-separated stock tickers (default from config)")
	flag.StringVar(&format, "format", "table", "output format: table, json or yaml")
	flag.StringVar(&configPath, "config", os.Getenv("CONFIG_FILE"), "path to config.yml (optional)")
	flag.StringVar(&envFile, "env-file", ".env", "dotenv file with API keys (optional)")
	flag.DurationVar(&timeout, "timeout", 2*time.Minute, "upper bound for the whole fetch")
	flag.BoolVar(&verbose, "v", false, "debug logging")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags]\n\n", os.Args[0])
		flag.PrintDefaults()
		fmt.Fprintf(flag.CommandLine.Output(), "\n%s\n", config.Usage())
		fmt.Fprintf(flag.CommandLine.Output(), "Credentials: CMC_API_KEY, FINNHUB_API_KEY, ALPHA_VANTAGE_API_KEY\n")
	}
	flag.Parse()

	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("env file: %v", err)
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	opts, err := cfg.ProviderOptions(logger)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	scope := provider.Scope{
		Symbols:  cfg.Scope.Symbols,
		Currency: cfg.Scope.Currency,
		Stocks:   cfg.Scope.Stocks,
	}
	if symbolsCSV != "" {
		scope.Symbols = provider.SplitCSV(symbolsCSV)
	}
	if currency != "" {
		scope.Currency = currency
	}
	if stocksCSV != "" {
		scope.Stocks = provider.SplitCSV(stocksCSV)
	}
	if providerName == "" {
		providerName = cfg.Scope.Provider
	}

	adapter, err := registry.Default().Open(providerName, scope, opts...)
	if err != nil {
		log.Fatalf("%s: %v", providerName, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	records, err := adapter.Fetch(ctx)
	if err != nil {
		log.Fatalf("%s: %v", providerName, err)
	}

	if err := write(os.Stdout, format, records); err != nil {
		log.Fatalf("write: %v", err)
	}
}

func write(w io.Writer, format string, records []provider.Record) error {
	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	case "yaml":
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(records)
	case "table", "":
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
		fmt.Fprintln(tw, "SYMBOL\tPRICE\t24H\t")
		for _, r := range records {
			fmt.Fprintf(tw, "%s\t%s\t%s\t\n", r.Symbol, r.Price, r.Change24h)
		}
		return tw.Flush()
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}
