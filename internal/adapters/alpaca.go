package adapters

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/Rajchodisetti/alertbot/internal/observ"
)

// tradeClient is the part of *marketdata.Client the provider uses.
type tradeClient interface {
	GetLatestTrade(symbol string, req marketdata.GetLatestTradeRequest) (*marketdata.Trade, error)
	GetLatestTrades(symbols []string, req marketdata.GetLatestTradeRequest) (map[string]marketdata.Trade, error)
}

// AlpacaConfig holds configuration for the Alpaca provider
type AlpacaConfig struct {
	APIKey             string
	APISecret          string
	DataURL            string
	RateLimitPerMinute int
	MaxRetries         int
	BackoffBaseMs      int
}

// AlpacaProvider prices tickers from the latest trade on Alpaca market data.
type AlpacaProvider struct {
	client      tradeClient
	rateLimiter *rate.Limiter
	config      AlpacaConfig
}

func NewAlpacaProvider(config AlpacaConfig) (*AlpacaProvider, error) {
	if config.APIKey == "" || config.APISecret == "" {
		return nil, errors.New("alpaca API key and secret are required")
	}
	opts := marketdata.ClientOpts{
		APIKey:    config.APIKey,
		APISecret: config.APISecret,
	}
	if config.DataURL != "" {
		opts.BaseURL = config.DataURL
	}
	return newAlpacaProvider(marketdata.NewClient(opts), config), nil
}

func newAlpacaProvider(client tradeClient, config AlpacaConfig) *AlpacaProvider {
	if config.RateLimitPerMinute <= 0 {
		config.RateLimitPerMinute = 200
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = 3
	}
	if config.BackoffBaseMs <= 0 {
		config.BackoffBaseMs = 250
	}
	return &AlpacaProvider{
		client:      client,
		rateLimiter: rate.NewLimiter(rate.Limit(float64(config.RateLimitPerMinute)/60), 1),
		config:      config,
	}
}

func (a *AlpacaProvider) GetPrice(ctx context.Context, ticker string) (decimal.Decimal, error) {
	sym := NormalizeSymbol(ticker)
	if sym == "" {
		return decimal.Zero, NewBadSymbolError(ticker, "empty symbol")
	}

	var price decimal.Decimal
	err := retry(ctx, a.config.MaxRetries, a.backoff(), func() error {
		if err := a.rateLimiter.Wait(ctx); err != nil {
			return NewNetworkError(sym, "rate limit wait cancelled", err)
		}
		trade, err := a.client.GetLatestTrade(sym, marketdata.GetLatestTradeRequest{})
		if err != nil {
			return classify(sym, err)
		}
		if trade == nil {
			return NewNotFoundError(sym)
		}
		if trade.Price <= 0 {
			return NewProviderError(sym, "non-positive trade price", nil)
		}
		price = decimal.NewFromFloat(trade.Price)
		return nil
	})
	if err != nil {
		observ.Warn("quote_fetch_failed", map[string]any{"symbol": sym, "type": ErrorType(err), "error": err.Error()})
		return decimal.Zero, err
	}
	return price, nil
}

// GetPrices makes one batch request. Symbols missing from the response are
// left out of the result.
func (a *AlpacaProvider) GetPrices(ctx context.Context, tickers []string) (map[string]decimal.Decimal, error) {
	out := make(map[string]decimal.Decimal, len(tickers))
	if len(tickers) == 0 {
		return out, nil
	}
	syms := make([]string, 0, len(tickers))
	bySym := make(map[string][]string, len(tickers))
	for _, t := range tickers {
		s := NormalizeSymbol(t)
		if s == "" {
			continue
		}
		if _, dup := bySym[s]; !dup {
			syms = append(syms, s)
		}
		bySym[s] = append(bySym[s], t)
	}

	var trades map[string]marketdata.Trade
	err := retry(ctx, a.config.MaxRetries, a.backoff(), func() error {
		if err := a.rateLimiter.Wait(ctx); err != nil {
			return NewNetworkError(strings.Join(syms, ","), "rate limit wait cancelled", err)
		}
		var err error
		trades, err = a.client.GetLatestTrades(syms, marketdata.GetLatestTradeRequest{})
		if err != nil {
			return classify(strings.Join(syms, ","), err)
		}
		return nil
	})
	if err != nil {
		return out, err
	}

	for sym, tr := range trades {
		if tr.Price <= 0 {
			continue
		}
		for _, orig := range bySym[sym] {
			out[orig] = decimal.NewFromFloat(tr.Price)
		}
	}
	if len(out) < len(tickers) {
		observ.Debug("quote_batch_partial", map[string]any{"requested": len(tickers), "priced": len(out)})
	}
	return out, nil
}

func (a *AlpacaProvider) backoff() time.Duration {
	return time.Duration(a.config.BackoffBaseMs) * time.Millisecond
}

func classify(symbol string, err error) *QuoteError {
	var ne net.Error
	if errors.As(err, &ne) {
		return NewNetworkError(symbol, "request failed", err)
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "429") || strings.Contains(msg, "too many requests"):
		return NewRateLimitError(symbol, err.Error())
	case strings.Contains(msg, "invalid symbol"):
		return NewBadSymbolError(symbol, err.Error())
	}
	return NewProviderError(symbol, "request failed", err)
}
