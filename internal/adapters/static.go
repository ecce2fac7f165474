package adapters

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
)

// StaticProvider serves fixed prices. Used for replays and tests.
type StaticProvider struct {
	mu     sync.RWMutex
	prices map[string]decimal.Decimal
	calls  int
}

func NewStaticProvider(prices map[string]float64) *StaticProvider {
	s := &StaticProvider{prices: make(map[string]decimal.Decimal, len(prices))}
	for sym, p := range prices {
		s.prices[NormalizeSymbol(sym)] = decimal.NewFromFloat(p)
	}
	return s
}

func (s *StaticProvider) GetPrice(ctx context.Context, ticker string) (decimal.Decimal, error) {
	select {
	case <-ctx.Done():
		return decimal.Zero, NewNetworkError(ticker, "context done", ctx.Err())
	default:
	}

	sym := NormalizeSymbol(ticker)
	if sym == "" {
		return decimal.Zero, NewBadSymbolError(ticker, "empty symbol")
	}

	s.mu.Lock()
	s.calls++
	p, ok := s.prices[sym]
	s.mu.Unlock()
	if !ok {
		return decimal.Zero, NewNotFoundError(sym)
	}
	return p, nil
}

// GetPrices returns whatever subset of tickers is known.
func (s *StaticProvider) GetPrices(ctx context.Context, tickers []string) (map[string]decimal.Decimal, error) {
	out := make(map[string]decimal.Decimal, len(tickers))
	for _, t := range tickers {
		p, err := s.GetPrice(ctx, t)
		if err != nil {
			if ctx.Err() != nil {
				return out, err
			}
			continue
		}
		out[t] = p
	}
	return out, nil
}

// SetPrice adds or replaces a price.
func (s *StaticProvider) SetPrice(ticker string, price decimal.Decimal) {
	s.mu.Lock()
	s.prices[NormalizeSymbol(ticker)] = price
	s.mu.Unlock()
}

func (s *StaticProvider) RemovePrice(ticker string) {
	s.mu.Lock()
	delete(s.prices, NormalizeSymbol(ticker))
	s.mu.Unlock()
}

// Calls counts GetPrice lookups, including failed ones.
func (s *StaticProvider) Calls() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.calls
}
