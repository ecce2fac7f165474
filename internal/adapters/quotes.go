package adapters

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// QuoteProvider returns last-trade prices. GetPrices may return a partial
// map; symbols it could not price are simply absent.
type QuoteProvider interface {
	GetPrice(ctx context.Context, ticker string) (decimal.Decimal, error)
	GetPrices(ctx context.Context, tickers []string) (map[string]decimal.Decimal, error)
}

// QuoteError types
const (
	ErrTypeNetwork       = "network"
	ErrTypeRateLimit     = "rate_limit"
	ErrTypeProviderError = "provider_error"
	ErrTypeBadSymbol     = "bad_symbol"
	ErrTypeNotFound      = "not_found"
)

// QuoteError represents different types of quote fetch errors
type QuoteError struct {
	Type    string
	Symbol  string
	Message string
	Cause   error
}

func (e *QuoteError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s error for %s: %s (%v)", e.Type, e.Symbol, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s error for %s: %s", e.Type, e.Symbol, e.Message)
}

func (e *QuoteError) Unwrap() error { return e.Cause }

// Retryable reports whether a later attempt could succeed.
func (e *QuoteError) Retryable() bool {
	switch e.Type {
	case ErrTypeNetwork, ErrTypeRateLimit, ErrTypeProviderError:
		return true
	}
	return false
}

func NewNetworkError(symbol, message string, cause error) *QuoteError {
	return &QuoteError{Type: ErrTypeNetwork, Symbol: symbol, Message: message, Cause: cause}
}

func NewRateLimitError(symbol, message string) *QuoteError {
	return &QuoteError{Type: ErrTypeRateLimit, Symbol: symbol, Message: message}
}

func NewProviderError(symbol, message string, cause error) *QuoteError {
	return &QuoteError{Type: ErrTypeProviderError, Symbol: symbol, Message: message, Cause: cause}
}

func NewBadSymbolError(symbol, message string) *QuoteError {
	return &QuoteError{Type: ErrTypeBadSymbol, Symbol: symbol, Message: message}
}

func NewNotFoundError(symbol string) *QuoteError {
	return &QuoteError{Type: ErrTypeNotFound, Symbol: symbol, Message: "no price available"}
}

// ErrorType extracts the QuoteError type, or "" for other errors.
func ErrorType(err error) string {
	var qe *QuoteError
	if errors.As(err, &qe) {
		return qe.Type
	}
	return ""
}

// NormalizeSymbol uppercases and trims a ticker.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
