// Package notify carries engine notifications to their sinks.
package notify

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Rajchodisetti/alertbot/internal/pnl"
	"github.com/Rajchodisetti/alertbot/internal/portfolio"
)

type Kind string

const (
	KindAlertObserved     Kind = "ALERT_OBSERVED"
	KindTradeExecuted     Kind = "TRADE_EXECUTED"
	KindPnL               Kind = "PNL"
	KindPositionsSnapshot Kind = "POSITIONS_SNAPSHOT"
	KindEODPrices         Kind = "EOD_PRICES"
)

// Notification is implemented by one struct per kind.
type Notification interface {
	Kind() Kind
}

// AlertObserved is emitted for every trade event before it is acted on.
type AlertObserved struct {
	AlertID   string    `json:"alert_id"`
	Symbols   []string  `json:"symbols"`
	Action    string    `json:"action"`
	Side      string    `json:"side"`
	Version   string    `json:"version"`
	Scanner   string    `json:"scanner"`
	Timestamp time.Time `json:"timestamp"`
}

type TradeExecuted struct {
	ID        string          `json:"id"`
	Version   string          `json:"version"`
	Ticker    string          `json:"ticker"`
	Side      string          `json:"side"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"qty"`
	Origin    string          `json:"origin"`
	Timestamp time.Time       `json:"timestamp"`
}

// Notional is price times quantity.
func (t TradeExecuted) Notional() decimal.Decimal {
	return t.Price.Mul(decimal.NewFromInt(int64(t.Quantity)))
}

type PnL struct {
	Record pnl.Record `json:"record"`
}

type PositionsSnapshot struct {
	Timestamp time.Time            `json:"timestamp"`
	Positions []portfolio.Position `json:"positions"`
	Realized  pnl.Summary          `json:"realized"`
	BuySpend  decimal.Decimal      `json:"buy_spend"`
}

// EODPrices holds the end-of-day price used per version and ticker.
// Tickers without a price are absent.
type EODPrices struct {
	Timestamp time.Time                             `json:"timestamp"`
	Prices    map[string]map[string]decimal.Decimal `json:"prices"`
}

func (AlertObserved) Kind() Kind     { return KindAlertObserved }
func (TradeExecuted) Kind() Kind     { return KindTradeExecuted }
func (PnL) Kind() Kind               { return KindPnL }
func (PositionsSnapshot) Kind() Kind { return KindPositionsSnapshot }
func (EODPrices) Kind() Kind         { return KindEODPrices }

// Envelope is the wire form shared by every serializing sink.
type Envelope struct {
	Kind Kind            `json:"kind"`
	Data json.RawMessage `json:"data"`
}

func Encode(n Notification) ([]byte, error) {
	data, err := json.Marshal(n)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", n.Kind(), err)
	}
	return json.Marshal(Envelope{Kind: n.Kind(), Data: data})
}
