// Package pnl derives realized and unrealized results from lots.
package pnl

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Rajchodisetti/alertbot/internal/portfolio"
)

type Kind string

const (
	Realized   Kind = "REALIZED"
	Unrealized Kind = "UNREALIZED"
)

// EODOrigin marks the sell side of a mark-to-market record.
const EODOrigin = "EOD"

// PctPlaces is the rounding precision of PctChange. decimal.Round rounds
// half away from zero.
const PctPlaces = 4

var hundred = decimal.NewFromInt(100)

type Record struct {
	Ticker      string          `json:"ticker"`
	PriceBought decimal.Decimal `json:"price_bought"`
	PriceSold   decimal.Decimal `json:"price_sold"`
	PctChange   decimal.Decimal `json:"price_chg_pct"`
	Quantity    int             `json:"qty"`
	TimeBought  time.Time       `json:"time_bought"`
	TimeSold    time.Time       `json:"time_sold"`
	BuyOrigin   string          `json:"buy_origin"`
	SellOrigin  string          `json:"sell_origin"`
	Version     string          `json:"version"`
	Kind        Kind            `json:"pnl_type"`
}

// Amount is the currency result: (sold - bought) * quantity.
func (r Record) Amount() decimal.Decimal {
	return r.PriceSold.Sub(r.PriceBought).Mul(decimal.NewFromInt(int64(r.Quantity)))
}

// PctChange is 100 * (sold - bought) / bought, rounded to PctPlaces.
func PctChange(bought, sold decimal.Decimal) decimal.Decimal {
	if bought.IsZero() {
		return decimal.Zero
	}
	return sold.Sub(bought).Mul(hundred).Div(bought).Round(PctPlaces)
}

// Realize builds the record for a lot closed by a sell.
func Realize(version string, lot portfolio.Lot, sellPrice decimal.Decimal, sellTime time.Time, sellOrigin string) Record {
	return newRecord(version, lot, sellPrice, sellTime, sellOrigin, Realized)
}

// MarkToMarket values an open lot at last. When ok is false no price was
// available and the entry price is used, giving a zero change.
func MarkToMarket(version string, lot portfolio.Lot, last decimal.Decimal, ok bool, asOf time.Time) Record {
	if !ok || !last.IsPositive() {
		last = lot.EntryPrice
	}
	return newRecord(version, lot, last, asOf, EODOrigin, Unrealized)
}

func newRecord(version string, lot portfolio.Lot, price decimal.Decimal, at time.Time, origin string, kind Kind) Record {
	return Record{
		Ticker:      lot.Ticker,
		PriceBought: lot.EntryPrice,
		PriceSold:   price,
		PctChange:   PctChange(lot.EntryPrice, price),
		Quantity:    lot.Quantity,
		TimeBought:  lot.EntryTime,
		TimeSold:    at,
		BuyOrigin:   lot.Origin,
		SellOrigin:  origin,
		Version:     version,
		Kind:        kind,
	}
}
