// Package portfolio tracks open lots per strategy version and ticker.
package portfolio

import (
	"errors"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Rajchodisetti/alertbot/internal/risk"
)

var (
	ErrDuplicateOpen  = errors.New("lot already open for version and ticker")
	ErrSizingRejected = errors.New("sized quantity below one share")
	ErrNoOpenLot      = errors.New("no open lot for version and ticker")
)

// Lot is one open long position created by a buy signal.
type Lot struct {
	Ticker     string          `json:"ticker"`
	EntryPrice decimal.Decimal `json:"entry_price"`
	Quantity   int             `json:"quantity"`
	EntryTime  time.Time       `json:"entry_time"`
	Origin     string          `json:"origin"`
}

// Notional is entry price times quantity.
func (l Lot) Notional() decimal.Decimal {
	return l.EntryPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Position is a lot together with the version it was opened under.
type Position struct {
	Version string `json:"version"`
	Lot
}

// Ledger maps version -> ticker -> lot. It is not safe for concurrent use;
// the control loop is its only owner.
type Ledger struct {
	lots       map[string]map[string]*Lot
	defaultQty int
	budget     *risk.State
}

// NewLedger creates an empty ledger that sizes orders against budget and
// records accepted buy notional on it.
func NewLedger(defaultQty int, budget *risk.State) *Ledger {
	return &Ledger{
		lots:       make(map[string]map[string]*Lot),
		defaultQty: defaultQty,
		budget:     budget,
	}
}

// Size returns floor(min(defaultQty, min(perTradeLimit, remaining budget) / price)).
func (l *Ledger) Size(price decimal.Decimal) int {
	if !price.IsPositive() {
		return 0
	}
	maxAmt := decimal.Min(l.budget.PerTradeLimit, l.budget.Remaining())
	shares := maxAmt.Div(price).Floor().IntPart()
	if shares > int64(l.defaultQty) {
		shares = int64(l.defaultQty)
	}
	if shares < 0 {
		return 0
	}
	return int(shares)
}

func (l *Ledger) Has(version, ticker string) bool {
	_, ok := l.lots[version][ticker]
	return ok
}

func (l *Ledger) Get(version, ticker string) (Lot, bool) {
	lot, ok := l.lots[version][ticker]
	if !ok {
		return Lot{}, false
	}
	return *lot, true
}

// Open sizes and inserts a lot and charges its notional to the budget.
// Nothing changes when it returns an error.
func (l *Ledger) Open(version, ticker string, price decimal.Decimal, at time.Time, origin string) (Lot, error) {
	if l.Has(version, ticker) {
		return Lot{}, ErrDuplicateOpen
	}
	qty := l.Size(price)
	if qty < 1 {
		return Lot{}, ErrSizingRejected
	}
	lot := &Lot{
		Ticker:     ticker,
		EntryPrice: price,
		Quantity:   qty,
		EntryTime:  at,
		Origin:     origin,
	}
	l.insert(version, lot)
	l.budget.Record(lot.Notional())
	return *lot, nil
}

// Close removes the lot for (version, ticker). The version entry is pruned
// when its last lot goes.
func (l *Ledger) Close(version, ticker string) (Lot, bool) {
	byTicker, ok := l.lots[version]
	if !ok {
		return Lot{}, false
	}
	lot, ok := byTicker[ticker]
	if !ok {
		return Lot{}, false
	}
	delete(byTicker, ticker)
	if len(byTicker) == 0 {
		delete(l.lots, version)
	}
	return *lot, true
}

func (l *Ledger) insert(version string, lot *Lot) {
	byTicker, ok := l.lots[version]
	if !ok {
		byTicker = make(map[string]*Lot)
		l.lots[version] = byTicker
	}
	byTicker[lot.Ticker] = lot
}

// Len counts open lots across all versions.
func (l *Ledger) Len() int {
	n := 0
	for _, byTicker := range l.lots {
		n += len(byTicker)
	}
	return n
}

func (l *Ledger) Versions() []string {
	out := make([]string, 0, len(l.lots))
	for v := range l.lots {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// Lots returns the lots open under version, ordered by ticker.
func (l *Ledger) Lots(version string) []Lot {
	byTicker := l.lots[version]
	out := make([]Lot, 0, len(byTicker))
	for _, lot := range byTicker {
		out = append(out, *lot)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ticker < out[j].Ticker })
	return out
}

// Positions is a copy of every open lot ordered by version then ticker.
func (l *Ledger) Positions() []Position {
	var out []Position
	for _, v := range l.Versions() {
		for _, lot := range l.Lots(v) {
			out = append(out, Position{Version: v, Lot: lot})
		}
	}
	return out
}
