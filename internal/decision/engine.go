// Package decision is the control loop: it consumes trade events, gates and
// sizes buys, closes lots on sells, and runs the end-of-day pass.
package decision

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Rajchodisetti/alertbot/internal/adapters"
	"github.com/Rajchodisetti/alertbot/internal/alerts"
	"github.com/Rajchodisetti/alertbot/internal/config"
	"github.com/Rajchodisetti/alertbot/internal/notify"
	"github.com/Rajchodisetti/alertbot/internal/observ"
	"github.com/Rajchodisetti/alertbot/internal/pnl"
	"github.com/Rajchodisetti/alertbot/internal/portfolio"
	"github.com/Rajchodisetti/alertbot/internal/queue"
	"github.com/Rajchodisetti/alertbot/internal/risk"
)

// Per-ticker skip reasons, in addition to the risk gate names.
const (
	SkipRiskRejected     = "risk_rejected"
	SkipDuplicateOpen    = "duplicate_open"
	SkipNoOpenLot        = "no_open_lot"
	SkipPriceUnavailable = "price_unavailable"
	SkipSizing           = "sizing_rejected"
)

// Reporter receives the day's full PnL history once, after the cutoff.
type Reporter interface {
	Report(ctx context.Context, day time.Time, records []pnl.Record) error
}

type Options struct {
	Trading  config.Trading
	Quotes   adapters.QuoteProvider
	Sink     notify.Sink
	Reporter Reporter
	Queue    *queue.Queue[TradeEvent]

	// Day selects the trading day; zero means the day of Now().
	Day          time.Time
	Now          func() time.Time
	NewID        func() string
	PollInterval time.Duration
	LedgerPath   string
}

type Stats struct {
	Events   int `json:"events"`
	Buys     int `json:"buys"`
	Sells    int `json:"sells"`
	Skipped  int `json:"skipped"`
	Rejected int `json:"rejected"`
}

// Engine exclusively owns the ledger, the risk state and the PnL history.
// None of its methods are safe for concurrent use; Run is the only caller
// in a live process.
type Engine struct {
	quotes   adapters.QuoteProvider
	sink     notify.Sink
	reporter Reporter
	queue    *queue.Queue[TradeEvent]
	now      func() time.Time
	newID    func() string

	day        time.Time
	cutoff     time.Time
	poll       time.Duration
	ledgerPath string

	state   *risk.State
	ctrl    *risk.Controller
	ledger  *portfolio.Ledger
	history *pnl.History
	stats   Stats
}

func New(opts Options) *Engine {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if opts.Sink == nil {
		opts.Sink = notify.Discard
	}
	if opts.Queue == nil {
		opts.Queue = queue.New[TradeEvent]()
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Duration(opts.Trading.QueuePollSeconds) * time.Second
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 5 * time.Second
	}

	loc := opts.Trading.Location()
	day := opts.Day
	if day.IsZero() {
		day = opts.Now()
	}
	day = day.In(loc)
	day = time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, loc)

	state := risk.NewState(opts.Trading, day)
	return &Engine{
		quotes:     opts.Quotes,
		sink:       opts.Sink,
		reporter:   opts.Reporter,
		queue:      opts.Queue,
		now:        opts.Now,
		newID:      opts.NewID,
		day:        day,
		cutoff:     opts.Trading.Cutoff.On(day, loc),
		poll:       opts.PollInterval,
		ledgerPath: opts.LedgerPath,
		state:      state,
		ctrl:       risk.NewController(opts.Trading.BuyWindowEnforced()),
		ledger:     portfolio.NewLedger(opts.Trading.DefaultQty, state),
		history:    pnl.NewHistory(),
	}
}

func (e *Engine) Day() time.Time { return e.day }
func (e *Engine) Cutoff() time.Time { return e.cutoff }
func (e *Engine) Ledger() *portfolio.Ledger { return e.ledger }
func (e *Engine) History() *pnl.History { return e.history }
func (e *Engine) State() risk.State { return *e.state }
func (e *Engine) Stats() Stats { return e.stats }
func (e *Engine) Queue() *queue.Queue[TradeEvent] { return e.queue }

// Restore loads lots saved by an earlier run on the same ledger path.
func (e *Engine) Restore() (int, error) {
	if e.ledgerPath == "" {
		return 0, nil
	}
	n, err := portfolio.Load(e.ledgerPath, e.ledger)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		observ.Log("ledger_restored", map[string]any{"path": e.ledgerPath, "lots": n})
	}
	observ.SetOpenLots(e.ledger.Len())
	return n, nil
}

// Process handles one event to completion.
func (e *Engine) Process(ctx context.Context, ev TradeEvent) {
	now := e.now()
	e.stats.Events++
	e.sink.Handle(notify.AlertObserved{
		AlertID:   ev.AlertID,
		Symbols:   append([]string(nil), ev.Symbols...),
		Action:    string(ev.Action),
		Side:      string(ev.Side),
		Version:   ev.Version,
		Scanner:   ev.Scanner,
		Timestamp: ev.Timestamp,
	})

	traded := false
	switch {
	case ev.Action != alerts.ActionAdded:
		observ.Log("alert_removed_ignored", map[string]any{"alert_id": ev.AlertID, "version": ev.Version, "symbols": ev.Symbols})
		return
	case ev.Side == alerts.SideBuy:
		if ok, reasons := e.ctrl.Check(*e.state, decimal.Zero, now); !ok {
			e.stats.Rejected++
			observ.RecordRejection(SkipRiskRejected)
			observ.Log("event_risk_rejected", map[string]any{
				"alert_id":      ev.AlertID,
				"version":       ev.Version,
				"gates_blocked": reasons,
				"spend":         e.state.CumulativeBuySpend.String(),
			})
			return
		}
		for _, t := range ev.Symbols {
			if e.buy(ctx, ev, t, now) {
				traded = true
			}
		}
	case ev.Side == alerts.SideSell:
		for _, t := range ev.Symbols {
			if e.sell(ctx, ev, t, now) {
				traded = true
			}
		}
	}

	if traded {
		e.afterTrade(now)
	}
}

func (e *Engine) buy(ctx context.Context, ev TradeEvent, ticker string, now time.Time) bool {
	if e.ledger.Has(ev.Version, ticker) {
		return e.skip(ev, ticker, SkipDuplicateOpen, nil)
	}
	price, err := e.quotes.GetPrice(ctx, ticker)
	if err != nil {
		observ.Error("price_lookup_failed", err, map[string]any{"ticker": ticker, "version": ev.Version, "side": "BUY"})
		return e.skip(ev, ticker, SkipPriceUnavailable, nil)
	}
	// Sizing caps the notional at the remaining daily budget, so an order
	// may use it up exactly. The gates ran once for the whole event.
	if qty := e.ledger.Size(price); qty < 1 {
		return e.skip(ev, ticker, SkipSizing, map[string]any{"price": price.String(), "remaining": e.state.Remaining().String()})
	}

	lot, err := e.ledger.Open(ev.Version, ticker, price, now, ev.Origin())
	if err != nil {
		observ.Error("open_failed", err, map[string]any{"ticker": ticker, "version": ev.Version})
		e.stats.Skipped++
		return false
	}
	e.stats.Buys++
	observ.RecordTrade(string(alerts.SideBuy))
	e.sink.Handle(notify.TradeExecuted{
		ID:        e.newID(),
		Version:   ev.Version,
		Ticker:    ticker,
		Side:      string(alerts.SideBuy),
		Price:     lot.EntryPrice,
		Quantity:  lot.Quantity,
		Origin:    lot.Origin,
		Timestamp: now,
	})
	observ.Log("trade_executed", map[string]any{
		"side": "BUY", "ticker": ticker, "version": ev.Version,
		"price": price.String(), "qty": lot.Quantity, "spend": e.state.CumulativeBuySpend.String(),
	})
	return true
}

func (e *Engine) sell(ctx context.Context, ev TradeEvent, ticker string, now time.Time) bool {
	if !e.ledger.Has(ev.Version, ticker) {
		return e.skip(ev, ticker, SkipNoOpenLot, nil)
	}
	price, err := e.quotes.GetPrice(ctx, ticker)
	if err != nil {
		observ.Error("price_lookup_failed", err, map[string]any{"ticker": ticker, "version": ev.Version, "side": "SELL"})
		return e.skip(ev, ticker, SkipPriceUnavailable, nil)
	}
	lot, ok := e.ledger.Close(ev.Version, ticker)
	if !ok {
		return e.skip(ev, ticker, SkipNoOpenLot, nil)
	}

	rec := pnl.Realize(ev.Version, lot, price, now, ev.Origin())
	e.history.Add(rec)
	e.stats.Sells++
	observ.RecordTrade(string(alerts.SideSell))
	observ.RecordPnL(string(rec.Kind))

	e.sink.Handle(notify.TradeExecuted{
		ID:        e.newID(),
		Version:   ev.Version,
		Ticker:    ticker,
		Side:      string(alerts.SideSell),
		Price:     price,
		Quantity:  lot.Quantity,
		Origin:    ev.Origin(),
		Timestamp: now,
	})
	e.sink.Handle(notify.PnL{Record: rec})
	observ.Log("trade_executed", map[string]any{
		"side": "SELL", "ticker": ticker, "version": ev.Version,
		"price": price.String(), "qty": lot.Quantity, "pct_change": rec.PctChange.StringFixed(pnl.PctPlaces),
	})
	return true
}

func (e *Engine) skip(ev TradeEvent, ticker, reason string, kv map[string]any) bool {
	e.stats.Skipped++
	observ.RecordRejection(reason)
	fields := map[string]any{"ticker": ticker, "version": ev.Version, "side": string(ev.Side), "reason": reason}
	for k, v := range kv {
		fields[k] = v
	}
	observ.Log("ticker_skipped", fields)
	return false
}

func (e *Engine) afterTrade(now time.Time) {
	realized := e.realized()
	summary := pnl.Summarize(realized)
	e.sink.Handle(notify.PositionsSnapshot{
		Timestamp: now,
		Positions: e.ledger.Positions(),
		Realized:  summary,
		BuySpend:  e.state.CumulativeBuySpend,
	})

	spend, _ := e.state.CumulativeBuySpend.Float64()
	observ.SetOpenLots(e.ledger.Len())
	observ.SetBuySpend(spend)
	observ.Log("trading_stats", map[string]any{
		"open_lots":       e.ledger.Len(),
		"versions":        e.ledger.Versions(),
		"realized_count":  summary.Count,
		"realized_amount": summary.TotalAmount.StringFixed(2),
		"wins":            summary.Wins,
		"losses":          summary.Losses,
		"buy_spend":       e.state.CumulativeBuySpend.StringFixed(2),
	})

	if e.ledgerPath != "" {
		if err := portfolio.Save(e.ledgerPath, e.ledger); err != nil {
			observ.Error("ledger_save_failed", err, map[string]any{"path": e.ledgerPath})
		}
	}
}

func (e *Engine) realized() []pnl.Record {
	var out []pnl.Record
	for _, r := range e.history.All() {
		if r.Kind == pnl.Realized {
			out = append(out, r)
		}
	}
	return out
}

// Drain processes queued events in order until the queue is empty or the
// cutoff passes. It returns the number processed.
func (e *Engine) Drain(ctx context.Context) int {
	n := 0
	for ctx.Err() == nil && e.now().Before(e.cutoff) {
		ev, ok := e.queue.Pop()
		if !ok {
			break
		}
		e.Process(ctx, ev)
		n++
	}
	observ.SetQueueDepth(e.queue.Len())
	return n
}

// Run polls the queue until the cutoff, then runs one end-of-day pass and
// one report. A cancelled context ends the loop without either.
func (e *Engine) Run(ctx context.Context) error {
	observ.Log("engine_started", map[string]any{
		"day":    e.day.Format("2006-01-02"),
		"cutoff": e.cutoff.Format(time.RFC3339),
		"poll":   e.poll.String(),
	})

	ticker := time.NewTicker(e.poll)
	defer ticker.Stop()
	for e.now().Before(e.cutoff) {
		e.Drain(ctx)
		select {
		case <-ctx.Done():
			observ.Log("engine_cancelled", map[string]any{"pending": e.queue.Len()})
			return ctx.Err()
		case <-ticker.C:
		}
	}

	if pending := e.queue.Len(); pending > 0 {
		observ.Warn("events_after_cutoff", map[string]any{"pending": pending})
	}
	e.EndOfDay(ctx)
	if err := e.Report(ctx); err != nil {
		return err
	}
	observ.Log("engine_finished", map[string]any{"stats": e.stats})
	return nil
}

// EndOfDay marks every open lot to market as of the cutoff. Lots without a
// price are valued at entry. Repeating it replaces the earlier unrealized
// records, so the history does not grow, and only marks that moved are sent
// to the sink again. Lots stay open.
func (e *Engine) EndOfDay(ctx context.Context) []pnl.Record {
	asOf := e.cutoff
	prices := make(map[string]map[string]decimal.Decimal)
	var records []pnl.Record
	changed := 0

	for _, v := range e.ledger.Versions() {
		lots := e.ledger.Lots(v)
		tickers := make([]string, len(lots))
		for i, l := range lots {
			tickers[i] = l.Ticker
		}
		got, err := e.quotes.GetPrices(ctx, tickers)
		if err != nil {
			observ.Error("eod_price_lookup_failed", err, map[string]any{"version": v, "tickers": tickers})
		}

		for _, l := range lots {
			p, ok := got[l.Ticker]
			if ok {
				if prices[v] == nil {
					prices[v] = make(map[string]decimal.Decimal)
				}
				prices[v][l.Ticker] = p
			} else {
				observ.Warn("eod_price_missing", map[string]any{"version": v, "ticker": l.Ticker})
			}
			rec := pnl.MarkToMarket(v, l, p, ok, asOf)
			records = append(records, rec)
			if e.history.PutUnrealized(rec) == pnl.Unchanged {
				continue
			}
			changed++
			observ.RecordPnL(string(rec.Kind))
			e.sink.Handle(notify.PnL{Record: rec})
		}
	}

	if changed > 0 {
		e.sink.Handle(notify.EODPrices{Timestamp: asOf, Prices: prices})
	}
	observ.Log("eod_complete", map[string]any{"open_lots": len(records), "changed": changed, "versions": len(prices)})
	return records
}

// Report hands the full history to the reporter.
func (e *Engine) Report(ctx context.Context) error {
	records := e.history.All()
	s := pnl.Summarize(records)
	observ.Log("pnl_summary", map[string]any{
		"records": s.Count, "realized": s.Realized, "unrealized": s.Unrealized,
		"amount": s.TotalAmount.StringFixed(2), "mean_pct": s.MeanPct,
	})
	if e.reporter == nil {
		return nil
	}
	return e.reporter.Report(ctx, e.day, records)
}
