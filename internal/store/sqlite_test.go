package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rajchodisetti/alertbot/internal/notify"
	"github.com/Rajchodisetti/alertbot/internal/pnl"
)

var at = time.Date(2024, 3, 14, 14, 30, 0, 0, time.UTC)

func openTest(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "db", "alertbot.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func executions(ctx context.Context, s *SQLiteStore) ([]notify.TradeExecuted, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, version, ticker, side, price, qty, origin, executed FROM executions ORDER BY executed, rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []notify.TradeExecuted
	for rows.Next() {
		var t notify.TradeExecuted
		var price, executed string
		if err := rows.Scan(&t.ID, &t.Version, &t.Ticker, &t.Side, &price, &t.Quantity, &t.Origin, &executed); err != nil {
			return nil, err
		}
		if t.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("execution %s price: %w", t.ID, err)
		}
		if t.Timestamp, err = time.Parse(time.RFC3339Nano, executed); err != nil {
			return nil, fmt.Errorf("execution %s time: %w", t.ID, err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func pnlRecords(ctx context.Context, s *SQLiteStore) ([]pnl.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT version, ticker, kind, price_bought, price_sold, pct_change, qty, time_bought, time_sold, buy_origin, sell_origin
		 FROM pnl ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []pnl.Record
	for rows.Next() {
		var r pnl.Record
		var kind, bought, sold, pct, tb, tsold string
		if err := rows.Scan(&r.Version, &r.Ticker, &kind, &bought, &sold, &pct, &r.Quantity, &tb, &tsold, &r.BuyOrigin, &r.SellOrigin); err != nil {
			return nil, err
		}
		r.Kind = pnl.Kind(kind)
		for _, f := range []struct {
			dst *decimal.Decimal
			src string
		}{{&r.PriceBought, bought}, {&r.PriceSold, sold}, {&r.PctChange, pct}} {
			if *f.dst, err = decimal.NewFromString(f.src); err != nil {
				return nil, fmt.Errorf("pnl %s/%s: %w", r.Version, r.Ticker, err)
			}
		}
		if r.TimeBought, err = time.Parse(time.RFC3339Nano, tb); err != nil {
			return nil, fmt.Errorf("pnl %s/%s time bought: %w", r.Version, r.Ticker, err)
		}
		if r.TimeSold, err = time.Parse(time.RFC3339Nano, tsold); err != nil {
			return nil, fmt.Errorf("pnl %s/%s time sold: %w", r.Version, r.Ticker, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func countEODPrices(ctx context.Context, s *SQLiteStore) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM eod_prices`).Scan(&n)
	return n, err
}

func TestInsertAlertDedup(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	ok, err := s.InsertAlert(ctx, "<msg-1>", "alerts@scanner", "New symbols: AAPL were added to #B4#[BUY]#V1#", at)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.InsertAlert(ctx, "<msg-1>", "alerts@scanner", "again", at)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHandleWritesRows(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	s.Handle(notify.AlertObserved{AlertID: "ignored"})
	s.Handle(notify.TradeExecuted{ID: "e1", Version: "V1", Ticker: "AAPL", Side: "BUY", Price: decimal.RequireFromString("50.00"), Quantity: 100, Origin: "#B4#[BUY]#V1#", Timestamp: at})
	s.Handle(notify.PnL{Record: pnl.Record{
		Ticker: "AAPL", Version: "V1", Kind: pnl.Realized,
		PriceBought: decimal.RequireFromString("50"), PriceSold: decimal.RequireFromString("52.5"),
		PctChange: decimal.RequireFromString("5"), Quantity: 100,
		TimeBought: at, TimeSold: at.Add(time.Hour), BuyOrigin: "b", SellOrigin: "s",
	}})
	s.Handle(notify.EODPrices{Timestamp: at, Prices: map[string]map[string]decimal.Decimal{
		"V1": {"AAPL": decimal.NewFromInt(51), "MSFT": decimal.NewFromInt(400)},
		"V2": {"NVDA": decimal.NewFromInt(900)},
	}})

	execs, err := executions(ctx, s)
	require.NoError(t, err)
	require.Len(t, execs, 1)
	assert.Equal(t, "AAPL", execs[0].Ticker)
	assert.True(t, execs[0].Price.Equal(decimal.NewFromInt(50)))
	assert.True(t, execs[0].Timestamp.Equal(at))

	recs, err := pnlRecords(ctx, s)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "5.0000", recs[0].PctChange.StringFixed(4))
	assert.Equal(t, pnl.Realized, recs[0].Kind)
	assert.True(t, recs[0].TimeSold.Equal(at.Add(time.Hour)))

	n, err := countEODPrices(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestDuplicateExecutionIsLogged(t *testing.T) {
	s := openTest(t)
	ex := notify.TradeExecuted{ID: "dup", Version: "V1", Ticker: "A", Side: "BUY", Price: decimal.NewFromInt(1), Quantity: 1, Timestamp: at}
	require.NoError(t, s.InsertExecution(context.Background(), ex))
	assert.Error(t, s.InsertExecution(context.Background(), ex))
	assert.NotPanics(t, func() { s.Handle(ex) })
}

func TestRepeatedMarksUpdateRows(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	mark := pnl.Record{
		Ticker: "AAPL", Version: "V1", Kind: pnl.Unrealized,
		PriceBought: decimal.NewFromInt(50), PriceSold: decimal.NewFromInt(55),
		PctChange: decimal.NewFromInt(10), Quantity: 100,
		TimeBought: at, TimeSold: at.Add(time.Hour), BuyOrigin: "b", SellOrigin: pnl.EODOrigin,
	}
	eod := notify.EODPrices{Timestamp: at.Add(time.Hour), Prices: map[string]map[string]decimal.Decimal{
		"V1": {"AAPL": decimal.NewFromInt(55)},
	}}
	s.Handle(notify.PnL{Record: mark})
	s.Handle(eod)

	mark.PriceSold = decimal.NewFromInt(60)
	mark.PctChange = decimal.NewFromInt(20)
	eod.Prices["V1"]["AAPL"] = decimal.NewFromInt(60)
	s.Handle(notify.PnL{Record: mark})
	s.Handle(eod)

	recs, err := pnlRecords(ctx, s)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.True(t, recs[0].PriceSold.Equal(decimal.NewFromInt(60)))

	n, err := countEODPrices(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// realized and unrealized rows for the same lot are kept apart
	mark.Kind = pnl.Realized
	require.NoError(t, s.InsertPnL(ctx, mark))
	recs, err = pnlRecords(ctx, s)
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}
