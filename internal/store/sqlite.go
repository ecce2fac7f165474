// Package store persists alerts, executions, PnL and end-of-day prices to
// SQLite.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/Rajchodisetti/alertbot/internal/notify"
	"github.com/Rajchodisetti/alertbot/internal/observ"
	"github.com/Rajchodisetti/alertbot/internal/pnl"
)

const schema = `
CREATE TABLE IF NOT EXISTS alerts (
	id          TEXT PRIMARY KEY,
	sender      TEXT NOT NULL,
	body        TEXT NOT NULL,
	received_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS executions (
	id       TEXT PRIMARY KEY,
	version  TEXT NOT NULL,
	ticker   TEXT NOT NULL,
	side     TEXT NOT NULL,
	price    TEXT NOT NULL,
	qty      INTEGER NOT NULL,
	origin   TEXT NOT NULL,
	executed TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS pnl (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	version      TEXT NOT NULL,
	ticker       TEXT NOT NULL,
	kind         TEXT NOT NULL,
	price_bought TEXT NOT NULL,
	price_sold   TEXT NOT NULL,
	pct_change   TEXT NOT NULL,
	qty          INTEGER NOT NULL,
	time_bought  TEXT NOT NULL,
	time_sold    TEXT NOT NULL,
	buy_origin   TEXT NOT NULL,
	sell_origin  TEXT NOT NULL,
	UNIQUE (version, ticker, time_bought, kind)
);
CREATE TABLE IF NOT EXISTS eod_prices (
	id      INTEGER PRIMARY KEY AUTOINCREMENT,
	as_of   TEXT NOT NULL,
	version TEXT NOT NULL,
	ticker  TEXT NOT NULL,
	price   TEXT NOT NULL,
	UNIQUE (as_of, version, ticker)
);`

// SQLiteStore is safe for concurrent use; writes are serialized on one
// connection.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

func Open(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &SQLiteStore{db: db, path: dbPath}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func ts(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

// InsertAlert stores a raw alert. It reports false when the id was already
// stored, which the producer treats as a duplicate.
func (s *SQLiteStore) InsertAlert(ctx context.Context, id, sender, body string, at time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO alerts (id, sender, body, received_at) VALUES (?, ?, ?, ?)`,
		id, sender, body, ts(at))
	if err != nil {
		return false, fmt.Errorf("insert alert %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *SQLiteStore) InsertExecution(ctx context.Context, t notify.TradeExecuted) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO executions (id, version, ticker, side, price, qty, origin, executed) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Version, t.Ticker, t.Side, t.Price.String(), t.Quantity, t.Origin, ts(t.Timestamp))
	if err != nil {
		return fmt.Errorf("insert execution %s: %w", t.ID, err)
	}
	return nil
}

// InsertPnL stores one record per lot and kind. A later mark for the same
// lot overwrites the earlier one.
func (s *SQLiteStore) InsertPnL(ctx context.Context, r pnl.Record) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO pnl (version, ticker, kind, price_bought, price_sold, pct_change, qty, time_bought, time_sold, buy_origin, sell_origin)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (version, ticker, time_bought, kind) DO UPDATE SET
		   price_sold = excluded.price_sold, pct_change = excluded.pct_change,
		   time_sold = excluded.time_sold, sell_origin = excluded.sell_origin`,
		r.Version, r.Ticker, string(r.Kind), r.PriceBought.String(), r.PriceSold.String(), r.PctChange.StringFixed(pnl.PctPlaces),
		r.Quantity, ts(r.TimeBought), ts(r.TimeSold), r.BuyOrigin, r.SellOrigin)
	if err != nil {
		return fmt.Errorf("insert pnl %s/%s: %w", r.Version, r.Ticker, err)
	}
	return nil
}

// InsertEODPrices writes one row per priced (version, ticker) in a single
// transaction. Repeating a pass for the same instant updates the rows.
func (s *SQLiteStore) InsertEODPrices(ctx context.Context, e notify.EODPrices) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO eod_prices (as_of, version, ticker, price) VALUES (?, ?, ?, ?)
		ON CONFLICT (as_of, version, ticker) DO UPDATE SET price = excluded.price`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	versions := make([]string, 0, len(e.Prices))
	for v := range e.Prices {
		versions = append(versions, v)
	}
	sort.Strings(versions)
	for _, v := range versions {
		for ticker, price := range e.Prices[v] {
			if _, err := stmt.ExecContext(ctx, ts(e.Timestamp), v, ticker, price.String()); err != nil {
				return fmt.Errorf("insert eod price %s/%s: %w", v, ticker, err)
			}
		}
	}
	return tx.Commit()
}

// Handle implements notify.Sink. Failures are logged and dropped.
func (s *SQLiteStore) Handle(n notify.Notification) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var err error
	switch v := n.(type) {
	case notify.TradeExecuted:
		err = s.InsertExecution(ctx, v)
	case notify.PnL:
		err = s.InsertPnL(ctx, v.Record)
	case notify.EODPrices:
		err = s.InsertEODPrices(ctx, v)
	default:
		return
	}
	if err != nil {
		observ.Error("store_write_failed", err, map[string]any{"kind": string(n.Kind()), "path": s.path})
	}
}
