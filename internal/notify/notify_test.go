package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rajchodisetti/alertbot/internal/pnl"
)

var ts = time.Date(2024, 3, 14, 10, 0, 0, 0, time.UTC)

type recorder struct {
	mu  sync.Mutex
	got []Notification
}

func (r *recorder) Handle(n Notification) {
	r.mu.Lock()
	r.got = append(r.got, n)
	r.mu.Unlock()
}

func (r *recorder) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.got)
}

func trade(side string) TradeExecuted {
	return TradeExecuted{ID: "t-1", Version: "V5.4", Ticker: "AAPL", Side: side, Price: decimal.RequireFromString("52.5"), Quantity: 100, Origin: "#B4#[BUY]#V5.4#", Timestamp: ts}
}

func TestEncode(t *testing.T) {
	b, err := Encode(trade("BUY"))
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, json.Unmarshal(b, &env))
	assert.Equal(t, KindTradeExecuted, env.Kind)

	var got TradeExecuted
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, "AAPL", got.Ticker)
	assert.True(t, got.Price.Equal(decimal.RequireFromString("52.5")))
	assert.True(t, got.Notional().Equal(decimal.NewFromInt(5250)))
}

func TestFanoutOrder(t *testing.T) {
	var order []string
	f := Fanout{
		SinkFunc(func(Notification) { order = append(order, "a") }),
		nil,
		SinkFunc(func(Notification) { order = append(order, "b") }),
	}
	f.Handle(AlertObserved{AlertID: "1"})
	assert.Equal(t, []string{"a", "b"}, order)
}

func TestAsyncDeliversAll(t *testing.T) {
	rec := &recorder{}
	a := NewAsync("test", rec, 100)
	for i := 0; i < 50; i++ {
		a.Handle(AlertObserved{AlertID: "x"})
	}
	a.Close()
	a.Close()
	assert.Equal(t, 50, rec.len())
	assert.Equal(t, 0, a.Dropped())
}

func TestAsyncDropsWhenFull(t *testing.T) {
	block := make(chan struct{})
	a := NewAsync("slow", SinkFunc(func(Notification) { <-block }), 1)

	for i := 0; i < 10; i++ {
		a.Handle(AlertObserved{})
	}
	close(block)
	a.Close()
	assert.Greater(t, a.Dropped(), 0)
}

func TestStatusSink(t *testing.T) {
	s := NewStatusSink()
	_, ok := s.Snapshot()
	assert.False(t, ok)

	s.Handle(trade("BUY"))
	s.Handle(PositionsSnapshot{Timestamp: ts, BuySpend: decimal.NewFromInt(5250)})
	s.Handle(EODPrices{Timestamp: ts, Prices: map[string]map[string]decimal.Decimal{"V1": {"AAPL": decimal.NewFromInt(1)}}})

	snap, ok := s.Snapshot()
	require.True(t, ok)
	assert.True(t, snap.BuySpend.Equal(decimal.NewFromInt(5250)))
	eod, ok := s.EOD()
	require.True(t, ok)
	assert.Len(t, eod.Prices["V1"], 1)
	assert.Equal(t, map[Kind]int{KindTradeExecuted: 1, KindPositionsSnapshot: 1, KindEODPrices: 1}, s.Counts())
}

func TestRedisSink(t *testing.T) {
	var gotCh string
	var payloads [][]byte
	r := newRedisSink("alertbot.events", func(_ context.Context, ch string, p []byte) error {
		gotCh = ch
		payloads = append(payloads, p)
		return nil
	})
	r.Handle(trade("SELL"))
	require.Len(t, payloads, 1)
	assert.Equal(t, "alertbot.events", gotCh)

	var env Envelope
	require.NoError(t, json.Unmarshal(payloads[0], &env))
	assert.Equal(t, KindTradeExecuted, env.Kind)

	failing := newRedisSink("c", func(context.Context, string, []byte) error { return errors.New("down") })
	assert.NotPanics(t, func() { failing.Handle(trade("BUY")) })
}

func TestSlackSinkPostsTrades(t *testing.T) {
	var mu sync.Mutex
	var bodies []SlackMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		var m SlackMessage
		_ = json.Unmarshal(b, &m)
		mu.Lock()
		bodies = append(bodies, m)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewSlackSink(srv.URL, "#trading")
	defer s.Close()

	s.Handle(AlertObserved{AlertID: "ignored"})
	s.Handle(trade("BUY"))
	s.Handle(trade("BUY")) // deduped
	s.Handle(PnL{Record: pnl.Record{Ticker: "AAPL", Kind: pnl.Unrealized}})
	s.Handle(PnL{Record: pnl.Record{Ticker: "AAPL", Kind: pnl.Realized, PctChange: decimal.RequireFromString("5")}})

	require.Eventually(t, func() bool { return s.Metrics().SentTotal == 2 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, int64(1), s.Metrics().DedupedTotal)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, bodies, 2)
	assert.Equal(t, "#trading", bodies[0].Channel)
	assert.Contains(t, bodies[0].Text, "BUY AAPL x100 @ 52.50")
	assert.Contains(t, bodies[1].Text, "Closed AAPL 5.00%")
}

func TestSlackSinkRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewSlackSink(srv.URL, "")
	s.backoffBase = time.Millisecond
	defer s.Close()

	s.Handle(trade("SELL"))
	require.Eventually(t, func() bool { return s.Metrics().SentTotal == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(3), calls.Load())
}

func TestSlackSinkCloseDeliversQueued(t *testing.T) {
	var sent atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(20 * time.Millisecond)
		sent.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewSlackSink(srv.URL, "")
	s.Handle(trade("BUY"))
	s.Handle(trade("SELL"))
	s.Handle(PnL{Record: pnl.Record{Ticker: "AAPL", Kind: pnl.Realized, PctChange: decimal.RequireFromString("1")}})
	s.Close()

	assert.Equal(t, int32(3), sent.Load())
	assert.Equal(t, int64(3), s.Metrics().SentTotal)

	// Messages after Close are counted and not sent.
	s.Handle(trade("BUY"))
	s.Close()
	assert.Equal(t, int64(1), s.Metrics().DroppedTotal)
}

func TestSlackSinkCloseGivesUpAfterDrainWait(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()
	defer close(release)

	s := NewSlackSink(srv.URL, "")
	s.drainWait = 50 * time.Millisecond
	s.backoffBase = time.Millisecond
	s.Handle(trade("BUY"))
	s.Handle(trade("SELL"))

	start := time.Now()
	s.Close()
	assert.Less(t, time.Since(start), 2*time.Second)
	m := s.Metrics()
	assert.Zero(t, m.SentTotal)
	assert.Equal(t, int64(2), m.DroppedTotal+m.WebhookErrorsTotal)
}
