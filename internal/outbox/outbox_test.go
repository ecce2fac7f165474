package outbox

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rajchodisetti/alertbot/internal/notify"
)

var day = time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC)

func TestJournalPerKind(t *testing.T) {
	root := t.TempDir()
	j, err := New(root, day)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "20240314"), j.Dir())

	j.Handle(notify.AlertObserved{AlertID: "a1", Symbols: []string{"AAPL"}})
	j.Handle(notify.TradeExecuted{ID: "t1", Ticker: "AAPL", Side: "BUY", Price: decimal.NewFromInt(50), Quantity: 100})
	j.Handle(notify.TradeExecuted{ID: "t2", Ticker: "AAPL", Side: "SELL", Price: decimal.NewFromInt(52), Quantity: 100})

	trades, err := j.Entries(notify.KindTradeExecuted)
	require.NoError(t, err)
	require.Len(t, trades, 2)
	var first notify.TradeExecuted
	require.NoError(t, json.Unmarshal(trades[0].Data, &first))
	assert.Equal(t, "t1", first.ID)
	assert.Equal(t, notify.KindTradeExecuted, trades[1].Type)

	events, err := j.Entries(notify.KindAlertObserved)
	require.NoError(t, err)
	assert.Len(t, events, 1)

	pnl, err := j.Entries(notify.KindPnL)
	require.NoError(t, err)
	assert.Empty(t, pnl)

	_, err = os.Stat(filepath.Join(j.Dir(), "trades.jsonl"))
	assert.NoError(t, err)
}

func TestEntriesSkipsMalformed(t *testing.T) {
	j, err := New(t.TempDir(), day)
	require.NoError(t, err)
	j.Handle(notify.EODPrices{Timestamp: day})

	f, err := os.OpenFile(filepath.Join(j.Dir(), "eod_prices.jsonl"), os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = f.WriteString("{not json\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())
	j.Handle(notify.EODPrices{Timestamp: day})

	got, err := j.Entries(notify.KindEODPrices)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}
