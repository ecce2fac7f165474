package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "alertbot.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APCA_API_KEY_ID", "")
	t.Setenv("APCA_API_SECRET_KEY", "")

	cfg, err := Load(writeConfig(t, "quotes:\n  provider: static\n"))
	require.NoError(t, err)

	assert.Equal(t, 100, cfg.Trading.DefaultQty)
	assert.Equal(t, 20000.0, cfg.Trading.PerTradeLimit)
	assert.Equal(t, 300000.0, cfg.Trading.DailyLimit)
	assert.Equal(t, TimeOfDay{Hour: 9, Minute: 30}, cfg.Trading.BuyStart)
	assert.Equal(t, TimeOfDay{Hour: 15}, cfg.Trading.BuyEnd)
	assert.Equal(t, TimeOfDay{Hour: 16}, cfg.Trading.Cutoff)
	assert.True(t, cfg.Trading.BuyWindowEnforced())
	assert.Equal(t, "file", cfg.Alerts.Source)
	assert.Equal(t, 10, cfg.Alerts.PollSeconds)
	assert.Equal(t, "Alert", cfg.Alerts.RequireKeyword)
	assert.Equal(t, 5, cfg.Trading.QueuePollSeconds)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("APCA_API_KEY_ID", "env-key")
	t.Setenv("APCA_API_SECRET_KEY", "")

	cfg, err := Load(writeConfig(t, `
trading:
  default_qty: 50
  buy_start: "10:00"
  buy_end: "14:45"
  cutoff: "15:30"
  enforce_buy_window: false
alerts:
  source: http
  http_url: http://localhost:9000/alerts
quotes:
  provider: alpaca
  api_key: file-key
`))
	require.NoError(t, err)

	assert.Equal(t, 50, cfg.Trading.DefaultQty)
	assert.Equal(t, TimeOfDay{Hour: 10}, cfg.Trading.BuyStart)
	assert.Equal(t, TimeOfDay{Hour: 14, Minute: 45}, cfg.Trading.BuyEnd)
	assert.Equal(t, TimeOfDay{Hour: 15, Minute: 30}, cfg.Trading.Cutoff)
	assert.False(t, cfg.Trading.BuyWindowEnforced())
	assert.Equal(t, "env-key", cfg.Quotes.APIKey)
}

func TestLoadKeepsMidnight(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
trading:
  trade_start: "0:00"
  buy_start: "0:00"
quotes:
  provider: static
`))
	require.NoError(t, err)

	assert.Equal(t, TimeOfDay{}, cfg.Trading.TradeStart)
	assert.Equal(t, TimeOfDay{}, cfg.Trading.BuyStart)
	assert.Equal(t, TimeOfDay{Hour: 15}, cfg.Trading.BuyEnd)
	assert.Equal(t, TimeOfDay{Hour: 16}, cfg.Trading.Cutoff)
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"bad time":        "trading:\n  buy_start: \"25:00\"\n",
		"inverted window": "trading:\n  buy_start: \"15:00\"\n  buy_end: \"10:00\"\n",
		"unknown source":  "alerts:\n  source: imap\n",
		"http without url": "alerts:\n  source: http\n",
		"unknown provider": "quotes:\n  provider: polygon\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestTimeOfDayOn(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	ref := time.Date(2024, 3, 14, 18, 5, 0, 0, time.UTC) // 14:05 in New York
	got := TimeOfDay{Hour: 9, Minute: 30}.On(ref, loc)

	assert.True(t, got.Equal(time.Date(2024, 3, 14, 9, 30, 0, 0, loc)), got.String())
}

func TestAlertFile(t *testing.T) {
	a := Alerts{FilePath: "alerts/scanner_alerts_{date}.json"}
	day := time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "alerts/scanner_alerts_20240314.json", a.AlertFile(day))
}

func TestExampleConfigLoads(t *testing.T) {
	t.Setenv("SLACK_WEBHOOK_URL", "")
	t.Setenv("REDIS_ADDR", "")

	cfg, err := Load(filepath.Join("..", "..", "config", "config.example.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "file", cfg.Alerts.Source)
	assert.Equal(t, TimeOfDay{Hour: 16}, cfg.Trading.Cutoff)
	assert.True(t, cfg.Trading.BuyWindowEnforced())
	assert.Equal(t, "127.0.0.1:8090", cfg.Server.Addr)
}
