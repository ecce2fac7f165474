package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// TimeOfDay is a wall-clock time such as "9:30" or "16:00", interpreted in
// the trading timezone.
type TimeOfDay struct {
	Hour   int
	Minute int
}

func ParseTimeOfDay(s string) (TimeOfDay, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return TimeOfDay{}, fmt.Errorf("time of day %q: want H:MM", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return TimeOfDay{}, fmt.Errorf("time of day %q: bad hour", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return TimeOfDay{}, fmt.Errorf("time of day %q: bad minute", s)
	}
	return TimeOfDay{Hour: h, Minute: m}, nil
}

func (t TimeOfDay) String() string { return fmt.Sprintf("%d:%02d", t.Hour, t.Minute) }

// On returns the instant of t on the calendar day of ref, in loc.
func (t TimeOfDay) On(ref time.Time, loc *time.Location) time.Time {
	ref = ref.In(loc)
	return time.Date(ref.Year(), ref.Month(), ref.Day(), t.Hour, t.Minute, 0, 0, loc)
}

func (t *TimeOfDay) UnmarshalYAML(node *yaml.Node) error {
	parsed, err := ParseTimeOfDay(node.Value)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

func (t TimeOfDay) MarshalYAML() (any, error) { return t.String(), nil }

type Trading struct {
	DefaultQty       int       `yaml:"default_qty"`
	PerTradeLimit    float64   `yaml:"per_trade_limit"`
	DailyLimit       float64   `yaml:"daily_limit"`
	TradeStart       TimeOfDay `yaml:"trade_start"`
	BuyStart         TimeOfDay `yaml:"buy_start"`
	BuyEnd           TimeOfDay `yaml:"buy_end"`
	Cutoff           TimeOfDay `yaml:"cutoff"`
	Timezone         string    `yaml:"timezone"`
	EnforceBuyWindow *bool     `yaml:"enforce_buy_window"`
	QueuePollSeconds int       `yaml:"queue_poll_seconds"`
}

// BuyWindowEnforced defaults to true when the key is absent.
func (t Trading) BuyWindowEnforced() bool {
	return t.EnforceBuyWindow == nil || *t.EnforceBuyWindow
}

func (t Trading) Location() *time.Location {
	loc, err := time.LoadLocation(t.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

type Alerts struct {
	Source         string `yaml:"source"` // file | http
	FilePath       string `yaml:"file_path"`
	HTTPURL        string `yaml:"http_url"`
	PollSeconds    int    `yaml:"poll_seconds"`
	Sender         string `yaml:"sender"`
	RequireKeyword string `yaml:"require_keyword"`
}

// AlertFile expands {date} in the configured alert file path.
func (a Alerts) AlertFile(day time.Time) string {
	return strings.ReplaceAll(a.FilePath, "{date}", day.Format("20060102"))
}

type Quotes struct {
	Provider           string             `yaml:"provider"` // alpaca | static
	APIKey             string             `yaml:"api_key"`
	APISecret          string             `yaml:"api_secret"`
	DataURL            string             `yaml:"data_url"`
	RateLimitPerMinute int                `yaml:"rate_limit_per_minute"`
	MaxRetries         int                `yaml:"max_retries"`
	BackoffBaseMs      int                `yaml:"backoff_base_ms"`
	Static             map[string]float64 `yaml:"static"`
}

type Storage struct {
	SQLitePath string `yaml:"sqlite_path"`
	JournalDir string `yaml:"journal_dir"`
	LedgerPath string `yaml:"ledger_path"`
}

type Report struct {
	Dir      string `yaml:"dir"`
	S3Bucket string `yaml:"s3_bucket"`
	S3Prefix string `yaml:"s3_prefix"`
	S3Region string `yaml:"s3_region"`
}

type Notify struct {
	RedisAddr       string `yaml:"redis_addr"`
	RedisPassword   string `yaml:"redis_password"`
	RedisChannel    string `yaml:"redis_channel"`
	SlackWebhookURL string `yaml:"slack_webhook_url"`
	SlackChannel    string `yaml:"slack_channel"`
}

type Server struct {
	Addr string `yaml:"addr"`
}

type Logging struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

type Root struct {
	Trading Trading `yaml:"trading"`
	Alerts  Alerts  `yaml:"alerts"`
	Quotes  Quotes  `yaml:"quotes"`
	Storage Storage `yaml:"storage"`
	Report  Report  `yaml:"report"`
	Notify  Notify  `yaml:"notify"`
	Server  Server  `yaml:"server"`
	Logging Logging `yaml:"logging"`
}

// Load reads the YAML file at path, fills defaults, then applies overrides
// from the environment (a .env file next to the process is honoured).
func Load(path string) (Root, error) {
	// Session times are preset so that an explicit "0:00" survives.
	c := Root{Trading: Trading{
		TradeStart: TimeOfDay{Hour: 9, Minute: 30},
		BuyStart:   TimeOfDay{Hour: 9, Minute: 30},
		BuyEnd:     TimeOfDay{Hour: 15},
		Cutoff:     TimeOfDay{Hour: 16},
	}}
	b, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return c, fmt.Errorf("parse %s: %w", path, err)
	}
	_ = godotenv.Load()
	applyEnvOverrides(&c)
	applyDefaults(&c)
	return c, c.Validate()
}

func applyDefaults(c *Root) {
	t := &c.Trading
	if t.DefaultQty == 0 {
		t.DefaultQty = 100
	}
	if t.PerTradeLimit == 0 {
		t.PerTradeLimit = 20000
	}
	if t.DailyLimit == 0 {
		t.DailyLimit = 300000
	}
	if t.Timezone == "" {
		t.Timezone = "America/New_York"
	}
	if t.QueuePollSeconds == 0 {
		t.QueuePollSeconds = 5
	}

	a := &c.Alerts
	if a.Source == "" {
		a.Source = "file"
	}
	if a.FilePath == "" {
		a.FilePath = "data/alerts/scanner_alerts_{date}.json"
	}
	if a.PollSeconds == 0 {
		a.PollSeconds = 10
	}
	if a.RequireKeyword == "" {
		a.RequireKeyword = "Alert"
	}

	q := &c.Quotes
	if q.Provider == "" {
		q.Provider = "alpaca"
	}
	if q.RateLimitPerMinute == 0 {
		q.RateLimitPerMinute = 200
	}
	if q.MaxRetries == 0 {
		q.MaxRetries = 3
	}
	if q.BackoffBaseMs == 0 {
		q.BackoffBaseMs = 250
	}

	if c.Storage.JournalDir == "" {
		c.Storage.JournalDir = "data/journal"
	}
	if c.Report.Dir == "" {
		c.Report.Dir = "data/reports"
	}
	if c.Notify.RedisChannel == "" {
		c.Notify.RedisChannel = "alertbot.events"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8090"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

func applyEnvOverrides(c *Root) {
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		c.Quotes.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		c.Quotes.APISecret = v
	}
	if v := os.Getenv("ALERTBOT_SQLITE_PATH"); v != "" {
		c.Storage.SQLitePath = v
	}
	if v := os.Getenv("ALERTBOT_ALERT_FILE"); v != "" {
		c.Alerts.FilePath = v
	}
	if v := os.Getenv("SLACK_WEBHOOK_URL"); v != "" {
		c.Notify.SlackWebhookURL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Notify.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Notify.RedisPassword = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate rejects configurations the control loop cannot run with.
func (c Root) Validate() error {
	t := c.Trading
	if t.DefaultQty < 1 {
		return fmt.Errorf("trading.default_qty must be >= 1")
	}
	if t.PerTradeLimit <= 0 || t.DailyLimit <= 0 {
		return fmt.Errorf("trading limits must be positive")
	}
	if !before(t.BuyStart, t.BuyEnd) {
		return fmt.Errorf("trading.buy_start %s must be before buy_end %s", t.BuyStart, t.BuyEnd)
	}
	switch c.Alerts.Source {
	case "file", "http":
	default:
		return fmt.Errorf("alerts.source %q: want file or http", c.Alerts.Source)
	}
	if c.Alerts.Source == "http" && c.Alerts.HTTPURL == "" {
		return fmt.Errorf("alerts.http_url is required for the http source")
	}
	switch c.Quotes.Provider {
	case "alpaca", "static":
	default:
		return fmt.Errorf("quotes.provider %q: want alpaca or static", c.Quotes.Provider)
	}
	return nil
}

func before(a, b TimeOfDay) bool {
	return a.Hour*60+a.Minute < b.Hour*60+b.Minute
}
