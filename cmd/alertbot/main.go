package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Rajchodisetti/alertbot/internal/adapters"
	"github.com/Rajchodisetti/alertbot/internal/config"
	"github.com/Rajchodisetti/alertbot/internal/decision"
	"github.com/Rajchodisetti/alertbot/internal/notify"
	"github.com/Rajchodisetti/alertbot/internal/observ"
	"github.com/Rajchodisetti/alertbot/internal/outbox"
	"github.com/Rajchodisetti/alertbot/internal/queue"
	"github.com/Rajchodisetti/alertbot/internal/report"
	"github.com/Rajchodisetti/alertbot/internal/store"
	"github.com/Rajchodisetti/alertbot/internal/transport"
)

func main() {
	var cfgPath, dayFlag string
	flag.StringVar(&cfgPath, "config", "config/config.yaml", "path to config yaml")
	flag.StringVar(&dayFlag, "day", "", "trading day YYYY-MM-DD (default today)")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	observ.Setup(cfg.Logging.Level, cfg.Logging.Pretty)

	loc := cfg.Trading.Location()
	day := time.Now().In(loc)
	if dayFlag != "" {
		day, err = time.ParseInLocation("2006-01-02", dayFlag, loc)
		if err != nil {
			log.Fatalf("parse -day: %v", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Sinks: persistence first, then remote fan-out behind async buffers.
	status := notify.NewStatusSink()
	sinks := notify.Fanout{status}

	var db *store.SQLiteStore
	if cfg.Storage.SQLitePath != "" {
		db, err = store.Open(cfg.Storage.SQLitePath)
		if err != nil {
			log.Fatalf("open sqlite: %v", err)
		}
		defer db.Close()
		sinks = append(sinks, db)
	}

	journal, err := outbox.New(cfg.Storage.JournalDir, day)
	if err != nil {
		log.Fatalf("open journal: %v", err)
	}
	sinks = append(sinks, journal)

	var closers []func()
	var async *notify.Async
	var slack *notify.SlackSink
	if cfg.Notify.RedisAddr != "" {
		rdb, err := notify.DialRedis(ctx, cfg.Notify.RedisAddr, cfg.Notify.RedisPassword)
		if err != nil {
			observ.Error("redis_unavailable", err, map[string]any{"addr": cfg.Notify.RedisAddr})
		} else {
			defer rdb.Close()
			async = notify.NewAsync("redis", notify.NewRedisSink(rdb, cfg.Notify.RedisChannel), 1024)
			closers = append(closers, async.Close)
			sinks = append(sinks, async)
		}
	}
	if cfg.Notify.SlackWebhookURL != "" {
		slack = notify.NewSlackSink(cfg.Notify.SlackWebhookURL, cfg.Notify.SlackChannel)
		closers = append(closers, slack.Close)
		sinks = append(sinks, slack)
	}

	quotes, err := newQuotes(cfg.Quotes)
	if err != nil {
		log.Fatalf("quote provider: %v", err)
	}

	var uploader report.Uploader
	if cfg.Report.S3Bucket != "" {
		uploader, err = report.NewS3Uploader(ctx, cfg.Report.S3Region, cfg.Report.S3Bucket, cfg.Report.S3Prefix)
		if err != nil {
			observ.Error("s3_unavailable", err, map[string]any{"bucket": cfg.Report.S3Bucket})
			uploader = nil
		}
	}

	q := queue.New[decision.TradeEvent]()
	engine := decision.New(decision.Options{
		Trading:    cfg.Trading,
		Quotes:     quotes,
		Sink:       sinks,
		Reporter:   report.NewWriter(cfg.Report.Dir, uploader),
		Queue:      q,
		Day:        day,
		LedgerPath: cfg.Storage.LedgerPath,
	})
	if _, err := engine.Restore(); err != nil {
		log.Fatalf("restore ledger: %v", err)
	}

	var alertStore transport.AlertStore
	if db != nil {
		alertStore = db
	}
	src := newSource(cfg.Alerts)
	poller := transport.NewPoller(src, q, transport.Validator{
		Sender:  cfg.Alerts.Sender,
		Keyword: cfg.Alerts.RequireKeyword,
		After:   cfg.Trading.TradeStart.On(engine.Day(), loc),
	}, alertStore)
	if err := poller.Start(ctx, time.Duration(cfg.Alerts.PollSeconds)*time.Second); err != nil {
		log.Fatalf("start poller: %v", err)
	}

	srv := observ.NewServer(cfg.Server.Addr, observ.Status{
		Positions: func() (any, bool) { return status.Snapshot() },
		EOD:       func() (any, bool) { return status.EOD() },
		Health: func() map[string]any {
			h := map[string]any{
				"queue_depth":   q.Len(),
				"notifications": status.Counts(),
			}
			if hs, ok := src.(*transport.HTTPSource); ok {
				polls, messages := hs.Stats()
				h["alert_source"] = map[string]any{
					"state":    hs.ConnectionState().String(),
					"polls":    polls,
					"messages": messages,
				}
			}
			if async != nil {
				h["redis_dropped"] = async.Dropped()
			}
			if slack != nil {
				h["slack"] = slack.Metrics()
			}
			return h
		},
	})
	srv.Start()

	runErr := engine.Run(ctx)

	poller.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		observ.Error("http_shutdown_failed", err, nil)
	}
	for _, c := range closers {
		c()
	}

	observ.Log("shutdown", map[string]any{"stats": engine.Stats(), "notifications": status.Counts()})
	if runErr != nil && ctx.Err() == nil {
		log.Fatalf("engine: %v", runErr)
	}
}

func newQuotes(c config.Quotes) (adapters.QuoteProvider, error) {
	if c.Provider == "static" {
		return adapters.NewStaticProvider(c.Static), nil
	}
	return adapters.NewAlpacaProvider(adapters.AlpacaConfig{
		APIKey:             c.APIKey,
		APISecret:          c.APISecret,
		DataURL:            c.DataURL,
		RateLimitPerMinute: c.RateLimitPerMinute,
		MaxRetries:         c.MaxRetries,
		BackoffBaseMs:      c.BackoffBaseMs,
	})
}

func newSource(a config.Alerts) transport.Source {
	if a.Source == "http" {
		return transport.NewHTTPSource(a.HTTPURL, 10*time.Second)
	}
	return transport.NewFileSource(a.AlertFile, time.Now)
}
