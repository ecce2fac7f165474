package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/Rajchodisetti/alertbot/internal/adapters"
	"github.com/Rajchodisetti/alertbot/internal/config"
	"github.com/Rajchodisetti/alertbot/internal/decision"
	"github.com/Rajchodisetti/alertbot/internal/notify"
	"github.com/Rajchodisetti/alertbot/internal/observ"
	"github.com/Rajchodisetti/alertbot/internal/outbox"
	"github.com/Rajchodisetti/alertbot/internal/pnl"
	"github.com/Rajchodisetti/alertbot/internal/queue"
	"github.com/Rajchodisetti/alertbot/internal/report"
	"github.com/Rajchodisetti/alertbot/internal/transport"
)

// pricesFile maps ticker -> price used for every lookup during the replay.
type pricesFile map[string]float64

func mustRead(path string, v any) {
	b, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("read %s: %v", path, err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		log.Fatalf("json %s: %v", path, err)
	}
}

func main() {
	log.SetFlags(0)
	var cfgPath, alertsPath, pricesPath, dayFlag, outDir string
	flag.StringVar(&cfgPath, "config", "config/config.yaml", "path to config yaml")
	flag.StringVar(&alertsPath, "alerts", "", "alert file (JSON array or JSONL); default is the configured file for -day")
	flag.StringVar(&pricesPath, "prices", "", "JSON object of ticker prices; default is quotes.static")
	flag.StringVar(&dayFlag, "day", "", "trading day YYYY-MM-DD")
	flag.StringVar(&outDir, "out", "", "report directory; default is report.dir")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	observ.Setup(cfg.Logging.Level, cfg.Logging.Pretty)

	loc := cfg.Trading.Location()
	if dayFlag == "" {
		log.Fatalf("-day is required")
	}
	day, err := time.ParseInLocation("2006-01-02", dayFlag, loc)
	if err != nil {
		log.Fatalf("parse -day: %v", err)
	}
	if alertsPath == "" {
		alertsPath = cfg.Alerts.AlertFile(day)
	}
	if outDir == "" {
		outDir = cfg.Report.Dir
	}

	prices := pricesFile(cfg.Quotes.Static)
	if pricesPath != "" {
		mustRead(pricesPath, &prices)
	}

	journal, err := outbox.New(cfg.Storage.JournalDir, day)
	if err != nil {
		log.Fatalf("open journal: %v", err)
	}

	// The clock follows the alert being processed.
	clock := cfg.Trading.TradeStart.On(day, loc)
	now := func() time.Time { return clock }

	q := queue.New[decision.TradeEvent]()
	engine := decision.New(decision.Options{
		Trading:  cfg.Trading,
		Quotes:   adapters.NewStaticProvider(prices),
		Sink:     notify.Fanout{journal},
		Reporter: report.NewWriter(outDir, nil),
		Queue:    q,
		Day:      day,
		Now:      now,
	})

	ctx := context.Background()
	src := transport.NewFileSource(func(time.Time) string { return alertsPath }, now)
	poller := transport.NewPoller(src, q, transport.Validator{
		Sender:  cfg.Alerts.Sender,
		Keyword: cfg.Alerts.RequireKeyword,
		After:   cfg.Trading.TradeStart.On(day, loc),
	}, nil)
	queued, err := poller.PollOnce(ctx)
	if err != nil {
		log.Fatalf("read alerts: %v", err)
	}

	late := 0
	for _, ev := range q.Drain() {
		if !ev.Timestamp.Before(engine.Cutoff()) {
			late++
			continue
		}
		if ev.Timestamp.After(clock) {
			clock = ev.Timestamp
		}
		engine.Process(ctx, ev)
	}
	if late > 0 {
		observ.Warn("events_after_cutoff", map[string]any{"pending": late})
	}

	clock = engine.Cutoff()
	engine.EndOfDay(ctx)
	if err := engine.Report(ctx); err != nil {
		log.Fatalf("report: %v", err)
	}

	out := struct {
		Day     string         `json:"day"`
		Events  int            `json:"events"`
		Stats   decision.Stats `json:"stats"`
		Summary pnl.Summary    `json:"summary"`
		Records []pnl.Record   `json:"records"`
	}{
		Day:     day.Format("2006-01-02"),
		Events:  queued,
		Stats:   engine.Stats(),
		Summary: pnl.Summarize(engine.History().All()),
		Records: engine.History().All(),
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		log.Fatalf("encode: %v", err)
	}
	fmt.Fprintf(os.Stderr, "journal: %s\n", journal.Dir())
}
