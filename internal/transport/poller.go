package transport

import (
	"context"
	"crypto/sha256"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Rajchodisetti/alertbot/internal/decision"
	"github.com/Rajchodisetti/alertbot/internal/observ"
	"github.com/Rajchodisetti/alertbot/internal/queue"
)

// Alert results, used as log and metric labels.
const (
	ResultAccepted       = "accepted"
	ResultDuplicate      = "duplicate"
	ResultInvalidSender  = "invalid_sender"
	ResultMissingKeyword = "missing_keyword"
	ResultBeforeStart    = "before_start"
	ResultNoClauses      = "no_clauses"
)

// Validator filters alerts before parsing. Empty fields disable a check.
type Validator struct {
	Sender  string
	Keyword string
	After   time.Time
}

// Check returns ResultAccepted or the reason the alert is rejected. The
// keyword is looked for in the subject, or in the text when there is none.
func (v Validator) Check(a RawAlert) string {
	if v.Sender != "" && !strings.EqualFold(strings.TrimSpace(a.Sender), v.Sender) {
		return ResultInvalidSender
	}
	if v.Keyword != "" {
		hay := a.Subject
		if hay == "" {
			hay = a.Text
		}
		if !strings.Contains(hay, v.Keyword) {
			return ResultMissingKeyword
		}
	}
	if !v.After.IsZero() && !a.Timestamp.After(v.After) {
		return ResultBeforeStart
	}
	return ResultAccepted
}

// AlertStore records raw alerts. InsertAlert reports false for an id it
// already holds.
type AlertStore interface {
	InsertAlert(ctx context.Context, id, sender, body string, at time.Time) (bool, error)
}

// Poller is the single producer: it fetches from a source, drops
// duplicates and invalid alerts, and queues one event per parsed clause.
type Poller struct {
	source    Source
	queue     *queue.Queue[decision.TradeEvent]
	store     AlertStore
	validator Validator

	mu   sync.Mutex
	seen map[string]struct{}
	cron *cron.Cron
}

// NewPoller builds a poller. store may be nil.
func NewPoller(source Source, q *queue.Queue[decision.TradeEvent], validator Validator, store AlertStore) *Poller {
	return &Poller{
		source:    source,
		queue:     q,
		store:     store,
		validator: validator,
		seen:      make(map[string]struct{}),
	}
}

// PollOnce runs one fetch and returns the number of events queued.
func (p *Poller) PollOnce(ctx context.Context) (int, error) {
	batch, err := p.source.Fetch(ctx)
	if err != nil {
		observ.Error("alert_fetch_failed", err, nil)
		return 0, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	queued := 0
	for _, a := range batch {
		id := alertID(a)
		if _, dup := p.seen[id]; dup {
			continue
		}
		p.seen[id] = struct{}{}

		if res := p.validator.Check(a); res != ResultAccepted {
			observ.RecordAlert(res)
			observ.Log("alert_rejected", map[string]any{"alert_id": id, "reason": res, "sender": a.Sender})
			continue
		}

		if p.store != nil {
			fresh, err := p.store.InsertAlert(ctx, id, a.Sender, a.Text, a.Timestamp)
			if err != nil {
				observ.Error("alert_store_failed", err, map[string]any{"alert_id": id})
			} else if !fresh {
				observ.RecordAlert(ResultDuplicate)
				observ.Debug("alert_duplicate", map[string]any{"alert_id": id})
				continue
			}
		}

		events := decision.FromText(id, a.Text, a.Timestamp)
		if len(events) == 0 {
			observ.RecordAlert(ResultNoClauses)
			observ.Warn("alert_no_clauses", map[string]any{"alert_id": id})
			continue
		}
		for _, ev := range events {
			observ.RecordClause(string(ev.Action), string(ev.Side))
		}
		p.queue.Push(events...)
		queued += len(events)
		observ.RecordAlert(ResultAccepted)
		observ.Log("alert_accepted", map[string]any{"alert_id": id, "events": len(events)})
	}
	observ.SetQueueDepth(p.queue.Len())
	return queued, nil
}

// Start polls once immediately and then every interval until Stop.
// Overlapping runs are skipped.
func (p *Poller) Start(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", interval)
	}
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(fmt.Sprintf("@every %s", interval), func() {
		_, _ = p.PollOnce(ctx)
	}); err != nil {
		return fmt.Errorf("schedule poller: %w", err)
	}
	_, _ = p.PollOnce(ctx)
	p.cron = c
	c.Start()
	observ.Log("poller_started", map[string]any{"interval": interval.String()})
	return nil
}

// Stop waits for a running poll to finish.
func (p *Poller) Stop() {
	if p.cron == nil {
		return
	}
	<-p.cron.Stop().Done()
	observ.Log("poller_stopped", nil)
}

// alertID falls back to a content hash for sources without message ids.
func alertID(a RawAlert) string {
	if a.ID != "" {
		return a.ID
	}
	sum := sha256.Sum256([]byte(a.Sender + "\x00" + a.Timestamp.UTC().Format(time.RFC3339Nano) + "\x00" + a.Text))
	return fmt.Sprintf("sha256:%x", sum[:12])
}
