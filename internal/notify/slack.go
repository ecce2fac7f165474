package notify

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/Rajchodisetti/alertbot/internal/observ"
	"github.com/Rajchodisetti/alertbot/internal/pnl"
)

type SlackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

type SlackAttachment struct {
	Color  string       `json:"color"`
	Fields []SlackField `json:"fields"`
}

type SlackMessage struct {
	Channel     string            `json:"channel,omitempty"`
	Text        string            `json:"text"`
	Attachments []SlackAttachment `json:"attachments,omitempty"`
}

type queuedMessage struct {
	msg      SlackMessage
	attempts int
}

type SlackMetrics struct {
	SentTotal          int64 `json:"sent_total"`
	WebhookErrorsTotal int64 `json:"webhook_errors_total"`
	DroppedTotal       int64 `json:"dropped_total"`
	DedupedTotal       int64 `json:"deduped_total"`
}

// SlackSink posts trades, realized PnL and end-of-day marks to an incoming
// webhook. Other kinds are ignored.
type SlackSink struct {
	webhookURL  string
	channel     string
	httpClient  *http.Client
	queue       chan queuedMessage
	maxAttempts int
	backoffBase time.Duration
	drainWait   time.Duration

	mu          sync.Mutex
	closed      bool
	dedupeCache map[string]time.Time
	metrics     SlackMetrics

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewSlackSink(webhookURL, channel string) *SlackSink {
	ctx, cancel := context.WithCancel(context.Background())
	s := &SlackSink{
		webhookURL:  webhookURL,
		channel:     channel,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		queue:       make(chan queuedMessage, 1000),
		maxAttempts: 3,
		backoffBase: time.Second,
		drainWait:   10 * time.Second,
		dedupeCache: make(map[string]time.Time),
		ctx:         ctx,
		cancel:      cancel,
	}
	s.wg.Add(1)
	go s.worker()
	return s
}

func (s *SlackSink) Handle(n Notification) {
	msg, ok := s.format(n)
	if !ok {
		return
	}

	hash := messageHash(msg)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		s.metrics.DroppedTotal++
		return
	}
	if last, seen := s.dedupeCache[hash]; seen && time.Since(last) < time.Minute {
		s.metrics.DedupedTotal++
		return
	}
	s.dedupeCache[hash] = time.Now()

	select {
	case s.queue <- queuedMessage{msg: msg}:
	default:
		s.metrics.DroppedTotal++
	}
}

func (s *SlackSink) format(n Notification) (SlackMessage, bool) {
	switch v := n.(type) {
	case TradeExecuted:
		color := "good"
		if v.Side == "SELL" {
			color = "warning"
		}
		return s.message(fmt.Sprintf("%s %s x%d @ %s", v.Side, v.Ticker, v.Quantity, v.Price.StringFixed(2)), color, []SlackField{
			{Title: "Version", Value: v.Version, Short: true},
			{Title: "Notional", Value: v.Notional().StringFixed(2), Short: true},
			{Title: "Origin", Value: v.Origin, Short: true},
			{Title: "Time", Value: v.Timestamp.Format("15:04:05 MST"), Short: true},
		}), true
	case PnL:
		r := v.Record
		if r.Kind != pnl.Realized {
			return SlackMessage{}, false
		}
		color := "good"
		if r.PctChange.IsNegative() {
			color = "danger"
		}
		return s.message(fmt.Sprintf("Closed %s %s%%", r.Ticker, r.PctChange.StringFixed(2)), color, []SlackField{
			{Title: "Version", Value: r.Version, Short: true},
			{Title: "Amount", Value: r.Amount().StringFixed(2), Short: true},
			{Title: "Bought", Value: r.PriceBought.StringFixed(2), Short: true},
			{Title: "Sold", Value: r.PriceSold.StringFixed(2), Short: true},
		}), true
	case EODPrices:
		lots := 0
		for _, byTicker := range v.Prices {
			lots += len(byTicker)
		}
		return s.message(fmt.Sprintf("End of day: %d open lots marked across %d versions", lots, len(v.Prices)), "#439FE0", nil), true
	}
	return SlackMessage{}, false
}

func (s *SlackSink) message(text, color string, fields []SlackField) SlackMessage {
	msg := SlackMessage{Channel: s.channel, Text: text}
	if len(fields) > 0 {
		msg.Attachments = []SlackAttachment{{Color: color, Fields: fields}}
	}
	return msg
}

func messageHash(msg SlackMessage) string {
	b, _ := json.Marshal(msg)
	sum := sha256.Sum256(b)
	return fmt.Sprintf("%x", sum)[:16]
}

func (s *SlackSink) worker() {
	defer s.wg.Done()
	for q := range s.queue {
		if s.ctx.Err() != nil {
			s.mu.Lock()
			s.metrics.DroppedTotal++
			s.mu.Unlock()
			continue
		}
		s.deliver(q)
	}
}

func (s *SlackSink) deliver(q queuedMessage) {
	for {
		err := s.sendWebhook(q.msg)
		if err == nil {
			s.mu.Lock()
			s.metrics.SentTotal++
			s.mu.Unlock()
			return
		}
		q.attempts++
		if q.attempts >= s.maxAttempts {
			s.mu.Lock()
			s.metrics.WebhookErrorsTotal++
			s.mu.Unlock()
			observ.Error("slack_webhook_failed", err, map[string]any{"attempts": q.attempts})
			return
		}
		backoff := s.backoffBase << (q.attempts - 1)
		select {
		case <-s.ctx.Done():
			s.mu.Lock()
			s.metrics.DroppedTotal++
			s.mu.Unlock()
			return
		case <-time.After(backoff):
		}
	}
}

func (s *SlackSink) sendWebhook(msg SlackMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(s.ctx, http.MethodPost, s.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack webhook status %d", resp.StatusCode)
	}
	return nil
}

// Close stops accepting messages and waits for the queue to drain. Delivery
// still pending after the drain wait is cancelled and counted as dropped.
func (s *SlackSink) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.queue)
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(s.drainWait):
		observ.Warn("slack_drain_timeout", map[string]any{"pending": len(s.queue)})
		s.cancel()
		<-done
	}
	s.cancel()
}

func (s *SlackSink) Metrics() SlackMetrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.metrics
}
