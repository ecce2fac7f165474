// Package outbox journals notifications as JSON lines, one file per kind.
package outbox

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Rajchodisetti/alertbot/internal/notify"
	"github.com/Rajchodisetti/alertbot/internal/observ"
)

type Entry struct {
	Type  notify.Kind     `json:"type"`
	Data  json.RawMessage `json:"data"`
	Event time.Time       `json:"event"`
}

var journalFiles = map[notify.Kind]string{
	notify.KindAlertObserved:     "events.jsonl",
	notify.KindTradeExecuted:     "trades.jsonl",
	notify.KindPnL:               "pnl.jsonl",
	notify.KindPositionsSnapshot: "open_positions.jsonl",
	notify.KindEODPrices:         "eod_prices.jsonl",
}

// Journal appends each notification to <dir>/<YYYYMMDD>/<kind file>.
type Journal struct {
	dir string
	mu  sync.Mutex
	now func() time.Time
}

func New(root string, day time.Time) (*Journal, error) {
	dir := filepath.Join(root, day.Format("20060102"))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create journal dir: %w", err)
	}
	return &Journal{dir: dir, now: time.Now}, nil
}

func (j *Journal) Dir() string { return j.dir }

// Handle implements notify.Sink. Write failures are logged.
func (j *Journal) Handle(n notify.Notification) {
	if err := j.Write(n); err != nil {
		observ.Error("journal_write_failed", err, map[string]any{"kind": string(n.Kind())})
	}
}

func (j *Journal) Write(n notify.Notification) error {
	name, ok := journalFiles[n.Kind()]
	if !ok {
		return fmt.Errorf("no journal for kind %s", n.Kind())
	}
	data, err := json.Marshal(n)
	if err != nil {
		return err
	}
	return j.appendEntry(name, Entry{Type: n.Kind(), Data: data, Event: j.now().UTC()})
}

func (j *Journal) appendEntry(name string, entry Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	f, err := os.OpenFile(filepath.Join(j.dir, name), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = f.Write(append(data, '\n'))
	return err
}

// Entries reads back the journal for one kind. Malformed lines are skipped.
func (j *Journal) Entries(kind notify.Kind) ([]Entry, error) {
	name, ok := journalFiles[kind]
	if !ok {
		return nil, fmt.Errorf("no journal for kind %s", kind)
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	f, err := os.Open(filepath.Join(j.dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var out []Entry
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		var e Entry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			continue
		}
		out = append(out, e)
	}
	return out, sc.Err()
}
