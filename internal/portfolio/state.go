package portfolio

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// State is the on-disk form of the ledger.
type State struct {
	UpdatedAt string                    `json:"updated_at"`
	Lots      map[string]map[string]Lot `json:"lots"` // version -> ticker -> lot
}

// Save atomically writes every open lot to path.
func Save(path string, l *Ledger) error {
	st := State{
		UpdatedAt: time.Now().UTC().Format(time.RFC3339),
		Lots:      make(map[string]map[string]Lot, len(l.lots)),
	}
	for v, byTicker := range l.lots {
		m := make(map[string]Lot, len(byTicker))
		for t, lot := range byTicker {
			m[t] = *lot
		}
		st.Lots[v] = m
	}

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal ledger state: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create ledger dir: %w", err)
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp ledger state: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename ledger state: %w", err)
	}
	return nil
}

// Load restores lots saved by Save into l. A missing file is not an error.
// Restored lots are not charged to the day's buy budget.
func Load(path string, l *Ledger) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read ledger state: %w", err)
	}

	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return 0, fmt.Errorf("failed to unmarshal ledger state: %w", err)
	}

	n := 0
	for v, byTicker := range st.Lots {
		for t, lot := range byTicker {
			if l.Has(v, t) || lot.Quantity < 1 {
				continue
			}
			lot := lot
			lot.Ticker = t
			l.insert(v, &lot)
			n++
		}
	}
	return n, nil
}
