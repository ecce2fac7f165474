// Package transport fetches raw alerts and feeds parsed trade events to the
// control loop.
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// RawAlert is one inbound alert message as delivered by a source.
type RawAlert struct {
	ID        string    `json:"id"`
	Sender    string    `json:"sender"`
	Subject   string    `json:"subject,omitempty"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Source returns the alerts currently available. Sources may return
// alerts already seen on earlier calls; the poller deduplicates by ID.
type Source interface {
	Fetch(ctx context.Context) ([]RawAlert, error)
}

// ConnectionState represents the current state of a source
type ConnectionState int

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// decodeAlerts accepts either a JSON array of alerts or one alert per line.
func decodeAlerts(data []byte) ([]RawAlert, error) {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return nil, nil
	}
	if strings.HasPrefix(trimmed, "[") {
		var out []RawAlert
		if err := json.Unmarshal([]byte(trimmed), &out); err != nil {
			return nil, fmt.Errorf("parse alert array: %w", err)
		}
		return out, nil
	}

	var out []RawAlert
	for i, line := range strings.Split(trimmed, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var a RawAlert
		if err := json.Unmarshal([]byte(line), &a); err != nil {
			return out, fmt.Errorf("parse alert line %d: %w", i+1, err)
		}
		out = append(out, a)
	}
	return out, nil
}
