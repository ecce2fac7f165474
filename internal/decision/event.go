package decision

import (
	"time"

	"github.com/Rajchodisetti/alertbot/internal/alerts"
)

// TradeEvent is one parsed clause of an alert, queued for the control loop.
type TradeEvent struct {
	AlertID   string
	Symbols   []string
	Action    alerts.Action
	Side      alerts.Side
	Version   string
	Scanner   string
	Timestamp time.Time
}

// Origin is the signal tag stored on lots opened or closed by this event.
func (e TradeEvent) Origin() string {
	return alerts.Origin(e.Scanner, e.Side, e.Version)
}

// NewEvents turns the clauses of one alert into events, in clause order.
func NewEvents(alertID string, ts time.Time, clauses []alerts.Clause) []TradeEvent {
	out := make([]TradeEvent, 0, len(clauses))
	for _, c := range clauses {
		out = append(out, TradeEvent{
			AlertID:   alertID,
			Symbols:   append([]string(nil), c.Symbols...),
			Action:    c.Action,
			Side:      c.Side,
			Version:   c.Version,
			Scanner:   c.Scanner,
			Timestamp: ts,
		})
	}
	return out
}

// FromText parses an alert body into events.
func FromText(alertID, text string, ts time.Time) []TradeEvent {
	return NewEvents(alertID, ts, alerts.Parse(text))
}
