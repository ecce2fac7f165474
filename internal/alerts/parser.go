// Package alerts turns scanner alert sentences into structured clauses.
package alerts

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Rajchodisetti/alertbot/internal/observ"
)

type Action string

const (
	ActionAdded   Action = "added"
	ActionRemoved Action = "removed"
)

type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Clause is one "Symbols: ... were added to #tag#[SIDE]#version#" statement.
type Clause struct {
	Symbols []string `json:"symbols"`
	Action  Action   `json:"action"`
	Side    Side     `json:"side"`
	Version string   `json:"version"`
	Scanner string   `json:"scanner"`
}

// Origin is the signal tag recorded on lots and executions, e.g. "#B4#[BUY]#V5.4#".
func (c Clause) Origin() string {
	return Origin(c.Scanner, c.Side, c.Version)
}

func Origin(scanner string, side Side, version string) string {
	return fmt.Sprintf("#%s#[%s]#%s#", scanner, side, version)
}

var (
	sentenceSep = regexp.MustCompile(`\.\s+`)
	clauseRe    = regexp.MustCompile(
		`(?i:symbols?):\s*(.+?)\s+(?i:were|was)\s+(?i:(added|removed))\s+(?i:to|from)\s+#([^#\[\]]+)#\[(BUY|SELL)\]#([^#]+)#`)
)

// Parse splits text on sentence boundaries and returns the recognised
// clauses in the order they appear. Sentences that do not match are logged
// and skipped.
func Parse(text string) []Clause {
	var out []Clause
	for _, sentence := range sentenceSep.Split(text, -1) {
		sentence = strings.TrimSpace(sentence)
		if sentence == "" {
			continue
		}
		c, ok := parseClause(sentence)
		if !ok {
			observ.Log("alert_clause_unmatched", map[string]any{"clause": sentence})
			continue
		}
		observ.Debug("alert_clause_parsed", map[string]any{
			"symbols": c.Symbols,
			"action":  c.Action,
			"side":    c.Side,
			"version": c.Version,
		})
		out = append(out, c)
	}
	return out
}

func parseClause(s string) (Clause, bool) {
	m := clauseRe.FindStringSubmatch(s)
	if m == nil {
		return Clause{}, false
	}
	return Clause{
		Symbols: splitSymbols(m[1]),
		Action:  Action(strings.ToLower(m[2])),
		Scanner: m[3],
		Side:    Side(m[4]),
		Version: m[5],
	}, true
}

func splitSymbols(list string) []string {
	var out []string
	for _, tok := range strings.Split(list, ",") {
		if tok = strings.TrimSpace(tok); tok != "" {
			out = append(out, tok)
		}
	}
	return out
}
