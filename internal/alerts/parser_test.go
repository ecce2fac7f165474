package alerts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseChainedClauses(t *testing.T) {
	text := "Alert: New symbols: HYD, ME, TFI were added to #B4#[BUY]#V5.3.1#. " +
		"Symbols: SEAT, VDE, ZI were removed from #B4#[BUY]#V5.3.1#."

	got := Parse(text)

	require.Equal(t, []Clause{
		{Symbols: []string{"HYD", "ME", "TFI"}, Action: ActionAdded, Side: SideBuy, Version: "V5.3.1", Scanner: "B4"},
		{Symbols: []string{"SEAT", "VDE", "ZI"}, Action: ActionRemoved, Side: SideBuy, Version: "V5.3.1", Scanner: "B4"},
	}, got)
}

func TestParseShapes(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []Clause
	}{
		{
			name: "single symbol",
			text: "Alert: New symbol: CROX was added to #B4#[SELL]#V5.4#.",
			want: []Clause{{Symbols: []string{"CROX"}, Action: ActionAdded, Side: SideSell, Version: "V5.4", Scanner: "B4"}},
		},
		{
			name: "case-insensitive words",
			text: "ALERT: NEW SYMBOLS: AA, PAAS WERE REMOVED FROM #B4-Scan#[SELL]#V5.5#",
			want: []Clause{{Symbols: []string{"AA", "PAAS"}, Action: ActionRemoved, Side: SideSell, Version: "V5.5", Scanner: "B4-Scan"}},
		},
		{
			name: "empty tokens dropped, duplicates kept",
			text: "Symbols: ZM, , ZM ,DDOG were added to #B4#[BUY]#V5.4#",
			want: []Clause{{Symbols: []string{"ZM", "ZM", "DDOG"}, Action: ActionAdded, Side: SideBuy, Version: "V5.4", Scanner: "B4"}},
		},
		{
			name: "dotted tickers survive sentence split",
			text: "Symbols: BRK.B, BF.B were added to #B4#[BUY]#V5.4#. Noise here.",
			want: []Clause{{Symbols: []string{"BRK.B", "BF.B"}, Action: ActionAdded, Side: SideBuy, Version: "V5.4", Scanner: "B4"}},
		},
		{
			name: "mixed sides in one alert",
			text: "Alert: New symbols: CLOV, SAN were added to #B4#[SELL]#V5.4#. Symbols: GOEV was added to #B4#[BUY]#V5.5#.",
			want: []Clause{
				{Symbols: []string{"CLOV", "SAN"}, Action: ActionAdded, Side: SideSell, Version: "V5.4", Scanner: "B4"},
				{Symbols: []string{"GOEV"}, Action: ActionAdded, Side: SideBuy, Version: "V5.5", Scanner: "B4"},
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Parse(tc.text))
		})
	}
}

func TestParseNoMatch(t *testing.T) {
	for _, text := range []string{
		"",
		"Alert: market is closed today.",
		"Alert: New symbol: CROX was added to #B4-Scan#[BUY].",
		"Symbols: AAPL were added to #B4#[buy]#V1#",
	} {
		assert.Empty(t, Parse(text), text)
	}
}

func TestParseDeterministic(t *testing.T) {
	text := "Symbols: A, B were added to #S#[BUY]#V1#. Symbols: C was added to #S#[SELL]#V2#."
	first := Parse(text)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Parse(text))
	}
}

func TestClauseOrigin(t *testing.T) {
	c := Clause{Side: SideBuy, Version: "V5.3.1", Scanner: "B4"}
	assert.Equal(t, "#B4#[BUY]#V5.3.1#", c.Origin())
}
