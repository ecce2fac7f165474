package pnl

import (
	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat"
)

// History keeps records per ticker in the order they were produced.
type History struct {
	byTicker map[string][]Record
	tickers  []string
}

func NewHistory() *History {
	return &History{byTicker: make(map[string][]Record)}
}

func (h *History) Add(r Record) {
	if _, seen := h.byTicker[r.Ticker]; !seen {
		h.tickers = append(h.tickers, r.Ticker)
	}
	h.byTicker[r.Ticker] = append(h.byTicker[r.Ticker], r)
}

// PutResult says what PutUnrealized did with a record.
type PutResult int

const (
	Added PutResult = iota
	Replaced
	Unchanged
)

// PutUnrealized stores an end-of-day record, replacing an earlier unrealized
// record for the same lot (version, ticker, entry time). A repeated
// end-of-day pass therefore leaves the history the same length. Unchanged
// means the earlier record already carried the same mark.
func (h *History) PutUnrealized(r Record) PutResult {
	recs := h.byTicker[r.Ticker]
	for i, prev := range recs {
		if prev.Kind == Unrealized && prev.Version == r.Version && prev.TimeBought.Equal(r.TimeBought) {
			if prev.PriceSold.Equal(r.PriceSold) && prev.TimeSold.Equal(r.TimeSold) && prev.Quantity == r.Quantity {
				return Unchanged
			}
			recs[i] = r
			return Replaced
		}
	}
	h.Add(r)
	return Added
}

func (h *History) For(ticker string) []Record {
	return append([]Record(nil), h.byTicker[ticker]...)
}

// All flattens the history: tickers in first-seen order, records in
// production order within a ticker.
func (h *History) All() []Record {
	var out []Record
	for _, t := range h.tickers {
		out = append(out, h.byTicker[t]...)
	}
	return out
}

func (h *History) Len() int {
	n := 0
	for _, recs := range h.byTicker {
		n += len(recs)
	}
	return n
}

type Summary struct {
	Count       int             `json:"count"`
	Realized    int             `json:"realized"`
	Unrealized  int             `json:"unrealized"`
	Wins        int             `json:"wins"`
	Losses      int             `json:"losses"`
	MeanPct     float64         `json:"mean_pct"`
	StdDevPct   float64         `json:"stddev_pct"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

// Summarize aggregates records; mean and sample deviation are over PctChange.
func Summarize(records []Record) Summary {
	s := Summary{TotalAmount: decimal.Zero}
	pcts := make([]float64, 0, len(records))
	for _, r := range records {
		s.Count++
		if r.Kind == Realized {
			s.Realized++
		} else {
			s.Unrealized++
		}
		switch r.PctChange.Sign() {
		case 1:
			s.Wins++
		case -1:
			s.Losses++
		}
		s.TotalAmount = s.TotalAmount.Add(r.Amount())
		f, _ := r.PctChange.Float64()
		pcts = append(pcts, f)
	}
	switch len(pcts) {
	case 0:
	case 1:
		s.MeanPct = pcts[0]
	default:
		s.MeanPct, s.StdDevPct = stat.MeanStdDev(pcts, nil)
	}
	return s
}
