package risk

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Rajchodisetti/alertbot/internal/config"
)

// Rejection reasons reported by the buy gates.
const (
	ReasonDailyLimit = "daily_limit"
	ReasonBuyWindow  = "buy_window"
)

// State is the spend budget for one trading day. Only accepted buys change it.
type State struct {
	CumulativeBuySpend decimal.Decimal `json:"cumulative_buy_spend"`
	PerTradeLimit      decimal.Decimal `json:"per_trade_limit"`
	DailyLimit         decimal.Decimal `json:"daily_limit"`
	BuyWindowStart     time.Time       `json:"buy_window_start"`
	BuyWindowEnd       time.Time       `json:"buy_window_end"`
}

// NewState builds the budget for the trading day containing day.
func NewState(t config.Trading, day time.Time) *State {
	loc := t.Location()
	return &State{
		CumulativeBuySpend: decimal.Zero,
		PerTradeLimit:      decimal.NewFromFloat(t.PerTradeLimit),
		DailyLimit:         decimal.NewFromFloat(t.DailyLimit),
		BuyWindowStart:     t.BuyStart.On(day, loc),
		BuyWindowEnd:       t.BuyEnd.On(day, loc),
	}
}

// Remaining is the daily budget still unspent, floored at zero.
func (s *State) Remaining() decimal.Decimal {
	r := s.DailyLimit.Sub(s.CumulativeBuySpend)
	if r.IsNegative() {
		return decimal.Zero
	}
	return r
}

// Record adds an accepted buy's notional to the running spend.
func (s *State) Record(notional decimal.Decimal) {
	s.CumulativeBuySpend = s.CumulativeBuySpend.Add(notional)
}

// Gate is one buy-side check.
type Gate interface {
	Name() string
	Allow(state State, proposed decimal.Decimal, now time.Time) bool
}

type dailyLimitGate struct{}

func (dailyLimitGate) Name() string { return ReasonDailyLimit }

func (dailyLimitGate) Allow(s State, proposed decimal.Decimal, _ time.Time) bool {
	return s.CumulativeBuySpend.Add(proposed).LessThan(s.DailyLimit)
}

type buyWindowGate struct{}

func (buyWindowGate) Name() string { return ReasonBuyWindow }

// Both window bounds are exclusive.
func (buyWindowGate) Allow(s State, _ decimal.Decimal, now time.Time) bool {
	return now.After(s.BuyWindowStart) && now.Before(s.BuyWindowEnd)
}

// Controller decides whether a new buy may be placed. Sells never pass
// through it.
type Controller struct {
	gates []Gate
}

// NewController returns a controller with the daily limit gate and, when
// enforceWindow is set, the buy window gate.
func NewController(enforceWindow bool) *Controller {
	c := &Controller{gates: []Gate{dailyLimitGate{}}}
	if enforceWindow {
		c.gates = append(c.gates, buyWindowGate{})
	}
	return c
}

// Check evaluates every gate and returns the names of those that block.
func (c *Controller) Check(state State, proposed decimal.Decimal, now time.Time) (bool, []string) {
	var blocked []string
	for _, g := range c.gates {
		if !g.Allow(state, proposed, now) {
			blocked = append(blocked, g.Name())
		}
	}
	return len(blocked) == 0, blocked
}

func (c *Controller) CanBuy(state State, proposed decimal.Decimal, now time.Time) bool {
	ok, _ := c.Check(state, proposed, now)
	return ok
}
