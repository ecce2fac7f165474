package observ

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every alertbot collector. It is separate from the default
// registry so tests can read values without global collisions.
var Registry = prometheus.NewRegistry()

var (
	alertsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "alertbot_alerts_total",
		Help: "Raw alerts seen by the producer, by result",
	}, []string{"result"})

	clausesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "alertbot_clauses_total",
		Help: "Parsed alert clauses, by action and side",
	}, []string{"action", "side"})

	tradesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "alertbot_trades_total",
		Help: "Executed trades, by side",
	}, []string{"side"})

	rejectionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "alertbot_rejections_total",
		Help: "Signals dropped per ticker, by reason",
	}, []string{"reason"})

	pnlTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "alertbot_pnl_records_total",
		Help: "PnL records produced, by kind",
	}, []string{"kind"})

	openLots = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "alertbot_open_lots",
		Help: "Lots currently open across all versions",
	})

	buySpend = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "alertbot_buy_spend_usd",
		Help: "Cumulative buy notional for the process lifetime",
	})

	queueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "alertbot_queue_depth",
		Help: "Trade events waiting for the control loop",
	})
)

func init() {
	Registry.MustRegister(alertsTotal, clausesTotal, tradesTotal, rejectionsTotal, pnlTotal, openLots, buySpend, queueDepth)
}

func RecordAlert(result string)        { alertsTotal.WithLabelValues(result).Inc() }
func RecordClause(action, side string) { clausesTotal.WithLabelValues(action, side).Inc() }
func RecordTrade(side string)          { tradesTotal.WithLabelValues(side).Inc() }
func RecordRejection(reason string)    { rejectionsTotal.WithLabelValues(reason).Inc() }
func RecordPnL(kind string)            { pnlTotal.WithLabelValues(kind).Inc() }
func SetOpenLots(n int)                { openLots.Set(float64(n)) }
func SetBuySpend(v float64)            { buySpend.Set(v) }
func SetQueueDepth(n int)              { queueDepth.Set(float64(n)) }

// Handler serves the registry in Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
