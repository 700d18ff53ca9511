package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements the domain Metrics interface on Prometheus.
type Recorder struct {
	runs       *prometheus.CounterVec
	runSeconds *prometheus.HistogramVec
	runTrades  *prometheus.GaugeVec
	trades     *prometheus.CounterVec
	pnl        *prometheus.CounterVec
	errors     *prometheus.CounterVec
	latency    *prometheus.HistogramVec
}

// New registers the collectors on reg (prometheus.DefaultRegisterer when nil).
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Recorder{
		runs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "levelscope", Name: "backtest_runs_total",
			Help: "Completed backtest runs",
		}, []string{"symbol"}),
		runSeconds: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "levelscope", Name: "backtest_run_seconds",
			Help:    "Wall time of a backtest run",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}, []string{"symbol"}),
		runTrades: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "levelscope", Name: "backtest_last_run_trades",
			Help: "Trades in the most recent run",
		}, []string{"symbol"}),
		trades: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "levelscope", Name: "backtest_trades_total",
			Help: "Closed trades by side and exit reason",
		}, []string{"side", "reason"}),
		pnl: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "levelscope", Name: "backtest_pnl_abs_total",
			Help: "Absolute realized PnL split into profit and loss",
		}, []string{"kind"}),
		errors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "levelscope", Name: "errors_total",
			Help: "Errors by kind",
		}, []string{"type"}),
		latency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "levelscope", Name: "operation_duration_seconds",
			Help:    "Duration of operations in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
	}
}

func (r *Recorder) RecordRun(symbol string, seconds float64, trades int) {
	r.runs.WithLabelValues(symbol).Inc()
	r.runSeconds.WithLabelValues(symbol).Observe(seconds)
	r.runTrades.WithLabelValues(symbol).Set(float64(trades))
}

func (r *Recorder) RecordTrade(side, reason string, pnl float64) {
	r.trades.WithLabelValues(side, reason).Inc()
	if pnl >= 0 {
		r.pnl.WithLabelValues("profit").Add(pnl)
	} else {
		r.pnl.WithLabelValues("loss").Add(-pnl)
	}
}

func (r *Recorder) RecordError(kind string) {
	r.errors.WithLabelValues(kind).Inc()
}

func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
