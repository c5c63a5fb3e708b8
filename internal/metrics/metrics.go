// Package metrics exposes the bot's Prometheus collectors. Every method is
// safe on a nil *Metrics so components can run without a registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "liqbot"

// Metrics groups the collectors for search, simulation and submission.
type Metrics struct {
	searches       *prometheus.CounterVec
	rounds         prometheus.Counter
	simulations    prometheus.Counter
	simFailures    prometheus.Counter
	simDuration    prometheus.Histogram
	quoteErrors    prometheus.Counter
	submissions    *prometheus.CounterVec
	relayFallbacks prometheus.Counter
	bestYield      prometheus.Gauge
	feedAccounts   prometheus.Counter
	reportFailures *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		searches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "searches_total",
			Help: "Position searches by outcome.",
		}, []string{"outcome"}),
		rounds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "search_rounds_total",
			Help: "Repay fractions evaluated.",
		}),
		simulations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "simulations_total",
			Help: "Batch simulations run.",
		}),
		simFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "simulation_failures_total",
			Help: "Simulations that reverted or produced no yield.",
		}),
		simDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "simulation_duration_seconds",
			Help:    "Latency of one batch simulation.",
			Buckets: prometheus.DefBuckets,
		}),
		quoteErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "quote_errors_total",
			Help: "Aggregator quote failures.",
		}),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "submissions_total",
			Help: "Liquidation transactions by path and result.",
		}, []string{"path", "result"}),
		relayFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "relay_fallbacks_total",
			Help: "Private submissions that fell back to a public transaction.",
		}),
		bestYield: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "last_best_yield_eth",
			Help: "Yield of the most recent winning candidate, in ETH.",
		}),
		feedAccounts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "feed_accounts_total",
			Help: "Accounts received from the position feed.",
		}),
		reportFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "report_failures_total",
			Help: "Event sinks that failed to accept an event.",
		}, []string{"sink"}),
	}

	for _, c := range []prometheus.Collector{
		m.searches, m.rounds, m.simulations, m.simFailures, m.simDuration,
		m.quoteErrors, m.submissions, m.relayFallbacks, m.bestYield,
		m.feedAccounts, m.reportFailures,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// TimeSimulation starts a simulation timer; call the returned func when done.
func (m *Metrics) TimeSimulation() func() {
	if m == nil {
		return func() {}
	}
	m.simulations.Inc()
	t := prometheus.NewTimer(m.simDuration)
	return func() { t.ObserveDuration() }
}

func (m *Metrics) SimulationFailed() {
	if m != nil {
		m.simFailures.Inc()
	}
}

func (m *Metrics) Round() {
	if m != nil {
		m.rounds.Inc()
	}
}

func (m *Metrics) QuoteError() {
	if m != nil {
		m.quoteErrors.Inc()
	}
}

// Search records a finished search; found selects the outcome label.
func (m *Metrics) Search(found bool) {
	if m == nil {
		return
	}
	outcome := "exhausted"
	if found {
		outcome = "found"
	}
	m.searches.WithLabelValues(outcome).Inc()
}

// BestYield records the winning candidate's yield in ETH.
func (m *Metrics) BestYield(eth float64) {
	if m != nil {
		m.bestYield.Set(eth)
	}
}

// Submission records one submission attempt. path is "private" or "public".
func (m *Metrics) Submission(path string, ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "failed"
	}
	m.submissions.WithLabelValues(path, result).Inc()
}

func (m *Metrics) RelayFallback() {
	if m != nil {
		m.relayFallbacks.Inc()
	}
}

func (m *Metrics) FeedAccount() {
	if m != nil {
		m.feedAccounts.Inc()
	}
}

func (m *Metrics) ReportFailed(sink string) {
	if m != nil {
		m.reportFailures.WithLabelValues(sink).Inc()
	}
}
