// Package metrics exposes the cardroom's operational counters.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is the set of collectors the server maintains. They live on a
// private registry so tests can run side by side without collisions.
type Metrics struct {
	registry *prometheus.Registry

	// HandsTotal counts completed hands across all tables.
	HandsTotal prometheus.Counter

	// ActionsTotal counts applied player actions by kind.
	ActionsTotal *prometheus.CounterVec

	// Tables tracks open tables by (variant, stake) class.
	Tables *prometheus.GaugeVec

	// Sessions tracks connected transport sessions.
	Sessions prometheus.Gauge

	// WalletRetries counts credit attempts that needed retrying.
	WalletRetries prometheus.Counter

	// ErrorsTotal counts error replies by wire code.
	ErrorsTotal *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		HandsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "cardroom_hands_total",
			Help: "Completed hands across all tables.",
		}),
		ActionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cardroom_actions_total",
			Help: "Applied player actions by kind.",
		}, []string{"kind"}),
		Tables: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cardroom_tables",
			Help: "Open tables by variant and stake.",
		}, []string{"variant", "stake"}),
		Sessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "cardroom_sessions",
			Help: "Connected transport sessions.",
		}),
		WalletRetries: factory.NewCounter(prometheus.CounterOpts{
			Name: "cardroom_wallet_retries_total",
			Help: "Wallet credit attempts that needed retrying.",
		}),
		ErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cardroom_errors_total",
			Help: "Error replies by wire code.",
		}, []string{"code"}),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
