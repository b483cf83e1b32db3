package scheduler

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Metrics holds the Prometheus metrics of the notification scheduler.
type Metrics struct {
	PassesTotal       prometheus.Counter
	PingsTotal        *prometheus.CounterVec
	SendFailuresTotal prometheus.Counter
	StoreErrorsTotal  prometheus.Counter
	ExpiredTotal      prometheus.Counter
	RolloversTotal    prometheus.Counter
	DigestsTotal      prometheus.Counter
}

// NewMetrics registers the scheduler metrics once per process.
//
// Metrics:
//   - weekping_scan_passes_total - scan passes run
//   - weekping_pings_total{kind} - pings fired, kind is "advance" or "start"
//   - weekping_send_failures_total - notifications the transport rejected
//   - weekping_store_errors_total - user passes aborted by a store error
//   - weekping_expired_events_total - single events removed after their occurrence
//   - weekping_rollovers_total - ended days that got a reset pass
//   - weekping_digests_total - daily digests sent
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			PassesTotal: promauto.NewCounter(prometheus.CounterOpts{
				Name: "weekping_scan_passes_total",
				Help: "Total number of scheduler scan passes",
			}),
			PingsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "weekping_pings_total",
					Help: "Total number of pings fired",
				},
				[]string{"kind"},
			),
			SendFailuresTotal: promauto.NewCounter(prometheus.CounterOpts{
				Name: "weekping_send_failures_total",
				Help: "Total number of notifications that could not be delivered",
			}),
			StoreErrorsTotal: promauto.NewCounter(prometheus.CounterOpts{
				Name: "weekping_store_errors_total",
				Help: "Total number of user passes aborted by a store error",
			}),
			ExpiredTotal: promauto.NewCounter(prometheus.CounterOpts{
				Name: "weekping_expired_events_total",
				Help: "Total number of single events deleted after their occurrence",
			}),
			RolloversTotal: promauto.NewCounter(prometheus.CounterOpts{
				Name: "weekping_rollovers_total",
				Help: "Total number of ended days processed by the reset pass",
			}),
			DigestsTotal: promauto.NewCounter(prometheus.CounterOpts{
				Name: "weekping_digests_total",
				Help: "Total number of daily digests sent",
			}),
		}
	})
	return globalMetrics
}
