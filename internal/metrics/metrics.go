// Package metrics defines and registers the Prometheus collectors exposed
// over the daemon's metrics endpoint (internal/config's MetricsConfig).
package metrics

import (
	"github.com/kuuji/mrouted/internal/mroute"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "mrouted"

// routeMetrics is the collection of gauges/counters tracked for the
// routing core. Call initRouteMetrics to initialize.
var routeMetrics = struct {
	vifsOccupied   prometheus.Gauge
	mifsOccupied   prometheus.Gauge
	confRoutes     prometheus.Gauge
	dynRoutes      prometheus.Gauge
	kernelCalls    *prometheus.CounterVec
	upcallsTotal   prometheus.Counter
}{}

func init() {
	initRouteMetrics()
	prometheus.MustRegister(prometheus.NewBuildInfoCollector())
}

func initRouteMetrics() {
	const sub = "routing"

	routeMetrics.vifsOccupied = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: sub,
		Name:      "vifs_occupied",
		Help:      "Number of IPv4 virtual interface table slots currently bound.",
	})
	routeMetrics.mifsOccupied = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: sub,
		Name:      "mifs_occupied",
		Help:      "Number of IPv6 multicast interface table slots currently bound.",
	})
	routeMetrics.confRoutes = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: sub,
		Name:      "configured_routes",
		Help:      "Number of configured IPv4 routes, wildcard templates included.",
	})
	routeMetrics.dynRoutes = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: sub,
		Name:      "dynamic_routes",
		Help:      "Number of dynamically materialised (S,G) routes currently installed.",
	})
	routeMetrics.kernelCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: sub,
		Name:      "kernel_calls_total",
		Help:      "Count of kernel multicast-routing control calls by operation and outcome.",
	}, []string{"op", "outcome"})
	routeMetrics.upcallsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: sub,
		Name:      "upcalls_total",
		Help:      "Count of IGMPMSG_NOCACHE upcalls received from the kernel.",
	})
}

// ObserveKernelCall records the outcome of a single kernel control
// operation (e.g. "add_vif", "add_mfc").
func ObserveKernelCall(op string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	routeMetrics.kernelCalls.WithLabelValues(op, outcome).Inc()
}

// ObserveUpcall increments the upcall counter. Call once per
// IGMPMSG_NOCACHE read from the kernel, regardless of whether it matched
// a wildcard.
func ObserveUpcall() {
	routeMetrics.upcallsTotal.Inc()
}

// Sync refreshes the gauge metrics from a router snapshot. Call it after
// every mutating operation, or periodically from the daemon's main loop.
func Sync(stats mroute.Stats) {
	routeMetrics.vifsOccupied.Set(float64(stats.VIFsOccupied))
	routeMetrics.mifsOccupied.Set(float64(stats.MIFsOccupied))
	routeMetrics.confRoutes.Set(float64(stats.ConfRoutes))
	routeMetrics.dynRoutes.Set(float64(stats.DynRoutes))
}
