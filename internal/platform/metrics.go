package platform

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the API client collectors. One instance is shared by every
// operator session's Client.
type Metrics struct {
	Requests *prometheus.CounterVec
	Duration *prometheus.HistogramVec
}

// NewMetrics creates and registers the collectors.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mapsite_console",
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "Requests sent to the map-site API, by method and status.",
		}, []string{"method", "status"}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "mapsite_console",
			Subsystem: "api",
			Name:      "request_duration_seconds",
			Help:      "Latency of requests sent to the map-site API.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
	}
	for _, c := range []prometheus.Collector{m.Requests, m.Duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}
