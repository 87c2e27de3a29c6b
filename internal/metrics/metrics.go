// Package metrics holds the Prometheus collectors for an export run.
//
// A batch job has no scrape endpoint, so the registry is written to a
// node_exporter textfile at the end of each run.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "bikecounts"

// Collector groups the run metrics on a private registry.
type Collector struct {
	Requests      *prometheus.CounterVec
	Latency       *prometheus.HistogramVec
	SitesExported prometheus.Counter
	SitesFailed   prometheus.Counter
	Rows          *prometheus.CounterVec
	LastSuccess   prometheus.Gauge

	registry *prometheus.Registry
}

func New() *Collector {
	c := &Collector{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_requests_total",
			Help:      "Counter API requests by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
		Latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "api_request_duration_seconds",
			Help:      "Counter API request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
		SitesExported: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sites_exported_total",
			Help:      "Sites whose counts were written.",
		}),
		SitesFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sites_failed_total",
			Help:      "Sites that could not be fetched or written.",
		}),
		Rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "count_rows_total",
			Help:      "Count rows by filter result (retained, incomplete_month, undated).",
		}, []string{"result"}),
		LastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last run that finished without site failures.",
		}),
		registry: prometheus.NewRegistry(),
	}

	c.registry.MustRegister(c.Requests, c.Latency, c.SitesExported, c.SitesFailed, c.Rows, c.LastSuccess)
	return c
}

// ObserveRequest records one API call.
func (c *Collector) ObserveRequest(endpoint, outcome string, took time.Duration) {
	c.Requests.WithLabelValues(endpoint, outcome).Inc()
	c.Latency.WithLabelValues(endpoint).Observe(took.Seconds())
}

func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// WriteTextfile atomically writes the registry in the text exposition format.
func (c *Collector) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, c.registry)
}
