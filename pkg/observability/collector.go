package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Skozial17/supportchat/domain/events"
)

// Collector holds the Prometheus metrics scraped from the API server.
type Collector struct {
	registry *prometheus.Registry

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	CasesStarted     prometheus.Counter
	CasesFinalized   prometheus.Counter
	CaseStatusChange *prometheus.CounterVec
	MessagesAppended *prometheus.CounterVec

	StoreOperations *prometheus.CounterVec
	StoreDuration   *prometheus.HistogramVec
	BreakerState    *prometheus.GaugeVec

	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter

	StreamSubscribers prometheus.Gauge
}

// NewCollector registers every metric on a private registry.
func NewCollector(namespace string) *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		CasesStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cases_started_total",
			Help:      "Intake conversations started",
		}),
		CasesFinalized: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cases_finalized_total",
			Help:      "Intake conversations that produced a case",
		}),
		CaseStatusChange: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "case_status_changes_total",
			Help:      "Case close and reopen operations",
		}, []string{"status"}),
		MessagesAppended: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_appended_total",
			Help:      "Transcript messages confirmed by the store",
		}, []string{"sender"}),
		StoreOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_operations_total",
			Help:      "Case store operations by outcome",
		}, []string{"operation", "status"}),
		StoreDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "store_operation_duration_seconds",
			Help:      "Case store operation duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		BreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state (0 closed, 1 half-open, 2 open)",
		}, []string{"name"}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of cache hits",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Total number of cache misses",
		}),
		StreamSubscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stream_subscribers",
			Help:      "Open transcript stream connections",
		}),
	}

	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.HTTPRequests,
		c.HTTPDuration,
		c.CasesStarted,
		c.CasesFinalized,
		c.CaseStatusChange,
		c.MessagesAppended,
		c.StoreOperations,
		c.StoreDuration,
		c.BreakerState,
		c.CacheHits,
		c.CacheMisses,
		c.StreamSubscribers,
	)
	return c
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Registry exposes the private registry, mainly for tests.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// ObserveEvents counts the business outcomes carried by committed events.
func (c *Collector) ObserveEvents(evts []events.DomainEvent) {
	if c == nil {
		return
	}
	for _, e := range evts {
		switch ev := e.(type) {
		case events.CaseStarted:
			c.CasesStarted.Inc()
		case events.CaseFinalized:
			c.CasesFinalized.Inc()
		case events.CaseClosed:
			c.CaseStatusChange.WithLabelValues("closed").Inc()
		case events.CaseReopened:
			c.CaseStatusChange.WithLabelValues("open").Inc()
		case events.MessageAppended:
			c.MessagesAppended.WithLabelValues(ev.Sender.String()).Inc()
		}
	}
}
