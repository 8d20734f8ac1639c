// Package metrics 汇总会话与缓存的 Prometheus 指标。
package metrics

import (
	"regexp"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "rentoso"

var (
	// CacheLookups result: hit | miss
	CacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "lookups_total",
		Help:      "List cache lookups by store and result.",
	}, []string{"store", "result"})

	CacheFetchErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "fetch_errors_total",
		Help:      "Failed list fetches by store.",
	}, []string{"store"})

	CacheFetchDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "fetch_duration_seconds",
		Help:      "Backend fetch latency by store.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"store"})

	// HeartbeatTicks result: ok | error
	HeartbeatTicks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "session",
		Name:      "heartbeat_ticks_total",
		Help:      "Session heartbeat ticks by result.",
	}, []string{"result"})

	SessionTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "session",
		Name:      "transitions_total",
		Help:      "Session state transitions by target state.",
	}, []string{"state"})

	HTTPRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by route, method and status.",
	}, []string{"route", "method", "status"})

	HTTPDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency by route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route", "method"})
)

// Prom 默认注册表
var Prom = New()

type Prometheus struct {
	registry *prometheus.Registry
}

// New 创建注册表并注册本包的全部指标
func New() *Prometheus {
	p := &Prometheus{registry: prometheus.NewRegistry()}
	p.registry.MustRegister(
		CacheLookups, CacheFetchErrors, CacheFetchDuration,
		HeartbeatTicks, SessionTransitions,
		HTTPRequests, HTTPDuration,
	)
	return p
}

func (p *Prometheus) WithGoCollectorRuntimeMetrics() {
	p.registry.MustRegister(collectors.NewGoCollector(
		collectors.WithGoCollectorRuntimeMetrics(collectors.GoRuntimeMetricsRule{Matcher: regexp.MustCompile("/.*")}),
	))
}

func (p *Prometheus) WithBuildInfoCollector() {
	p.registry.MustRegister(collectors.NewBuildInfoCollector())
}

func (p *Prometheus) Registry() *prometheus.Registry {
	return p.registry
}
