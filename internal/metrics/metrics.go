// Package metrics 采集流水线与 HTTP 服务的 Prometheus 指标
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "image_scraper"

// Metrics 所有指标，方法对 nil 接收者安全
type Metrics struct {
	CandidatesTotal   *prometheus.CounterVec
	FetchDuration     prometheus.Histogram
	FetchBytes        prometheus.Histogram
	AcquireDuration   prometheus.Histogram
	HTTPRequestsTotal *prometheus.CounterVec
	HTTPDuration      *prometheus.HistogramVec

	registry *prometheus.Registry
}

// New 创建指标并注册到新的 registry
func New() (*Metrics, error) {
	m := &Metrics{registry: prometheus.NewRegistry()}
	m.initMetrics()

	for _, c := range []prometheus.Collector{
		m.CandidatesTotal,
		m.FetchDuration,
		m.FetchBytes,
		m.AcquireDuration,
		m.HTTPRequestsTotal,
		m.HTTPDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	} {
		if err := m.registry.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register metrics: %w", err)
		}
	}
	return m, nil
}

func (m *Metrics) initMetrics() {
	m.CandidatesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "candidates_total",
		Help:      "Candidates processed by the acquisition pipeline, by outcome and reason.",
	}, []string{"outcome", "reason"})

	m.FetchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "fetch_duration_seconds",
		Help:      "Duration of candidate downloads in seconds.",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
	})

	m.FetchBytes = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "fetch_size_bytes",
		Help:      "Size of downloaded candidates in bytes.",
		Buckets:   prometheus.ExponentialBuckets(1024, 4, 8),
	})

	m.AcquireDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "acquire_duration_seconds",
		Help:      "Duration of EnsureImages calls in seconds.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
	})

	m.HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests served, by route, method and status.",
	}, []string{"route", "method", "status"})

	m.HTTPDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route", "method"})
}

// Registry 返回 registry，供 /metrics 暴露
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RecordCandidate 记录一个候选的处理结果
func (m *Metrics) RecordCandidate(outcome, reason string) {
	if m == nil {
		return
	}
	m.CandidatesTotal.WithLabelValues(outcome, reason).Inc()
}

// ObserveFetch 记录一次下载的耗时与大小，失败时 size 为 0 不计入大小分布
func (m *Metrics) ObserveFetch(d time.Duration, size int) {
	if m == nil {
		return
	}
	m.FetchDuration.Observe(d.Seconds())
	if size > 0 {
		m.FetchBytes.Observe(float64(size))
	}
}

// ObserveAcquire 记录一次 EnsureImages 的耗时
func (m *Metrics) ObserveAcquire(d time.Duration) {
	if m == nil {
		return
	}
	m.AcquireDuration.Observe(d.Seconds())
}

// ObserveHTTP 记录一次 HTTP 请求
func (m *Metrics) ObserveHTTP(route, method string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(route, method, fmt.Sprintf("%d", status)).Inc()
	m.HTTPDuration.WithLabelValues(route, method).Observe(d.Seconds())
}
