// Package metrics Prometheus 指标
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 翻译服务指标
type Metrics struct {
	registry *prometheus.Registry

	requests       *prometheus.CounterVec
	requestTime    *prometheus.HistogramVec
	stageTime      *prometheus.HistogramVec
	cacheLookups   *prometheus.CounterVec
	cacheSweeps    prometheus.Counter
	tempFilesSwept prometheus.Counter
}

// New 创建指标并注册到独立的 Registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "voicedub",
			Name:      "translations_total",
			Help:      "Translation requests by outcome.",
		}, []string{"status", "error_type"}),
		requestTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "voicedub",
			Name:      "translation_duration_seconds",
			Help:      "End-to-end translation request duration.",
			Buckets:   []float64{0.1, 1, 5, 15, 30, 60, 120, 300},
		}, []string{"status"}),
		stageTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "voicedub",
			Name:      "stage_duration_seconds",
			Help:      "Pipeline stage duration.",
			Buckets:   []float64{0.05, 0.5, 2, 5, 15, 30, 60, 120},
		}, []string{"stage"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "voicedub",
			Name:      "cache_lookups_total",
			Help:      "Cache lookups by result.",
		}, []string{"result"}),
		cacheSweeps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "voicedub",
			Name:      "cache_evictions_total",
			Help:      "Expired cache entries removed by the sweeper.",
		}),
		tempFilesSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "voicedub",
			Name:      "temp_files_swept_total",
			Help:      "Stale temporary files removed by the sweeper.",
		}),
	}

	reg.MustRegister(m.requests, m.requestTime, m.stageTime, m.cacheLookups, m.cacheSweeps, m.tempFilesSwept)
	return m
}

// ObserveRequest 记录一次请求结果
func (m *Metrics) ObserveRequest(status, errorType string, d time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(status, errorType).Inc()
	m.requestTime.WithLabelValues(status).Observe(d.Seconds())
}

// ObserveStage 记录阶段耗时
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.stageTime.WithLabelValues(stage).Observe(d.Seconds())
}

// CacheLookup 记录缓存命中/未命中
func (m *Metrics) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// CacheSwept 记录清理的过期缓存数
func (m *Metrics) CacheSwept(n int) {
	if m == nil {
		return
	}
	m.cacheSweeps.Add(float64(n))
}

// TempFilesSwept 记录清理的临时文件数
func (m *Metrics) TempFilesSwept(n int) {
	if m == nil {
		return
	}
	m.tempFilesSwept.Add(float64(n))
}

// Registry 底层 Registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler /metrics 处理器
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
