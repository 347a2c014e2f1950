package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	LookupsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tzsearch_lookups_total",
		Help: "Total number of zone lookups by endpoint",
	}, []string{"endpoint"})
	LookupDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "tzsearch_lookup_duration_ms",
		Help:    "Lookup duration in milliseconds, cache included",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 50, 100},
	})
	UnresolvedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tzsearch_unresolved_total",
		Help: "Total number of lookups without a containing zone",
	})
	ApproxTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tzsearch_approx_total",
		Help: "Total number of lookups answered by the nearest-vertex fallback",
	})
	InvalidRequestsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tzsearch_invalid_requests_total",
		Help: "Total number of requests rejected for invalid coordinates or parameters",
	})
	CacheHitsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tzsearch_cache_hits_total",
		Help: "Total cache hits by layer",
	}, []string{"layer"})
	CacheMissesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tzsearch_cache_misses_total",
		Help: "Total cache misses by layer",
	}, []string{"layer"})
	RedisErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tzsearch_redis_errors_total",
		Help: "Total redis errors, open breaker rejections included",
	})
	GeoIPLookupsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tzsearch_geoip_lookups_total",
		Help: "Total geoip lookups by outcome",
	}, []string{"outcome"})
	DatasetZones = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "tzsearch_dataset_zones",
		Help: "Number of zones in the active dataset",
	})
	DatasetPolygons = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "tzsearch_dataset_polygons",
		Help: "Number of polygons in the active dataset",
	})
	DatasetLoadDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "tzsearch_dataset_load_duration_ms",
		Help:    "Dataset load and index build duration in milliseconds",
		Buckets: []float64{10, 50, 100, 500, 1000, 5000, 10000, 30000},
	})
	ReloadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tzsearch_reloads_total",
		Help: "Dataset reload attempts by status",
	}, []string{"status"})
	RateLimitedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tzsearch_rate_limited_total",
		Help: "Total requests rejected by the rate limiter",
	})
)

func init() {
	prometheus.MustRegister(LookupsTotal)
	prometheus.MustRegister(LookupDurationMs)
	prometheus.MustRegister(UnresolvedTotal)
	prometheus.MustRegister(ApproxTotal)
	prometheus.MustRegister(InvalidRequestsTotal)
	prometheus.MustRegister(CacheHitsTotal)
	prometheus.MustRegister(CacheMissesTotal)
	prometheus.MustRegister(RedisErrorsTotal)
	prometheus.MustRegister(GeoIPLookupsTotal)
	prometheus.MustRegister(DatasetZones)
	prometheus.MustRegister(DatasetPolygons)
	prometheus.MustRegister(DatasetLoadDurationMs)
	prometheus.MustRegister(ReloadsTotal)
	prometheus.MustRegister(RateLimitedTotal)
}

// 文档注释：返回 Prometheus 指标监听器
// 背景：统一暴露注册指标到 /metrics 路径，供 Prometheus 抓取；在主入口挂载。
func Handler() http.Handler { return promhttp.Handler() }
