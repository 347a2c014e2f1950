package api

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"

	"tz-search/internal/cache"
	"tz-search/internal/geoip"
	"tz-search/internal/logger"
	"tz-search/internal/metrics"
	"tz-search/internal/reload"
	"tz-search/internal/store"
	"tz-search/pkg/tzsearch"
)

// ErrNotReady：数据集尚未加载
var ErrNotReady = errors.New("dataset not loaded")

// IPLocator：IP 定位能力，由 geoip.Locator 实现
type IPLocator interface {
	Locate(ip string) (geoip.Location, error)
}

// Options：服务依赖；除 Holder 外均可为空
type Options struct {
	Holder   *reload.Holder
	Reloader *reload.Reloader
	Redis    *redis.Client
	GeoIP    IPLocator
	Stats    *store.Store

	AdminToken string
	CacheSize  int
	CacheTTL   time.Duration
	RedisTTL   time.Duration
}

// Service：坐标到时区的查询服务，叠加进程内 LRU 与 redis 两级缓存
type Service struct {
	holder   *reload.Holder
	reloader *reload.Reloader
	lru      *cache.LRU[zoneResult]
	redis    *redisCache
	rc       *redis.Client
	geo      IPLocator
	stats    *store.Store
	admin    string
}

func NewService(o Options) *Service {
	s := &Service{
		holder:   o.Holder,
		reloader: o.Reloader,
		lru:      cache.NewLRU[zoneResult](o.CacheSize, o.CacheTTL),
		rc:       o.Redis,
		geo:      o.GeoIP,
		stats:    o.Stats,
		admin:    o.AdminToken,
	}
	if o.Redis != nil {
		s.redis = newRedisCache(o.Redis, o.RedisTTL)
	}
	if o.Reloader != nil {
		o.Reloader.OnSwap(func(*reload.Snapshot) { s.lru.Purge() })
	}
	return s
}

type query struct {
	Lat, Lon float64
	Fallback bool
	All      bool
}

// 文档注释：按坐标查询时区
// 背景：LRU → redis → 数据集 三级查找；键包含数据集指纹，重载后旧结果自然失效。
// 约束：坐标非法返回 tzsearch.ErrInvalidCoordinate；仅在调用方要求时使用最近顶点兜底，兜底结果标记 Approx。
func (s *Service) Lookup(ctx context.Context, q query) (zoneResult, error) {
	begin := time.Now()
	defer func() { metrics.LookupDurationMs.Observe(float64(time.Since(begin).Microseconds()) / 1000) }()

	snap := s.holder.Get()
	if snap == nil {
		return zoneResult{}, ErrNotReady
	}
	if err := tzsearch.ValidatePoint(q.Lat, q.Lon); err != nil {
		metrics.InvalidRequestsTotal.Inc()
		return zoneResult{}, err
	}
	key := cacheKey(snap.Fingerprint, q)
	if v, ok := s.lru.Get(key); ok {
		metrics.CacheHitsTotal.WithLabelValues("lru").Inc()
		return v, nil
	}
	metrics.CacheMissesTotal.WithLabelValues("lru").Inc()
	if v, ok := s.redis.get(ctx, key); ok {
		s.lru.Set(key, v)
		return v, nil
	}

	ds := snap.Dataset
	zone, found, err := ds.Resolve(q.Lat, q.Lon)
	if err != nil {
		return zoneResult{}, err
	}
	res := zoneResult{Lat: q.Lat, Lon: q.Lon, Zone: zone, Found: found}
	if q.All && found {
		res.Overlaps, _ = ds.ResolveAll(q.Lat, q.Lon)
	}
	if !found {
		metrics.UnresolvedTotal.Inc()
		if q.Fallback {
			if z, km, ok, _ := ds.Nearest(q.Lat, q.Lon); ok {
				res.Zone, res.Approx, res.DistanceKm = z, true, km
				metrics.ApproxTotal.Inc()
			}
		}
	}
	s.lru.Set(key, res)
	s.redis.set(ctx, key, res)
	logger.L().Debug("tz_lookup", "lat", q.Lat, "lon", q.Lon, "zone", res.Zone, "found", res.Found, "approx", res.Approx)
	return res, nil
}

// LocateIP：IP → 坐标 → 时区
func (s *Service) LocateIP(ctx context.Context, ip string, fallback bool) (ipZoneResult, error) {
	if s.geo == nil {
		return ipZoneResult{}, geoip.ErrDisabled
	}
	loc, err := s.geo.Locate(ip)
	if err != nil {
		outcome := "error"
		if errors.Is(err, geoip.ErrNotFound) {
			outcome = "not_found"
		}
		metrics.GeoIPLookupsTotal.WithLabelValues(outcome).Inc()
		return ipZoneResult{}, err
	}
	metrics.GeoIPLookupsTotal.WithLabelValues("ok").Inc()
	zr, err := s.Lookup(ctx, query{Lat: loc.Lat, Lon: loc.Lon, Fallback: fallback})
	if err != nil {
		return ipZoneResult{}, err
	}
	return ipZoneResult{
		zoneResult:     zr,
		IP:             loc.IP,
		Country:        loc.Country,
		City:           loc.City,
		AccuracyRadius: loc.AccuracyRadius,
		GeoIPZone:      loc.TimeZone,
		Via:            "geoip",
	}, nil
}

// recordQuery 记录查询统计；未启用统计库时为空操作。写库在后台协程完成，不阻塞响应
func (s *Service) recordQuery(visitor string) {
	if s.stats == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		newVisitor := false
		if visitor != "" {
			newVisitor = visitorFirstSeen(ctx, s.rc, visitor, time.Now())
		}
		if err := s.stats.IncrStats(ctx, newVisitor); err != nil {
			logger.L().Debug("stats_incr_error", "err", err)
		}
	}()
}

// cacheKey：数值按最短精确十进制表示，缓存不会改变边界附近的判定
func cacheKey(fingerprint string, q query) string {
	k := "tz:" + fingerprint + ":" + strconv.FormatFloat(q.Lat, 'f', -1, 64) + ":" + strconv.FormatFloat(q.Lon, 'f', -1, 64)
	if q.Fallback {
		k += ":n"
	}
	if q.All {
		k += ":a"
	}
	return k
}

// 文档注释：redis 二级缓存
// 背景：多实例部署时共享热点结果；redis 故障时由熔断器快速失败，查询退化为直接计算而不是等待超时。
// 约束：所有方法对 nil 接收者安全；任何错误只计数与记录调试日志，不向上返回。
type redisCache struct {
	rc  *redis.Client
	cb  *gobreaker.CircuitBreaker
	ttl time.Duration
}

const redisOpTimeout = 100 * time.Millisecond

func newRedisCache(rc *redis.Client, ttl time.Duration) *redisCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "redis",
		MaxRequests: 3,
		Interval:    10 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= 10 && float64(counts.TotalFailures)/float64(counts.Requests) > 0.5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.L().Warn("breaker_state_change", "name", name, "from", from.String(), "to", to.String())
		},
	})
	return &redisCache{rc: rc, cb: cb, ttl: ttl}
}

func (c *redisCache) get(ctx context.Context, key string) (zoneResult, bool) {
	var out zoneResult
	if c == nil {
		return out, false
	}
	v, err := c.cb.Execute(func() (interface{}, error) {
		cctx, cancel := context.WithTimeout(ctx, redisOpTimeout)
		defer cancel()
		s, err := c.rc.Get(cctx, key).Result()
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return s, err
	})
	if err != nil {
		metrics.RedisErrorsTotal.Inc()
		logger.L().Debug("redis_get_error", "err", err)
		return out, false
	}
	s, _ := v.(string)
	if s == "" || json.Unmarshal([]byte(s), &out) != nil {
		metrics.CacheMissesTotal.WithLabelValues("redis").Inc()
		return out, false
	}
	metrics.CacheHitsTotal.WithLabelValues("redis").Inc()
	return out, true
}

func (c *redisCache) set(ctx context.Context, key string, v zoneResult) {
	if c == nil {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	_, err = c.cb.Execute(func() (interface{}, error) {
		cctx, cancel := context.WithTimeout(ctx, redisOpTimeout)
		defer cancel()
		return nil, c.rc.Set(cctx, key, b, c.ttl).Err()
	})
	if err != nil {
		metrics.RedisErrorsTotal.Inc()
		logger.L().Debug("redis_set_error", "err", err)
	}
}
