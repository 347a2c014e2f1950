package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tz-search/internal/geoip"
	"tz-search/internal/middleware"
	"tz-search/internal/reload"
	"tz-search/pkg/tzsearch"
)

func square(minLat, minLon, maxLat, maxLon float64) tzsearch.Ring {
	return tzsearch.Ring{
		{Lat: minLat, Lon: minLon},
		{Lat: minLat, Lon: maxLon},
		{Lat: maxLat, Lon: maxLon},
		{Lat: maxLat, Lon: minLon},
	}
}

type staticSource struct {
	zones []tzsearch.Zone
	err   error
}

func (s *staticSource) Name() string { return "static" }

func (s *staticSource) Zones(context.Context) ([]tzsearch.Zone, error) {
	return s.zones, s.err
}

type fakeLocator map[string]geoip.Location

func (f fakeLocator) Locate(ip string) (geoip.Location, error) {
	if ip == "bad" {
		return geoip.Location{}, geoip.ErrBadIP
	}
	loc, ok := f[ip]
	if !ok {
		return geoip.Location{}, geoip.ErrNotFound
	}
	return loc, nil
}

func testZones() []tzsearch.Zone {
	return []tzsearch.Zone{
		{Name: "Test/Alpha", Polygons: []tzsearch.Polygon{{Outer: square(0, 0, 10, 10)}}},
		{Name: "Test/Beta", Polygons: []tzsearch.Polygon{{Outer: square(5, 5, 15, 15)}}},
		{Name: "Other/Gamma", Polygons: []tzsearch.Polygon{{Outer: square(-20, -20, -10, -10)}}},
	}
}

func newTestService(t *testing.T, src *staticSource, geo IPLocator) (*Service, http.Handler) {
	t.Helper()
	h := &reload.Holder{}
	rl := reload.New(src, h, tzsearch.WithNearest(500))
	require.NoError(t, rl.Reload(context.Background()))
	svc := NewService(Options{
		Holder:     h,
		Reloader:   rl,
		GeoIP:      geo,
		AdminToken: "secret",
		CacheSize:  16,
	})
	return svc, middleware.EdgeOneGeo(BuildRoutes(svc))
}

func doGet(t *testing.T, h http.Handler, target string, hdr map[string]string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return rec, body
}

func TestZoneHandler(t *testing.T) {
	_, h := newTestService(t, &staticSource{zones: testZones()}, nil)

	rec, body := doGet(t, h, "/tz?lat=2&lon=2", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Test/Alpha", body["zone"])
	assert.Equal(t, true, body["found"])

	// 重叠区域按名称先后取第一个，all=1 时列出全部
	rec, body = doGet(t, h, "/tz?lat=7&lon=7&all=1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Test/Alpha", body["zone"])
	assert.Equal(t, []any{"Test/Alpha", "Test/Beta"}, body["overlaps"])

	rec, body = doGet(t, h, "/tz?lat=10&lon=3", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Test/Alpha", body["zone"], "edge point is inside")

	rec, body = doGet(t, h, "/tz?lat=50&lon=50", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, body["found"])
	assert.Equal(t, "", body["zone"])
}

func TestZoneHandler_Fallback(t *testing.T) {
	_, h := newTestService(t, &staticSource{zones: testZones()}, nil)

	rec, body := doGet(t, h, "/tz?lat=-21&lon=-21&fallback=nearest", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Other/Gamma", body["zone"])
	assert.Equal(t, false, body["found"])
	assert.Equal(t, true, body["approx"])
	assert.Greater(t, body["distance_km"], 0.0)

	// 超出半径不兜底
	_, body = doGet(t, h, "/tz?lat=-60&lon=-60&fallback=nearest", nil)
	assert.Equal(t, "", body["zone"])
	assert.Nil(t, body["approx"])
}

func TestZoneHandler_BadInput(t *testing.T) {
	_, h := newTestService(t, &staticSource{zones: testZones()}, nil)
	for _, target := range []string{
		"/tz",
		"/tz?lat=1",
		"/tz?lat=abc&lon=2",
		"/tz?lat=91&lon=0",
		"/tz?lat=0&lon=-180.5",
		"/tz?lat=0&lon=0&coord_sys=mercator",
	} {
		rec, body := doGet(t, h, target, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
		assert.NotEmpty(t, body["error"], target)
	}
}

func TestZoneHandler_NotReady(t *testing.T) {
	svc := NewService(Options{Holder: &reload.Holder{}})
	h := BuildRoutes(svc)

	rec, _ := doGet(t, h, "/tz?lat=1&lon=1", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	rec, _ = doGet(t, h, "/healthz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	rec, _ = doGet(t, h, "/zones", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestIPHandler(t *testing.T) {
	geo := fakeLocator{
		"203.0.113.7": {IP: "203.0.113.7", Lat: 3, Lon: 3, Country: "ZZ", TimeZone: "Test/Alpha"},
		"192.0.2.1":   {IP: "192.0.2.1", Lat: 3, Lon: 3},
	}
	_, h := newTestService(t, &staticSource{zones: testZones()}, geo)

	rec, body := doGet(t, h, "/tz/ip?ip=203.0.113.7", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Test/Alpha", body["zone"])
	assert.Equal(t, "geoip", body["via"])
	assert.Equal(t, "ZZ", body["country"])
	assert.Equal(t, "Test/Alpha", body["geoip_zone"])

	// 缺省使用访问者 IP
	rec, body = doGet(t, h, "/tz/ip", map[string]string{"X-Forwarded-For": "192.0.2.1, 10.0.0.1"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "192.0.2.1", body["ip"])

	rec, _ = doGet(t, h, "/tz/ip?ip=bad", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec, _ = doGet(t, h, "/tz/ip?ip=198.51.100.1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestIPHandler_Disabled(t *testing.T) {
	_, h := newTestService(t, &staticSource{zones: testZones()}, nil)
	rec, _ := doGet(t, h, "/tz/ip?ip=203.0.113.7", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHereHandler(t *testing.T) {
	geo := fakeLocator{"192.0.2.1": {IP: "192.0.2.1", Lat: 12, Lon: 12}}
	_, h := newTestService(t, &staticSource{zones: testZones()}, geo)

	rec, body := doGet(t, h, "/tz/here", map[string]string{
		"X-EO-Client-IP":             "198.51.100.9",
		"X-EO-Geo-CountryCodeAlpha2": "ZZ",
		"X-EO-Geo-Latitude":          "-15",
		"X-EO-Geo-Longitude":         "-15",
	})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Other/Gamma", body["zone"])
	assert.Equal(t, "edge", body["via"])
	assert.Equal(t, "198.51.100.9", body["ip"])

	rec, body = doGet(t, h, "/tz/here", map[string]string{"X-Real-IP": "192.0.2.1"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Test/Beta", body["zone"])
	assert.Equal(t, "geoip", body["via"])
}

func TestZonesHandler(t *testing.T) {
	_, h := newTestService(t, &staticSource{zones: testZones()}, nil)

	rec, body := doGet(t, h, "/zones", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{"Other/Gamma", "Test/Alpha", "Test/Beta"}, body["zones"])
	assert.Equal(t, 3.0, body["total"])

	_, body = doGet(t, h, "/zones?q=test&limit=1", nil)
	assert.Equal(t, []any{"Test/Alpha"}, body["zones"])

	rec, _ = doGet(t, h, "/zones?limit=x", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStatsAndHealth(t *testing.T) {
	_, h := newTestService(t, &staticSource{zones: testZones()}, nil)

	rec, body := doGet(t, h, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])

	rec, body = doGet(t, h, "/stats", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "static", body["source"])
	assert.Equal(t, 1.0, body["generation"])
	assert.NotEmpty(t, body["fingerprint"])
	ds, ok := body["dataset"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 3.0, ds["zones"])
	assert.Nil(t, body["queries"])
}

func TestReloadHandler(t *testing.T) {
	src := &staticSource{zones: testZones()}
	svc, h := newTestService(t, src, nil)

	post := func(token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/reload", nil)
		if token != "" {
			req.Header.Set("x-admin-token", token)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusForbidden, post("").Code)
	assert.Equal(t, http.StatusForbidden, post("wrong").Code)

	req := httptest.NewRequest(http.MethodGet, "/reload", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	// 缓存热点结果，随后替换数据集
	_, body := doGet(t, h, "/tz?lat=2&lon=2", nil)
	assert.Equal(t, "Test/Alpha", body["zone"])
	assert.Equal(t, 1, svc.lru.Len())

	src.zones = []tzsearch.Zone{
		{Name: "Test/Replaced", Polygons: []tzsearch.Polygon{{Outer: square(0, 0, 10, 10)}}},
	}
	rec = post("secret")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, svc.lru.Len())

	_, body = doGet(t, h, "/tz?lat=2&lon=2", nil)
	assert.Equal(t, "Test/Replaced", body["zone"])

	// 加载失败保留旧数据集
	src.err = errors.New("boom")
	rec = post("secret")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	_, body = doGet(t, h, "/tz?lat=2&lon=2", nil)
	assert.Equal(t, "Test/Replaced", body["zone"])
}

func TestLookupCache(t *testing.T) {
	svc, _ := newTestService(t, &staticSource{zones: testZones()}, nil)
	ctx := context.Background()

	a, err := svc.Lookup(ctx, query{Lat: 2, Lon: 2})
	require.NoError(t, err)
	b, err := svc.Lookup(ctx, query{Lat: 2, Lon: 2})
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Equal(t, 1, svc.lru.Len())

	_, err = svc.Lookup(ctx, query{Lat: 2, Lon: 2, All: true})
	require.NoError(t, err)
	assert.Equal(t, 2, svc.lru.Len(), "all=1 has its own key")

	_, err = svc.Lookup(ctx, query{Lat: -91, Lon: 0})
	assert.ErrorIs(t, err, tzsearch.ErrInvalidCoordinate)
}

func TestCacheKey(t *testing.T) {
	assert.Equal(t, "tz:f:1.5:-2", cacheKey("f", query{Lat: 1.5, Lon: -2}))
	assert.Equal(t, "tz:f:0.1:0.2:n:a", cacheKey("f", query{Lat: 0.1, Lon: 0.2, Fallback: true, All: true}))
	assert.NotEqual(t, cacheKey("f", query{Lat: 0.1}), cacheKey("f", query{Lat: 0.10000000000000002}))
}

func TestRedisCache_NilSafe(t *testing.T) {
	var c *redisCache
	_, ok := c.get(context.Background(), "k")
	assert.False(t, ok)
	c.set(context.Background(), "k", zoneResult{Zone: "x"})
}
