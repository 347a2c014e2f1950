// 包 api：集中注册 HTTP API 路由以解耦主入口，便于后续扩展与替换
package api

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"tz-search/internal/coordsys"
	"tz-search/internal/geoip"
	"tz-search/internal/logger"
	"tz-search/internal/metrics"
	"tz-search/internal/middleware"
	"tz-search/pkg/tzsearch"
)

// 构建并返回 API 路由：独立 ServeMux 便于在主入口挂载到 API_BASE 前缀
func BuildRoutes(s *Service) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /tz", s.handleZone)
	mux.HandleFunc("GET /tz/ip", s.handleIP)
	mux.HandleFunc("GET /tz/here", s.handleHere)
	mux.HandleFunc("GET /zones", s.handleZones)
	mux.HandleFunc("GET /stats", s.handleStats)
	mux.HandleFunc("POST /reload", s.handleReload)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	return mux
}

// 文档注释：坐标查询时区
// 参数：lat/lon 必填；coord_sys 可为 GCJ-02/BD-09；fallback=nearest 启用最近顶点兜底；all=1 列出全部覆盖时区。
// 返回：200 与 zoneResult（未命中时 found=false）；参数缺失或坐标越界返回 400。
func (s *Service) handleZone(w http.ResponseWriter, r *http.Request) {
	metrics.LookupsTotal.WithLabelValues("tz").Inc()
	q := r.URL.Query()
	lat, err1 := parseCoord(q.Get("lat"))
	lon, err2 := parseCoord(q.Get("lon"))
	if err1 != nil || err2 != nil {
		metrics.InvalidRequestsTotal.Inc()
		writeError(w, r, http.StatusBadRequest, "lat and lon must be decimal degrees")
		return
	}
	sys, err := coordsys.Parse(q.Get("coord_sys"))
	if err != nil {
		metrics.InvalidRequestsTotal.Inc()
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	lat, lon = coordsys.ToWGS84(sys, lat, lon)
	res, err := s.Lookup(r.Context(), query{
		Lat:      lat,
		Lon:      lon,
		Fallback: wantsFallback(q.Get("fallback")),
		All:      q.Get("all") == "1" || q.Get("all") == "true",
	})
	if err != nil {
		s.writeLookupError(w, r, err)
		return
	}
	s.recordQuery(getVisitorIP(r))
	writeJSON(w, http.StatusOK, res)
}

// 文档注释：IP 查询时区
// 参数：ip 缺省时使用访问者 IP。
// 返回：geoip 未配置 503；IP 非法 400；库中无坐标 404。
func (s *Service) handleIP(w http.ResponseWriter, r *http.Request) {
	metrics.LookupsTotal.WithLabelValues("tz_ip").Inc()
	ip := strings.TrimSpace(r.URL.Query().Get("ip"))
	if ip == "" {
		ip = getVisitorIP(r)
	}
	res, err := s.LocateIP(r.Context(), ip, wantsFallback(r.URL.Query().Get("fallback")))
	if err != nil {
		s.writeLookupError(w, r, err)
		return
	}
	s.recordQuery(getVisitorIP(r))
	writeJSON(w, http.StatusOK, res)
}

// 文档注释：访问者自身时区
// 背景：CDN 已在请求头给出访问者坐标时直接查询，省去一次 IP 定位；否则回退到 geoip。
func (s *Service) handleHere(w http.ResponseWriter, r *http.Request) {
	metrics.LookupsTotal.WithLabelValues("tz_here").Inc()
	fallback := wantsFallback(r.URL.Query().Get("fallback"))
	if g, ok := middleware.EdgeGeoFrom(r.Context()); ok && g.HasCoord {
		zr, err := s.Lookup(r.Context(), query{Lat: g.Latitude, Lon: g.Longitude, Fallback: fallback})
		if err != nil {
			s.writeLookupError(w, r, err)
			return
		}
		ip := g.ClientIP
		if ip == "" {
			ip = getVisitorIP(r)
		}
		s.recordQuery(ip)
		writeJSON(w, http.StatusOK, ipZoneResult{zoneResult: zr, IP: ip, Country: g.CountryCode, City: g.City, Via: "edge"})
		return
	}
	ip := getVisitorIP(r)
	res, err := s.LocateIP(r.Context(), ip, fallback)
	if err != nil {
		s.writeLookupError(w, r, err)
		return
	}
	s.recordQuery(ip)
	writeJSON(w, http.StatusOK, res)
}

func (s *Service) handleZones(w http.ResponseWriter, r *http.Request) {
	snap := s.holder.Get()
	if snap == nil {
		writeError(w, r, http.StatusServiceUnavailable, ErrNotReady.Error())
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "limit must be an integer")
			return
		}
		limit = n
	}
	names := searchZones(snap.Dataset.Zones(), r.URL.Query().Get("q"), limit)
	writeJSON(w, http.StatusOK, map[string]any{"zones": names, "total": len(snap.Dataset.Zones())})
}

func (s *Service) handleStats(w http.ResponseWriter, r *http.Request) {
	snap := s.holder.Get()
	if snap == nil {
		writeError(w, r, http.StatusServiceUnavailable, ErrNotReady.Error())
		return
	}
	out := map[string]any{
		"dataset":     snap.Dataset.Stats(),
		"fingerprint": snap.Fingerprint,
		"source":      snap.Source,
		"generation":  snap.Generation,
		"loaded_at":   snap.LoadedAt.UTC().Format(time.RFC3339),
		"cache":       map[string]any{"entries": s.lru.Len(), "redis": s.redis != nil},
		"geoip":       s.geo != nil,
		"nearest":     snap.Dataset.NearestEnabled(),
	}
	if s.stats != nil {
		if t, err := s.stats.GetTotals(r.Context()); err == nil {
			out["queries"] = t
		} else {
			logger.L().Debug("stats_totals_error", "err", err)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// 文档注释：管理端点，立即重载数据集
// 约束：需携带 x-admin-token 且与配置一致；未配置令牌时端点始终拒绝。
func (s *Service) handleReload(w http.ResponseWriter, r *http.Request) {
	t := r.Header.Get("x-admin-token")
	if s.admin == "" || subtle.ConstantTimeCompare([]byte(t), []byte(s.admin)) != 1 {
		writeError(w, r, http.StatusForbidden, "forbidden")
		return
	}
	if s.reloader == nil {
		writeError(w, r, http.StatusNotImplemented, "reload not configured")
		return
	}
	if err := s.reloader.Reload(r.Context()); err != nil {
		logger.L().Error("reload_error", "err", err)
		writeError(w, r, http.StatusInternalServerError, err.Error())
		return
	}
	snap := s.holder.Get()
	writeJSON(w, http.StatusOK, map[string]any{
		"generation":  snap.Generation,
		"fingerprint": snap.Fingerprint,
		"dataset":     snap.Dataset.Stats(),
	})
}

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !s.holder.Ready() {
		writeError(w, r, http.StatusServiceUnavailable, ErrNotReady.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeLookupError 把查询错误映射为状态码
func (s *Service) writeLookupError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, tzsearch.ErrInvalidCoordinate), errors.Is(err, geoip.ErrBadIP):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, geoip.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrNotReady), errors.Is(err, geoip.ErrDisabled):
		writeError(w, r, http.StatusServiceUnavailable, err.Error())
	default:
		logger.L().Error("lookup_error", "err", err, "path", r.URL.Path)
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

func parseCoord(s string) (float64, error) {
	if s == "" {
		return 0, errors.New("missing")
	}
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

func wantsFallback(v string) bool {
	return strings.EqualFold(v, "nearest") || v == "1" || strings.EqualFold(v, "true")
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("content-type", "application/json; charset=utf-8")
	w.Header().Set("cache-control", "no-store")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	writeJSON(w, code, errorBody{Error: msg, RequestID: logger.RequestID(r.Context())})
}
