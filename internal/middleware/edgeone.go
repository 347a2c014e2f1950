package middleware

import (
	"context"
	"net/http"
	"strconv"

	"tz-search/internal/logger"
)

// EdgeGeo：CDN 回源时注入的访问者地理信息
type EdgeGeo struct {
	ClientIP    string
	CountryCode string
	Region      string
	City        string
	Latitude    float64
	Longitude   float64
	HasCoord    bool
}

type edgeGeoKey struct{}

// EdgeGeoFrom 读取上下文中的 CDN 地理信息
func EdgeGeoFrom(ctx context.Context) (EdgeGeo, bool) {
	g, ok := ctx.Value(edgeGeoKey{}).(EdgeGeo)
	return g, ok
}

// 文档注释：EdgeOne 地理上下文注入
// 背景：部署在 EdgeOne 之后时，CDN 以请求头携带访问者经纬度；解析后放入上下文，访问者时区可免去一次 IP 定位。
// 约束：字段名大小写需与控制台配置一致；经纬度缺失或无法解析时 HasCoord 为假；没有任何 EO 头时不注入。
func EdgeOneGeo(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if g, ok := parseEdgeOneGeo(r.Header); ok {
			r = r.WithContext(context.WithValue(r.Context(), edgeGeoKey{}, g))
		}
		next.ServeHTTP(w, r)
	})
}

func parseEdgeOneGeo(h http.Header) (EdgeGeo, bool) {
	var g EdgeGeo
	g.ClientIP = h.Get("X-EO-Client-IP")
	g.CountryCode = h.Get("X-EO-Geo-CountryCodeAlpha2")
	g.Region = h.Get("X-EO-Geo-Region")
	g.City = h.Get("X-EO-Geo-City")
	lat, errLat := strconv.ParseFloat(h.Get("X-EO-Geo-Latitude"), 64)
	lon, errLon := strconv.ParseFloat(h.Get("X-EO-Geo-Longitude"), 64)
	if errLat == nil && errLon == nil {
		g.Latitude, g.Longitude, g.HasCoord = lat, lon, true
	}
	if g.ClientIP == "" && g.CountryCode == "" && !g.HasCoord {
		return EdgeGeo{}, false
	}
	logger.L().Debug("edgeone_geo_parse",
		"ip", g.ClientIP,
		"country", g.CountryCode,
		"city", g.City,
		"lat", g.Latitude,
		"lon", g.Longitude,
	)
	return g, true
}
