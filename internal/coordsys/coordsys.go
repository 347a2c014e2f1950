// 包 coordsys：国内互联网地图坐标（GCJ-02/BD-09）转换为 WGS84
package coordsys

import (
	"math"
	"strings"

	"github.com/cockroachdb/errors"
)

// System：输入坐标所属坐标系
type System string

const (
	WGS84 System = "WGS-84"
	GCJ02 System = "GCJ-02"
	BD09  System = "BD-09"
)

// Parse 解析坐标系名称，大小写与连字符不敏感；空串视为 WGS84
func Parse(s string) (System, error) {
	n := strings.ToUpper(strings.NewReplacer("-", "", "_", "", " ", "").Replace(s))
	switch n {
	case "", "WGS84":
		return WGS84, nil
	case "GCJ02":
		return GCJ02, nil
	case "BD09":
		return BD09, nil
	}
	return "", errors.Newf("unknown coordinate system %q", s)
}

// 文档注释：坐标系转换（GCJ-02/BD-09 → WGS84）
// 背景：国内互联网地图坐标需转换以贴合全球边界数据；避免过度转换导致偏移。
// 约束：近似逆变换，误差在数米级；中国范围外的点原样返回。
func ToWGS84(sys System, lat, lon float64) (float64, float64) {
	switch sys {
	case GCJ02:
		return gcj02ToWGS84(lat, lon)
	case BD09:
		return bd09ToWGS84(lat, lon)
	}
	return lat, lon
}

func gcj02ToWGS84(lat, lon float64) (float64, float64) {
	glat, glon := transformGCJ(lat, lon)
	return lat*2 - glat, lon*2 - glon
}

func bd09ToWGS84(lat, lon float64) (float64, float64) {
	// BD-09 -> GCJ-02 -> WGS84
	x := lon - 0.0065
	y := lat - 0.006
	z := math.Sqrt(x*x+y*y) - 0.00002*math.Sin(y*xPi)
	theta := math.Atan2(y, x) - 0.000003*math.Cos(x*xPi)
	return gcj02ToWGS84(z*math.Sin(theta), z*math.Cos(theta))
}

// WGS84ToGCJ02 正向偏移，仅测试与工具使用
func WGS84ToGCJ02(lat, lon float64) (float64, float64) { return transformGCJ(lat, lon) }

const (
	xPi  = math.Pi * 3000.0 / 180.0
	axis = 6378245.0
	ee   = 0.00669342162296594323
)

func transformGCJ(lat, lon float64) (float64, float64) {
	if outOfChina(lat, lon) {
		return lat, lon
	}
	dLat := transformLat(lon-105.0, lat-35.0)
	dLon := transformLon(lon-105.0, lat-35.0)
	radLat := lat / 180.0 * math.Pi
	magic := math.Sin(radLat)
	magic = 1 - ee*magic*magic
	sqrtMagic := math.Sqrt(magic)
	dLat = (dLat * 180.0) / ((axis * (1 - ee)) / (magic * sqrtMagic) * math.Pi)
	dLon = (dLon * 180.0) / (axis / sqrtMagic * math.Cos(radLat) * math.Pi)
	return lat + dLat, lon + dLon
}

func outOfChina(lat, lon float64) bool {
	return lon < 72.004 || lon > 137.8347 || lat < 0.8293 || lat > 55.8271
}

func transformLat(x, y float64) float64 {
	ret := -100.0 + 2.0*x + 3.0*y + 0.2*y*y + 0.1*x*y + 0.2*math.Sqrt(math.Abs(x))
	ret += (20.0*math.Sin(6.0*x*math.Pi) + 20.0*math.Sin(2.0*x*math.Pi)) * 2.0 / 3.0
	ret += (20.0*math.Sin(y*math.Pi) + 40.0*math.Sin(y/3.0*math.Pi)) * 2.0 / 3.0
	ret += (160.0*math.Sin(y/12.0*math.Pi) + 320*math.Sin(y*math.Pi/30.0)) * 2.0 / 3.0
	return ret
}

func transformLon(x, y float64) float64 {
	ret := 300.0 + x + 2.0*y + 0.1*x*x + 0.1*x*y + 0.1*math.Sqrt(math.Abs(x))
	ret += (20.0*math.Sin(6.0*x*math.Pi) + 20.0*math.Sin(2.0*x*math.Pi)) * 2.0 / 3.0
	ret += (20.0*math.Sin(x*math.Pi) + 40.0*math.Sin(x/3.0*math.Pi)) * 2.0 / 3.0
	ret += (150.0*math.Sin(x/12.0*math.Pi) + 300.0*math.Sin(x/30.0*math.Pi)) * 2.0 / 3.0
	return ret
}
