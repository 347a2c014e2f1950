// 包 geoip：基于 MaxMind mmdb 的 IP 定位，输出坐标与库内时区供时区查询使用
package geoip

import (
	"net"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/oschwald/geoip2-golang"

	"tz-search/internal/logger"
)

var (
	// ErrDisabled：未配置 mmdb 文件
	ErrDisabled = errors.New("geoip disabled")
	// ErrNotFound：IP 合法但库中无坐标
	ErrNotFound = errors.New("ip location not found")
	// ErrBadIP：无法解析的 IP 文本
	ErrBadIP = errors.New("invalid ip")
)

// Location：一次 IP 定位结果
type Location struct {
	IP             string  `json:"ip"`
	Lat            float64 `json:"lat"`
	Lon            float64 `json:"lon"`
	AccuracyRadius uint16  `json:"accuracy_radius_km"`
	Country        string  `json:"country"`
	City           string  `json:"city,omitempty"`
	// 库自带的 IANA 时区，可与多边形查询结果交叉核对
	TimeZone string `json:"geoip_zone,omitempty"`
}

// Locator：只读 mmdb 句柄，可被多个协程并发使用
type Locator struct {
	r *geoip2.Reader
}

// 文档注释：打开 City 级 mmdb
// 背景：GeoLite2-City 与商业 City 库结构一致；仅读取位置与时区字段。
// 约束：path 为空返回 ErrDisabled；Country 级库没有坐标，查询时会得到 ErrNotFound。
func Open(path string) (*Locator, error) {
	if path == "" {
		return nil, ErrDisabled
	}
	r, err := geoip2.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open geoip %s", path)
	}
	md := r.Metadata()
	logger.L().Info("geoip_open_ok", "path", path, "type", md.DatabaseType,
		"build", time.Unix(int64(md.BuildEpoch), 0).UTC().Format(time.RFC3339))
	return &Locator{r: r}, nil
}

func (l *Locator) Close() error {
	if l == nil || l.r == nil {
		return nil
	}
	return l.r.Close()
}

// Locate 查询 IP 的坐标；nil Locator 返回 ErrDisabled
func (l *Locator) Locate(ipText string) (Location, error) {
	if l == nil || l.r == nil {
		return Location{}, ErrDisabled
	}
	ip := net.ParseIP(ipText)
	if ip == nil {
		return Location{}, errors.Wrapf(ErrBadIP, "%q", ipText)
	}
	rec, err := l.r.City(ip)
	if err != nil {
		return Location{}, errors.Wrap(err, "geoip lookup")
	}
	// mmdb 未命中时返回零值记录
	if rec.Location.Latitude == 0 && rec.Location.Longitude == 0 && rec.Location.TimeZone == "" {
		return Location{}, errors.Wrapf(ErrNotFound, "%s", ip)
	}
	return Location{
		IP:             ip.String(),
		Lat:            rec.Location.Latitude,
		Lon:            rec.Location.Longitude,
		AccuracyRadius: rec.Location.AccuracyRadius,
		Country:        rec.Country.IsoCode,
		City:           rec.City.Names["en"],
		TimeZone:       rec.Location.TimeZone,
	}, nil
}
