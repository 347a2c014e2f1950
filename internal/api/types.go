package api

// 文档注释：查询返回结构（对外）
// 背景：统一对外序列化模型，进程内缓存与 redis 缓存均存放此结构；字段稳定，新增字段需评估兼容性。
// 约束：Found 为假时 Zone 为空；Approx 为真表示由最近顶点兜底得出，DistanceKm 为到该顶点的距离。
type zoneResult struct {
	Lat        float64 `json:"lat"`
	Lon        float64 `json:"lon"`
	Zone       string  `json:"zone"`
	Found      bool    `json:"found"`
	Approx     bool    `json:"approx,omitempty"`
	DistanceKm float64 `json:"distance_km,omitempty"`
	// 同一点被多个时区覆盖时列出全部（仅 all=1 时填充）
	Overlaps []string `json:"overlaps,omitempty"`
}

// ipZoneResult：IP 定位后再查询时区
type ipZoneResult struct {
	zoneResult
	IP             string `json:"ip"`
	Country        string `json:"country,omitempty"`
	City           string `json:"city,omitempty"`
	AccuracyRadius uint16 `json:"accuracy_radius_km,omitempty"`
	GeoIPZone      string `json:"geoip_zone,omitempty"`
	// 坐标来源：edge（CDN 请求头）或 geoip
	Via string `json:"via"`
}

type errorBody struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}
