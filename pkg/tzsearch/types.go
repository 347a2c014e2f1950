// Package tzsearch 将经纬度映射为所在时区的标识（如 "Asia/Shanghai"）。
//
// 数据集在构建后只读：Store 持有全部时区多边形，Index 以固定网格划分候选，
// Resolver 做包围盒过滤与射线法精确判定。Dataset 持有三者，是调用方唯一需要保存的句柄。
package tzsearch

// Point：WGS84 坐标，纬度 [-90, 90]，经度 [-180, 180]
type Point struct {
	Lat float64
	Lon float64
}

// Ring：闭合环，首尾隐式相连；加载时若末点与首点重复会被去掉
type Ring []Point

// BBox：外环的轴对齐包围盒
type BBox struct {
	MinLat float64
	MaxLat float64
	MinLon float64
	MaxLon float64
}

// Contains：闭区间判定，边上视为包含
func (b BBox) Contains(p Point) bool {
	return p.Lat >= b.MinLat && p.Lat <= b.MaxLat &&
		p.Lon >= b.MinLon && p.Lon <= b.MaxLon
}

// Polygon：一个外环与零个或多个洞
type Polygon struct {
	Outer Ring
	Holes []Ring
	BBox  BBox
}

// Zone：时区标识及其全部多边形；多个多边形可以互不相连
type Zone struct {
	Name     string
	Polygons []Polygon
}

// Candidate：网格单元中的一条候选记录
type Candidate struct {
	Zone    *Zone
	Polygon *Polygon
}

func ringBBox(r Ring) BBox {
	b := BBox{MinLat: 90, MaxLat: -90, MinLon: 180, MaxLon: -180}
	for _, pt := range r {
		if pt.Lat < b.MinLat {
			b.MinLat = pt.Lat
		}
		if pt.Lat > b.MaxLat {
			b.MaxLat = pt.Lat
		}
		if pt.Lon < b.MinLon {
			b.MinLon = pt.Lon
		}
		if pt.Lon > b.MaxLon {
			b.MaxLon = pt.Lon
		}
	}
	return b
}
