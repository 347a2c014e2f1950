package tzsearch

// 文档注释：点入多边形判定（Even-Odd 射线法）
// 背景：对网格给出的候选执行精确判定；包围盒过滤与本文件互相独立，可单独测试。
// 约束：边界包含，点落在外环或洞的边上均视为属于该多边形；只有严格位于洞内的点才被排除。

// RingLocation：点相对于环的位置
type RingLocation int

const (
	Outside RingLocation = iota
	OnBoundary
	Inside
)

// LocateInRing 返回点在环内、环外或环边上；少于 3 个顶点的环一律视为外部
func LocateInRing(pt Point, ring Ring) RingLocation {
	n := len(ring)
	if n < 3 {
		return Outside
	}
	inside := false
	x, y := pt.Lon, pt.Lat
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		xi, yi := ring[i].Lon, ring[i].Lat
		xj, yj := ring[j].Lon, ring[j].Lat
		if onSegment(x, y, xi, yi, xj, yj) {
			return OnBoundary
		}
		if (yi > y) == (yj > y) {
			continue
		}
		// 相邻多边形以相反方向走过共享边；固定端点顺序使两侧算出逐位相同的交点，
		// 边附近的点恰好归属其中一侧。上面的条件保证 yi != yj，不会除零
		if yi > yj {
			xi, yi, xj, yj = xj, yj, xi, yi
		}
		if x < (xj-xi)*(y-yi)/(yj-yi)+xi {
			inside = !inside
		}
	}
	if inside {
		return Inside
	}
	return Outside
}

// PointInRing 边界包含的环判定
func PointInRing(pt Point, ring Ring) bool {
	return LocateInRing(pt, ring) != Outside
}

// PolygonContains 外环命中且不严格位于任何洞内
func PolygonContains(poly *Polygon, pt Point) bool {
	if !PointInRing(pt, poly.Outer) {
		return false
	}
	for _, h := range poly.Holes {
		if LocateInRing(pt, h) == Inside {
			return false
		}
	}
	return true
}

// 点是否落在线段 (x1,y1)-(x2,y2) 上：叉积为零且位于端点包围范围内
func onSegment(x, y, x1, y1, x2, y2 float64) bool {
	if x < min(x1, x2) || x > max(x1, x2) || y < min(y1, y2) || y > max(y1, y2) {
		return false
	}
	// 与走向无关：同一条边从两侧判定结果一致
	if y1 > y2 || (y1 == y2 && x1 > x2) {
		x1, y1, x2, y2 = x2, y2, x1, y1
	}
	return (x2-x1)*(y-y1)-(y2-y1)*(x-x1) == 0
}
