package tzsearch

import "math"

const earthRadiusKm = 6371.0

// 文档注释：KD-Tree 最近顶点（二维经纬）
// 背景：精确判定未命中（近海、数据缝隙）时，调用方可选择按最近的外环顶点给出近似时区；限制最大半径避免远洋点误归属。
// 约束：经度/纬度交替分割；剪枝使用点到分割线的球面最短距离；不跨越 ±180 经线搜索。
type kdNode struct {
	v  vertex
	ax int // 0:lon,1:lat
	l  *kdNode
	r  *kdNode
}

type vertex struct {
	pt   Point
	zone *Zone
}

func buildNearest(store *Store) *kdNode {
	var vs []vertex
	for zi := range store.zones {
		z := &store.zones[zi]
		for _, p := range z.Polygons {
			for _, pt := range p.Outer {
				vs = append(vs, vertex{pt: pt, zone: z})
			}
		}
	}
	return buildKD(vs, 0)
}

func buildKD(vs []vertex, depth int) *kdNode {
	if len(vs) == 0 {
		return nil
	}
	ax := depth % 2
	mid := len(vs) / 2
	selectNth(vs, mid, ax)
	node := &kdNode{v: vs[mid], ax: ax}
	node.l = buildKD(vs[:mid], depth+1)
	node.r = buildKD(vs[mid+1:], depth+1)
	return node
}

// 原地选择第 n 小元素；三路划分，等值段一次归位，共享边界带来的大量重复顶点不会退化为平方复杂度
func selectNth(a []vertex, n int, ax int) {
	lo, hi := 0, len(a)-1
	for lo < hi {
		lt, gt := partition3(a, lo, hi, (lo+hi)/2, ax)
		switch {
		case n < lt:
			hi = lt - 1
		case n > gt:
			lo = gt + 1
		default:
			return
		}
	}
}

// partition3 以 a[pivot] 为基准把 a[lo..hi] 分为 <、=、> 三段，返回等值段的闭区间 [lt, gt]
func partition3(a []vertex, lo, hi, pivot, ax int) (int, int) {
	pv := axisKey(a[pivot].pt, ax)
	lt, i, gt := lo, lo, hi
	for i <= gt {
		k := axisKey(a[i].pt, ax)
		switch {
		case k < pv:
			a[lt], a[i] = a[i], a[lt]
			lt++
			i++
		case k > pv:
			a[i], a[gt] = a[gt], a[i]
			gt--
		default:
			i++
		}
	}
	return lt, gt
}

func axisKey(p Point, ax int) float64 {
	if ax == 0 {
		return p.Lon
	}
	return p.Lat
}

// nearest 返回最近顶点与距离（千米）；树为空时距离为 +Inf
func nearest(root *kdNode, pt Point) (vertex, float64) {
	var best vertex
	bestD := math.Inf(1)
	var dfs func(n *kdNode)
	dfs = func(n *kdNode) {
		if n == nil {
			return
		}
		if d := Haversine(pt.Lat, pt.Lon, n.v.pt.Lat, n.v.pt.Lon); d < bestD {
			bestD = d
			best = n.v
		}
		key, q := axisKey(pt, n.ax), axisKey(n.v.pt, n.ax)
		first, second := n.l, n.r
		if key >= q {
			first, second = n.r, n.l
		}
		dfs(first)
		if planeDistance(pt, n.ax, q) < bestD {
			dfs(second)
		}
	}
	dfs(root)
	return best, bestD
}

// 点到分割线的球面最短距离：纬线沿经线方向，经线按 sin(d/R) = cos(lat)·sin(Δlon)
func planeDistance(pt Point, ax int, q float64) float64 {
	if ax == 1 {
		return math.Abs(pt.Lat-q) * math.Pi / 180 * earthRadiusKm
	}
	dLon := math.Min(math.Abs(pt.Lon-q), 90) * math.Pi / 180
	s := math.Cos(pt.Lat*math.Pi/180) * math.Sin(dLon)
	return math.Asin(math.Min(1, math.Abs(s))) * earthRadiusKm
}

// Haversine 球面距离，单位千米
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}
