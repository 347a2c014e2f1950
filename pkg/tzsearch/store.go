package tzsearch

import (
	"sort"
)

// Store：几何存储，持有全部时区与多边形，构建后只读
type Store struct {
	zones    []Zone
	polygons int
	vertices int
}

// 文档注释：由已解码的几何构建存储（加载阶段）
// 背景：各数据格式解码器只负责还原 Zone 列表，校验、环规范化与包围盒预计算统一在此完成。
// 约束：同名时区合并为一个 Zone；时区按名称字节序排序，作为重叠数据的确定性判定顺序。
// 入参不会被修改，返回的 Store 持有独立副本；任何一处校验失败都返回 ErrDataset，不做部分加载。
func NewStore(zones []Zone) (*Store, error) {
	byName := make(map[string]int, len(zones))
	var out []Zone
	for zi := range zones {
		z := &zones[zi]
		if z.Name == "" {
			return nil, DatasetErrorf("zone #%d has an empty name", zi)
		}
		if len(z.Polygons) == 0 {
			return nil, DatasetErrorf("zone %q has no polygons", z.Name)
		}
		polys := make([]Polygon, 0, len(z.Polygons))
		for pi := range z.Polygons {
			p, err := normalizePolygon(z.Name, pi, &z.Polygons[pi])
			if err != nil {
				return nil, err
			}
			polys = append(polys, p)
		}
		if idx, ok := byName[z.Name]; ok {
			out[idx].Polygons = append(out[idx].Polygons, polys...)
			continue
		}
		byName[z.Name] = len(out)
		out = append(out, Zone{Name: z.Name, Polygons: polys})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	s := &Store{zones: out}
	for _, z := range out {
		s.polygons += len(z.Polygons)
		for _, p := range z.Polygons {
			s.vertices += len(p.Outer)
			for _, h := range p.Holes {
				s.vertices += len(h)
			}
		}
	}
	return s, nil
}

func normalizePolygon(zone string, pi int, p *Polygon) (Polygon, error) {
	outer, err := normalizeRing(zone, pi, 0, p.Outer)
	if err != nil {
		return Polygon{}, err
	}
	np := Polygon{Outer: outer, BBox: ringBBox(outer)}
	for hi, h := range p.Holes {
		hr, err := normalizeRing(zone, pi, hi+1, h)
		if err != nil {
			return Polygon{}, err
		}
		np.Holes = append(np.Holes, hr)
	}
	return np, nil
}

// 去掉重复的闭合点并校验顶点范围与数量
func normalizeRing(zone string, pi, ri int, r Ring) (Ring, error) {
	n := len(r)
	if n > 1 && r[0] == r[n-1] {
		n--
	}
	out := make(Ring, n)
	copy(out, r[:n])
	for vi, pt := range out {
		if !validLat(pt.Lat) || !validLon(pt.Lon) {
			return nil, DatasetErrorf("zone %q polygon %d ring %d vertex %d out of range (%v, %v)",
				zone, pi, ri, vi, pt.Lat, pt.Lon)
		}
	}
	if distinctAtLeast(out, 3) < 3 {
		return nil, DatasetErrorf("zone %q polygon %d ring %d has fewer than 3 distinct vertices", zone, pi, ri)
	}
	return out, nil
}

func distinctAtLeast(r Ring, want int) int {
	seen := make(map[Point]struct{}, want)
	for _, pt := range r {
		seen[pt] = struct{}{}
		if len(seen) >= want {
			break
		}
	}
	return len(seen)
}

// Zones 按名称有序返回全部时区；返回切片与存储共享，调用方不得修改
func (s *Store) Zones() []Zone { return s.zones }

// ZoneNames 返回有序的时区名称副本
func (s *Store) ZoneNames() []string {
	out := make([]string, len(s.zones))
	for i := range s.zones {
		out[i] = s.zones[i].Name
	}
	return out
}

func (s *Store) Len() int          { return len(s.zones) }
func (s *Store) PolygonCount() int { return s.polygons }
func (s *Store) VertexCount() int  { return s.vertices }
