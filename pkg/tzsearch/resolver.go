package tzsearch

// 文档注释：查询编排（网格候选 → 包围盒过滤 → 射线法精确判定）
// 背景：网格只做粗筛，最终结果总由精确判定决定，因此点落在哪个单元只影响性能不影响正确性。
// 约束：无内部状态，可被任意多个 goroutine 并发调用；多个候选同时命中时取 (时区名, 多边形序号) 最小者。
type Resolver struct {
	index *Index
}

func NewResolver(ix *Index) *Resolver { return &Resolver{index: ix} }

// Resolve 返回点所在时区；未命中（海洋或未覆盖区域）返回 ok=false 且 err=nil
func (r *Resolver) Resolve(lat, lon float64) (string, bool, error) {
	if err := ValidatePoint(lat, lon); err != nil {
		return "", false, err
	}
	pt := Point{Lat: lat, Lon: lon}
	// 候选在单元内已按判定顺序排列，首个命中即为结果
	for _, c := range r.index.Candidates(pt) {
		if !c.Polygon.BBox.Contains(pt) {
			continue
		}
		if PolygonContains(c.Polygon, pt) {
			return c.Zone.Name, true, nil
		}
	}
	return "", false, nil
}

// ResolveAll 返回所有包含该点的时区（去重，按判定顺序）；正确的数据集最多只有一个，边界点可能有两个
func (r *Resolver) ResolveAll(lat, lon float64) ([]string, error) {
	if err := ValidatePoint(lat, lon); err != nil {
		return nil, err
	}
	pt := Point{Lat: lat, Lon: lon}
	var out []string
	for _, c := range r.index.Candidates(pt) {
		if len(out) > 0 && out[len(out)-1] == c.Zone.Name {
			continue
		}
		if c.Polygon.BBox.Contains(pt) && PolygonContains(c.Polygon, pt) {
			out = append(out, c.Zone.Name)
		}
	}
	return out, nil
}
