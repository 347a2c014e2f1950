package tzsearch

// Dataset：已加载数据集的句柄，持有存储、索引与判定器；可同时存在多个互不影响的实例
type Dataset struct {
	store    *Store
	index    *Index
	resolver *Resolver
	kd       *kdNode
	radiusKm float64
}

type options struct {
	cellSize float64
	radiusKm float64
}

// Option 配置 Dataset 的构建参数
type Option func(*options)

// WithCellSize 设置网格边长（度）
func WithCellSize(deg float64) Option {
	return func(o *options) { o.cellSize = deg }
}

// WithNearest 启用最近顶点兜底，radiusKm 为最大采纳距离；<=0 表示不启用
func WithNearest(radiusKm float64) Option {
	return func(o *options) { o.radiusKm = radiusKm }
}

// Open 校验并加载几何，随后构建索引
func Open(zones []Zone, opts ...Option) (*Dataset, error) {
	s, err := NewStore(zones)
	if err != nil {
		return nil, err
	}
	return New(s, opts...), nil
}

// New 基于已构建的存储创建数据集
func New(s *Store, opts ...Option) *Dataset {
	o := options{cellSize: DefaultCellSize}
	for _, fn := range opts {
		fn(&o)
	}
	ix := BuildIndex(s, o.cellSize)
	d := &Dataset{store: s, index: ix, resolver: NewResolver(ix)}
	if o.radiusKm > 0 {
		d.kd = buildNearest(s)
		d.radiusKm = o.radiusKm
	}
	return d
}

// Resolve 见 Resolver.Resolve
func (d *Dataset) Resolve(lat, lon float64) (string, bool, error) {
	return d.resolver.Resolve(lat, lon)
}

// ResolveAll 见 Resolver.ResolveAll
func (d *Dataset) ResolveAll(lat, lon float64) ([]string, error) {
	return d.resolver.ResolveAll(lat, lon)
}

// LookupZoneName 不返回错误的便捷形式：非法坐标与海洋点均为 ok=false
func (d *Dataset) LookupZoneName(lat, lon float64) (zone string, ok bool) {
	zone, ok, err := d.resolver.Resolve(lat, lon)
	if err != nil {
		return "", false
	}
	return zone, ok
}

// Nearest 返回半径内最近外环顶点所属时区及距离（千米）；未启用兜底或超出半径时 ok=false
func (d *Dataset) Nearest(lat, lon float64) (zone string, km float64, ok bool, err error) {
	if err := ValidatePoint(lat, lon); err != nil {
		return "", 0, false, err
	}
	if d.kd == nil {
		return "", 0, false, nil
	}
	v, dist := nearest(d.kd, Point{Lat: lat, Lon: lon})
	if v.zone == nil || dist > d.radiusKm {
		return "", 0, false, nil
	}
	return v.zone.Name, dist, true, nil
}

// NearestEnabled 是否构建了最近顶点索引
func (d *Dataset) NearestEnabled() bool { return d.kd != nil }

// Zones 返回有序的时区名称
func (d *Dataset) Zones() []string { return d.store.ZoneNames() }

func (d *Dataset) Store() *Store { return d.store }
func (d *Dataset) Index() *Index { return d.index }

// Stats：数据集规模与索引分布
type Stats struct {
	Zones    int        `json:"zones"`
	Polygons int        `json:"polygons"`
	Vertices int        `json:"vertices"`
	Index    IndexStats `json:"index"`
	Nearest  bool       `json:"nearest"`
}

func (d *Dataset) Stats() Stats {
	return Stats{
		Zones:    d.store.Len(),
		Polygons: d.store.PolygonCount(),
		Vertices: d.store.VertexCount(),
		Index:    d.index.Stats(),
		Nearest:  d.kd != nil,
	}
}
