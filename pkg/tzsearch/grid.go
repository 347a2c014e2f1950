package tzsearch

import (
	"math"
	"sort"
)

const (
	// DefaultCellSize 网格边长（度）；全球数据下多数非空单元的候选数为个位数
	DefaultCellSize = 1.0
	// MinCellSize 更小的边长会让单元数组超过数十 MB
	MinCellSize = 0.25
)

// 文档注释：均匀经纬网格索引
// 背景：把每个多边形按包围盒登记到其覆盖的全部单元，查询时只需取点所在单元的候选，避免逐个扫描多边形。
// 约束：单元坐标 row=floor((lat+90)/size)、col=floor((lon+180)/size)，并夹到最后一行/列，
// 使 lat=90、lon=180 落入有效单元。登记与查询使用同一单调映射，包围盒内任一点所在单元必然已登记该多边形，
// 因此无需探测相邻单元。
type Index struct {
	store    *Store
	cellSize float64
	rows     int
	cols     int
	cells    [][]Candidate
}

// IndexStats：用于调节网格大小的统计
type IndexStats struct {
	CellSize         float64 `json:"cell_size"`
	Rows             int     `json:"rows"`
	Cols             int     `json:"cols"`
	PopulatedCells   int     `json:"populated_cells"`
	Entries          int     `json:"entries"`
	MaxCandidates    int     `json:"max_candidates"`
	MedianCandidates int     `json:"median_candidates"`
}

// BuildIndex 从存储构建网格；cellSize 非法（NaN 或 <=0）时使用默认值，并夹到 [MinCellSize, 180]
func BuildIndex(store *Store, cellSize float64) *Index {
	if math.IsNaN(cellSize) || cellSize <= 0 {
		cellSize = DefaultCellSize
	}
	if cellSize < MinCellSize {
		cellSize = MinCellSize
	}
	if cellSize > 180 {
		cellSize = 180
	}
	ix := &Index{
		store:    store,
		cellSize: cellSize,
		rows:     int(math.Ceil(180 / cellSize)),
		cols:     int(math.Ceil(360 / cellSize)),
	}
	ix.cells = make([][]Candidate, ix.rows*ix.cols)
	// 存储中时区已按名称排序，按顺序登记即得到每个单元内 (时区名, 多边形序号) 的稳定顺序
	for zi := range store.zones {
		z := &store.zones[zi]
		for pi := range z.Polygons {
			p := &z.Polygons[pi]
			r0, r1 := ix.row(p.BBox.MinLat), ix.row(p.BBox.MaxLat)
			c0, c1 := ix.col(p.BBox.MinLon), ix.col(p.BBox.MaxLon)
			for r := r0; r <= r1; r++ {
				for c := c0; c <= c1; c++ {
					k := r*ix.cols + c
					ix.cells[k] = append(ix.cells[k], Candidate{Zone: z, Polygon: p})
				}
			}
		}
	}
	return ix
}

func (ix *Index) row(lat float64) int {
	return clampCell(int(math.Floor((lat+90)/ix.cellSize)), ix.rows)
}

func (ix *Index) col(lon float64) int {
	return clampCell(int(math.Floor((lon+180)/ix.cellSize)), ix.cols)
}

func clampCell(v, n int) int {
	if v < 0 {
		return 0
	}
	if v >= n {
		return n - 1
	}
	return v
}

// Candidates 返回点所在单元的候选；单元为空时返回 nil。返回切片与索引共享，不得修改
func (ix *Index) Candidates(p Point) []Candidate {
	return ix.cells[ix.row(p.Lat)*ix.cols+ix.col(p.Lon)]
}

// CellSize 返回实际使用的单元边长
func (ix *Index) CellSize() float64 { return ix.cellSize }

// Store 返回索引所引用的几何存储
func (ix *Index) Store() *Store { return ix.store }

// Stats 统计非空单元的候选分布
func (ix *Index) Stats() IndexStats {
	st := IndexStats{CellSize: ix.cellSize, Rows: ix.rows, Cols: ix.cols}
	var sizes []int
	for _, c := range ix.cells {
		if len(c) == 0 {
			continue
		}
		st.PopulatedCells++
		st.Entries += len(c)
		if len(c) > st.MaxCandidates {
			st.MaxCandidates = len(c)
		}
		sizes = append(sizes, len(c))
	}
	if len(sizes) > 0 {
		sort.Ints(sizes)
		st.MedianCandidates = sizes[len(sizes)/2]
	}
	return st
}
