// 包 reload：数据集的加载、原子替换与周期刷新，运行在服务进程内
package reload

import (
	"context"
	"encoding/binary"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/errors"

	"tz-search/internal/logger"
	"tz-search/internal/metrics"
	"tz-search/internal/store"
	"tz-search/pkg/tzdata"
	"tz-search/pkg/tzsearch"
)

// Source：时区多边形来源
type Source interface {
	Name() string
	Zones(ctx context.Context) ([]tzsearch.Zone, error)
}

// FileSource 从 .tzs/.geojson 文件或 GeoJSON 目录读取
type FileSource struct{ Path string }

func (s FileSource) Name() string { return "file:" + s.Path }

func (s FileSource) Zones(ctx context.Context) ([]tzsearch.Zone, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return tzdata.ReadZones(s.Path)
}

// PostgresSource 从 _tz_polygons 表读取
type PostgresSource struct{ Store *store.Store }

func (s PostgresSource) Name() string { return "postgres" }

func (s PostgresSource) Zones(ctx context.Context) ([]tzsearch.Zone, error) {
	return s.Store.LoadZones(ctx)
}

// Reloader：把来源加载为数据集并放入 Holder
type Reloader struct {
	src    Source
	holder *Holder
	opts   []tzsearch.Option

	mu     sync.Mutex
	onSwap []func(*Snapshot)
}

func New(src Source, holder *Holder, opts ...tzsearch.Option) *Reloader {
	return &Reloader{src: src, holder: holder, opts: opts}
}

// OnSwap 注册替换成功后的回调（清理缓存、刷新指标等），在 Reload 所在协程同步执行
func (r *Reloader) OnSwap(fn func(*Snapshot)) {
	r.mu.Lock()
	r.onSwap = append(r.onSwap, fn)
	r.mu.Unlock()
}

// 文档注释：加载并替换数据集
// 背景：启动、管理端点与定时任务共用同一入口；加载在锁内串行执行，避免并发重复构建索引。
// 约束：任一步骤失败都保留旧快照并返回错误，不会出现“部分加载”的数据集。
func (r *Reloader) Reload(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l := logger.L()
	start := time.Now()
	zones, err := r.src.Zones(ctx)
	if err != nil {
		metrics.ReloadsTotal.WithLabelValues("error").Inc()
		return errors.Wrapf(err, "load %s", r.src.Name())
	}
	st, err := tzsearch.NewStore(zones)
	if err != nil {
		metrics.ReloadsTotal.WithLabelValues("error").Inc()
		return errors.Wrapf(err, "validate %s", r.src.Name())
	}
	ds := tzsearch.New(st, r.opts...)
	snap := &Snapshot{
		Dataset:     ds,
		Fingerprint: Fingerprint(st),
		Source:      r.src.Name(),
		LoadedAt:    time.Now(),
	}
	if cur := r.holder.Get(); cur != nil && cur.Fingerprint == snap.Fingerprint {
		l.Info("dataset_unchanged", "source", snap.Source, "fingerprint", snap.Fingerprint)
		metrics.ReloadsTotal.WithLabelValues("unchanged").Inc()
		return nil
	}
	r.holder.Set(snap)
	dur := time.Since(start)
	stats := ds.Stats()
	metrics.DatasetLoadDurationMs.Observe(float64(dur.Milliseconds()))
	metrics.DatasetZones.Set(float64(stats.Zones))
	metrics.DatasetPolygons.Set(float64(stats.Polygons))
	metrics.ReloadsTotal.WithLabelValues("ok").Inc()
	l.Info("dataset_loaded",
		"source", snap.Source,
		"zones", stats.Zones,
		"polygons", stats.Polygons,
		"vertices", stats.Vertices,
		"cells", stats.Index.PopulatedCells,
		"max_candidates", stats.Index.MaxCandidates,
		"generation", snap.Generation,
		"duration_ms", dur.Milliseconds(),
	)
	for _, fn := range r.onSwap {
		fn(snap)
	}
	return nil
}

// Fingerprint 对规范化后的几何内容求 xxhash；顺序与数值完全相同才会得到相同指纹
func Fingerprint(st *tzsearch.Store) string {
	h := xxhash.New()
	var buf [8]byte
	putF := func(v float64) {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
		_, _ = h.Write(buf[:])
	}
	putN := func(n int) {
		binary.LittleEndian.PutUint64(buf[:], uint64(n))
		_, _ = h.Write(buf[:])
	}
	for _, z := range st.Zones() {
		_, _ = h.WriteString(z.Name)
		putN(len(z.Polygons))
		for _, p := range z.Polygons {
			putN(len(p.Holes))
			for _, ring := range append([]tzsearch.Ring{p.Outer}, p.Holes...) {
				putN(len(ring))
				for _, pt := range ring {
					putF(pt.Lat)
					putF(pt.Lon)
				}
			}
		}
	}
	return strconv.FormatUint(h.Sum64(), 16)
}
