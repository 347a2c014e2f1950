package reload

import (
	"sync/atomic"
	"time"

	"tz-search/pkg/tzsearch"
)

// Snapshot：一次加载得到的只读数据集及其元信息
type Snapshot struct {
	Dataset *tzsearch.Dataset
	// 内容指纹，相同数据集在不同进程间一致，用作外部缓存键的一部分
	Fingerprint string
	Source      string
	LoadedAt    time.Time
	Generation  uint64
}

// 文档注释：数据集持有者
// 背景：通过原子指针提供无锁读写切换，重载时整体替换快照，读路径不阻塞，进行中的查询继续使用旧快照。
// 约束：未设置前 Get 返回 nil，调用方需按“服务未就绪”处理。
type Holder struct {
	v   atomic.Pointer[Snapshot]
	gen atomic.Uint64
}

// Get 原子读取当前快照
func (h *Holder) Get() *Snapshot { return h.v.Load() }

// Set 替换当前快照并分配递增的代号；nil 会被忽略
func (h *Holder) Set(s *Snapshot) {
	if s == nil {
		return
	}
	s.Generation = h.gen.Add(1)
	h.v.Store(s)
}

// Ready 表示是否已有可用数据集
func (h *Holder) Ready() bool { return h.v.Load() != nil }
