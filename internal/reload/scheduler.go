package reload

import (
	"context"
	"time"

	"tz-search/internal/logger"
)

// StartPeriodic：按固定间隔重载数据集，运行在后台协程
// 背景：数据集随上游边界数据定期发布；文件被替换或数据库重新导入后无需重启进程即可生效
// 约束：interval <= 0 时不启动；错误由日志记录，任务继续调度；ctx 取消后退出
func StartPeriodic(ctx context.Context, r *Reloader, interval time.Duration) {
	if interval <= 0 {
		return
	}
	l := logger.L()
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				l.Debug("reload_scheduler_stop")
				return
			case <-t.C:
				l.Debug("reload_scheduled_start", "interval", interval.String())
				if err := r.Reload(ctx); err != nil {
					l.Error("reload_error", "err", err)
				}
			}
		}
	}()
}
