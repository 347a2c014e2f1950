// 包 utils：外部连接工具（Postgres、Redis、自签证书），统一从配置结构体读取参数
package utils

import (
	"github.com/redis/go-redis/v9"

	"tz-search/internal/config"
	"tz-search/internal/logger"
)

// OpenRedis：按配置打开 Redis 客户端
// 约束：未启用时返回 nil，调用方按“无二级缓存”处理；连通性由调用方 Ping 检查
func OpenRedis(cfg config.RedisConfig) *redis.Client {
	if !cfg.Enabled {
		return nil
	}
	db := cfg.DB
	if db < 0 {
		db = 0
	}
	logger.L().Debug("redis_config", "addr", cfg.Addr(), "db", db)
	return redis.NewClient(&redis.Options{Addr: cfg.Addr(), Password: cfg.Password, DB: db})
}
