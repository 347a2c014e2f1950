package migrate

import (
	"context"
	"database/sql"

	"github.com/cockroachdb/errors"

	"tz-search/internal/logger"
)

// 背景：首次运行自动创建所需表与索引，保障后续导入与查询
// 约束：使用 IF NOT EXISTS 避免与既有结构冲突；仅创建最小必需结构
var statements = []string{
	`CREATE TABLE IF NOT EXISTS _tz_polygons (
        id SERIAL PRIMARY KEY,
        zone TEXT NOT NULL,
        seq INT NOT NULL,
        geometry TEXT NOT NULL
    )`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uniq_tz_zone_seq ON _tz_polygons(zone, seq)`,
	`CREATE TABLE IF NOT EXISTS _tz_stats_total (
        id INT PRIMARY KEY,
        total_queries BIGINT NOT NULL DEFAULT 0,
        total_visitors BIGINT NOT NULL DEFAULT 0
    )`,
	`CREATE TABLE IF NOT EXISTS _tz_stats_daily (
        day DATE PRIMARY KEY,
        queries BIGINT NOT NULL DEFAULT 0,
        visitors BIGINT NOT NULL DEFAULT 0
    )`,
	`INSERT INTO _tz_stats_total(id, total_queries, total_visitors)
     VALUES(1, 0, 0)
     ON CONFLICT (id) DO NOTHING`,
}

func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for i, s := range statements {
		logger.L().Debug("schema_exec", "idx", i)
		if _, err := db.ExecContext(ctx, s); err != nil {
			return errors.Wrapf(err, "schema statement %d", i)
		}
	}
	logger.L().Debug("schema_done")
	return nil
}
