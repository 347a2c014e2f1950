// 包 store: 提供与 PostgreSQL 的数据访问层，包含时区多边形的读写与查询统计
package store

import (
	"context"
	"database/sql"

	"github.com/cockroachdb/errors"
	_ "github.com/lib/pq"

	"tz-search/internal/logger"
	"tz-search/pkg/tzdata"
	"tz-search/pkg/tzsearch"
)

// Store: 数据库访问入口，持有连接池
type Store struct {
	db *sql.DB
}

func AttachDB(db *sql.DB) *Store { return &Store{db: db} }

// Close: 关闭数据库连接
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

// 文档注释：读取全部时区多边形
// 背景：数据库作为可选数据源，每行一个 GeoJSON Polygon，按 (zone, seq) 顺序还原为时区列表。
// 约束：返回结果未经校验，调用方需交给 tzsearch.NewStore；任一行几何无法解析则整体失败。
func (s *Store) LoadZones(ctx context.Context) ([]tzsearch.Zone, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT zone, geometry FROM _tz_polygons ORDER BY zone, seq`)
	if err != nil {
		return nil, errors.Wrap(err, "query _tz_polygons")
	}
	defer rows.Close()
	var zones []tzsearch.Zone
	n := 0
	for rows.Next() {
		var name, geom string
		if err := rows.Scan(&name, &geom); err != nil {
			return nil, errors.Wrap(err, "scan _tz_polygons")
		}
		p, err := tzdata.UnmarshalPolygon([]byte(geom))
		if err != nil {
			return nil, errors.Wrapf(err, "zone %q row %d", name, n)
		}
		if len(zones) == 0 || zones[len(zones)-1].Name != name {
			zones = append(zones, tzsearch.Zone{Name: name})
		}
		last := &zones[len(zones)-1]
		last.Polygons = append(last.Polygons, p)
		n++
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate _tz_polygons")
	}
	logger.L().Debug("db_zones_loaded", "zones", len(zones), "polygons", n)
	return zones, nil
}

// 文档注释：整体替换时区多边形
// 背景：导入工具一次性写入完整数据集；在单个事务内清空再插入，读者不会看到半成品。
// 约束：失败时回滚，表内容保持原样。
func (s *Store) ReplaceZones(ctx context.Context, zones []tzsearch.Zone) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if _, err = tx.ExecContext(ctx, `DELETE FROM _tz_polygons`); err != nil {
		return errors.Wrap(err, "clear _tz_polygons")
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO _tz_polygons(zone, seq, geometry) VALUES($1, $2, $3)`)
	if err != nil {
		return errors.Wrap(err, "prepare insert")
	}
	defer stmt.Close()
	rows := 0
	for _, z := range zones {
		for i, p := range z.Polygons {
			b, merr := tzdata.MarshalPolygon(p)
			if merr != nil {
				err = errors.Wrapf(merr, "encode zone %q polygon %d", z.Name, i)
				return err
			}
			if _, err = stmt.ExecContext(ctx, z.Name, i, string(b)); err != nil {
				return errors.Wrapf(err, "insert zone %q polygon %d", z.Name, i)
			}
			rows++
		}
	}
	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "commit")
	}
	logger.L().Info("db_zones_replaced", "zones", len(zones), "rows", rows)
	return nil
}

// IncrStats: 成功查询后递增总计与当日计数；newVisitor 为真时同时递增访客计数
func (s *Store) IncrStats(ctx context.Context, newVisitor bool) error {
	if _, err := s.db.ExecContext(ctx, "UPDATE _tz_stats_total SET total_queries=total_queries+1 WHERE id=1"); err != nil {
		return errors.Wrap(err, "incr total")
	}
	if _, err := s.db.ExecContext(ctx, "INSERT INTO _tz_stats_daily(day, queries) VALUES(current_date, 1) ON CONFLICT (day) DO UPDATE SET queries=_tz_stats_daily.queries+1"); err != nil {
		return errors.Wrap(err, "incr daily")
	}
	if newVisitor {
		if _, err := s.db.ExecContext(ctx, "UPDATE _tz_stats_total SET total_visitors=total_visitors+1 WHERE id=1"); err != nil {
			return errors.Wrap(err, "incr total visitors")
		}
		if _, err := s.db.ExecContext(ctx, "INSERT INTO _tz_stats_daily(day, visitors) VALUES(current_date, 1) ON CONFLICT (day) DO UPDATE SET visitors=_tz_stats_daily.visitors+1"); err != nil {
			return errors.Wrap(err, "incr daily visitors")
		}
	}
	return nil
}

// Totals: 查询量统计，包含累计与当日
type Totals struct {
	Total         int64 `json:"total"`
	Today         int64 `json:"today"`
	Visitors      int64 `json:"visitors"`
	TodayVisitors int64 `json:"today_visitors"`
}

// GetTotals: 读取累计与当日查询次数；当日尚无记录时为 0
func (s *Store) GetTotals(ctx context.Context) (*Totals, error) {
	var t Totals
	row := s.db.QueryRowContext(ctx, "SELECT total_queries, total_visitors FROM _tz_stats_total WHERE id=1")
	if err := row.Scan(&t.Total, &t.Visitors); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrap(err, "read totals")
	}
	row2 := s.db.QueryRowContext(ctx, "SELECT queries, visitors FROM _tz_stats_daily WHERE day=current_date")
	if err := row2.Scan(&t.Today, &t.TodayVisitors); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrap(err, "read daily")
	}
	return &t, nil
}
