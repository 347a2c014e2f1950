package main

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/pflag"

	"tz-search/internal/config"
	"tz-search/internal/logger"
	"tz-search/internal/migrate"
	"tz-search/internal/store"
	"tz-search/internal/utils"
	"tz-search/pkg/tzdata"
	"tz-search/pkg/tzsearch"
)

// 文档注释：数据集构建与导入导出
// 背景：上游发布的时区边界为 GeoJSON，体积大、解析慢；构建为 .tzs 后服务启动只需解码定点坐标。
// 同一工具也负责把数据集写入或导出 _tz_polygons，供 DATASET_SOURCE=postgres 的实例加载。
// 约束：输入必须通过完整校验才会写出；写库在单个事务内整体替换。数据库连接参数读取 PG_* 环境变量。
func main() {
	in := pflag.StringP("in", "i", "", "input dataset: .geojson/.tzs file or directory of .geojson")
	out := pflag.StringP("out", "o", "", "output file, format chosen by extension (.tzs or .geojson)")
	fromPG := pflag.Bool("from-pg", false, "read zones from postgres instead of --in")
	toPG := pflag.Bool("to-pg", false, "replace zones in postgres with the input")
	level := pflag.String("log-level", "info", "log level")
	pflag.Parse()

	l := logger.Setup(*level, "text")
	if err := run(context.Background(), *in, *out, *fromPG, *toPG); err != nil {
		l.Error("tzbuild_error", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, in, out string, fromPG, toPG bool) error {
	l := logger.L()
	if (in == "") == !fromPG {
		return errors.New("exactly one of --in and --from-pg is required")
	}
	if out == "" && !toPG {
		return errors.New("nothing to do: set --out and/or --to-pg")
	}

	var st *store.Store
	if fromPG || toPG {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		db, err := utils.OpenPostgres(ctx, cfg.Postgres)
		if err != nil {
			return err
		}
		if err := migrate.EnsureSchema(ctx, db); err != nil {
			_ = db.Close()
			return err
		}
		st = store.AttachDB(db)
		defer st.Close()
	}

	start := time.Now()
	var zones []tzsearch.Zone
	var err error
	if fromPG {
		zones, err = st.LoadZones(ctx)
	} else {
		zones, err = tzdata.ReadZones(in)
	}
	if err != nil {
		return err
	}
	checked, err := tzsearch.NewStore(zones)
	if err != nil {
		return err
	}
	l.Info("dataset_validated",
		"zones", checked.Len(),
		"polygons", checked.PolygonCount(),
		"vertices", checked.VertexCount(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	// 写出规范化后的几何：同名时区已合并，闭合点已去除
	zones = checked.Zones()

	if out != "" {
		if err := writeFile(out, zones); err != nil {
			return err
		}
		fi, _ := os.Stat(out)
		var size int64
		if fi != nil {
			size = fi.Size()
		}
		l.Info("dataset_written", "path", out, "bytes", size)
	}
	if toPG {
		if err := st.ReplaceZones(ctx, zones); err != nil {
			return err
		}
		l.Info("dataset_imported", "zones", len(zones))
	}
	return nil
}

// writeFile 先写临时文件再改名，失败时不会留下半截数据集
func writeFile(path string, zones []tzsearch.Zone) error {
	f, err := tzdata.FormatFromPath(path)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "mkdir %s", dir)
		}
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tzbuild-*")
	if err != nil {
		return errors.Wrap(err, "create temp file")
	}
	defer os.Remove(tmp.Name())
	if err := tzdata.Encode(f, tmp, zones); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "close temp file")
	}
	return errors.Wrap(os.Rename(tmp.Name(), path), "rename output")
}
