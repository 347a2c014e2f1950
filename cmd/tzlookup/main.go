package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/pflag"

	"tz-search/internal/logger"
	"tz-search/pkg/tzdata"
	"tz-search/pkg/tzsearch"
)

// 文档注释：命令行查询时区
// 背景：离线核对数据集与排查边界问题，不依赖服务进程；参数为 "lat,lon"，缺省时逐行读取标准输入。
// 约束：每行输出 "lat,lon<TAB>zone"，未命中输出 "-"；最近顶点兜底的结果额外附带距离列。
func main() {
	data := pflag.StringP("data", "d", "data/tz/timezones.tzs", "dataset file (.tzs/.geojson) or directory of .geojson")
	cellSize := pflag.Float64("cell-size", tzsearch.DefaultCellSize, "grid cell size in degrees")
	radius := pflag.Float64("nearest", 0, "fall back to the nearest boundary vertex within this many km (0 disables)")
	stats := pflag.Bool("stats", false, "print dataset statistics as JSON and exit")
	level := pflag.String("log-level", "warn", "log level")
	pflag.Parse()

	l := logger.Setup(*level, "text")
	store, err := tzdata.LoadFile(*data)
	if err != nil {
		l.Error("dataset_load_error", "path", *data, "err", err)
		os.Exit(1)
	}
	opts := []tzsearch.Option{tzsearch.WithCellSize(*cellSize)}
	if *radius > 0 {
		opts = append(opts, tzsearch.WithNearest(*radius))
	}
	ds := tzsearch.New(store, opts...)
	if *stats {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(ds.Stats())
		return
	}

	w := bufio.NewWriter(os.Stdout)
	defer w.Flush()
	failed := false
	handle := func(arg string) {
		line, err := lookup(ds, arg)
		if err != nil {
			l.Error("lookup_error", "input", arg, "err", err)
			failed = true
			return
		}
		fmt.Fprintln(w, line)
	}
	if pflag.NArg() > 0 {
		for _, arg := range pflag.Args() {
			handle(arg)
		}
	} else if err := eachLine(os.Stdin, handle); err != nil {
		l.Error("stdin_read_error", "err", err)
		failed = true
	}
	if failed {
		w.Flush()
		os.Exit(2)
	}
}

func eachLine(r io.Reader, fn func(string)) error {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if s := strings.TrimSpace(sc.Text()); s != "" && !strings.HasPrefix(s, "#") {
			fn(s)
		}
	}
	return sc.Err()
}

func parsePoint(s string) (lat, lon float64, err error) {
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' || r == '\t' })
	if len(parts) != 2 {
		return 0, 0, errors.Newf("want \"lat,lon\", got %q", s)
	}
	if lat, err = strconv.ParseFloat(parts[0], 64); err != nil {
		return 0, 0, errors.Wrap(err, "lat")
	}
	if lon, err = strconv.ParseFloat(parts[1], 64); err != nil {
		return 0, 0, errors.Wrap(err, "lon")
	}
	return lat, lon, nil
}

func lookup(ds *tzsearch.Dataset, arg string) (string, error) {
	lat, lon, err := parsePoint(arg)
	if err != nil {
		return "", err
	}
	zone, ok, err := ds.Resolve(lat, lon)
	if err != nil {
		return "", err
	}
	prefix := strconv.FormatFloat(lat, 'f', -1, 64) + "," + strconv.FormatFloat(lon, 'f', -1, 64) + "\t"
	if ok {
		return prefix + zone, nil
	}
	if z, km, near, _ := ds.Nearest(lat, lon); near {
		return prefix + z + "\t~" + strconv.FormatFloat(km, 'f', 1, 64) + "km", nil
	}
	return prefix + "-", nil
}
