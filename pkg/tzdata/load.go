// Package tzdata 负责时区边界数据集的编解码（GeoJSON 与紧凑二进制 TZS1），
// 输出统一交给 tzsearch.NewStore 校验。
package tzdata

import (
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"

	"tz-search/pkg/tzsearch"
)

// Format：数据集文件格式
type Format string

const (
	FormatGeoJSON Format = "geojson"
	FormatBinary  Format = "tzs"
)

// FormatFromPath 按扩展名判断格式：.geojson/.json 为 GeoJSON，.tzs/.bin 为二进制
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".geojson", ".json":
		return FormatGeoJSON, nil
	case ".tzs", ".bin":
		return FormatBinary, nil
	}
	return "", errors.Newf("unknown dataset format for %q", path)
}

// Decode 按格式解码
func Decode(f Format, r io.Reader) ([]tzsearch.Zone, error) {
	switch f {
	case FormatGeoJSON:
		return DecodeGeoJSON(r)
	case FormatBinary:
		return DecodeBinary(r)
	}
	return nil, errors.Newf("unknown dataset format %q", f)
}

// Encode 按格式编码
func Encode(f Format, w io.Writer, zones []tzsearch.Zone) error {
	switch f {
	case FormatGeoJSON:
		return EncodeGeoJSON(w, zones)
	case FormatBinary:
		return EncodeBinary(w, zones)
	}
	return errors.Newf("unknown dataset format %q", f)
}

// 文档注释：从文件或目录读取时区列表
// 背景：发布包通常是单个 .tzs；开发时可直接指向存放若干 *.geojson 的目录。
// 约束：目录模式只读取 .geojson 文件，按文件名排序后合并；同名时区由 NewStore 合并。
func ReadZones(path string) ([]tzsearch.Zone, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, errors.Wrapf(err, "stat dataset %s", path)
	}
	if !fi.IsDir() {
		return readFile(path)
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read dataset dir %s", path)
	}
	var files []string
	for _, ent := range entries {
		if !ent.IsDir() && strings.HasSuffix(strings.ToLower(ent.Name()), ".geojson") {
			files = append(files, filepath.Join(path, ent.Name()))
		}
	}
	if len(files) == 0 {
		return nil, tzsearch.DatasetErrorf("no .geojson files in %s", path)
	}
	sort.Strings(files)
	var zones []tzsearch.Zone
	for _, fp := range files {
		zs, err := readFile(fp)
		if err != nil {
			return nil, err
		}
		zones = append(zones, zs...)
	}
	return zones, nil
}

func readFile(path string) ([]tzsearch.Zone, error) {
	f, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	fh, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open dataset %s", path)
	}
	defer fh.Close()
	zones, err := Decode(f, fh)
	if err != nil {
		return nil, errors.Wrapf(err, "decode %s", path)
	}
	return zones, nil
}

// LoadFile 读取并校验，返回只读几何存储
func LoadFile(path string) (*tzsearch.Store, error) {
	zones, err := ReadZones(path)
	if err != nil {
		return nil, err
	}
	s, err := tzsearch.NewStore(zones)
	if err != nil {
		return nil, errors.Wrapf(err, "load %s", path)
	}
	return s, nil
}
