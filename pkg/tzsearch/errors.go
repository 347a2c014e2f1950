package tzsearch

import (
	"math"

	"github.com/cockroachdb/errors"
)

var (
	// ErrInvalidCoordinate 查询坐标为 NaN 或超出范围；调用方应视为请求被拒绝
	ErrInvalidCoordinate = errors.New("tzsearch: invalid coordinate")
	// ErrDataset 数据集结构错误；加载失败时数据集不可用
	ErrDataset = errors.New("tzsearch: malformed dataset")
)

// DatasetErrorf 生成可被 errors.Is(err, ErrDataset) 识别的加载错误，供各数据格式解码器复用
func DatasetErrorf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrDataset, format, args...)
}

func validLat(v float64) bool { return v >= -90 && v <= 90 }
func validLon(v float64) bool { return v >= -180 && v <= 180 }

// ValidatePoint 检查坐标范围；NaN 在比较中恒为 false，因此同样被拒绝
func ValidatePoint(lat, lon float64) error {
	if math.IsNaN(lat) || math.IsNaN(lon) || !validLat(lat) || !validLon(lon) {
		return errors.Wrapf(ErrInvalidCoordinate, "lat=%v lon=%v", lat, lon)
	}
	return nil
}
