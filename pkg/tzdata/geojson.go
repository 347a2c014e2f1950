package tzdata

import (
	"io"

	"github.com/cockroachdb/errors"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"tz-search/pkg/tzsearch"
)

// DefaultZoneKeys：要素属性中时区标识的候选键，按顺序取第一个非空值
var DefaultZoneKeys = []string{"tzid", "TZID"}

// 文档注释：解析 GeoJSON FeatureCollection 为时区列表
// 背景：timezone-boundary-builder 与 efele tz_world 均以 FeatureCollection 发布，每个要素一个 tzid。
// 约束：几何仅支持 Polygon/MultiPolygon（经度在前）；环列表第一环为外环，其余为洞；缺少标识或几何类型不符即整体失败。
func DecodeGeoJSON(r io.Reader, keys ...string) ([]tzsearch.Zone, error) {
	if len(keys) == 0 {
		keys = DefaultZoneKeys
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "read geojson")
	}
	fc, err := geojson.UnmarshalFeatureCollection(b)
	if err != nil {
		return nil, tzsearch.DatasetErrorf("decode geojson: %v", err)
	}
	zones := make([]tzsearch.Zone, 0, len(fc.Features))
	for i, f := range fc.Features {
		name, err := zoneName(f.Properties, keys)
		if err != nil {
			return nil, tzsearch.DatasetErrorf("feature #%d: %v", i, err)
		}
		if name == "" {
			return nil, tzsearch.DatasetErrorf("feature #%d has no zone id (keys %v)", i, keys)
		}
		polys, err := polygonsFromGeometry(f.Geometry)
		if err != nil {
			return nil, tzsearch.DatasetErrorf("feature #%d (%s): %v", i, name, err)
		}
		zones = append(zones, tzsearch.Zone{Name: name, Polygons: polys})
	}
	return zones, nil
}

// zoneName 取第一个非空的字符串标识；键存在但不是字符串时报错，不做类型转换
func zoneName(p geojson.Properties, keys []string) (string, error) {
	for _, k := range keys {
		v, ok := p[k]
		if !ok || v == nil {
			continue
		}
		s, ok := v.(string)
		if !ok {
			return "", errors.Newf("property %s is %T, want string", k, v)
		}
		if s != "" {
			return s, nil
		}
	}
	return "", nil
}

func polygonsFromGeometry(g orb.Geometry) ([]tzsearch.Polygon, error) {
	switch v := g.(type) {
	case orb.Polygon:
		return []tzsearch.Polygon{fromOrbPolygon(v)}, nil
	case orb.MultiPolygon:
		out := make([]tzsearch.Polygon, 0, len(v))
		for _, p := range v {
			out = append(out, fromOrbPolygon(p))
		}
		return out, nil
	case nil:
		return nil, errors.New("missing geometry")
	default:
		return nil, errors.Newf("unsupported geometry %s", g.GeoJSONType())
	}
}

func fromOrbPolygon(p orb.Polygon) tzsearch.Polygon {
	var out tzsearch.Polygon
	for i, ring := range p {
		r := make(tzsearch.Ring, len(ring))
		for j, pt := range ring {
			r[j] = tzsearch.Point{Lat: pt.Lat(), Lon: pt.Lon()}
		}
		if i == 0 {
			out.Outer = r
			continue
		}
		out.Holes = append(out.Holes, r)
	}
	return out
}

func toOrbPolygon(p tzsearch.Polygon) orb.Polygon {
	out := make(orb.Polygon, 0, 1+len(p.Holes))
	out = append(out, toOrbRing(p.Outer))
	for _, h := range p.Holes {
		out = append(out, toOrbRing(h))
	}
	return out
}

// GeoJSON 要求环显式闭合
func toOrbRing(r tzsearch.Ring) orb.Ring {
	out := make(orb.Ring, 0, len(r)+1)
	for _, pt := range r {
		out = append(out, orb.Point{pt.Lon, pt.Lat})
	}
	if len(r) > 0 && r[0] != r[len(r)-1] {
		out = append(out, orb.Point{r[0].Lon, r[0].Lat})
	}
	return out
}

// EncodeGeoJSON 以 FeatureCollection 写出，每个时区一个 MultiPolygon 要素，属性键为 tzid
func EncodeGeoJSON(w io.Writer, zones []tzsearch.Zone) error {
	fc := geojson.NewFeatureCollection()
	for _, z := range zones {
		mp := make(orb.MultiPolygon, 0, len(z.Polygons))
		for _, p := range z.Polygons {
			mp = append(mp, toOrbPolygon(p))
		}
		f := geojson.NewFeature(mp)
		f.Properties["tzid"] = z.Name
		fc.Append(f)
	}
	b, err := fc.MarshalJSON()
	if err != nil {
		return errors.Wrap(err, "encode geojson")
	}
	_, err = w.Write(b)
	return err
}

// MarshalPolygon 把单个多边形编码为 GeoJSON geometry 文本，供按行存储
func MarshalPolygon(p tzsearch.Polygon) ([]byte, error) {
	return geojson.NewGeometry(toOrbPolygon(p)).MarshalJSON()
}

// UnmarshalPolygon 解析 GeoJSON Polygon geometry 文本
func UnmarshalPolygon(b []byte) (tzsearch.Polygon, error) {
	g, err := geojson.UnmarshalGeometry(b)
	if err != nil {
		return tzsearch.Polygon{}, tzsearch.DatasetErrorf("decode geometry: %v", err)
	}
	p, ok := g.Geometry().(orb.Polygon)
	if !ok {
		return tzsearch.Polygon{}, tzsearch.DatasetErrorf("geometry is %s, want Polygon", g.Type)
	}
	return fromOrbPolygon(p), nil
}
