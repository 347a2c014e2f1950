package tzsearch_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"tz-search/pkg/tzsearch"
)

// rect 生成逆时针矩形环（不重复闭合点）
func rect(minLat, minLon, maxLat, maxLon float64) tzsearch.Ring {
	return tzsearch.Ring{
		{Lat: minLat, Lon: minLon},
		{Lat: minLat, Lon: maxLon},
		{Lat: maxLat, Lon: maxLon},
		{Lat: maxLat, Lon: minLon},
	}
}

func zone(name string, polys ...tzsearch.Polygon) tzsearch.Zone {
	return tzsearch.Zone{Name: name, Polygons: polys}
}

func poly(outer tzsearch.Ring, holes ...tzsearch.Ring) tzsearch.Polygon {
	return tzsearch.Polygon{Outer: outer, Holes: holes}
}

func mustOpen(t testing.TB, zones []tzsearch.Zone, opts ...tzsearch.Option) *tzsearch.Dataset {
	t.Helper()
	d, err := tzsearch.Open(zones, opts...)
	require.NoError(t, err)
	return d
}
