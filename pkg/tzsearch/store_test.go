package tzsearch_test

import (
	"math"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tz-search/pkg/tzsearch"
)

func TestNewStore_Validation(t *testing.T) {
	tests := []struct {
		name  string
		zones []tzsearch.Zone
	}{
		{"empty name", []tzsearch.Zone{zone("", poly(rect(0, 0, 1, 1)))}},
		{"no polygons", []tzsearch.Zone{zone("A/B")}},
		{"two vertices", []tzsearch.Zone{zone("A/B", poly(tzsearch.Ring{{Lat: 0, Lon: 0}, {Lat: 1, Lon: 1}}))}},
		{"three vertices two distinct", []tzsearch.Zone{zone("A/B", poly(tzsearch.Ring{{Lat: 0, Lon: 0}, {Lat: 1, Lon: 1}, {Lat: 0, Lon: 0}, {Lat: 1, Lon: 1}}))}},
		{"latitude out of range", []tzsearch.Zone{zone("A/B", poly(rect(0, 0, 91, 1)))}},
		{"longitude out of range", []tzsearch.Zone{zone("A/B", poly(rect(0, -181, 1, 1)))}},
		{"nan vertex", []tzsearch.Zone{zone("A/B", poly(rect(0, 0, math.NaN(), 1)))}},
		{"bad hole", []tzsearch.Zone{zone("A/B", poly(rect(0, 0, 10, 10), tzsearch.Ring{{Lat: 1, Lon: 1}}))}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := tzsearch.NewStore(tt.zones)
			require.Error(t, err)
			assert.Nil(t, s)
			assert.True(t, errors.Is(err, tzsearch.ErrDataset), "got %v", err)
		})
	}
}

func TestNewStore_Normalizes(t *testing.T) {
	closed := append(rect(0, 0, 2, 4), tzsearch.Point{Lat: 0, Lon: 0})
	in := []tzsearch.Zone{
		zone("Europe/Berlin", poly(rect(50, 10, 52, 12))),
		zone("Asia/Tokyo", poly(closed)),
		zone("Europe/Berlin", poly(rect(53, 10, 54, 11))),
	}

	s, err := tzsearch.NewStore(in)
	require.NoError(t, err)

	t.Run("sorted and merged", func(t *testing.T) {
		assert.Equal(t, []string{"Asia/Tokyo", "Europe/Berlin"}, s.ZoneNames())
		assert.Equal(t, 2, s.Len())
		assert.Equal(t, 3, s.PolygonCount())
		assert.Len(t, s.Zones()[1].Polygons, 2)
	})

	t.Run("closing vertex stripped", func(t *testing.T) {
		assert.Len(t, s.Zones()[0].Polygons[0].Outer, 4)
		assert.Len(t, in[1].Polygons[0].Outer, 5, "input must not be modified")
		assert.Equal(t, 12, s.VertexCount())
	})

	t.Run("bbox from outer ring", func(t *testing.T) {
		assert.Equal(t, tzsearch.BBox{MinLat: 0, MaxLat: 2, MinLon: 0, MaxLon: 4}, s.Zones()[0].Polygons[0].BBox)
	})
}

func TestNewStore_Empty(t *testing.T) {
	s, err := tzsearch.NewStore(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, s.Len())
	assert.Empty(t, s.ZoneNames())
}
