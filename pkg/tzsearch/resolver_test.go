package tzsearch_test

import (
	"fmt"
	"math"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tz-search/pkg/tzsearch"
)

func TestResolve_SingleSquare(t *testing.T) {
	d := mustOpen(t, []tzsearch.Zone{zone("Zone/Test", poly(rect(10, 10, 20, 20)))})

	got, ok, err := d.Resolve(15, 15)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Zone/Test", got)

	got, ok, err = d.Resolve(50, 50)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, got)

	_, _, err = d.Resolve(91, 0)
	assert.True(t, errors.Is(err, tzsearch.ErrInvalidCoordinate))
}

func TestResolve_InvalidCoordinates(t *testing.T) {
	d := mustOpen(t, []tzsearch.Zone{zone("Zone/Test", poly(rect(10, 10, 20, 20)))})
	bad := [][2]float64{
		{90.0001, 0}, {-90.0001, 0}, {0, 180.0001}, {0, -180.0001},
		{math.NaN(), 0}, {0, math.NaN()}, {math.Inf(1), 0}, {0, math.Inf(-1)},
	}
	for _, c := range bad {
		_, ok, err := d.Resolve(c[0], c[1])
		assert.False(t, ok)
		assert.True(t, errors.Is(err, tzsearch.ErrInvalidCoordinate), "lat=%v lon=%v", c[0], c[1])

		_, ok = d.LookupZoneName(c[0], c[1])
		assert.False(t, ok)
	}
}

func TestResolve_ValidRangeIsTotal(t *testing.T) {
	d := mustOpen(t, []tzsearch.Zone{zone("Zone/Test", poly(rect(10, 10, 20, 20)))})
	for _, c := range [][2]float64{{90, 180}, {-90, -180}, {90, -180}, {-90, 180}, {0, 0}} {
		_, _, err := d.Resolve(c[0], c[1])
		assert.NoError(t, err)
	}
}

func TestResolve_Holes(t *testing.T) {
	donut := zone("Outer/Donut", poly(rect(0, 0, 10, 10), rect(4, 4, 6, 6)))

	t.Run("uncovered hole is unresolved", func(t *testing.T) {
		d := mustOpen(t, []tzsearch.Zone{donut})
		_, ok, err := d.Resolve(5, 5)
		require.NoError(t, err)
		assert.False(t, ok)

		got, ok, _ := d.Resolve(2, 2)
		assert.True(t, ok)
		assert.Equal(t, "Outer/Donut", got)
	})

	t.Run("enclave fills the hole", func(t *testing.T) {
		// 名称排序在前的外圈也不能抢走洞内的点
		d := mustOpen(t, []tzsearch.Zone{donut, zone("Zzz/Enclave", poly(rect(4, 4, 6, 6)))})
		got, ok, err := d.Resolve(5, 5)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "Zzz/Enclave", got)
	})
}

func TestResolve_SharedEdgeIsDeterministic(t *testing.T) {
	zones := []tzsearch.Zone{
		zone("West/Side", poly(rect(0, -10, 10, 0))),
		zone("East/Side", poly(rect(0, 0, 10, 10))),
	}
	d := mustOpen(t, zones)

	all, err := d.ResolveAll(5, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"East/Side", "West/Side"}, all)

	for i := 0; i < 50; i++ {
		got, ok, err := d.Resolve(5, 0)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "East/Side", got)
	}

	// 输入顺序不影响结果
	d2 := mustOpen(t, []tzsearch.Zone{zones[1], zones[0]})
	got, _, _ := d2.Resolve(5, 0)
	assert.Equal(t, "East/Side", got)
}

// 斜向共享边：两侧以相反方向走过同一条边，边上及其附近的点必须归属其中一个时区
func TestResolve_SharedDiagonalHasNoGap(t *testing.T) {
	lower := tzsearch.Ring{{Lat: 0, Lon: 0}, {Lat: 7, Lon: 0}, {Lat: 7, Lon: 3}}
	upper := tzsearch.Ring{{Lat: 0, Lon: 0}, {Lat: 7, Lon: 3}, {Lat: 0, Lon: 3}}
	d := mustOpen(t, []tzsearch.Zone{
		zone("Diag/Lower", poly(lower)),
		zone("Diag/Upper", poly(upper)),
	})

	rng := rand.New(rand.NewSource(7))
	missed := 0
	for i := 0; i < 20000; i++ {
		f := rng.Float64()
		lat, lon := 7*f, 3*f
		_, ok, err := d.Resolve(lat, lon)
		require.NoError(t, err)
		if !ok {
			missed++
		}
		// 同一点重复查询结果不变
		a, _, _ := d.Resolve(lat, lon)
		b, _, _ := d.Resolve(lat, lon)
		assert.Equal(t, a, b)
	}
	assert.Zero(t, missed, "points on the shared diagonal left unresolved")
}

// 同一环正反两个走向的判定结果一致
func TestLocateInRing_DirectionIndependent(t *testing.T) {
	ring := tzsearch.Ring{{Lat: 0, Lon: 0}, {Lat: 7, Lon: 0}, {Lat: 7, Lon: 3}}
	rev := tzsearch.Ring{ring[2], ring[1], ring[0]}
	rng := rand.New(rand.NewSource(11))
	for i := 0; i < 5000; i++ {
		f := rng.Float64()
		pt := tzsearch.Point{Lat: 7 * f, Lon: 3 * f}
		assert.Equal(t, tzsearch.LocateInRing(pt, ring), tzsearch.LocateInRing(pt, rev), "lat=%v lon=%v", pt.Lat, pt.Lon)
	}
}

func TestResolve_MultiPolygonZone(t *testing.T) {
	d := mustOpen(t, []tzsearch.Zone{
		zone("Pacific/Islands", poly(rect(-10, 170, -8, 172)), poly(rect(-20, -179, -18, -177))),
	})
	for _, c := range [][2]float64{{-9, 171}, {-19, -178}} {
		got, ok, err := d.Resolve(c[0], c[1])
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "Pacific/Islands", got)
	}
	_, ok, _ := d.Resolve(-15, 175)
	assert.False(t, ok)
}

func TestResolve_KnownPlaces(t *testing.T) {
	d := mustOpen(t, []tzsearch.Zone{
		zone("Australia/Sydney", poly(rect(-37.5, 148.9, -28.2, 153.7))),
		zone("America/Los_Angeles", poly(rect(32.5, -124.5, 42, -114.1))),
	})
	got, ok := d.LookupZoneName(-33.79, 151.17)
	assert.True(t, ok)
	assert.Equal(t, "Australia/Sydney", got)

	got, ok = d.LookupZoneName(37.7833, -122.4167)
	assert.True(t, ok)
	assert.Equal(t, "America/Los_Angeles", got)

	// 海洋
	_, ok = d.LookupZoneName(0, 0)
	assert.False(t, ok)
}

func TestResolve_Idempotent(t *testing.T) {
	d := mustOpen(t, []tzsearch.Zone{zone("Zone/Test", poly(rect(10, 10, 20, 20)))})
	first, ok1, _ := d.Resolve(12.345, 17.89)
	for i := 0; i < 100; i++ {
		got, ok, err := d.Resolve(12.345, 17.89)
		require.NoError(t, err)
		assert.Equal(t, ok1, ok)
		assert.Equal(t, first, got)
	}
}

// 以 3 度方格铺满全球，共 7200 个多边形
func globeGrid(t testing.TB) []tzsearch.Zone {
	t.Helper()
	var zones []tzsearch.Zone
	for r := 0; r < 60; r++ {
		for c := 0; c < 120; c++ {
			lat := -90 + float64(r)*3
			lon := -180 + float64(c)*3
			zones = append(zones, zone(fmt.Sprintf("Grid/r%02d_c%03d", r, c), poly(rect(lat, lon, lat+3, lon+3))))
		}
	}
	return zones
}

func TestResolve_Scale(t *testing.T) {
	d := mustOpen(t, globeGrid(t))
	assert.Equal(t, 7200, d.Stats().Polygons)

	rng := rand.New(rand.NewSource(42))
	const n = 500
	start := time.Now()
	for i := 0; i < n; i++ {
		lat := rng.Float64()*180 - 90
		lon := rng.Float64()*360 - 180
		got, ok, err := d.Resolve(lat, lon)
		require.NoError(t, err)
		require.True(t, ok, "lat=%v lon=%v", lat, lon)
		r := min(int(math.Floor((lat+90)/3)), 59)
		c := min(int(math.Floor((lon+180)/3)), 119)
		assert.Equal(t, fmt.Sprintf("Grid/r%02d_c%03d", r, c), got)
	}
	perQuery := time.Since(start) / n
	assert.Less(t, perQuery, time.Millisecond)

	st := d.Stats().Index
	assert.LessOrEqual(t, st.MedianCandidates, 4)
}

func TestResolve_Concurrent(t *testing.T) {
	d := mustOpen(t, globeGrid(t))
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			for i := 0; i < 200; i++ {
				lat := rng.Float64()*170 - 85
				lon := rng.Float64()*350 - 175
				a, _, errA := d.Resolve(lat, lon)
				b, _, errB := d.Resolve(lat, lon)
				assert.NoError(t, errA)
				assert.NoError(t, errB)
				assert.Equal(t, a, b)
			}
		}(int64(g))
	}
	wg.Wait()
}

func BenchmarkResolve(b *testing.B) {
	d := mustOpen(b, globeGrid(b))
	rng := rand.New(rand.NewSource(1))
	pts := make([][2]float64, 1024)
	for i := range pts {
		pts[i] = [2]float64{rng.Float64()*180 - 90, rng.Float64()*360 - 180}
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		p := pts[i&1023]
		_, _, _ = d.Resolve(p[0], p[1])
	}
}
