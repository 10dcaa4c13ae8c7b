package geo

import (
	"errors"
	"math"
	"testing"

	"github.com/OCAP2/tacmap/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLatLngFromString(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    core.LatLng
		wantErr bool
	}{
		{name: "valid", input: "40.4168,-3.7038", want: core.LatLng{Lat: 40.4168, Lng: -3.7038}},
		{name: "spaces", input: " 1.5 , 2.5 ", want: core.LatLng{Lat: 1.5, Lng: 2.5}},
		{name: "missing lng", input: "40.4", wantErr: true},
		{name: "too many parts", input: "1,2,3", wantErr: true},
		{name: "not a number", input: "abc,2", wantErr: true},
		{name: "out of range", input: "91,0", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := LatLngFromString(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidCoordinates))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMercatorRoundTrip(t *testing.T) {
	p := core.LatLng{Lat: 40.4168, Lng: -3.7038}
	x, y := ToMercator(p)
	back := FromMercator(x, y)

	assert.InDelta(t, p.Lat, back.Lat, 1e-9)
	assert.InDelta(t, p.Lng, back.Lng, 1e-9)
}

func TestCircleToRing_ClosedWithMinimumSides(t *testing.T) {
	center := core.LatLng{Lat: 40.4168, Lng: -3.7038}

	ring, err := CircleToRing(center, 500, 16)
	require.NoError(t, err)

	assert.True(t, ring.Closed())
	assert.Len(t, ring, MinCircleSegments+1)
}

func TestCircleToRing_HonoursHigherSegmentCount(t *testing.T) {
	ring, err := CircleToRing(core.LatLng{Lat: 10, Lng: 10}, 100, 90)
	require.NoError(t, err)
	assert.Len(t, ring, 91)
}

func TestCircleToRing_VerticesAtRadius(t *testing.T) {
	for _, lat := range []float64{0, 40.4168, -62.5} {
		center := core.LatLng{Lat: lat, Lng: 12.5}
		ring, err := CircleToRing(center, 1000, 64)
		require.NoError(t, err)

		for i, p := range ring {
			d := greatCircle(center, p)
			// mercator scale varies slightly across the circle's latitude span
			assert.InDelta(t, 1000, d, 10, "vertex %d at lat %f", i, lat)
		}
	}
}

func TestCircleToRing_IsValidPolygon(t *testing.T) {
	ring, err := CircleToRing(core.LatLng{Lat: 40, Lng: -3}, 250, 60)
	require.NoError(t, err)

	_, err = Polygon(ring)
	assert.NoError(t, err)
}

func TestCircleToRing_InvalidInput(t *testing.T) {
	_, err := CircleToRing(core.LatLng{Lat: 10, Lng: 10}, 0, 60)
	assert.ErrorIs(t, err, ErrInvalidRadius)

	_, err = CircleToRing(core.LatLng{Lat: 10, Lng: 10}, math.NaN(), 60)
	assert.ErrorIs(t, err, ErrInvalidRadius)

	_, err = CircleToRing(core.LatLng{Lat: 100, Lng: 10}, 10, 60)
	assert.ErrorIs(t, err, ErrInvalidCoordinates)
}

func TestRectangleToRing(t *testing.T) {
	ring, err := RectangleToRing(core.LatLng{Lat: 2, Lng: 3}, core.LatLng{Lat: 1, Lng: 1})
	require.NoError(t, err)

	assert.True(t, ring.Closed())
	assert.Len(t, ring, 5)
	assert.Equal(t, core.LatLng{Lat: 1, Lng: 1}, ring[0])
	assert.Equal(t, core.LatLng{Lat: 2, Lng: 3}, ring[2])

	_, err = RectangleToRing(core.LatLng{Lat: 1, Lng: 1}, core.LatLng{Lat: 1, Lng: 5})
	assert.ErrorIs(t, err, ErrDegenerateRing)
}

// greatCircle is an independent haversine check on projected circle vertices.
func greatCircle(a, b core.LatLng) float64 {
	const earthRadius = 6371008.8
	la1, la2 := a.Lat*math.Pi/180, b.Lat*math.Pi/180
	dLat := la2 - la1
	dLng := (b.Lng - a.Lng) * math.Pi / 180
	h := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(la1)*math.Cos(la2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadius * math.Asin(math.Min(1, math.Sqrt(h)))
}
