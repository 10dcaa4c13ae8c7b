package geo

import (
	"errors"
	"math"

	"github.com/OCAP2/tacmap/pkg/core"
)

// MinCircleSegments is the smallest number of sides a circle approximation may have.
const MinCircleSegments = 60

// ErrInvalidRadius is returned for non-positive or non-finite circle radii.
var ErrInvalidRadius = errors.New("circle radius must be positive")

// CircleToRing approximates a circle of radiusMeters around center with a closed
// polygon ring of `segments` sides (raised to MinCircleSegments when lower).
// The returned ring has segments+1 vertices, the last repeating the first.
func CircleToRing(center core.LatLng, radiusMeters float64, segments int) (core.Ring, error) {
	if !center.Valid() {
		return nil, ErrInvalidCoordinates
	}
	if radiusMeters <= 0 || math.IsNaN(radiusMeters) || math.IsInf(radiusMeters, 0) {
		return nil, ErrInvalidRadius
	}
	if segments < MinCircleSegments {
		segments = MinCircleSegments
	}

	cx, cy := ToMercator(center)
	r := radiusMeters * mercatorScale(center.Lat)

	ring := make(core.Ring, 0, segments+1)
	for i := 0; i < segments; i++ {
		theta := 2 * math.Pi * float64(i) / float64(segments)
		ring = append(ring, FromMercator(cx+r*math.Cos(theta), cy+r*math.Sin(theta)))
	}
	ring = append(ring, ring[0])
	return ring, nil
}

// RectangleToRing builds the closed ring for an axis-aligned box given two opposite corners.
func RectangleToRing(a, b core.LatLng) (core.Ring, error) {
	if !a.Valid() || !b.Valid() {
		return nil, ErrInvalidCoordinates
	}
	south, north := math.Min(a.Lat, b.Lat), math.Max(a.Lat, b.Lat)
	west, east := math.Min(a.Lng, b.Lng), math.Max(a.Lng, b.Lng)
	if south == north || west == east {
		return nil, ErrDegenerateRing
	}
	return core.Ring{
		{Lat: south, Lng: west},
		{Lat: south, Lng: east},
		{Lat: north, Lng: east},
		{Lat: north, Lng: west},
		{Lat: south, Lng: west},
	}, nil
}
