package geo

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/OCAP2/tacmap/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
)

// ErrDegenerateRing is returned when a ring has too few distinct vertices.
var ErrDegenerateRing = errors.New("ring needs at least 3 distinct vertices")

// ParseCoordinates parses a GeoJSON-ordered coordinate array "[[lng,lat],...]".
func ParseCoordinates(input []byte, minPoints int) (core.Ring, error) {
	var coords [][]float64
	if err := json.Unmarshal(input, &coords); err != nil {
		return nil, fmt.Errorf("failed to parse coordinates JSON: %w", err)
	}
	return RingFromPairs(coords, minPoints)
}

// RingFromPairs converts [lng,lat] pairs into a ring.
func RingFromPairs(coords [][]float64, minPoints int) (core.Ring, error) {
	if len(coords) < minPoints {
		return nil, fmt.Errorf("need at least %d points, got %d", minPoints, len(coords))
	}
	ring := make(core.Ring, len(coords))
	for i, c := range coords {
		if len(c) < 2 {
			return nil, fmt.Errorf("coordinate %d has insufficient values", i)
		}
		p := core.LatLng{Lat: c[1], Lng: c[0]}
		if !p.Valid() {
			return nil, fmt.Errorf("coordinate %d: %w", i, ErrInvalidCoordinates)
		}
		ring[i] = p
	}
	return ring, nil
}

// CloseRing returns r with the first vertex appended when it is not already closed.
// Rings with fewer than 3 distinct vertices are rejected.
func CloseRing(r core.Ring) (core.Ring, error) {
	if len(r) > 1 && r[0] == r[len(r)-1] {
		r = r[:len(r)-1]
	}
	if distinct(r) < 3 {
		return nil, ErrDegenerateRing
	}
	out := make(core.Ring, 0, len(r)+1)
	out = append(out, r...)
	return append(out, r[0]), nil
}

func distinct(r core.Ring) int {
	seen := make(map[core.LatLng]struct{}, len(r))
	for _, p := range r {
		seen[p] = struct{}{}
	}
	return len(seen)
}

func sequence(r core.Ring) geom.Sequence {
	flat := make([]float64, 0, len(r)*2)
	for _, p := range r {
		flat = append(flat, p.Lng, p.Lat)
	}
	return geom.NewSequence(flat, geom.DimXY)
}

// Polygon builds a simplefeatures polygon from a closed ring. Construction
// rejects rings that are not simple.
func Polygon(r core.Ring) (geom.Polygon, error) {
	if !r.Closed() {
		return geom.Polygon{}, fmt.Errorf("polygon ring is not closed")
	}
	ring, err := geom.NewLineString(sequence(r))
	if err != nil {
		return geom.Polygon{}, fmt.Errorf("invalid polygon ring: %w", err)
	}
	poly, err := geom.NewPolygon([]geom.LineString{ring})
	if err != nil {
		return geom.Polygon{}, fmt.Errorf("invalid polygon: %w", err)
	}
	return poly, nil
}

// LineString builds a simplefeatures line string for a route.
func LineString(r core.Ring) (geom.LineString, error) {
	if len(r) < 2 {
		return geom.LineString{}, fmt.Errorf("line needs at least 2 points, got %d", len(r))
	}
	ls, err := geom.NewLineString(sequence(r))
	if err != nil {
		return geom.LineString{}, fmt.Errorf("invalid line: %w", err)
	}
	return ls, nil
}
