package geo

import (
	"fmt"

	"github.com/OCAP2/tacmap/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
)

// MarshalGeoJSON encodes sector geometry as a GeoJSON geometry object.
func MarshalGeoJSON(kind core.GeometryKind, r core.Ring) ([]byte, error) {
	switch kind {
	case core.GeometryPolygon:
		poly, err := Polygon(r)
		if err != nil {
			return nil, err
		}
		return poly.MarshalJSON()
	case core.GeometryLine:
		ls, err := LineString(r)
		if err != nil {
			return nil, err
		}
		return ls.MarshalJSON()
	default:
		return nil, fmt.Errorf("unsupported geometry kind %q", kind)
	}
}

// UnmarshalGeoJSON decodes a stored GeoJSON geometry back into a ring.
// Only Polygon (exterior ring) and LineString are accepted.
func UnmarshalGeoJSON(data []byte) (core.GeometryKind, core.Ring, error) {
	g, err := geom.UnmarshalGeoJSON(data)
	if err != nil {
		return "", nil, fmt.Errorf("failed to parse geometry: %w", err)
	}
	switch g.Type() {
	case geom.TypePolygon:
		poly, _ := g.AsPolygon()
		return core.GeometryPolygon, fromSequence(poly.ExteriorRing().Coordinates()), nil
	case geom.TypeLineString:
		ls, _ := g.AsLineString()
		return core.GeometryLine, fromSequence(ls.Coordinates()), nil
	default:
		return "", nil, fmt.Errorf("unsupported geometry type %s", g.Type())
	}
}

func fromSequence(seq geom.Sequence) core.Ring {
	n := seq.Length()
	r := make(core.Ring, n)
	for i := 0; i < n; i++ {
		xy := seq.GetXY(i)
		r[i] = core.LatLng{Lat: xy.Y, Lng: xy.X}
	}
	return r
}
