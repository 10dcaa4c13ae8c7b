package draw

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/OCAP2/tacmap/internal/geo"
	"github.com/OCAP2/tacmap/pkg/core"
)

// ErrUnknownShape is returned for a completion event of a kind the bridge does not draw.
var ErrUnknownShape = errors.New("unknown shape kind")

// Shape is a completed drawing-tool shape. The set of implementations is closed.
type Shape interface {
	// LayerID is the host's transient layer holding the drawn shape.
	LayerID() string
	isShape()
}

// PointShape is a dropped marker.
type PointShape struct {
	Layer    string
	Position core.LatLng
}

// PolygonShape is a freehand polygon; its ring may arrive open.
type PolygonShape struct {
	Layer string
	Ring  core.Ring
}

// LineShape is a polyline, used for routes.
type LineShape struct {
	Layer string
	Path  core.Ring
}

// RectangleShape is an axis-aligned box given by two opposite corners.
type RectangleShape struct {
	Layer          string
	Corner, Across core.LatLng
}

// CircleShape is a center and a radius in metres.
type CircleShape struct {
	Layer        string
	Center       core.LatLng
	RadiusMeters float64
}

func (s PointShape) LayerID() string     { return s.Layer }
func (s PolygonShape) LayerID() string   { return s.Layer }
func (s LineShape) LayerID() string      { return s.Layer }
func (s RectangleShape) LayerID() string { return s.Layer }
func (s CircleShape) LayerID() string    { return s.Layer }

func (PointShape) isShape()     {}
func (PolygonShape) isShape()   {}
func (LineShape) isShape()      {}
func (RectangleShape) isShape() {}
func (CircleShape) isShape()    {}

// rawShape is the host's completion payload. Coordinates are [lng,lat] pairs.
type rawShape struct {
	LayerID     string          `json:"layerId"`
	Coordinates json.RawMessage `json:"coordinates"`
	Lat         float64         `json:"lat"`
	Lng         float64         `json:"lng"`
	Radius      float64         `json:"radius"`
}

// DecodeShape resolves a host completion event into a Shape. The layer id is
// returned whenever it could be read, so the caller can still clean up.
func DecodeShape(kind string, raw json.RawMessage) (Shape, string, error) {
	var r rawShape
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, "", fmt.Errorf("failed to parse %s shape: %w", kind, err)
	}

	switch ToolKind(kind) {
	case ToolMarker:
		return PointShape{Layer: r.LayerID, Position: core.LatLng{Lat: r.Lat, Lng: r.Lng}}, r.LayerID, nil
	case ToolPolygon:
		ring, err := geo.ParseCoordinates(r.Coordinates, 3)
		if err != nil {
			return nil, r.LayerID, fmt.Errorf("polygon: %w", err)
		}
		return PolygonShape{Layer: r.LayerID, Ring: ring}, r.LayerID, nil
	case ToolLine:
		path, err := geo.ParseCoordinates(r.Coordinates, 2)
		if err != nil {
			return nil, r.LayerID, fmt.Errorf("line: %w", err)
		}
		return LineShape{Layer: r.LayerID, Path: path}, r.LayerID, nil
	case ToolRectangle:
		corners, err := geo.ParseCoordinates(r.Coordinates, 2)
		if err != nil {
			return nil, r.LayerID, fmt.Errorf("rectangle: %w", err)
		}
		// the host may send all four corners; opposite ones are 0 and 2
		across := corners[1]
		if len(corners) >= 3 {
			across = corners[2]
		}
		return RectangleShape{Layer: r.LayerID, Corner: corners[0], Across: across}, r.LayerID, nil
	case ToolCircle:
		return CircleShape{Layer: r.LayerID, Center: core.LatLng{Lat: r.Lat, Lng: r.Lng}, RadiusMeters: r.Radius}, r.LayerID, nil
	default:
		return nil, r.LayerID, fmt.Errorf("%w: %q", ErrUnknownShape, kind)
	}
}
