// Package draw turns draw-mode requests into host drawing-tool activation and
// classifies completed shapes into points and areas.
package draw

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/OCAP2/tacmap/internal/geo"
	"github.com/OCAP2/tacmap/pkg/core"
)

// Mode is the requested draw mode.
type Mode string

const (
	ModeNone   Mode = ""
	ModeSector Mode = "sector"
	ModeRoute  Mode = "route"
	ModePoint  Mode = "point"
)

// ToolKind names a host drawing tool. The same names tag completion events.
type ToolKind string

const (
	ToolMarker    ToolKind = "marker"
	ToolPolygon   ToolKind = "polygon"
	ToolLine      ToolKind = "line"
	ToolRectangle ToolKind = "rectangle"
	ToolCircle    ToolKind = "circle"
)

// ErrUnknownMode is returned by SetMode for a mode it does not know.
var ErrUnknownMode = errors.New("unknown draw mode")

// Tools is the host map's drawing-tool extension.
type Tools interface {
	// Available is false until the host has initialised drawing.
	Available() bool
	Enable(tool ToolKind) error
	DisableAll() error
	RemoveLayer(layerID string) error
}

// Created is a classified shape ready for the panel. Kind is core.KindPOI with
// Position set, or core.KindSector with Geometry and Ring set.
type Created struct {
	Kind     core.EntityKind   `json:"kind"`
	Geometry core.GeometryKind `json:"geometry,omitempty"`
	Ring     core.Ring         `json:"ring,omitempty"`
	Position core.LatLng       `json:"position"`
	Source   ToolKind          `json:"source"`
}

// Valid reports whether c carries the geometry its kind needs.
func (c Created) Valid() bool {
	switch c.Kind {
	case core.KindPOI:
		return c.Position.Valid()
	case core.KindSector:
		return len(c.Ring) > 0
	}
	return false
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithCircleSegments sets the side count used for circles. Values below
// geo.MinCircleSegments are raised to it.
func WithCircleSegments(n int) Option {
	return func(b *Bridge) {
		if n < geo.MinCircleSegments {
			n = geo.MinCircleSegments
		}
		b.segments = n
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Bridge) {
		b.logger = l
	}
}

// Bridge owns the host's transient drawing layer.
type Bridge struct {
	tools    Tools
	segments int
	logger   *slog.Logger

	mu   sync.Mutex
	mode Mode
}

// NewBridge creates a bridge over tools, which may be nil.
func NewBridge(tools Tools, opts ...Option) *Bridge {
	b := &Bridge{
		tools:    tools,
		segments: 64,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Mode returns the current draw mode.
func (b *Bridge) Mode() Mode {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.mode
}

func (b *Bridge) available() bool {
	return b.tools != nil && b.tools.Available()
}

// SetMode enables the single tool for mode, or disables all tools for ModeNone.
// It does nothing when the host's drawing tools are not available yet.
func (b *Bridge) SetMode(mode Mode) error {
	var tool ToolKind
	switch mode {
	case ModeNone:
	case ModeSector:
		tool = ToolPolygon
	case ModeRoute:
		tool = ToolLine
	case ModePoint:
		tool = ToolMarker
	default:
		return fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}

	b.mu.Lock()
	b.mode = mode
	b.mu.Unlock()

	if !b.available() {
		b.logger.Debug("Draw tools unavailable, ignoring mode change", "mode", mode)
		return nil
	}
	if err := b.tools.DisableAll(); err != nil {
		b.logger.Warn("Failed to disable draw tools", "error", err)
	}
	if tool == "" {
		return nil
	}
	if err := b.tools.Enable(tool); err != nil {
		b.logger.Warn("Failed to enable draw tool", "tool", tool, "error", err)
	}
	return nil
}

// Complete classifies a finished shape. The shape's transient layer is removed
// whatever the outcome.
func (b *Bridge) Complete(shape Shape) (Created, error) {
	if shape == nil {
		return Created{}, ErrUnknownShape
	}
	defer b.Discard(shape.LayerID())
	return b.classify(shape)
}

// Discard removes a transient layer. Used directly when a completion event
// could not be decoded.
func (b *Bridge) Discard(layerID string) {
	if layerID == "" || !b.available() {
		return
	}
	if err := b.tools.RemoveLayer(layerID); err != nil {
		b.logger.Warn("Failed to remove draw layer", "layer", layerID, "error", err)
	}
}

func (b *Bridge) classify(shape Shape) (Created, error) {
	switch s := shape.(type) {
	case PointShape:
		if !s.Position.Valid() {
			return Created{}, geo.ErrInvalidCoordinates
		}
		return Created{Kind: core.KindPOI, Position: s.Position, Source: ToolMarker}, nil

	case PolygonShape:
		ring, err := geo.CloseRing(s.Ring)
		if err != nil {
			return Created{}, err
		}
		return area(core.GeometryPolygon, ring, ToolPolygon)

	case LineShape:
		if len(s.Path) < 2 {
			return Created{}, fmt.Errorf("route needs at least 2 points, got %d", len(s.Path))
		}
		path := append(core.Ring(nil), s.Path...)
		return area(core.GeometryLine, path, ToolLine)

	case RectangleShape:
		ring, err := geo.RectangleToRing(s.Corner, s.Across)
		if err != nil {
			return Created{}, err
		}
		return area(core.GeometryPolygon, ring, ToolRectangle)

	case CircleShape:
		ring, err := geo.CircleToRing(s.Center, s.RadiusMeters, b.segments)
		if err != nil {
			return Created{}, err
		}
		return area(core.GeometryPolygon, ring, ToolCircle)
	}
	return Created{}, fmt.Errorf("%w: %T", ErrUnknownShape, shape)
}

// area builds a sector result. The ring must also pass the checks the
// backends apply on persist, so a self-intersecting freehand shape is
// rejected here rather than on save.
func area(kind core.GeometryKind, ring core.Ring, src ToolKind) (Created, error) {
	var err error
	switch kind {
	case core.GeometryPolygon:
		_, err = geo.Polygon(ring)
	case core.GeometryLine:
		_, err = geo.LineString(ring)
	}
	if err != nil {
		return Created{}, err
	}
	return Created{
		Kind:     core.KindSector,
		Geometry: kind,
		Ring:     ring,
		Position: ring[0],
		Source:   src,
	}, nil
}
