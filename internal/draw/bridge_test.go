package draw

import (
	"encoding/json"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/OCAP2/tacmap/internal/geo"
	"github.com/OCAP2/tacmap/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTools records every call made by the bridge.
type fakeTools struct {
	mu        sync.Mutex
	available bool
	enabled   []ToolKind
	disabled  int
	removed   []string
	failWith  error
}

func (f *fakeTools) Available() bool { return f.available }

func (f *fakeTools) Enable(tool ToolKind) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enabled = append(f.enabled, tool)
	return f.failWith
}

func (f *fakeTools) DisableAll() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disabled++
	return f.failWith
}

func (f *fakeTools) RemoveLayer(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, id)
	return f.failWith
}

func TestSetMode_EnablesExactlyOneTool(t *testing.T) {
	tests := []struct {
		mode Mode
		tool ToolKind
	}{
		{ModeSector, ToolPolygon},
		{ModeRoute, ToolLine},
		{ModePoint, ToolMarker},
	}
	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			tools := &fakeTools{available: true}
			b := NewBridge(tools)

			require.NoError(t, b.SetMode(tt.mode))
			assert.Equal(t, 1, tools.disabled)
			assert.Equal(t, []ToolKind{tt.tool}, tools.enabled)
			assert.Equal(t, tt.mode, b.Mode())
		})
	}
}

func TestSetMode_NoneDisablesAll(t *testing.T) {
	tools := &fakeTools{available: true}
	b := NewBridge(tools)

	require.NoError(t, b.SetMode(ModeNone))
	assert.Equal(t, 1, tools.disabled)
	assert.Empty(t, tools.enabled)
}

func TestSetMode_UnavailableIsNoop(t *testing.T) {
	tools := &fakeTools{available: false}
	b := NewBridge(tools)

	require.NoError(t, b.SetMode(ModeSector))
	assert.Zero(t, tools.disabled)
	assert.Empty(t, tools.enabled)

	nilBridge := NewBridge(nil)
	assert.NotPanics(t, func() {
		_ = nilBridge.SetMode(ModePoint)
		_, _ = nilBridge.Complete(PointShape{Layer: "x", Position: core.LatLng{Lat: 1, Lng: 1}})
	})
}

func TestSetMode_ToolErrorsAreSwallowed(t *testing.T) {
	tools := &fakeTools{available: true, failWith: errors.New("host gone")}
	b := NewBridge(tools)
	assert.NoError(t, b.SetMode(ModeSector))
}

func TestSetMode_Unknown(t *testing.T) {
	b := NewBridge(&fakeTools{available: true})
	assert.ErrorIs(t, b.SetMode("hexagon"), ErrUnknownMode)
}

func TestComplete_Point(t *testing.T) {
	tools := &fakeTools{available: true}
	b := NewBridge(tools)

	c, err := b.Complete(PointShape{Layer: "l1", Position: core.LatLng{Lat: 39.4, Lng: -0.3}})
	require.NoError(t, err)
	assert.Equal(t, core.KindPOI, c.Kind)
	assert.Equal(t, core.LatLng{Lat: 39.4, Lng: -0.3}, c.Position)
	assert.True(t, c.Valid())
	assert.Equal(t, []string{"l1"}, tools.removed)
}

func TestComplete_CircleBecomesClosedPolygon(t *testing.T) {
	tools := &fakeTools{available: true}
	b := NewBridge(tools, WithCircleSegments(12))

	center := core.LatLng{Lat: 39.47, Lng: -0.37}
	c, err := b.Complete(CircleShape{Layer: "c1", Center: center, RadiusMeters: 500})
	require.NoError(t, err)

	assert.Equal(t, core.KindSector, c.Kind)
	assert.Equal(t, core.GeometryPolygon, c.Geometry)
	assert.True(t, c.Ring.Closed())
	assert.GreaterOrEqual(t, len(c.Ring)-1, geo.MinCircleSegments)
	cx, cy := geo.ToMercator(center)
	scale := 1 / math.Cos(center.Lat*math.Pi/180)
	for _, p := range c.Ring {
		x, y := geo.ToMercator(p)
		assert.InDelta(t, 500, math.Hypot(x-cx, y-cy)/scale, 1)
	}
	assert.Equal(t, []string{"c1"}, tools.removed)
}

func TestComplete_PolygonIsClosed(t *testing.T) {
	b := NewBridge(&fakeTools{available: true})
	c, err := b.Complete(PolygonShape{Layer: "p", Ring: core.Ring{{Lat: 0, Lng: 0}, {Lat: 0, Lng: 1}, {Lat: 1, Lng: 1}}})
	require.NoError(t, err)
	assert.Equal(t, core.KindSector, c.Kind)
	assert.True(t, c.Ring.Closed())
	assert.Len(t, c.Ring, 4)
}

func TestComplete_RectangleAndLine(t *testing.T) {
	b := NewBridge(&fakeTools{available: true})

	rect, err := b.Complete(RectangleShape{Layer: "r", Corner: core.LatLng{Lat: 0, Lng: 0}, Across: core.LatLng{Lat: 1, Lng: 2}})
	require.NoError(t, err)
	assert.Equal(t, core.KindSector, rect.Kind)
	assert.Equal(t, core.GeometryPolygon, rect.Geometry)
	assert.Len(t, rect.Ring, 5)

	line, err := b.Complete(LineShape{Layer: "l", Path: core.Ring{{Lat: 0, Lng: 0}, {Lat: 1, Lng: 1}}})
	require.NoError(t, err)
	assert.Equal(t, core.KindSector, line.Kind)
	assert.Equal(t, core.GeometryLine, line.Geometry)
}

func TestComplete_FailureStillRemovesLayer(t *testing.T) {
	tools := &fakeTools{available: true}
	b := NewBridge(tools)

	_, err := b.Complete(CircleShape{Layer: "bad", Center: core.LatLng{Lat: 1, Lng: 1}, RadiusMeters: -4})
	require.ErrorIs(t, err, geo.ErrInvalidRadius)

	_, err = b.Complete(PolygonShape{Layer: "flat", Ring: core.Ring{{Lat: 0, Lng: 0}, {Lat: 0, Lng: 0}, {Lat: 1, Lng: 1}}})
	require.Error(t, err)

	_, err = b.Complete(PolygonShape{Layer: "bow", Ring: core.Ring{{Lat: 0, Lng: 0}, {Lat: 1, Lng: 1}, {Lat: 0, Lng: 1}, {Lat: 1, Lng: 0}}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not simple")

	assert.Equal(t, []string{"bad", "flat", "bow"}, tools.removed)
}

func TestComplete_Nil(t *testing.T) {
	b := NewBridge(&fakeTools{available: true})
	_, err := b.Complete(nil)
	assert.ErrorIs(t, err, ErrUnknownShape)
}

func TestDecodeShape(t *testing.T) {
	tests := []struct {
		name  string
		kind  string
		raw   string
		want  Shape
		isErr bool
	}{
		{
			name: "marker",
			kind: "marker",
			raw:  `{"layerId":"m","lat":1.5,"lng":2.5}`,
			want: PointShape{Layer: "m", Position: core.LatLng{Lat: 1.5, Lng: 2.5}},
		},
		{
			name: "polygon",
			kind: "polygon",
			raw:  `{"layerId":"p","coordinates":[[0,0],[1,0],[1,1]]}`,
			want: PolygonShape{Layer: "p", Ring: core.Ring{{Lat: 0, Lng: 0}, {Lat: 0, Lng: 1}, {Lat: 1, Lng: 1}}},
		},
		{
			name: "line",
			kind: "line",
			raw:  `{"layerId":"l","coordinates":[[0,0],[1,1]]}`,
			want: LineShape{Layer: "l", Path: core.Ring{{Lat: 0, Lng: 0}, {Lat: 1, Lng: 1}}},
		},
		{
			name: "rectangle four corners",
			kind: "rectangle",
			raw:  `{"layerId":"r","coordinates":[[0,0],[2,0],[2,1],[0,1]]}`,
			want: RectangleShape{Layer: "r", Corner: core.LatLng{Lat: 0, Lng: 0}, Across: core.LatLng{Lat: 1, Lng: 2}},
		},
		{
			name: "circle",
			kind: "circle",
			raw:  `{"layerId":"c","lat":10,"lng":20,"radius":250}`,
			want: CircleShape{Layer: "c", Center: core.LatLng{Lat: 10, Lng: 20}, RadiusMeters: 250},
		},
		{name: "unknown", kind: "hexagon", raw: `{"layerId":"h"}`, isErr: true},
		{name: "short polygon", kind: "polygon", raw: `{"layerId":"p","coordinates":[[0,0],[1,1]]}`, isErr: true},
		{name: "polygon without coordinates", kind: "polygon", raw: `{"layerId":"p"}`, isErr: true},
		{name: "bad json", kind: "marker", raw: `{`, isErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _, err := DecodeShape(tt.kind, json.RawMessage(tt.raw))
			if tt.isErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeShape_UnknownKeepsLayerID(t *testing.T) {
	_, layer, err := DecodeShape("hexagon", json.RawMessage(`{"layerId":"h"}`))
	require.ErrorIs(t, err, ErrUnknownShape)
	assert.Equal(t, "h", layer)
}

func TestCreated_Valid(t *testing.T) {
	assert.False(t, Created{}.Valid())
	assert.False(t, Created{Kind: core.KindSector}.Valid())
	assert.False(t, Created{Kind: core.KindPOI, Position: core.LatLng{Lat: 100}}.Valid())
	assert.True(t, Created{Kind: core.KindPOI}.Valid())
}
