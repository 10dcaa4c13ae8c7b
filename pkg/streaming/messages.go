package streaming

import (
	"encoding/json"
	"fmt"

	"github.com/OCAP2/tacmap/pkg/core"
)

// Host to engine message types.
const (
	TypeDrawReady      = "draw_ready"
	TypeShapeCreated   = "shape_created"
	TypeSelect         = "select"
	TypeCancel         = "cancel"
	TypeSave           = "save"
	TypeRemove         = "remove"
	TypeDispatch       = "dispatch"
	TypeAttachVideo    = "attach_video"
	TypeSetDrawMode    = "set_draw_mode"
	TypeMarkerDrag     = "marker_drag"
	TypeToggleVideo    = "toggle_video"
	TypeOverlayPointer = "overlay_pointer"
	TypeResize         = "resize"
	TypeCollapse       = "collapse"
	TypeCapture        = "capture"
	TypeCaptureResult  = "capture_result"
)

// Engine to host message types.
const (
	TypeEnableTool   = "enable_tool"
	TypeDisableTools = "disable_tools"
	TypeRemoveLayer  = "remove_layer"
	TypeRender       = "render"
	TypeRasterize    = "rasterize"
	TypeNotify       = "notify"
)

// Envelope wraps all messages sent over the WebSocket. ID correlates a
// rasterize request with its capture_result.
type Envelope struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewEnvelope marshals payload into an envelope. A nil payload is omitted.
func NewEnvelope(typ, id string, payload any) (Envelope, error) {
	env := Envelope{Type: typ, ID: id}
	if payload == nil {
		return env, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", typ, err)
	}
	env.Payload = raw
	return env, nil
}

// Decode unmarshals an envelope's payload.
func Decode[T any](env Envelope) (T, error) {
	var v T
	if len(env.Payload) == 0 {
		return v, fmt.Errorf("%s: empty payload", env.Type)
	}
	if err := json.Unmarshal(env.Payload, &v); err != nil {
		return v, fmt.Errorf("%s: %w", env.Type, err)
	}
	return v, nil
}

// ShapeCreatedPayload reports a completed drawing-tool shape. Shape holds
// the tool's raw event: layerId plus coordinates, lat/lng or radius.
type ShapeCreatedPayload struct {
	Kind  string          `json:"kind"`
	Shape json.RawMessage `json:"shape"`
}

// SetDrawModePayload selects sector, route, point or "" for none.
type SetDrawModePayload struct {
	Mode string `json:"mode"`
}

// MarkerDragPayload is a drone marker dropped at a new position.
type MarkerDragPayload struct {
	ID  string  `json:"id"`
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// ToggleVideoPayload opens or closes the video overlay of an entity.
type ToggleVideoPayload struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Src  string `json:"src"`
}

// AttachVideoPayload sets the video source of the managed entity.
type AttachVideoPayload struct {
	URL string `json:"url"`
}

// OverlayPointerPayload is one pointer event on a video overlay's title bar.
type OverlayPointerPayload struct {
	ID    string  `json:"id"`
	Phase string  `json:"phase"` // down, move, up
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
}

// ResizePayload reports the host viewport size in pixels.
type ResizePayload struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// CollapsePayload hides or shows the side panel.
type CollapsePayload struct {
	Collapsed bool `json:"collapsed"`
}

// CaptureResultPayload answers a rasterize request with a base64 PNG or an error.
type CaptureResultPayload struct {
	Image string `json:"image,omitempty"`
	Error string `json:"error,omitempty"`
}

// EnableToolPayload activates one drawing tool.
type EnableToolPayload struct {
	Tool string `json:"tool"`
}

// RemoveLayerPayload removes a transient drawing layer.
type RemoveLayerPayload struct {
	LayerID string `json:"layerId"`
}

// RasterizePayload asks the host for a viewport image.
type RasterizePayload struct {
	ExcludeChrome bool `json:"excludeChrome"`
}

// IconView is a ready-to-place marker icon.
type IconView struct {
	HTML      string `json:"html"`
	ClassName string `json:"className"`
	Size      [2]int `json:"size"`
	Anchor    [2]int `json:"anchor"`
}

// POIMarker is a point of interest with its icon.
type POIMarker struct {
	core.POI
	Icon        IconView `json:"icon"`
	CommandPost bool     `json:"commandPost,omitempty"`
}

// DroneMarker is a manual drone assignment with its icon.
type DroneMarker struct {
	core.DroneAssignment
	Icon IconView `json:"icon"`
}

// LiveMarker is a telemetry-driven drone with its icon.
type LiveMarker struct {
	core.TelemetryRecord
	Callsign string   `json:"callsign,omitempty"`
	Icon     IconView `json:"icon"`
}

// PanelView is the side panel's state.
type PanelView struct {
	State     string          `json:"state"` // idle, creating, managing
	Collapsed bool            `json:"collapsed"`
	Pending   any             `json:"pending,omitempty"`
	Ref       *core.EntityRef `json:"ref,omitempty"`
	Entity    any             `json:"entity,omitempty"`
}

// OverlayView is one open video overlay.
type OverlayView struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Src      string  `json:"src"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	Dragging bool    `json:"dragging"`
}

// RenderPayload is everything the host draws for one mission view.
type RenderPayload struct {
	Mission   core.Mission  `json:"mission"`
	Sectors   []core.Sector `json:"sectors"`
	POIs      []POIMarker   `json:"pois"`
	Drones    []DroneMarker `json:"drones"`
	Live      []LiveMarker  `json:"live"`
	Panel     PanelView     `json:"panel"`
	Overlays  []OverlayView `json:"overlays"`
	DrawMode  string        `json:"drawMode"`
	Capturing bool          `json:"capturing"`
}
