// Package icon builds the marker icons for drones and points of interest.
// Icons are memoised by their attribute tuple in bounded LRU tables, so an
// unchanged entity gets back the very same *Icon on every render.
package icon

import (
	"fmt"
	"html"
	"math"

	"github.com/OCAP2/tacmap/pkg/core"
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is the per-table capacity used when none is configured.
const DefaultCacheSize = 512

// LowBatteryThreshold is the first battery percentage rendered in the normal color.
const LowBatteryThreshold = 20

const (
	ColorBatteryLow    = "#ef4444"
	ColorBatteryNormal = "#22c55e"
	ColorBatteryNone   = "#9ca3af"

	ColorDroneLive   = "#0ea5e9"
	ColorDroneMain   = "#f59e0b"
	ColorDroneManual = "#6366f1"
)

// Icon is a divIcon-style marker: raw HTML plus placement.
type Icon struct {
	HTML      string `json:"html"`
	ClassName string `json:"className"`
	Size      [2]int `json:"size"`
	Anchor    [2]int `json:"anchor"`
	Color     string `json:"color"`
	Badge     bool   `json:"badge"`
}

// DroneAttrs is everything a drone icon depends on.
type DroneAttrs struct {
	PilotShortName  string
	AltitudeRounded int
	HasAltitude     bool
	Battery         int
	HasBattery      bool
	IsMain          bool
	HasVideo        bool
	IsLive          bool
}

// POIAttrs is everything a point-of-interest icon depends on.
type POIAttrs struct {
	Type     core.POIType
	HasVideo bool
}

// Synth owns the memo tables. It is safe for concurrent use.
type Synth struct {
	drones *lru.Cache[DroneAttrs, *Icon]
	pois   *lru.Cache[POIAttrs, *Icon]
}

// New creates a Synth whose tables hold up to size icons each.
func New(size int) (*Synth, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	drones, err := lru.New[DroneAttrs, *Icon](size)
	if err != nil {
		return nil, fmt.Errorf("creating drone icon cache: %w", err)
	}
	pois, err := lru.New[POIAttrs, *Icon](size)
	if err != nil {
		return nil, fmt.Errorf("creating poi icon cache: %w", err)
	}
	return &Synth{drones: drones, pois: pois}, nil
}

// Drone returns the icon for a.
func (s *Synth) Drone(a DroneAttrs) *Icon {
	if ic, ok := s.drones.Get(a); ok {
		return ic
	}
	ic := buildDrone(a)
	if prev, ok, _ := s.drones.PeekOrAdd(a, ic); ok {
		return prev
	}
	return ic
}

// POI returns the icon for a.
func (s *Synth) POI(a POIAttrs) *Icon {
	if ic, ok := s.pois.Get(a); ok {
		return ic
	}
	ic := buildPOI(a)
	if prev, ok, _ := s.pois.PeekOrAdd(a, ic); ok {
		return prev
	}
	return ic
}

// Len returns the number of cached drone and POI icons.
func (s *Synth) Len() (drones, pois int) {
	return s.drones.Len(), s.pois.Len()
}

// ForDrone derives the attributes of a dispatched drone.
func ForDrone(d core.DroneAssignment) DroneAttrs {
	a := DroneAttrs{HasVideo: d.VideoURL != ""}
	if d.Pilot != nil {
		a.PilotShortName = d.Pilot.ShortName
	}
	if d.Aircraft != nil {
		a.IsMain = d.Aircraft.IsMain
	}
	setReadings(&a, d.Altitude, d.Battery)
	return a
}

// ForLive derives the attributes of a telemetry-fed drone.
func ForLive(rec core.TelemetryRecord, pilotShortName string) DroneAttrs {
	a := DroneAttrs{
		PilotShortName: pilotShortName,
		HasVideo:       rec.VideoURL != "",
		IsLive:         true,
	}
	setReadings(&a, rec.Altitude, rec.Battery)
	return a
}

// ForPOI derives the attributes of a point of interest.
func ForPOI(p core.POI) POIAttrs {
	return POIAttrs{Type: core.ParsePOIType(string(p.Type)), HasVideo: p.VideoURL != ""}
}

func setReadings(a *DroneAttrs, altitude, battery *float64) {
	if altitude != nil {
		a.AltitudeRounded = int(math.Round(*altitude))
		a.HasAltitude = true
	}
	if battery != nil {
		// floor keeps 19.6 on the low side of the threshold
		a.Battery = int(math.Floor(*battery))
		a.HasBattery = true
	}
}

// BatteryColor is the indicator color for a battery reading.
func BatteryColor(a DroneAttrs) string {
	switch {
	case !a.HasBattery:
		return ColorBatteryNone
	case a.Battery < LowBatteryThreshold:
		return ColorBatteryLow
	default:
		return ColorBatteryNormal
	}
}

func droneClass(a DroneAttrs) (class, color string) {
	switch {
	case a.IsLive:
		return "drone-live", ColorDroneLive
	case a.IsMain:
		return "drone-main", ColorDroneMain
	default:
		return "drone-manual", ColorDroneManual
	}
}

const videoBadge = `<span class="video-badge pulse"></span>`

func buildDrone(a DroneAttrs) *Icon {
	class, body := droneClass(a)

	label := html.EscapeString(a.PilotShortName)
	if a.HasAltitude {
		label += fmt.Sprintf(" · %dm", a.AltitudeRounded)
	}
	battery := "--"
	if a.HasBattery {
		battery = fmt.Sprintf("%d%%", a.Battery)
	}
	badge := ""
	if a.HasVideo {
		badge = videoBadge
	}

	markup := fmt.Sprintf(
		`<div class="drone-marker %s" style="--body:%s">`+
			`<svg viewBox="0 0 24 24" width="28" height="28"><circle cx="12" cy="12" r="10" fill="%s"/>`+
			`<path d="M6 12h12M12 6v12" stroke="#fff" stroke-width="2"/></svg>`+
			`<span class="drone-label">%s</span>`+
			`<span class="drone-battery" style="color:%s">%s</span>%s</div>`,
		class, body, body, label, BatteryColor(a), battery, badge)

	return &Icon{
		HTML:      markup,
		ClassName: "tacmap-drone " + class,
		Size:      [2]int{64, 48},
		Anchor:    [2]int{32, 14},
		Color:     body,
		Badge:     a.HasVideo,
	}
}

var poiStyles = map[core.POIType]struct {
	color string
	glyph string
}{
	core.POIBase:       {"#1d4ed8", "CP"},
	core.POIVictim:     {"#dc2626", "V"},
	core.POIHazard:     {"#f97316", "!"},
	core.POIGroundTeam: {"#16a34a", "G"},
	core.POICanine:     {"#a16207", "K9"},
	core.POIGeneric:    {"#6b7280", "•"},
}

func buildPOI(a POIAttrs) *Icon {
	style, ok := poiStyles[a.Type]
	if !ok {
		style = poiStyles[core.POIGeneric]
	}
	badge := ""
	if a.HasVideo {
		badge = videoBadge
	}
	markup := fmt.Sprintf(
		`<div class="poi-marker poi-%s" style="background:%s"><span class="poi-glyph">%s</span>%s</div>`,
		a.Type, style.color, style.glyph, badge)

	return &Icon{
		HTML:      markup,
		ClassName: "tacmap-poi poi-" + string(a.Type),
		Size:      [2]int{30, 30},
		Anchor:    [2]int{15, 15},
		Color:     style.color,
		Badge:     a.HasVideo,
	}
}
