package mission

import (
	"github.com/OCAP2/tacmap/internal/icon"
	"github.com/OCAP2/tacmap/internal/panel"
	"github.com/OCAP2/tacmap/pkg/core"
	"github.com/OCAP2/tacmap/pkg/streaming"
)

// Render builds the payload the host draws. Live and manual drones are
// listed separately even when they share an aircraft.
func (v *View) Render() streaming.RenderPayload {
	st := v.store.Snapshot()

	out := streaming.RenderPayload{
		Mission:   st.Mission,
		Sectors:   st.Sectors,
		POIs:      make([]streaming.POIMarker, 0, len(st.POIs)+1),
		Drones:    make([]streaming.DroneMarker, 0, len(st.Drones)),
		Live:      []streaming.LiveMarker{},
		Overlays:  []streaming.OverlayView{},
		DrawMode:  string(v.draw.Mode()),
		Capturing: v.Capturing(),
	}
	if out.Sectors == nil {
		out.Sectors = []core.Sector{}
	}

	for _, p := range st.AllPOIs() {
		out.POIs = append(out.POIs, streaming.POIMarker{
			POI:         p,
			Icon:        iconView(v.icons.POI(icon.ForPOI(p))),
			CommandPost: p.IsCommandPost(),
		})
	}

	pilotByAircraft := make(map[string]string, len(st.Drones))
	for _, d := range st.Drones {
		out.Drones = append(out.Drones, streaming.DroneMarker{
			DroneAssignment: d,
			Icon:            iconView(v.icons.Drone(icon.ForDrone(d))),
		})
		if d.Pilot != nil {
			pilotByAircraft[d.AircraftID] = d.Pilot.ShortName
		}
	}

	refs := v.store.References()
	for _, rec := range v.live.Drones() {
		m := streaming.LiveMarker{TelemetryRecord: rec}
		pilot := ""
		if a, ok := refs.AircraftBySerial(rec.Serial); ok {
			m.Callsign = a.Callsign
			pilot = pilotByAircraft[a.ID]
		}
		m.Icon = iconView(v.icons.Drone(icon.ForLive(rec, pilot)))
		out.Live = append(out.Live, m)
	}

	out.Panel = panelView(v.panel.State(), v.panel.Collapsed())

	for _, o := range v.pips.List() {
		out.Overlays = append(out.Overlays, streaming.OverlayView{
			ID:       o.ID,
			Name:     o.Name,
			Src:      o.Source,
			X:        o.Position.X,
			Y:        o.Position.Y,
			Width:    o.Size.W,
			Height:   o.Size.H,
			Dragging: o.Dragging,
		})
	}
	return out
}

func iconView(i *icon.Icon) streaming.IconView {
	return streaming.IconView{
		HTML:      i.HTML,
		ClassName: i.ClassName,
		Size:      i.Size,
		Anchor:    i.Anchor,
	}
}

func panelView(s panel.State, collapsed bool) streaming.PanelView {
	pv := streaming.PanelView{State: s.Name(), Collapsed: collapsed}
	switch st := s.(type) {
	case panel.Creating:
		pv.Pending = st.Pending
	case panel.Managing:
		ref := st.Ref
		pv.Ref = &ref
		pv.Entity = st.Entity
	}
	return pv
}
