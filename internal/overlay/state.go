package overlay

import "github.com/OCAP2/tacmap/pkg/core"

// State is an immutable copy of the store's collections.
type State struct {
	Mission  core.Mission
	Sectors  []core.Sector
	POIs     []core.POI // persisted only, see AllPOIs
	Drones   []core.DroneAssignment
	Aircraft []core.Aircraft
	Pilots   []core.Pilot
	Loaded   bool
}

// AllPOIs returns the command post followed by the persisted points of interest.
func (s State) AllPOIs() []core.POI {
	if !s.Loaded {
		return nil
	}
	out := make([]core.POI, 0, len(s.POIs)+1)
	out = append(out, s.Mission.CommandPost())
	return append(out, s.POIs...)
}

func (s State) clone() State {
	out := s
	out.Sectors = make([]core.Sector, len(s.Sectors))
	for i, sec := range s.Sectors {
		sec.Geometry = append(core.Ring(nil), sec.Geometry...)
		out.Sectors[i] = sec
	}
	out.POIs = append([]core.POI(nil), s.POIs...)
	out.Drones = make([]core.DroneAssignment, len(s.Drones))
	for i, d := range s.Drones {
		out.Drones[i] = cloneDrone(d)
	}
	out.Aircraft = append([]core.Aircraft(nil), s.Aircraft...)
	out.Pilots = append([]core.Pilot(nil), s.Pilots...)
	return out
}

func cloneDrone(d core.DroneAssignment) core.DroneAssignment {
	if d.Aircraft != nil {
		a := *d.Aircraft
		d.Aircraft = &a
	}
	if d.Pilot != nil {
		p := *d.Pilot
		d.Pilot = &p
	}
	if d.Altitude != nil {
		v := *d.Altitude
		d.Altitude = &v
	}
	if d.Battery != nil {
		v := *d.Battery
		d.Battery = &v
	}
	return d
}
