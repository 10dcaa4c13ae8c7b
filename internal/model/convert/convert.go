// Package convert translates between GORM rows and core map entities.
package convert

import (
	"fmt"

	"github.com/OCAP2/tacmap/internal/geo"
	"github.com/OCAP2/tacmap/internal/model"
	"github.com/OCAP2/tacmap/pkg/core"
)

// MissionToCore converts a GORM Mission to a core.Mission.
func MissionToCore(m model.Mission) core.Mission {
	return core.Mission{
		ID:     m.ID,
		Name:   m.Name,
		Origin: core.LatLng{Lat: m.OriginLat, Lng: m.OriginLng},
	}
}

// AircraftToCore converts a GORM Aircraft to a core.Aircraft.
func AircraftToCore(a model.Aircraft) core.Aircraft {
	return core.Aircraft{
		ID:       a.ID,
		Serial:   a.Serial,
		Model:    a.Model,
		Callsign: a.Callsign,
		IsMain:   a.IsMain,
	}
}

// PilotToCore converts a GORM Pilot to a core.Pilot.
func PilotToCore(p model.Pilot) core.Pilot {
	return core.Pilot{ID: p.ID, Name: p.Name, ShortName: p.ShortName}
}

// SectorToCore decodes the stored GeoJSON geometry. A row whose geometry cannot
// be decoded is reported rather than rendered with an empty shape.
func SectorToCore(s model.Sector) (core.Sector, error) {
	kind, ring, err := geo.UnmarshalGeoJSON(s.Geometry)
	if err != nil {
		return core.Sector{}, fmt.Errorf("sector %s: %w", s.ID, err)
	}
	return core.Sector{
		ID:        s.ID,
		MissionID: s.MissionID,
		Name:      s.Name,
		Kind:      kind,
		Color:     s.Color,
		Geometry:  ring,
		Notes:     s.Notes,
	}, nil
}

// POIToCore converts a GORM PointOfInterest to a core.POI.
func POIToCore(p model.PointOfInterest) core.POI {
	return core.POI{
		ID:          p.ID,
		MissionID:   p.MissionID,
		Name:        p.Name,
		Type:        core.ParsePOIType(p.Type),
		Position:    core.LatLng{Lat: p.Lat, Lng: p.Lng},
		Description: p.Description,
		VideoURL:    p.VideoURL,
	}
}

// DroneToCore converts a GORM DroneAssignment to a core.DroneAssignment.
// Aircraft and Pilot are left nil; enrichment happens in the overlay store.
func DroneToCore(d model.DroneAssignment) core.DroneAssignment {
	out := core.DroneAssignment{
		ID:         d.ID,
		MissionID:  d.MissionID,
		AircraftID: d.AircraftID,
		PilotID:    d.PilotID,
		Status:     core.DroneStatus(d.Status),
		Position:   core.LatLng{Lat: d.Lat, Lng: d.Lng},
		Altitude:   d.Altitude,
		Battery:    d.Battery,
		VideoURL:   d.VideoURL,
	}
	if d.SectorID != nil {
		out.SectorID = *d.SectorID
	}
	return out
}
