package convert

import (
	"github.com/OCAP2/tacmap/internal/geo"
	"github.com/OCAP2/tacmap/internal/model"
	"github.com/OCAP2/tacmap/pkg/core"
	"gorm.io/datatypes"
)

// MissionToGorm converts a core.Mission to a GORM Mission.
func MissionToGorm(m core.Mission) model.Mission {
	return model.Mission{
		ID:        m.ID,
		Name:      m.Name,
		OriginLat: m.Origin.Lat,
		OriginLng: m.Origin.Lng,
	}
}

// AircraftToGorm converts a core.Aircraft to a GORM Aircraft.
func AircraftToGorm(a core.Aircraft) model.Aircraft {
	return model.Aircraft{
		ID:       a.ID,
		Serial:   a.Serial,
		Model:    a.Model,
		Callsign: a.Callsign,
		IsMain:   a.IsMain,
	}
}

// PilotToGorm converts a core.Pilot to a GORM Pilot.
func PilotToGorm(p core.Pilot) model.Pilot {
	return model.Pilot{ID: p.ID, Name: p.Name, ShortName: p.ShortName}
}

// SectorToGorm encodes the ring as GeoJSON. Open or invalid polygon rings are rejected.
func SectorToGorm(s core.Sector) (model.Sector, error) {
	data, err := geo.MarshalGeoJSON(s.Kind, s.Geometry)
	if err != nil {
		return model.Sector{}, err
	}
	return model.Sector{
		ID:        s.ID,
		MissionID: s.MissionID,
		Name:      s.Name,
		Kind:      string(s.Kind),
		Color:     s.Color,
		Geometry:  datatypes.JSON(data),
		Notes:     s.Notes,
	}, nil
}

// POIToGorm converts a core.POI to a GORM PointOfInterest.
func POIToGorm(p core.POI) model.PointOfInterest {
	return model.PointOfInterest{
		ID:          p.ID,
		MissionID:   p.MissionID,
		Name:        p.Name,
		Type:        string(p.Type),
		Lat:         p.Position.Lat,
		Lng:         p.Position.Lng,
		Description: p.Description,
		VideoURL:    p.VideoURL,
	}
}

// DroneToGorm converts a core.DroneAssignment to a GORM DroneAssignment.
func DroneToGorm(d core.DroneAssignment) model.DroneAssignment {
	out := model.DroneAssignment{
		ID:         d.ID,
		MissionID:  d.MissionID,
		AircraftID: d.AircraftID,
		PilotID:    d.PilotID,
		Status:     string(d.Status),
		Lat:        d.Position.Lat,
		Lng:        d.Position.Lng,
		Altitude:   d.Altitude,
		Battery:    d.Battery,
		VideoURL:   d.VideoURL,
	}
	if d.SectorID != "" {
		sid := d.SectorID
		out.SectorID = &sid
	}
	return out
}
