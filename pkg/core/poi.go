// pkg/core/poi.go
package core

// POIType is the semantic subtype of a point of interest.
type POIType string

const (
	POIBase       POIType = "base"
	POIVictim     POIType = "victim"
	POIHazard     POIType = "hazard"
	POIGroundTeam POIType = "ground_team"
	POICanine     POIType = "canine"
	POIGeneric    POIType = "generic"
)

// POITypes lists every known subtype in display order.
var POITypes = []POIType{POIBase, POIVictim, POIHazard, POIGroundTeam, POICanine, POIGeneric}

// ParsePOIType maps a raw value to a POIType, falling back to POIGeneric.
func ParsePOIType(s string) POIType {
	for _, t := range POITypes {
		if string(t) == s {
			return t
		}
	}
	return POIGeneric
}

// POI is a named point marker.
type POI struct {
	ID          string  `json:"id"`
	MissionID   string  `json:"missionId"`
	Name        string  `json:"name"`
	Type        POIType `json:"type"`
	Position    LatLng  `json:"position"`
	Description string  `json:"description,omitempty"`
	VideoURL    string  `json:"videoUrl,omitempty"`
}

// IsCommandPost reports whether p is the synthetic mission origin marker.
func (p POI) IsCommandPost() bool {
	return p.ID == CommandPostID
}
