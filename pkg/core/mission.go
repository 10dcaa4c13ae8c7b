// pkg/core/mission.go
package core

// Mission is the incident context that scopes sectors, POIs and drone assignments.
type Mission struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Origin LatLng `json:"origin"` // declared command post location
}

// CommandPostID is the fixed identity of the synthetic command post POI.
const CommandPostID = "command-post"

// CommandPost returns the distinguished base POI rendered at the mission origin.
// It is never stored and cannot be deleted through the map.
func (m Mission) CommandPost() POI {
	return POI{
		ID:        CommandPostID,
		MissionID: m.ID,
		Name:      "Command Post",
		Type:      POIBase,
		Position:  m.Origin,
	}
}
