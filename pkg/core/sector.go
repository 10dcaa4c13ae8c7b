// pkg/core/sector.go
package core

// GeometryKind is the stored shape of a sector. Circles are converted to polygons at creation.
type GeometryKind string

const (
	GeometryPolygon GeometryKind = "polygon"
	GeometryLine    GeometryKind = "line" // routes
)

// Sector is a named mission zone or route.
type Sector struct {
	ID        string       `json:"id"`
	MissionID string       `json:"missionId"`
	Name      string       `json:"name"`
	Kind      GeometryKind `json:"kind"`
	Color     string       `json:"color"`
	Geometry  Ring         `json:"geometry"`
	Notes     string       `json:"notes,omitempty"`
}
