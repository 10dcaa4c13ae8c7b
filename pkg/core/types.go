// pkg/core/types.go
package core

import "fmt"

// LatLng is a WGS84 coordinate in degrees.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func (p LatLng) String() string {
	return fmt.Sprintf("%.6f,%.6f", p.Lat, p.Lng)
}

// Valid reports whether the coordinate lies within WGS84 bounds.
func (p LatLng) Valid() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

// Ring is an ordered list of vertices. Polygon rings are closed (first == last).
type Ring []LatLng

// Closed reports whether the ring has at least 4 vertices and ends where it starts.
func (r Ring) Closed() bool {
	return len(r) >= 4 && r[0] == r[len(r)-1]
}

// EntityKind classifies the persisted entities shown on the map.
type EntityKind string

const (
	KindSector EntityKind = "sector"
	KindPOI    EntityKind = "poi"
	KindDrone  EntityKind = "drone"
)

// EntityRef points at one persisted entity.
type EntityRef struct {
	Kind EntityKind `json:"kind"`
	ID   string     `json:"id"`
}

func (r EntityRef) String() string {
	return string(r.Kind) + ":" + r.ID
}
